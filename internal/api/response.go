package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
)

// envelope is the shape of every REST response.
type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func respondOK(c *gin.Context, data any, message string) {
	respond(c, http.StatusOK, data, message)
}

func respondCreated(c *gin.Context, data any, message string) {
	respond(c, http.StatusCreated, data, message)
}

// respondError maps an error to its status via the apperr kind. Internal
// errors get a generic message so causes never leak to clients; everything
// else surfaces its own message plus the machine-readable kind code.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	msg := err.Error()
	if kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = "internal server error"
	}

	c.JSON(status, envelope{
		Success:   false,
		Error:     msg,
		Code:      string(kind),
		Timestamp: time.Now().UTC(),
	})
}

func respondInvalid(c *gin.Context, logger *zap.Logger, msg string) {
	respondError(c, logger, apperr.Invalid(msg))
}

// bindJSON decodes the request body into a typed struct. Malformed bodies
// and binding-tag violations both come back as a single invalid error.
func bindJSON(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return apperr.Invalid("invalid request body: " + bindErrorMessage(err))
	}
	return nil
}

// splitCSV breaks a comma-separated query value into trimmed, non-empty
// parts.
func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func bindErrorMessage(err error) string {
	var unmarshalErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalErr) {
		return "wrong type for field " + unmarshalErr.Field
	}
	return err.Error()
}
