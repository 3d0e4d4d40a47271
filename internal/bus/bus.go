// Package bus is the topic-based event capability. Ingested metrics and
// stored chat messages are published here; the socket gateway consumes them
// to push unsolicited updates. The transport is Watermill's in-process
// Go-channel pub/sub, so the bus behaves like a broker (topics, consumer
// acks) without requiring one to run.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/models"
)

const (
	TopicMetricIngested = "metrics.ingested"
	TopicChatMessages   = "chat.messages"
)

// MetricIngested is published for every stored analytics sample.
type MetricIngested struct {
	UserID uuid.UUID              `json:"userId"`
	Sample models.AnalyticsSample `json:"sample"`
}

// ChatMessageStored is published for every persisted chat message, user and
// assistant alike.
type ChatMessageStored struct {
	UserID  uuid.UUID          `json:"userId"`
	Message models.ChatMessage `json:"message"`
}

// Publisher is the producing half; services depend on this, not on the
// concrete bus, so tests can capture published events.
type Publisher interface {
	Publish(topic string, payload any) error
}

type Bus struct {
	pubsub *gochannel.GoChannel
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			&zapAdapter{logger: logger},
		),
	}
}

func (b *Bus) Publish(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return ch, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// zapAdapter bridges Watermill's logging interface onto zap.
type zapAdapter struct {
	logger *zap.Logger
}

func (a *zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a *zapAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, zapFields(fields)...)
}

func (a *zapAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, zapFields(fields)...)
}

func (a *zapAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, zapFields(fields)...)
}

func (a *zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapAdapter{logger: a.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
