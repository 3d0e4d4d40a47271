package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

type AnalyticsStore struct {
	pool *pgxpool.Pool
}

func NewAnalyticsStore(pool *pgxpool.Pool) *AnalyticsStore {
	return &AnalyticsStore{pool: pool}
}

const sampleColumns = `id, metric_type, value, user_id, timestamp, metadata, tags`

func scanSample(row pgx.Row) (*models.AnalyticsSample, error) {
	var (
		sample   models.AnalyticsSample
		metadata []byte
	)
	err := row.Scan(
		&sample.ID,
		&sample.MetricType,
		&sample.Value,
		&sample.UserID,
		&sample.Timestamp,
		&metadata,
		&sample.Tags,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &sample.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &sample, nil
}

func (s *AnalyticsStore) Insert(ctx context.Context, sample models.AnalyticsSample) (*models.AnalyticsSample, error) {
	var metadata []byte
	if sample.Metadata != nil {
		raw, err := json.Marshal(sample.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = raw
	}

	query := `
		INSERT INTO analytics_samples (id, metric_type, value, user_id, timestamp, metadata, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sampleColumns

	stored, err := scanSample(s.pool.QueryRow(ctx, query,
		sample.ID, sample.MetricType, sample.Value, sample.UserID, sample.Timestamp, metadata, sample.Tags))
	if err != nil {
		return nil, fmt.Errorf("insert sample: %w", err)
	}
	return stored, nil
}

// Query filters by user, then optionally by metric type set (OR semantics)
// and time lower bound. Results come back newest-first, capped at the limit.
func (s *AnalyticsStore) Query(ctx context.Context, filter repository.SampleFilter) ([]models.AnalyticsSample, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + sampleColumns + ` FROM analytics_samples WHERE user_id = $1`)
	args := []any{filter.UserID}

	if len(filter.MetricTypes) > 0 {
		args = append(args, filter.MetricTypes)
		fmt.Fprintf(&sb, ` AND metric_type = ANY($%d)`, len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		fmt.Fprintf(&sb, ` AND timestamp >= $%d`, len(args))
	}

	sb.WriteString(` ORDER BY timestamp DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]models.AnalyticsSample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, *sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}
