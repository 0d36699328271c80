package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-client/internal/domain/model"
)

// EnricherMiddleware implements [DECORATOR_PATTERN] to add observability
// to the enrichment process without touching business logic.
type EnricherMiddleware struct {
	Next   Enricher
	Logger *slog.Logger
}

func NewEnricherMiddleware(next Enricher, logger *slog.Logger) Enricher {
	return &EnricherMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *EnricherMiddleware) ResolveSummary(ctx context.Context, orderID string) (model.OrderSummary, error) {
	start := time.Now()

	s, err := m.Next.ResolveSummary(ctx, orderID)
	if err != nil {
		m.Logger.Warn("ORDER_SUMMARY_FAILED",
			"order_id", orderID,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return s, err
	}

	m.Logger.Debug("ORDER_SUMMARY_RESOLVED",
		"order_id", orderID,
		"has_user", s.UserID != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

// ResolveSummaries wraps the batch lookup with execution timing and outcome logging.
func (m *EnricherMiddleware) ResolveSummaries(ctx context.Context, orderIDs ...string) (map[string]model.OrderSummary, error) {
	start := time.Now()

	out, err := m.Next.ResolveSummaries(ctx, orderIDs...)

	// [OBSERVABILITY]
	duration := time.Since(start)
	if err != nil {
		m.Logger.Error("ORDER_SUMMARY_BATCH_FAILED",
			"err", err,
			"orders", len(orderIDs),
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("ORDER_SUMMARY_BATCH_COMPLETED",
			"orders", len(orderIDs),
			"duration_ms", duration.Milliseconds(),
		)
	}
	return out, err
}

func (m *EnricherMiddleware) Forget(orderID string) {
	m.Next.Forget(orderID)
}
