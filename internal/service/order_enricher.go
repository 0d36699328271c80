package service

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const summaryCacheSize = 1024

// SummaryFetcher is the order-summary HTTP collaborator.
type SummaryFetcher interface {
	OrderSummary(ctx context.Context, orderID string) (model.OrderSummary, error)
}

// Enricher defines the contract for notification augmentation.
type Enricher interface {
	// ResolveSummary returns the amount and ordering user for orderID.
	ResolveSummary(ctx context.Context, orderID string) (model.OrderSummary, error)
	// ResolveSummaries fetches several orders concurrently; it fails if any lookup fails.
	ResolveSummaries(ctx context.Context, orderIDs ...string) (map[string]model.OrderSummary, error)
	// Forget drops a cached summary, e.g. once the order is resolved.
	Forget(orderID string)
}

type OrderEnricher struct {
	api   SummaryFetcher
	cache *lru.Cache[string, model.OrderSummary]
	group singleflight.Group
}

func NewOrderEnricher(api SummaryFetcher) *OrderEnricher {
	// [MEMORY_MANAGEMENT] Bounded: inbox items are few, but a long-running merchant session
	// sees many orders.
	cache, _ := lru.New[string, model.OrderSummary](summaryCacheSize)
	return &OrderEnricher{
		api:   api,
		cache: cache,
	}
}

// ResolveSummary is cache-aside. Concurrent lookups of one order share a single request.
func (e *OrderEnricher) ResolveSummary(ctx context.Context, orderID string) (model.OrderSummary, error) {
	if orderID == "" {
		return model.OrderSummary{}, ErrMissingOrder
	}

	// [HOT_PATH]
	if s, ok := e.cache.Get(orderID); ok {
		return s, nil
	}

	v, err, _ := e.group.Do(orderID, func() (any, error) {
		s, err := e.api.OrderSummary(ctx, orderID)
		if err != nil {
			return model.OrderSummary{}, err
		}
		// [CACHE_POPULATION] Only complete summaries; a missing user may appear later.
		if s.UserID != nil && !s.UserID.IsZero() {
			e.cache.Add(orderID, s)
		}
		return s, nil
	})
	if err != nil {
		return model.OrderSummary{}, err
	}
	return v.(model.OrderSummary), nil
}

func (e *OrderEnricher) ResolveSummaries(ctx context.Context, orderIDs ...string) (map[string]model.OrderSummary, error) {
	g, gCtx := errgroup.WithContext(ctx)
	results := make([]model.OrderSummary, len(orderIDs))

	for i, id := range orderIDs {
		g.Go(func() error {
			s, err := e.ResolveSummary(gCtx, id)
			if err != nil {
				return fmt.Errorf("order %s: %w", id, err)
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel enrichment failed: %w", err)
	}

	out := make(map[string]model.OrderSummary, len(orderIDs))
	for i, id := range orderIDs {
		out[id] = results[i]
	}
	return out, nil
}

func (e *OrderEnricher) Forget(orderID string) {
	e.cache.Remove(orderID)
}
