package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

type countingFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	fn    func(orderID string) (model.OrderSummary, error)
}

func (f *countingFetcher) OrderSummary(ctx context.Context, orderID string) (model.OrderSummary, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.fn(orderID)
}

func TestOrderEnricher_CachesCompleteSummaries(t *testing.T) {
	f := &countingFetcher{fn: func(id string) (model.OrderSummary, error) {
		if id == "incomplete" {
			return model.OrderSummary{TotalAmount: ptr(1.0)}, nil
		}
		return model.OrderSummary{TotalAmount: ptr(150.0), UserID: ptr(model.FlexID("7"))}, nil
	}}
	e := NewOrderEnricher(f)

	for range 3 {
		s, err := e.ResolveSummary(t.Context(), "42")
		require.NoError(t, err)
		assert.Equal(t, model.FlexID("7"), *s.UserID)
	}
	assert.Equal(t, int32(1), f.calls.Load())

	_, _ = e.ResolveSummary(t.Context(), "incomplete")
	_, _ = e.ResolveSummary(t.Context(), "incomplete")
	assert.Equal(t, int32(3), f.calls.Load())

	e.Forget("42")
	_, _ = e.ResolveSummary(t.Context(), "42")
	assert.Equal(t, int32(4), f.calls.Load())

	_, err := e.ResolveSummary(t.Context(), "")
	assert.ErrorIs(t, err, ErrMissingOrder)
}

func TestOrderEnricher_SharesConcurrentLookups(t *testing.T) {
	f := &countingFetcher{
		gate: make(chan struct{}),
		fn: func(string) (model.OrderSummary, error) {
			return model.OrderSummary{UserID: ptr(model.FlexID("7"))}, nil
		},
	}
	e := NewOrderEnricher(f)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ResolveSummary(t.Context(), "42")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(5))
	_, err := e.ResolveSummary(t.Context(), "42")
	require.NoError(t, err)
}

func TestOrderEnricher_ResolveSummaries(t *testing.T) {
	f := &countingFetcher{fn: func(id string) (model.OrderSummary, error) {
		if id == "bad" {
			return model.OrderSummary{}, errors.New("boom")
		}
		return model.OrderSummary{OrderID: model.FlexID(id), UserID: ptr(model.FlexID("7"))}, nil
	}}
	e := NewEnricherMiddleware(NewOrderEnricher(f), discard)

	out, err := e.ResolveSummaries(t.Context(), "1", "2")
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, model.FlexID("2"), out["2"].OrderID)

	_, err = e.ResolveSummaries(t.Context(), "1", "bad")
	assert.ErrorContains(t, err, "boom")
}
