package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
)

const (
	DefaultAcceptReason = "Accepted by merchant"
	DefaultRejectReason = "Rejected by merchant"

	defaultEnrichTimeout = 15 * time.Second
)

// StatusUpdater is the order-status HTTP collaborator.
type StatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID string, upd model.StatusUpdate) error
}

// Inbox turns inbound notify events into inbox items and resolves them.
//
// [DELIVERY] Every notify is acknowledged, duplicates included; an item is added once per
// id. Enrichment runs in the background and never gates the acknowledgment.
type Inbox struct {
	merchant *Merchant
	enricher Enricher
	statuses StatusUpdater
	sink     ItemSink
	logger   *slog.Logger

	enrichTimeout time.Duration

	// [LIFECYCLE_CONTROL] Background enrichment is bound to ctx and drained by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	acting  map[string]struct{}
	loading map[string]struct{}
	dispose registry.Disposer
	closed  bool
}

func NewInbox(merchant *Merchant, enricher Enricher, statuses StatusUpdater, sink ItemSink, logger *slog.Logger) *Inbox {
	ctx, cancel := context.WithCancel(context.Background())
	return &Inbox{
		merchant:      merchant,
		enricher:      enricher,
		statuses:      statuses,
		sink:          sink,
		logger:        logger.With(slog.String("component", "inbox")),
		enrichTimeout: defaultEnrichTimeout,
		ctx:           ctx,
		cancel:        cancel,
		acting:        make(map[string]struct{}),
		loading:       make(map[string]struct{}),
	}
}

// Start subscribes to notify. Calling it again is a no-op.
func (b *Inbox) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dispose != nil || b.closed {
		return
	}
	b.dispose = b.merchant.OnMerchantNotify(b.handleNotify)
}

// Close unsubscribes and waits for enrichment in flight; late results are discarded.
func (b *Inbox) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	dispose := b.dispose
	b.mu.Unlock()

	if dispose != nil {
		dispose()
	}
	b.cancel()
	b.wg.Wait()
}

// IsLoading reports whether the summary of id is being fetched.
func (b *Inbox) IsLoading(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.loading[id]
	return ok
}

// IsActing reports whether an accept or reject of id is in flight.
func (b *Inbox) IsActing(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.acting[id]
	return ok
}

func (b *Inbox) handleNotify(item model.NotificationItem) {
	item.State = model.ItemDelivered
	added := b.sink.PrependIfAbsent(item)

	if err := b.merchant.AckNotify(item.ID); err != nil {
		b.logger.Warn("NOTIFY_ACK_FAILED", slog.String("id", item.ID), slog.Any("err", err))
	}

	if !added {
		b.logger.Debug("NOTIFY_DUPLICATE", slog.String("id", item.ID))
		return
	}
	b.logger.Info("NOTIFY_DELIVERED", slog.String("id", item.ID), slog.String("order_id", item.OrderID))

	b.enrich(item.ID, item.OrderID)
}

func (b *Inbox) enrich(id, orderID string) {
	if orderID == "" {
		b.sink.Update(id, func(it *model.NotificationItem) { it.State = model.ItemEnrichFailed })
		b.logger.Warn("NOTIFY_ENRICHMENT_SKIPPED", slog.String("id", id), slog.String("reason", "no order id"))
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.loading[id] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	b.sink.Update(id, func(it *model.NotificationItem) {
		if it.State != model.ItemResolving {
			it.State = model.ItemEnriching
		}
	})

	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(b.ctx, b.enrichTimeout)
		defer cancel()
		s, err := b.enricher.ResolveSummary(ctx, orderID)

		b.mu.Lock()
		delete(b.loading, id)
		closed := b.closed
		b.mu.Unlock()

		// [LATE_RESULT] Nothing is applied once the inbox is torn down.
		if closed {
			return
		}
		if err != nil {
			b.logger.Warn("NOTIFY_ENRICHMENT_FAILED", slog.String("id", id), slog.String("order_id", orderID), slog.Any("err", err))
		}
		if !b.sink.Update(id, func(it *model.NotificationItem) { mergeSummary(it, s, err) }) {
			b.logger.Debug("NOTIFY_ENRICHMENT_DISCARDED", slog.String("id", id))
		}
	}()
}

// Refresh retries enrichment of the given items in one batch.
func (b *Inbox) Refresh(ctx context.Context, items []model.NotificationItem) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.OrderID != "" {
			ids = append(ids, it.OrderID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	summaries, err := b.enricher.ResolveSummaries(ctx, ids...)
	if err != nil {
		return err
	}
	for _, it := range items {
		if s, ok := summaries[it.OrderID]; ok {
			b.sink.Update(it.ID, func(cur *model.NotificationItem) { mergeSummary(cur, s, nil) })
		}
	}
	return nil
}

// mergeSummary fills known fields without clearing values already present.
func mergeSummary(it *model.NotificationItem, s model.OrderSummary, err error) {
	if err == nil {
		if s.TotalAmount != nil {
			it.TotalAmount = s.TotalAmount
		}
		if s.UserID != nil && !s.UserID.IsZero() {
			it.UserID = s.UserID
		}
	}
	if it.State == model.ItemResolving {
		return
	}
	if err != nil {
		it.State = model.ItemEnrichFailed
	} else {
		it.State = model.ItemEnriched
	}
}

// Accept confirms the order behind item. On success the item leaves the list.
func (b *Inbox) Accept(ctx context.Context, item model.NotificationItem) error {
	return b.resolve(ctx, item, model.OrderConfirmed, DefaultAcceptReason)
}

// Reject rejects the order behind item; an empty reason gets a default.
func (b *Inbox) Reject(ctx context.Context, item model.NotificationItem, reason string) error {
	if reason == "" {
		reason = DefaultRejectReason
	}
	return b.resolve(ctx, item, model.OrderRejected, reason)
}

func (b *Inbox) resolve(ctx context.Context, item model.NotificationItem, status model.OrderStatus, reason string) error {
	// [PRECONDITION] No network call without a user.
	if !item.HasUser() {
		return ErrMissingUser
	}
	orderID := item.OrderID
	if orderID == "" {
		return ErrMissingOrder
	}

	// [IDEMPOTENCY_SHIELD] Keyed by id, whichever path the call comes from.
	b.mu.Lock()
	if _, busy := b.acting[item.ID]; busy {
		b.mu.Unlock()
		return ErrActionInFlight
	}
	b.acting[item.ID] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.acting, item.ID)
		b.mu.Unlock()
	}()

	// A stale snapshot of an item already resolved must not reach the service again.
	prev := item.State
	if !b.sink.Update(item.ID, func(it *model.NotificationItem) {
		prev = it.State
		it.State = model.ItemResolving
	}) {
		return ErrItemNotFound
	}

	err := b.statuses.UpdateOrderStatus(ctx, orderID, model.StatusUpdate{
		Status: status,
		Reason: reason,
		UserID: *item.UserID,
	})
	if err != nil {
		loading := b.IsLoading(item.ID)
		b.sink.Update(item.ID, func(it *model.NotificationItem) {
			if it.State != model.ItemResolving {
				return
			}
			it.State = prev
			// Enrichment finished while resolving and left the state to us.
			if prev == model.ItemEnriching && !loading {
				it.State = model.ItemEnriched
			}
		})
		b.logger.Warn("ORDER_RESOLUTION_FAILED",
			slog.String("id", item.ID),
			slog.String("order_id", orderID),
			slog.String("status", string(status)),
			slog.Any("err", err),
		)
		return err
	}

	b.sink.Remove(item.ID)
	b.enricher.Forget(orderID)
	b.logger.Info("ORDER_RESOLVED",
		slog.String("id", item.ID),
		slog.String("order_id", orderID),
		slog.String("status", string(status)),
	)
	return nil
}
