package lp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/webitel/im-realtime-client/internal/domain/event"
	lpmarshaller "github.com/webitel/im-realtime-client/internal/handler/marshaller/lp"
	"github.com/webitel/im-realtime-client/internal/service"
)

const (
	defaultPollTimeout = 30 * time.Second
	maxBatch           = 16
)

type LPHandler struct {
	logger  *slog.Logger
	feeder  service.Feeder
	topics  []string
	timeout time.Duration
}

// NewLPHandler serves topics; a request may narrow them with ?events=a,b.
func NewLPHandler(logger *slog.Logger, feeder service.Feeder, topics []string) *LPHandler {
	return &LPHandler{
		logger:  logger,
		feeder:  feeder,
		topics:  topics,
		timeout: defaultPollTimeout,
	}
}

// WithTimeout overrides how long Poll holds an idle request.
func (h *LPHandler) WithTimeout(d time.Duration) *LPHandler {
	h.timeout = d
	return h
}

// Poll handles the long-polling request.
// It holds the connection until an event arrives or timeout occurs.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	topics := event.Select(h.topics, r.URL.Query().Get("events"))
	if len(topics) == 0 {
		http.Error(w, "no known events selected", http.StatusBadRequest)
		return
	}

	// A tap lives only for the duration of this HTTP request.
	tap := h.feeder.Subscribe(topics, maxBatch)
	defer tap.Close()

	var events []event.Inbound

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		// Client disconnected.
		return

	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
		return

	case in, ok := <-tap.Recv():
		if !ok {
			return
		}
		events = append(events, in)

		// [BATCHING] Drain what is already buffered to save round trips.
	drainLoop:
		for len(events) < maxBatch {
			select {
			case next := <-tap.Recv():
				events = append(events, next)
			default:
				break drainLoop
			}
		}
	}

	data, err := lpmarshaller.MarshallEvents(events, tap.Dropped())
	if err != nil {
		h.logger.Error("LP_MARSHAL_FAILED", slog.Any("err", err))
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
