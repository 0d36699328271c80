package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-client/internal/domain/event"
	lpmarshaller "github.com/webitel/im-realtime-client/internal/handler/marshaller/lp"
	"github.com/webitel/im-realtime-client/internal/service"
)

const (
	writeWait = 10 * time.Second
	tapBuffer = 256
	readLimit = 512
)

type WSHandler struct {
	logger   *slog.Logger
	feeder   service.Feeder
	topics   []string
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, feeder service.Feeder, topics []string) *WSHandler {
	return &WSHandler{
		logger: logger,
		feeder: feeder,
		topics: topics,
		upgrader: websocket.Upgrader{
			// The control surface listens on loopback by default.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics := event.Select(h.topics, r.URL.Query().Get("events"))
	if len(topics) == 0 {
		http.Error(w, "no known events selected", http.StatusBadRequest)
		return
	}

	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", slog.Any("err", err))
		return
	}
	defer ws.Close()

	// 2. SUBSCRIBE VIA THE SAME FEED AS LONG POLL
	tap := h.feeder.Subscribe(topics, tapBuffer)
	defer tap.Close()

	h.logger.Info("WS_STREAM_OPENED", slog.String("tap_id", tap.ID().String()), slog.Int("topics", len(topics)))
	defer h.logger.Info("WS_STREAM_CLOSED", slog.String("tap_id", tap.ID().String()), slog.Int64("dropped", tap.Dropped()))

	// 3. READ PUMP: the stream is one-way, reads only notice the peer going away.
	gone := make(chan struct{})
	ws.SetReadLimit(readLimit)
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	// 4. MAIN WS PUMP LOOP
	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case in, ok := <-tap.Recv():
			if !ok {
				return
			}

			data, err := lpmarshaller.MarshallEvent(in)
			if err != nil {
				h.logger.Error("WS_MARSHAL_FAILED", slog.String("event", in.Name), slog.Any("err", err))
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("WS_SEND_FAILED", slog.Any("err", err))
				return
			}
		}
	}
}
