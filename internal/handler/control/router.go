package control

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

// NewRouter mounts the control routes. Streams are the long-poll and websocket event
// handlers; role-specific routes follow the connection's role.
func NewRouter(logger *slog.Logger, h *Handler, poll, stream http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", h.Health)
	r.Get("/state", h.State)

	r.Put("/rooms/{kind}/{id}", h.JoinRoom)
	r.Delete("/rooms/{kind}/{id}", h.LeaveRoom)

	r.Route("/chat/{requestID}", func(r chi.Router) {
		r.Post("/messages", h.SendMessage)
		r.Get("/history", h.History)
		r.Post("/typing", h.Typing)
		r.Post("/read", h.MarkRead)
	})

	switch h.conn.Role() {
	case model.RoleMerchant:
		r.Get("/inbox", h.ListInbox)
		r.Post("/inbox/refresh", h.RefreshInbox)
		r.Post("/inbox/{id}/accept", h.AcceptOrder)
		r.Post("/inbox/{id}/reject", h.RejectOrder)
	case model.RolePassenger:
		r.Post("/ride/track", h.TrackRide)
	}

	r.Get("/events", stream)
	r.Get("/events/poll", poll)
	return r
}

// requestLogger logs one line per request, with the id assigned by middleware.RequestID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Debug("CONTROL_REQUEST",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
