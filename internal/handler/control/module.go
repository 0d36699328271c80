package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/webitel/im-realtime-client/config"
	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/handler/lp"
	"github.com/webitel/im-realtime-client/internal/handler/ws"
	"github.com/webitel/im-realtime-client/internal/service"
	"github.com/webitel/im-realtime-client/internal/socket"
	"go.uber.org/fx"
)

const shutdownTimeout = 5 * time.Second

var Module = fx.Module("control",
	fx.Provide(
		ProvideHandler,
		ProvideRouter,
	),
	fx.Invoke(RegisterServer),
)

func ProvideHandler(
	logger *slog.Logger,
	conn *socket.Connection,
	inbox *service.Inbox,
	items *service.InboxList,
	chat *service.Chat,
	passenger *service.Passenger,
) *Handler {
	return NewHandler(logger, conn, conn.Rooms(), inbox, items, chat, passenger)
}

func ProvideRouter(logger *slog.Logger, h *Handler, feeder service.Feeder) http.Handler {
	topics := Topics(h.conn.Role())
	poll := lp.NewLPHandler(logger, feeder, topics)
	stream := ws.NewWSHandler(logger, feeder, topics)
	return NewRouter(logger, h, poll.Poll, stream.ServeHTTP)
}

// Topics are the inbound events streamed to control clients of role, with the
// connection lifecycle first.
func Topics(role model.Role) []string {
	topics := []string{event.Connect, event.Disconnect}
	if role == model.RoleMerchant {
		return append(topics, event.Merchant()...)
	}
	return append(topics, event.Passenger()...)
}

// RegisterServer serves the control surface on control.listen for the app's lifetime.
func RegisterServer(lc fx.Lifecycle, cfg *config.Config, handler http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              cfg.Control.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("CONTROL_SERVER_STARTED", slog.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("CONTROL_SERVER_FAILED", slog.Any("err", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
