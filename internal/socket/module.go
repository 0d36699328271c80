package socket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/webitel/im-realtime-client/config"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/transport"
	"github.com/webitel/im-realtime-client/internal/transport/ws"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"socket",

	fx.Provide(
		NewWSTransportFactory,
		NewManager,
	),

	// [LIFECYCLE] Every role connection is torn down with the app.
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return m.Close()
			},
		})
	}),
)

// NewWSTransportFactory dials the configured server URL for every role; the role is
// carried in a header and again in whoami.
func NewWSTransportFactory(cfg *config.Config, logger *slog.Logger) TransportFactory {
	return func(role model.Role) (transport.Transport, error) {
		h := http.Header{}
		h.Set("X-Client-Role", string(role))
		return ws.New(ws.Config{
			URL:            cfg.Server.URL,
			Header:         h,
			InitialBackoff: cfg.Reconnect.Initial,
			MaxBackoff:     cfg.Reconnect.Max,
			PingPeriod:     cfg.Transport.PingPeriod,
		}, logger.With(slog.String("role", string(role)))), nil
	}
}
