package webiteldi

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-client/config"
	"github.com/webitel/im-realtime-client/internal/adapter/api"
	"github.com/webitel/im-realtime-client/internal/adapter/store"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"webitel_clients",

	// [CONSTRUCTOR] Provides the circuit-broken order/ride HTTP client
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
		return api.New(cfg.API, logger)
	}),
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) (store.KV, error) {
		return store.New(cfg.Store, logger)
	}),
	fx.Provide(store.NewIdentityStore),

	// [LIFECYCLE] Idle HTTP connections and the store pool are released on app shutdown
	fx.Invoke(func(lc fx.Lifecycle, client *api.Client) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
	}),

	fx.Invoke(func(lc fx.Lifecycle, kv store.KV) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return kv.Close()
			},
		})
	}),
)
