package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-client/internal/adapter/api"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/socket"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// [BOUNDARY] Services talk to the role connection through Channel only.
		func(c *socket.Connection) Channel { return c },

		NewChat,
		NewPassenger,
		NewMerchant,
		NewInboxList,
		NewInbox,
		fx.Annotate(
			NewFeed,
			fx.As(new(Feeder)),
		),
		fx.Annotate(
			NewOrderEnricher,
			fx.As(new(Enricher)),
		),
		fx.Annotate(
			func(c *api.Client) *api.Client { return c },
			fx.As(new(SummaryFetcher), new(StatusUpdater), new(RideFinder)),
		),
		func(l *InboxList) ItemSink { return l },
	),

	// [DECORATION_LAYER] Intercept Enricher to add cross-cutting concerns
	fx.Decorate(func(orig Enricher, logger *slog.Logger) Enricher {
		return NewEnricherMiddleware(orig, logger)
	}),

	fx.Invoke(func(lc fx.Lifecycle, inbox *Inbox, c *socket.Connection) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				// [ROLE_SCOPE] Only merchants receive notify.
				if c.Role() == model.RoleMerchant {
					inbox.Start()
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				inbox.Close()
				return nil
			},
		})
	}),
)
