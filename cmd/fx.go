package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/webitel/im-realtime-client/config"
	webiteldi "github.com/webitel/im-realtime-client/infra/client/di"
	"github.com/webitel/im-realtime-client/internal/adapter/api"
	"github.com/webitel/im-realtime-client/internal/adapter/store"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/handler/control"
	"github.com/webitel/im-realtime-client/internal/service"
	"github.com/webitel/im-realtime-client/internal/socket"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideIdentity,
			ProvideConnection,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
		webiteldi.Module,
		socket.Module,
		service.Module,
		control.Module,
		fx.Invoke(
			LogStateChanges,
			JoinStartupRooms,
			WatchIdentity,
		),
	)
}

// ProvideIdentity takes the role from config and the principal from config or, failing
// that, from the secure store. A missing principal is allowed: whoami waits for one.
func ProvideIdentity(cfg *config.Config, ids *store.IdentityStore, logger *slog.Logger) (model.Identity, error) {
	id, err := identityFromConfig(cfg.Identity)
	if err != nil {
		return model.Identity{}, err
	}
	if !id.IsZero() {
		return id, nil
	}

	stored, err := ids.Load(context.Background())
	switch {
	case errors.Is(err, store.ErrNotFound):
		if fromToken, ok := identityFromToken(cfg.API.Token, id.Role, logger); ok {
			return fromToken, nil
		}
		logger.Warn("IDENTITY_NOT_CONFIGURED", slog.String("role", string(id.Role)))
		return id, nil
	case err != nil:
		return model.Identity{}, fmt.Errorf("load identity: %w", err)
	case stored.Role != id.Role:
		logger.Warn("IDENTITY_ROLE_MISMATCH", slog.String("role", string(id.Role)), slog.String("stored_role", string(stored.Role)))
		return id, nil
	}
	return stored, nil
}

func identityFromConfig(c config.IdentityConfig) (model.Identity, error) {
	role, err := model.ParseRole(c.Role)
	if err != nil {
		return model.Identity{}, err
	}
	return model.Identity{
		Role:        role,
		PrincipalID: strings.TrimSpace(c.PrincipalID),
		BusinessID:  strings.TrimSpace(c.BusinessID),
	}, nil
}

// identityFromToken reads the principal from the API bearer token, if it names one for role.
func identityFromToken(token string, role model.Role, logger *slog.Logger) (model.Identity, bool) {
	if token == "" {
		return model.Identity{}, false
	}
	claims, err := api.ParseTokenClaims(token)
	if err != nil {
		logger.Debug("TOKEN_IDENTITY_UNAVAILABLE", slog.Any("err", err))
		return model.Identity{}, false
	}
	if claims.Role != "" && !strings.EqualFold(claims.Role, string(role)) {
		return model.Identity{}, false
	}
	if claims.Expired(time.Now()) {
		logger.Warn("TOKEN_EXPIRED", slog.Time("expires_at", claims.ExpiresAt))
	}
	return model.Identity{Role: role, PrincipalID: claims.PrincipalID, BusinessID: claims.BusinessID}, true
}

// ProvideConnection opens the single connection of the configured role.
func ProvideConnection(m *socket.Manager, id model.Identity) (*socket.Connection, error) {
	return m.Get(id)
}

func LogStateChanges(lc fx.Lifecycle, conn *socket.Connection, logger *slog.Logger) {
	dispose := conn.OnState(func(s model.StateChange) {
		attrs := []any{slog.String("role", string(s.Role)), slog.String("state", s.State.String())}
		if s.Err != nil {
			attrs = append(attrs, slog.Any("err", s.Err))
		}
		logger.Info("CONNECTION_STATE_CHANGED", attrs...)
	})
	lc.Append(fx.StopHook(dispose))
}

// JoinStartupRooms joins rooms.ride_id and rooms.order_id; joins before the first connect
// are deferred until it happens.
func JoinStartupRooms(lc fx.Lifecycle, cfg *config.Config, conn *socket.Connection, logger *slog.Logger) {
	lc.Append(fx.StartHook(func() error {
		for kind, id := range map[model.RoomKind]string{
			model.RoomRide:  cfg.Rooms.RideID,
			model.RoomOrder: cfg.Rooms.OrderID,
		} {
			if id == "" {
				continue
			}
			if err := conn.Rooms().Join(kind, id, nil); err != nil {
				return fmt.Errorf("join %s: %w", model.RoomKey(kind, id), err)
			}
			logger.Info("STARTUP_ROOM_JOINED", slog.String("room", model.RoomKey(kind, id)))
		}
		return nil
	}))
}

// WatchIdentity re-announces the principal when the config file's identity section changes.
func WatchIdentity(cfg *config.Config, conn *socket.Connection, logger *slog.Logger) {
	cfg.Watch(func(next config.IdentityConfig) {
		id, err := identityFromConfig(next)
		if err != nil {
			logger.Warn("IDENTITY_RELOAD_REJECTED", slog.Any("err", err))
			return
		}
		if err := conn.UpdateIdentity(id); err != nil {
			logger.Warn("IDENTITY_RELOAD_REJECTED", slog.Any("err", err))
			return
		}
		logger.Info("IDENTITY_RELOADED", slog.String("identity", id.String()))
	})
}
