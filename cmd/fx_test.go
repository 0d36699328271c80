package cmd

import (
	"log/slog"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-client/config"
	"github.com/webitel/im-realtime-client/internal/adapter/store"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

var discard = slog.New(slog.DiscardHandler)

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestProvideIdentity(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Config
		stored *model.Identity
		want   model.Identity
	}{
		{
			name:   "config wins",
			cfg:    config.Config{Identity: config.IdentityConfig{Role: "Merchant", PrincipalID: " 7 ", BusinessID: "b1"}},
			stored: &model.Identity{Role: model.RoleMerchant, PrincipalID: "8"},
			want:   model.Identity{Role: model.RoleMerchant, PrincipalID: "7", BusinessID: "b1"},
		},
		{
			name:   "stored principal",
			cfg:    config.Config{Identity: config.IdentityConfig{Role: "passenger"}},
			stored: &model.Identity{Role: model.RolePassenger, PrincipalID: "8"},
			want:   model.Identity{Role: model.RolePassenger, PrincipalID: "8"},
		},
		{
			name:   "stored principal of another role is ignored",
			cfg:    config.Config{Identity: config.IdentityConfig{Role: "passenger"}},
			stored: &model.Identity{Role: model.RoleMerchant, PrincipalID: "8"},
			want:   model.Identity{Role: model.RolePassenger},
		},
		{
			name: "token principal",
			cfg: config.Config{
				Identity: config.IdentityConfig{Role: "merchant"},
				API:      config.APIConfig{Token: token(t, jwt.MapClaims{"user_id": 9, "business_id": "b2", "role": "merchant"})},
			},
			want: model.Identity{Role: model.RoleMerchant, PrincipalID: "9", BusinessID: "b2"},
		},
		{
			name: "token for another role",
			cfg: config.Config{
				Identity: config.IdentityConfig{Role: "passenger"},
				API:      config.APIConfig{Token: token(t, jwt.MapClaims{"sub": "9", "role": "merchant"})},
			},
			want: model.Identity{Role: model.RolePassenger},
		},
		{
			name: "nothing configured",
			cfg:  config.Config{Identity: config.IdentityConfig{Role: "passenger"}},
			want: model.Identity{Role: model.RolePassenger},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := store.NewIdentityStore(store.NewMemory())
			if tt.stored != nil {
				require.NoError(t, ids.Save(t.Context(), *tt.stored))
			}

			got, err := ProvideIdentity(&tt.cfg, ids, discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvideIdentity_RejectsUnknownRole(t *testing.T) {
	cfg := config.Config{Identity: config.IdentityConfig{Role: "driver"}}
	_, err := ProvideIdentity(&cfg, store.NewIdentityStore(store.NewMemory()), discard)
	assert.ErrorContains(t, err, `unknown role "driver"`)
}

func TestNewLogger(t *testing.T) {
	l := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	assert.True(t, l.Enabled(t.Context(), slog.LevelDebug))

	l = newLogger(config.LogConfig{Level: "bogus"})
	assert.False(t, l.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, l.Enabled(t.Context(), slog.LevelInfo))
}
