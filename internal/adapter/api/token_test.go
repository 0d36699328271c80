package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    TokenClaims
		wantErr error
	}{
		{
			name:   "user_id claim",
			claims: jwt.MapClaims{"user_id": "7", "business_id": "b1", "role": "merchant", "exp": exp.Unix()},
			want:   TokenClaims{PrincipalID: "7", BusinessID: "b1", Role: "merchant", ExpiresAt: exp},
		},
		{
			name:   "numeric user id",
			claims: jwt.MapClaims{"user_id": 42},
			want:   TokenClaims{PrincipalID: "42"},
		},
		{
			name:   "sub fallback",
			claims: jwt.MapClaims{"sub": "u-9"},
			want:   TokenClaims{PrincipalID: "u-9"},
		},
		{
			name:    "no principal",
			claims:  jwt.MapClaims{"role": "passenger"},
			want:    TokenClaims{Role: "passenger"},
			wantErr: ErrNoPrincipal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenClaims("Bearer " + signed(t, tt.claims))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, tt.want.ExpiresAt.Equal(got.ExpiresAt))
			got.ExpiresAt = tt.want.ExpiresAt
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTokenClaims("not-a-jwt")
	assert.ErrorContains(t, err, "parse token")
}

func TestTokenClaims_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, TokenClaims{}.Expired(now))
	assert.True(t, TokenClaims{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
	assert.False(t, TokenClaims{ExpiresAt: now.Add(time.Minute)}.Expired(now))
}
