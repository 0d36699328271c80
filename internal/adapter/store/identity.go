package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/webitel/im-realtime-client/internal/domain/model"
)

const identityKey = "identity"

// IdentityStore keeps the signed-in principal between runs.
type IdentityStore struct {
	kv KV
}

func NewIdentityStore(kv KV) *IdentityStore {
	return &IdentityStore{kv: kv}
}

// Load returns ErrNotFound when nothing was saved.
func (s *IdentityStore) Load(ctx context.Context) (model.Identity, error) {
	raw, err := s.kv.Get(ctx, identityKey)
	if err != nil {
		return model.Identity{}, err
	}
	var id model.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return model.Identity{}, fmt.Errorf("decode stored identity: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) Save(ctx context.Context, id model.Identity) error {
	if !id.Role.Valid() || id.IsZero() {
		return fmt.Errorf("save identity: incomplete identity %q", id.String())
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, identityKey, string(raw))
}

func (s *IdentityStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, identityKey)
}
