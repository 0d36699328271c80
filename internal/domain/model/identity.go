package model

import (
	"fmt"
	"strings"
)

// Role selects which side of the platform a connection speaks for.
// Exactly one live connection exists per role per process.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleMerchant  Role = "merchant"
)

func (r Role) Valid() bool {
	return r == RolePassenger || r == RoleMerchant
}

// ParseRole accepts the role names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Identity is announced to the far end with a whoami event after every connect.
//
// [STABILITY] PrincipalID is the stable user (or merchant staff) id, BusinessID is set
// for merchants only. Both are opaque strings on the wire.
type Identity struct {
	Role        Role   `json:"role"`
	PrincipalID string `json:"principal_id"`
	BusinessID  string `json:"business_id,omitempty"`
}

// IsZero reports whether the identity has no principal to announce.
func (i Identity) IsZero() bool {
	return i.PrincipalID == ""
}

func (i Identity) String() string {
	if i.BusinessID != "" {
		return fmt.Sprintf("%s:%s@%s", i.Role, i.PrincipalID, i.BusinessID)
	}
	return fmt.Sprintf("%s:%s", i.Role, i.PrincipalID)
}
