package model

// WhoAmIPayload re-identifies the client after (re)connect or identity change.
type WhoAmIPayload struct {
	Role        Role   `json:"role"`
	PrincipalID string `json:"principal_id"`
	BusinessID  string `json:"business_id,omitempty"`
}

func NewWhoAmIPayload(id Identity) WhoAmIPayload {
	return WhoAmIPayload{
		Role:        id.Role,
		PrincipalID: id.PrincipalID,
		BusinessID:  id.BusinessID,
	}
}
