package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{name: "empty filter", filter: " ", want: Merchant()},
		{name: "subset keeps order", filter: "chat:new, notify", want: []string{Notify, ChatNew}},
		{name: "unknown names ignored", filter: "rideAccepted", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(Merchant(), tt.filter))
		})
	}
}

func TestDecode(t *testing.T) {
	type body struct {
		ID string `json:"id"`
	}

	v, err := Decode[body](NewInbound(Notify, json.RawMessage(`{"id":"n1"}`)))
	require.NoError(t, err)
	assert.Equal(t, "n1", v.ID)

	v, err = Decode[body](NewInbound(Notify, nil))
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = Decode[body](NewInbound(Notify, json.RawMessage(`[1]`)))
	assert.ErrorContains(t, err, "decode notify payload")
}
