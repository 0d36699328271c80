package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/webitel/im-realtime-client/internal/adapter/api"
	"github.com/webitel/im-realtime-client/internal/service"
	"github.com/webitel/im-realtime-client/internal/socket"
)

var (
	errItemNotFound = service.ErrItemNotFound
	errBadBody      = errors.New("Malformed request body")
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf maps domain and upstream failures to a response code.
func statusOf(err error) int {
	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		// [PASSTHROUGH] Client errors are the caller's; server errors are our upstream's.
		if se.Code >= 400 && se.Code < 500 {
			return se.Code
		}
		return http.StatusBadGateway
	case errors.Is(err, errItemNotFound), errors.Is(err, api.ErrNoCurrentRide):
		return http.StatusNotFound
	case errors.Is(err, service.ErrActionInFlight):
		return http.StatusConflict
	case errors.Is(err, socket.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errBadBody),
		errors.Is(err, service.ErrMissingUser),
		errors.Is(err, service.ErrMissingOrder),
		errors.Is(err, service.ErrMissingRequestID),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, socket.ErrEmptyRoomID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError surfaces err's own text. An upstream StatusError anywhere in the chain is
// written as the server sent it, without the client's wrapping context.
func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var se *api.StatusError
	if errors.As(err, &se) {
		msg = se.Error()
	}
	writeJSON(w, statusOf(err), errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}
