package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/service"
	"github.com/webitel/im-realtime-client/internal/socket"
)

const requestTimeout = 15 * time.Second

// Conn is the role connection as seen by the control surface.
type Conn interface {
	Role() model.Role
	Identity() model.Identity
	State() (model.ConnState, error)
	Listeners() map[string]int
}

type Rooms interface {
	Join(kind model.RoomKind, id string, onAck socket.AckFunc) error
	Leave(kind model.RoomKind, id string, onAck socket.AckFunc) error
	Membership() model.RoomMembership
}

type Inbox interface {
	Accept(ctx context.Context, item model.NotificationItem) error
	Reject(ctx context.Context, item model.NotificationItem, reason string) error
	Refresh(ctx context.Context, items []model.NotificationItem) error
	IsLoading(id string) bool
	IsActing(id string) bool
}

type InboxItems interface {
	Items() []model.NotificationItem
	Get(id string) (model.NotificationItem, bool)
}

type Chat interface {
	Send(msg model.ChatSend, onAck socket.AckFunc) (string, error)
	History(ctx context.Context, q model.HistoryQuery) (json.RawMessage, error)
	SetTyping(requestID string, isTyping bool) error
	MarkRead(r model.ReadReceipt, onAck socket.AckFunc) error
}

type RideTracker interface {
	TrackCurrentRide(ctx context.Context, passengerID string, rooms service.RoomJoiner) (model.Ride, error)
}

// Handler serves the local control surface of one role connection.
type Handler struct {
	logger *slog.Logger
	conn   Conn
	rooms  Rooms
	inbox  Inbox
	items  InboxItems
	chat   Chat
	rides  RideTracker
}

func NewHandler(logger *slog.Logger, conn Conn, rooms Rooms, inbox Inbox, items InboxItems, chat Chat, rides RideTracker) *Handler {
	return &Handler{
		logger: logger.With(slog.String("component", "control")),
		conn:   conn,
		rooms:  rooms,
		inbox:  inbox,
		items:  items,
		chat:   chat,
		rides:  rides,
	}
}

type stateResponse struct {
	Role      model.Role           `json:"role"`
	Identity  model.Identity       `json:"identity"`
	State     string               `json:"state"`
	Error     string               `json:"error,omitempty"`
	Rooms     model.RoomMembership `json:"rooms"`
	Listeners map[string]int       `json:"listeners"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.conn.State()
	resp := stateResponse{
		Role:      h.conn.Role(),
		Identity:  h.conn.Identity(),
		State:     st.String(),
		Rooms:     h.rooms.Membership(),
		Listeners: h.conn.Listeners(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- rooms

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseRoomKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.rooms.Join(kind, chi.URLParam(r, "id"), nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.rooms.Membership())
}

func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseRoomKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.rooms.Leave(kind, chi.URLParam(r, "id"), nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.rooms.Membership())
}

// --- inbox

type inboxItem struct {
	model.NotificationItem
	Loading bool `json:"loading"`
	Acting  bool `json:"acting"`
}

func (h *Handler) view(items []model.NotificationItem) []inboxItem {
	out := make([]inboxItem, 0, len(items))
	for _, it := range items {
		out = append(out, inboxItem{
			NotificationItem: it,
			Loading:          h.inbox.IsLoading(it.ID),
			Acting:           h.inbox.IsActing(it.ID),
		})
	}
	return out
}

func (h *Handler) ListInbox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view(h.items.Items()))
}

func (h *Handler) RefreshInbox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.inbox.Refresh(ctx, h.items.Items()); err != nil {
		// [PARTIAL_SUCCESS] Items that resolved are merged anyway; report the rest.
		h.logger.Warn("INBOX_REFRESH_FAILED", slog.Any("err", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(h.items.Items()))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, func(ctx context.Context, it model.NotificationItem) error {
		return h.inbox.Accept(ctx, it)
	})
}

func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.resolve(w, r, func(ctx context.Context, it model.NotificationItem) error {
		return h.inbox.Reject(ctx, it, req.Reason)
	})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, fn func(context.Context, model.NotificationItem) error) {
	it, ok := h.items.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, errItemNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := fn(ctx, it); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- chat

type sendRequest struct {
	Message     string            `json:"message"`
	Attachments []json.RawMessage `json:"attachments,omitempty"`
	TempID      string            `json:"temp_id,omitempty"`
}

type sendResponse struct {
	TempID string `json:"temp_id"`
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tempID, err := h.chat.Send(model.ChatSend{
		RequestID:   chi.URLParam(r, "requestID"),
		Message:     req.Message,
		Attachments: req.Attachments,
		TempID:      req.TempID,
	}, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sendResponse{TempID: tempID})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := model.HistoryQuery{
		RequestID: chi.URLParam(r, "requestID"),
		BeforeID:  r.URL.Query().Get("before_id"),
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		q.Limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	page, err := h.chat.History(ctx, q)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(page) == 0 {
		page = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

type typingRequest struct {
	IsTyping bool `json:"is_typing"`
}

func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.chat.SetTyping(chi.URLParam(r, "requestID"), req.IsTyping); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type readRequest struct {
	LastSeenID string `json:"last_seen_id"`
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.chat.MarkRead(model.ReadReceipt{
		RequestID:  chi.URLParam(r, "requestID"),
		LastSeenID: req.LastSeenID,
	}, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- ride

func (h *Handler) TrackRide(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ride, err := h.rides.TrackCurrentRide(ctx, h.conn.Identity().PrincipalID, h.rooms)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ride_id": ride.Key(),
		"rooms":   h.rooms.Membership(),
	})
}
