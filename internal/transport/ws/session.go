package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-client/internal/transport"
)

// session is one socket generation: its outbound queue and the acks still awaited on it.
type session struct {
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	acks map[uint64]transport.AckFunc
}

func newSession(conn *websocket.Conn, buffer int) *session {
	return &session{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
		acks: make(map[uint64]transport.AckFunc),
	}
}

func (s *session) addAck(id uint64, fn transport.AckFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acks == nil {
		return false
	}
	s.acks[id] = fn
	return true
}

// takeAck removes and returns the callback for id; a second take returns nil.
func (s *session) takeAck(id uint64) transport.AckFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := s.acks[id]
	delete(s.acks, id)
	return fn
}

func (s *session) enqueue(data []byte) error {
	select {
	case <-s.done:
		return transport.ErrNotConnected
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return transport.ErrNotConnected
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.acks = nil
		s.mu.Unlock()

		_ = s.conn.Close()
	})
}

func (s *session) writePump(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
