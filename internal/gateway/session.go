package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/me/aria/internal/secure"
	"github.com/me/aria/pkg/model"
)

// maxMessageSize bounds a single encrypted frame.
const maxMessageSize = 1 << 20

// keyFrame is the one plaintext control frame on the session channel,
// sent immediately after the upgrade.
type keyFrame struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Session ties one WebSocket connection to its key and identity. All
// mutation happens on the connection's read loop; incoming messages are
// handled strictly one at a time, so a later message never observes a
// half-applied auth transition from an earlier one.
type Session struct {
	id     string
	conn   *websocket.Conn
	key    secure.Key
	server *Server
	logger *slog.Logger

	mu       sync.Mutex // guards identity (read from tests/other goroutines) and writes
	identity *model.Identity
}

// newSession issues a fresh key for conn.
func newSession(id string, conn *websocket.Conn, server *Server) (*Session, error) {
	key, err := secure.NewKey()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:     id,
		conn:   conn,
		key:    key,
		server: server,
		logger: server.logger.With("component", "session", "conn_id", id),
	}, nil
}

// Identity returns the current auth state; nil means unauthenticated.
func (s *Session) Identity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// setIdentity records a successful login. There is no reverse transition
// short of disconnect.
func (s *Session) setIdentity(id *model.Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
}

// run services the connection until it closes: key frame first, then the
// encrypted request/response loop. It always tears the session down on
// return.
func (s *Session) run(ctx context.Context) {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.sendKeyFrame(); err != nil {
		s.logger.Warn("send key frame", "error", err)
		return
	}
	s.logger.Info("client connected")

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("read", "error", err)
			}
			return
		}

		var env secure.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Not an envelope at all; same anti-oracle treatment as a
			// failed decrypt.
			s.logger.Debug("dropped non-envelope frame")
			continue
		}

		plaintext, err := secure.Decrypt(env, s.key)
		if err != nil {
			// Deliberately no response: a decrypt failure must not leak
			// anything to the peer, not even its own occurrence.
			s.logger.Debug("dropped undecryptable frame")
			continue
		}

		resp := s.server.dispatch(ctx, s, plaintext)
		if err := s.sendEncrypted(resp); err != nil {
			s.logger.Warn("write response", "error", err)
			return
		}
	}
}

// sendKeyFrame delivers the session key in the clear, once.
func (s *Session) sendKeyFrame() error {
	return s.writeJSON(keyFrame{
		Type: "session-key",
		Key:  base64.StdEncoding.EncodeToString(s.key),
	})
}

// sendEncrypted seals v under the session key and writes the envelope.
func (s *Session) sendEncrypted(v any) error {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return err
	}
	env, err := secure.Encrypt(plaintext, s.key)
	if err != nil {
		return err
	}
	return s.writeJSON(env)
}

func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// teardown destroys the session: key zeroed, identity dropped, socket
// closed. A handler still in flight may finish, but its response has
// nowhere to go.
func (s *Session) teardown() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
	s.key.Zero()
	s.conn.Close()
	s.logger.Info("client disconnected")
}
