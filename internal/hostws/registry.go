package hostws

import (
	"context"
	"sync"

	ws "nhooyr.io/websocket"

	"murmur/arbiter/internal/arbiter"
	"murmur/arbiter/internal/protocol"
)

type session struct {
	conn *ws.Conn
	ctrl *arbiter.Controller
}

// Registry keeps at most one host connection per session, each with its own
// arbitration pipeline.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*session
	threshold *float64 // runtime override, applied to new sessions
}

func NewRegistry() *Registry { return &Registry{sessions: make(map[string]*session)} }

// Replace installs the connection for a session and closes the previous one
// if present.
func (r *Registry) Replace(sessionID string, c *ws.Conn, ctrl *arbiter.Controller) (prevClosed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[sessionID]; ok && old.conn != nil {
		_ = old.conn.Close(ws.StatusNormalClosure, "replaced")
		prevClosed = true
	}
	if r.threshold != nil && ctrl != nil {
		ctrl.Scorer().SetThreshold(*r.threshold)
	}
	r.sessions[sessionID] = &session{conn: c, ctrl: ctrl}
	return
}

func (r *Registry) Controller(sessionID string) *arbiter.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.sessions[sessionID]; s != nil {
		return s.ctrl
	}
	return nil
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Send marshals and writes one envelope to the session's connection. Writes
// are serialized under the registry lock.
func (r *Registry) Send(ctx context.Context, sessionID string, typ protocol.MessageType, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[sessionID]
	if s == nil || s.conn == nil {
		return nil
	}
	b, err := protocol.Marshal(typ, sessionID, payload)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, ws.MessageText, b)
}

// SetThreshold applies a new fusion threshold to every live session and to
// sessions connected after the call.
func (r *Registry) SetThreshold(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = &v
	for _, s := range r.sessions {
		if s.ctrl != nil {
			s.ctrl.Scorer().SetThreshold(v)
		}
	}
}
