package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-relay/internal/auth"
)

var (
	ErrNotFound           = errors.New("connection not found")
	ErrInvalidTransition  = errors.New("invalid session state transition")
	ErrIdentityImmutable  = errors.New("identity already bound")
	ErrClientDisconnected = errors.New("client disconnected")
)

// SessionState is the per-connection lifecycle state gating which
// inbound frames are accepted.
type SessionState int32

const (
	StateConnected SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the registry-held state for one live transport link.
type Connection struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	State        SessionState
	Identity     *auth.Identity
	ProfileName  string
}

// Registry is the single source of truth for which connections are
// currently eligible for broadcast. All state transitions happen under
// its lock; per-connection goroutines never mutate entries directly.
type Registry struct {
	mu           sync.RWMutex
	authRequired bool
	conns        map[*Client]*Connection
}

// NewRegistry creates an empty registry. With authRequired false every
// connection is eligible for broadcast from the moment it registers and
// the authenticating state is never entered.
func NewRegistry(authRequired bool) *Registry {
	return &Registry{
		authRequired: authRequired,
		conns:        make(map[*Client]*Connection),
	}
}

// AuthRequired reports whether authentication gates broadcast eligibility.
func (r *Registry) AuthRequired() bool {
	return r.authRequired
}

// Register creates an entry for the client and returns a snapshot of it.
func (r *Registry) Register(c *Client) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	conn := &Connection{
		ID:           c.ID(),
		CreatedAt:    now,
		LastActivity: now,
		State:        StateConnected,
	}
	r.conns[c] = conn
	return *conn
}

// Lookup returns a snapshot of the client's entry.
func (r *Registry) Lookup(c *Client) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[c]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return *conn, nil
}

// Remove deletes the client's entry. It is idempotent: removing an
// already-removed client reports removed=false without error. The
// second result tells the caller whether the connection counted toward
// the eligible set, so a presence recompute can follow.
func (r *Registry) Remove(c *Client) (removed, wasEligible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[c]
	if !ok {
		return false, false
	}
	wasEligible = r.eligibleLocked(conn)
	conn.State = StateClosed
	delete(r.conns, c)
	return true, wasEligible
}

// Touch refreshes the connection's last-activity timestamp.
func (r *Registry) Touch(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[c]; ok {
		conn.LastActivity = time.Now()
	}
}

// Len returns the number of live connections regardless of state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountEligible returns the number of connections currently eligible
// for chat and typing broadcasts.
func (r *Registry) CountEligible() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, conn := range r.conns {
		if r.eligibleLocked(conn) {
			count++
		}
	}
	return count
}

// Eligible reports whether the client may send and receive chat and
// typing broadcasts.
func (r *Registry) Eligible(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[c]
	return ok && r.eligibleLocked(conn)
}

func (r *Registry) eligibleLocked(conn *Connection) bool {
	if !r.authRequired {
		return true
	}
	return conn.State == StateAuthenticated
}

// SnapshotAll returns every live client at this instant. Callers must
// not cache the result beyond a single broadcast pass.
func (r *Registry) SnapshotAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}

// SnapshotEligible returns the broadcast-eligible clients at this instant.
func (r *Registry) SnapshotEligible() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for c, conn := range r.conns {
		if r.eligibleLocked(conn) {
			clients = append(clients, c)
		}
	}
	return clients
}

// BeginAuthentication moves the connection from connected to
// authenticating. A credential submitted in any other state is refused.
func (r *Registry) BeginAuthentication(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[c]
	if !ok {
		return ErrNotFound
	}
	if conn.State != StateConnected {
		return fmt.Errorf("%w: authenticate while %s", ErrInvalidTransition, conn.State)
	}
	conn.State = StateAuthenticating
	return nil
}

// CompleteAuthentication binds the verified identity and moves the
// connection to authenticated. An identity, once bound, is immutable
// for the connection's lifetime.
func (r *Registry) CompleteAuthentication(c *Client, identity auth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[c]
	if !ok {
		return ErrNotFound
	}
	if conn.Identity != nil {
		return ErrIdentityImmutable
	}
	if conn.State != StateAuthenticating {
		return fmt.Errorf("%w: verify_ok while %s", ErrInvalidTransition, conn.State)
	}
	conn.Identity = &identity
	conn.State = StateAuthenticated
	return nil
}

// FailAuthentication returns the connection to the connected state so
// the client can retry. A connection removed mid-verification is left
// alone.
func (r *Registry) FailAuthentication(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[c]
	if !ok {
		return
	}
	if conn.State == StateAuthenticating {
		conn.State = StateConnected
	}
}

// SetProfileName updates the display-profile override without touching
// the authentication state.
func (r *Registry) SetProfileName(c *Client, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[c]
	if !ok {
		return ErrNotFound
	}
	conn.ProfileName = name
	return nil
}
