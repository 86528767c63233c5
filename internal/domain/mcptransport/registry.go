// Package mcptransport holds the per-replica registry of live MCP sessions
// and the logic to replay a session's initial handshake on a replica that
// never locally observed it, backing cross-instance Streamable HTTP
// resumability.
package mcptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/domain/eventjournal"
	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
)

// ErrSessionNotFound is returned when a session id has no shared KV record.
var ErrSessionNotFound = errors.New("mcptransport: session not found")

// ErrCorruptSession is returned when a session's shared KV record cannot be
// decoded.
var ErrCorruptSession = errors.New("mcptransport: corrupt session record")

const sessionKeyPrefix = "mcp-session:"

func sessionKey(sid string) string { return sessionKeyPrefix + sid }

// Handler dispatches one decoded JSON-RPC request body for a connected
// transport and returns the raw response bytes (or nil for a notification).
// Implemented by the MCP Core Server; mcptransport only depends on this
// function shape, never on the core server package, to avoid an import
// cycle.
type Handler func(ctx context.Context, body []byte) ([]byte, error)

// Connector binds a freshly created Transport to whatever serves MCP
// requests on it (the MCP Core Server) and returns the Handler to invoke for
// incoming requests.
type Connector func(t *Transport) Handler

// sessionRecord is the shared KV payload for a session: the original
// initialize request, persisted so any replica can replay it.
type sessionRecord struct {
	InitialRequest json.RawMessage `json:"initial_request"`
}

// Transport represents one MCP session's live connection state on this
// replica: the set of local SSE subscribers fed by server-to-client events
// and the handler that dispatches incoming requests.
type Transport struct {
	SessionID string
	StreamID  string

	mu          sync.Mutex
	handler     Handler
	closed      bool
	subscribers map[int]chan eventjournal.StoredEvent
	nextSubID   int
	onClose     func()
}

func newTransport(sid string) *Transport {
	return &Transport{
		SessionID:   sid,
		StreamID:    sid,
		subscribers: make(map[int]chan eventjournal.StoredEvent),
	}
}

// Connect binds h as the request handler for this transport. Idempotent
// reconnects (e.g. replay) simply overwrite the previous handler.
func (t *Transport) Connect(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Handle dispatches body to the connected handler. Returns an error if no
// handler has been connected yet.
func (t *Transport) Handle(ctx context.Context, body []byte) ([]byte, error) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("mcptransport: transport %s has no connected handler", t.SessionID)
	}
	return h(ctx, body)
}

// Subscribe registers a channel that receives every event published on this
// transport going forward (used by the live GET /mcp SSE stream). The
// returned func must be called to unsubscribe.
func (t *Transport) Subscribe() (<-chan eventjournal.StoredEvent, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSubID
	t.nextSubID++
	ch := make(chan eventjournal.StoredEvent, 16)
	t.subscribers[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(sub)
		}
	}
}

// Publish fans ev out to every live local subscriber without blocking on a
// slow reader (a full subscriber channel drops the event rather than
// stalling the publisher; the client can still recover it via Last-Event-ID
// replay).
func (t *Transport) Publish(ev eventjournal.StoredEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close runs the registry's on-close hook (removing this transport from the
// local map) and releases all subscriber channels. Safe to call once.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	subs := t.subscribers
	t.subscribers = nil
	hook := t.onClose
	t.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
	if hook != nil {
		hook()
	}
}

// Registry is the per-replica Transport Registry described in the component
// design: a local session_id -> Transport map backed by a KV-shared session
// index so a sibling replica can discover and replay a session it never
// locally served.
type Registry struct {
	store      kv.Store
	journal    *eventjournal.Journal
	sessionTTL time.Duration

	mu         sync.RWMutex
	transports map[string]*Transport
}

// New creates a Registry. sessionTTL bounds how long the shared
// mcp-session:{sid} KV record (and therefore cross-replica resumability)
// survives.
func New(store kv.Store, journal *eventjournal.Journal, sessionTTL time.Duration) *Registry {
	return &Registry{
		store:      store,
		journal:    journal,
		sessionTTL: sessionTTL,
		transports: make(map[string]*Transport),
	}
}

// HasSession reports whether sid has a shared KV session record, regardless
// of whether this replica holds a live local Transport for it.
func (r *Registry) HasSession(ctx context.Context, sid string) (bool, error) {
	_, ok, err := r.store.Get(ctx, sessionKey(sid))
	return ok, err
}

// SaveSession persists sid's initialize payload to the shared KV session
// index, refreshing the session TTL.
func (r *Registry) SaveSession(ctx context.Context, sid string, initialRequest json.RawMessage) error {
	blob, err := json.Marshal(sessionRecord{InitialRequest: initialRequest})
	if err != nil {
		return fmt.Errorf("mcptransport: marshal session record: %w", err)
	}
	return r.store.Set(ctx, sessionKey(sid), blob, r.sessionTTL)
}

// HasTransport reports whether this replica holds a live local Transport
// for sid. Local state only, per the component design.
func (r *Registry) HasTransport(sid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transports[sid]
	return ok
}

// GetTransport returns this replica's live local Transport for sid, if any.
func (r *Registry) GetTransport(sid string) (*Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[sid]
	return t, ok
}

// CreateTransport constructs a new Transport for sid, registers it in the
// local map, and connects it via connect. The transport's on-close hook
// removes it from the local map only — the shared mcp-session:{sid} KV
// record is left intact so a rolling restart (or a request landing on a
// different replica) does not invalidate the session; only an explicit
// DeleteTransport call removes it.
func (r *Registry) CreateTransport(sid string, connect Connector) *Transport {
	t := newTransport(sid)
	t.onClose = func() {
		r.mu.Lock()
		delete(r.transports, sid)
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.transports[sid] = t
	r.mu.Unlock()

	t.Connect(connect(t))
	return t
}

// DeleteTransport removes sid's local Transport (closing it) and deletes
// its shared KV session record, terminating the session outright.
func (r *Registry) DeleteTransport(ctx context.Context, sid string) error {
	r.mu.Lock()
	t, ok := r.transports[sid]
	delete(r.transports, sid)
	r.mu.Unlock()

	if ok {
		// onClose would otherwise re-delete from the map; harmless no-op
		// since the entry is already gone, but avoid the extra lock churn.
		t.onClose = nil
		t.Close()
	}

	if err := r.journal.CleanupStream(ctx, sid); err != nil {
		return err
	}
	_, err := r.store.Delete(ctx, sessionKey(sid))
	return err
}

// ReplayInitialRequest reconstructs a Transport for sid on a replica that
// never locally observed its initialize call: it loads the shared session
// record, creates a local Transport, connects it via connect, replays the
// saved initialize payload through the freshly connected handler (the
// response is discarded — the original caller already received it from
// whichever replica served it), and returns the now-live Transport.
func (r *Registry) ReplayInitialRequest(ctx context.Context, sid string, connect Connector) (*Transport, error) {
	blob, ok, err := r.store.Get(ctx, sessionKey(sid))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	var rec sessionRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, ErrCorruptSession
	}

	t := r.CreateTransport(sid, connect)

	// Sink: replay the handshake purely to rehydrate server-side state
	// (the MCP Core Server's per-session bookkeeping); the response is
	// never sent anywhere.
	if _, err := t.Handle(ctx, rec.InitialRequest); err != nil {
		t.Close()
		return nil, fmt.Errorf("mcptransport: replay initialize for %s: %w", sid, err)
	}

	return t, nil
}
