// Package eventjournal persists per-stream ordered event sequences over the
// KV Store, backing SSE resumability via the standard Last-Event-ID header.
package eventjournal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
)

// ErrEventNotFound is returned by ReplayAfter when the given event id does
// not resolve to any known stream.
var ErrEventNotFound = errors.New("eventjournal: event not found")

const (
	eventKeyPrefix  = "mcp-event:"
	streamKeyPrefix = "mcp-stream-events:"
)

// StoredEvent is the persisted representation of a single SSE event.
type StoredEvent struct {
	EventID   string          `json:"event_id"`
	StreamID  string          `json:"stream_id"`
	Message   json.RawMessage `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// Sender delivers a replayed event to the live SSE connection. Implementations
// must not block indefinitely; the journal calls Send sequentially, in
// stream order, for every event after the resume point.
type Sender func(ctx context.Context, ev StoredEvent) error

// Journal is the Event Journal described in the component design: a
// per-stream ordered event log layered over the KV Store.
type Journal struct {
	store    kv.Store
	eventTTL time.Duration
}

// New creates a Journal. eventTTL bounds how long an individual event (and
// the stream index entries referencing it) remain resolvable.
func New(store kv.Store, eventTTL time.Duration) *Journal {
	return &Journal{store: store, eventTTL: eventTTL}
}

func eventKey(id string) string  { return eventKeyPrefix + id }
func streamKey(id string) string { return streamKeyPrefix + id }

// StoreEvent persists message under a freshly minted v4 UUID event id,
// appends that id to the stream's ordered index, and returns the id.
func (j *Journal) StoreEvent(ctx context.Context, streamID string, message json.RawMessage) (string, error) {
	eventID := uuid.NewString()
	ev := StoredEvent{
		EventID:   eventID,
		StreamID:  streamID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	blob, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("eventjournal: marshal event: %w", err)
	}
	if err := j.store.Set(ctx, eventKey(eventID), blob, j.eventTTL); err != nil {
		return "", err
	}
	if _, err := j.store.AppendToList(ctx, streamKey(streamID), []byte(eventID), j.eventTTL); err != nil {
		return "", err
	}
	return eventID, nil
}

// StreamOf resolves the stream id that an event belongs to, or ("", false)
// if the event id is unknown or has expired.
func (j *Journal) StreamOf(ctx context.Context, eventID string) (string, bool, error) {
	blob, ok, err := j.store.Get(ctx, eventKey(eventID))
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	var ev StoredEvent
	if err := json.Unmarshal(blob, &ev); err != nil {
		// Corrupt value: treat as not-found, per the KV Store's Serde
		// failure policy, rather than surfacing a 500.
		return "", false, nil
	}
	return ev.StreamID, true, nil
}

// ReplayAfter delivers, via send, every event strictly after lastEventID on
// the same stream, in index order, and returns the stream id.
//
// If lastEventID has no stream, ReplayAfter fails with ErrEventNotFound. If
// the id is no longer present in the stream's index (a stale id from a
// pruned prefix), ReplayAfter returns the stream id without sending
// anything — this is tolerant by design.
func (j *Journal) ReplayAfter(ctx context.Context, lastEventID string, send Sender) (string, error) {
	streamID, ok, err := j.StreamOf(ctx, lastEventID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrEventNotFound
	}

	ids, err := j.store.GetList(ctx, streamKey(streamID))
	if err != nil {
		return "", err
	}

	idx := -1
	for i, raw := range ids {
		if string(raw) == lastEventID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return streamID, nil
	}

	// Fetches may run ahead of sends (the contract only requires the sends
	// be sequential), but a simple sequential fetch-then-send keeps the
	// journal free of extra concurrency machinery; event blobs are small
	// and KV reads for a resumed tail are rarely long.
	for i := idx + 1; i < len(ids); i++ {
		blob, found, gerr := j.store.Get(ctx, eventKey(string(ids[i])))
		if gerr != nil {
			return streamID, gerr
		}
		if !found {
			continue
		}
		var ev StoredEvent
		if err := json.Unmarshal(blob, &ev); err != nil {
			continue
		}
		if err := send(ctx, ev); err != nil {
			return streamID, err
		}
	}
	return streamID, nil
}

// CleanupStream deletes every event blob referenced by the stream's index,
// then the index itself.
func (j *Journal) CleanupStream(ctx context.Context, streamID string) error {
	ids, err := j.store.GetList(ctx, streamKey(streamID))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := j.store.Delete(ctx, eventKey(string(id))); err != nil {
			return err
		}
	}
	_, err = j.store.Delete(ctx, streamKey(streamID))
	return err
}
