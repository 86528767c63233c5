package auditsqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchemaAndAcquiresLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Record(context.Background(), Event{Type: "client_registered", ClientID: "mcp_1", Success: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	events := []Event{
		{Type: "client_registered", ClientID: "mcp_1", Success: true},
		{Type: "authorize_attempt", ClientID: "mcp_1", Success: true},
		{Type: "token_issued", ClientID: "mcp_1", UserID: "auth0|u1", Success: true},
		{Type: "token_revoked", ClientID: "mcp_1", Success: true},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record %s: %v", ev.Type, err)
		}
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(recent))
	}
	// Recent orders newest first.
	if recent[0].Type != "token_revoked" {
		t.Errorf("expected newest event first, got %q", recent[0].Type)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = s.Record(ctx, Event{Type: "authorize_attempt", ClientID: "mcp_1", Success: true})
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events with limit, got %d", len(recent))
	}
}

func TestNilSinkMethodsAreNoOps(t *testing.T) {
	var s *Sink
	if err := s.Record(context.Background(), Event{Type: "x"}); err != nil {
		t.Fatalf("expected nil-sink Record to no-op, got %v", err)
	}
	if events, err := s.Recent(context.Background(), 10); err != nil || events != nil {
		t.Fatalf("expected nil-sink Recent to no-op, got events=%v err=%v", events, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("expected nil-sink Close to no-op, got %v", err)
	}
}

func TestReopenAfterCloseReleasesLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second open after close should succeed, got %v", err)
	}
	defer s2.Close()
}
