package ingest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newRegisteredSession(t *testing.T, r *Registry, id string, createdAt time.Time) *Session {
	t.Helper()
	s := &Session{ID: id, CreatedAt: createdAt, log: zerolog.Nop()}
	if err := r.Add(s); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	return s
}

func TestRegistryAddGet(t *testing.T) {
	r := NewRegistry()
	s := newRegisteredSession(t, r, "s1", time.Now())

	got, err := r.Get("s1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestRegistryRequiresID(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&Session{}); err == nil {
		t.Error("Expected error for empty session ID")
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	newRegisteredSession(t, r, "old", base)
	newRegisteredSession(t, r, "new", base.Add(time.Hour))

	sessions := r.List()
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "new" || sessions[1].ID != "old" {
		t.Errorf("Unexpected order: %s, %s", sessions[0].ID, sessions[1].ID)
	}
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry()
	newRegisteredSession(t, r, "s1", time.Now())

	r.Delete("s1")
	if _, err := r.Get("s1"); err == nil {
		t.Error("Expected error after delete")
	}
}
