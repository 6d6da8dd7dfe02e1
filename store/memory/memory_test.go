package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/novaops/steptrack/store"
	"github.com/novaops/steptrack/store/memory"
)

// ──────────────────────────────────────────────────
// Insert tests
// ──────────────────────────────────────────────────

func TestInsert_NewKey(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "N1", Sort: "JOBRUN#wf#t0#jr1"}
	err := s.Insert(ctx, key, store.Attributes{"status": "RUNNING"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	attrs, ok := s.Item(key)
	if !ok {
		t.Fatal("item missing after Insert")
	}
	if attrs["status"] != "RUNNING" {
		t.Errorf("status = %v", attrs["status"])
	}
}

func TestInsert_ExistingKeyFailsCondition(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "LOCK#abc", Sort: "LOCK"}
	if err := s.Insert(ctx, key, store.Attributes{"owner": "a"}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}

	err := s.Insert(ctx, key, store.Attributes{"owner": "b"})
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("second Insert = %v, want ErrConditionFailed", err)
	}

	attrs, _ := s.Item(key)
	if attrs["owner"] != "a" {
		t.Errorf("owner = %v, first writer should win", attrs["owner"])
	}
}

func TestInsert_ExpiredItemTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := memory.New(memory.WithClock(func() time.Time { return now }))

	key := store.Key{Partition: "LOCK#abc", Sort: "LOCK"}
	expired := store.Attributes{"owner": "a", store.TTLAttribute: now.Add(-time.Minute).Unix()}
	if err := s.Insert(ctx, key, expired); err != nil {
		t.Fatalf("Insert expired: %v", err)
	}

	if err := s.Insert(ctx, key, store.Attributes{"owner": "b"}); err != nil {
		t.Fatalf("Insert over expired item: %v", err)
	}
	attrs, _ := s.Item(key)
	if attrs["owner"] != "b" {
		t.Errorf("owner = %v, want b", attrs["owner"])
	}
}

func TestInsert_LiveTTLStillConflicts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := memory.New(memory.WithClock(func() time.Time { return now }))

	key := store.Key{Partition: "LOCK#abc", Sort: "LOCK"}
	live := store.Attributes{store.TTLAttribute: now.Add(time.Minute).Unix()}
	if err := s.Insert(ctx, key, live); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.Insert(ctx, key, store.Attributes{})
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("Insert over live item = %v, want ErrConditionFailed", err)
	}
}

// ──────────────────────────────────────────────────
// Update and Delete tests
// ──────────────────────────────────────────────────

func TestUpdate_MergesAttributes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "N1", Sort: "JOBRUN#wf#t0#jr1"}
	if err := s.Insert(ctx, key, store.Attributes{"status": "RUNNING", "workflow_name": "wf"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Update(ctx, key, store.Attributes{"status": "SUCCEEDED"}, store.IfExists()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	attrs, _ := s.Item(key)
	if attrs["status"] != "SUCCEEDED" {
		t.Errorf("status = %v", attrs["status"])
	}
	if attrs["workflow_name"] != "wf" {
		t.Error("untouched attribute lost on Update")
	}
}

func TestUpdate_MissingKeyFailsCondition(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "N1", Sort: "nope"}
	err := s.Update(ctx, key, store.Attributes{"status": "FAILED"}, store.IfExists())
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("Update = %v, want ErrConditionFailed", err)
	}
}

func TestUpdate_FieldAbsentGuard(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "N1", Sort: "JOBRUN#wf#t0#jr1"}
	if err := s.Insert(ctx, key, store.Attributes{"status": "RUNNING"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	set := store.Attributes{"status": "FAILED", "ended_at": "2026-03-01T12:00:05Z"}
	if err := s.Update(ctx, key, set, store.IfFieldAbsent("ended_at")); err != nil {
		t.Fatalf("first guarded Update: %v", err)
	}

	err := s.Update(ctx, key, store.Attributes{"status": "SUCCEEDED"}, store.IfFieldAbsent("ended_at"))
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("second guarded Update = %v, want ErrConditionFailed", err)
	}
	attrs, _ := s.Item(key)
	if attrs["status"] != "FAILED" {
		t.Errorf("status = %v, first finalize should stick", attrs["status"])
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "LOCK#abc", Sort: "LOCK"}
	if err := s.Insert(ctx, key, store.Attributes{}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestItem_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	key := store.Key{Partition: "N1", Sort: "x"}
	if err := s.Insert(ctx, key, store.Attributes{"status": "RUNNING"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	attrs, _ := s.Item(key)
	attrs["status"] = "mutated"

	fresh, _ := s.Item(key)
	if fresh["status"] != "RUNNING" {
		t.Error("Item should return a copy, not the live map")
	}
}
