package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/selfmodel/mirror/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteEventStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteAppendAndRead(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	e := &domain.Event{
		TS:       "2026-08-31T00:00:00Z",
		Kind:     domain.KindAssistantMessage,
		Content:  "BELIEF: I am deterministic",
		Meta:     map[string]string{"session": "abc"},
		PrevHash: "",
		Hash:     "h1",
	}
	if err := st.Append(ctx, e); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if e.ID != 1 {
		t.Errorf("expected assigned id 1, got %d", e.ID)
	}

	events, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	got := events[0]
	if got.Content != e.Content || got.Kind != e.Kind || got.Hash != e.Hash {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Meta["session"] != "abc" {
		t.Errorf("meta round trip failed: %v", got.Meta)
	}
}

func TestSQLiteEmptyMeta(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.Append(ctx, &domain.Event{TS: "t", Kind: "k", Content: "c", Hash: "h"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if events[0].Meta != nil {
		t.Errorf("expected nil meta, got %v", events[0].Meta)
	}
}

func TestSQLiteReadFrom(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := st.Append(ctx, &domain.Event{TS: "t", Kind: "k", Content: "c", Hash: "h"}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	events, err := st.ReadFrom(ctx, 1)
	if err != nil {
		t.Fatalf("read from failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != 2 || events[1].ID != 3 {
		t.Errorf("expected ids 2,3, got %d,%d", events[0].ID, events[1].ID)
	}
}

func TestSQLiteLast(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if _, err := st.Last(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	for _, h := range []string{"h1", "h2"} {
		if err := st.Append(ctx, &domain.Event{TS: "t", Kind: "k", Content: "c", Hash: h}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	last, err := st.Last(ctx)
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if last.ID != 2 || last.Hash != "h2" {
		t.Errorf("expected tail event 2/h2, got %d/%s", last.ID, last.Hash)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := st.Append(ctx, &domain.Event{TS: "t", Kind: "k", Content: "c", Hash: "h"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event after reopen, got %d", len(events))
	}
}
