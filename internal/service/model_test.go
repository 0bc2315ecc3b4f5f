package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/selfmodel"
	"go.uber.org/zap"
)

func TestCheckpointEmitsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	if _, _, err := p.statements.Record(ctx, domain.KindAssistantMessage, "BELIEF: I am deterministic", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	emitted, err := p.model.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint failed: %v", err)
	}
	if !emitted {
		t.Fatal("expected first checkpoint to emit")
	}

	emitted, err = p.model.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint failed: %v", err)
	}
	if emitted {
		t.Error("unchanged snapshot must not emit a second checkpoint")
	}

	if _, _, err := p.statements.Record(ctx, domain.KindAssistantMessage, "VALUE: I value replay determinism", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	emitted, err = p.model.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint failed: %v", err)
	}
	if !emitted {
		t.Error("changed snapshot must emit a new checkpoint")
	}

	if got := countByKind(t, p.ledger, domain.KindSelfModelUpdate); got != 2 {
		t.Errorf("expected 2 rsm_update events, got %d", got)
	}
}

func TestRebuildSeedsCheckpointState(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	if _, _, err := p.statements.Record(ctx, domain.KindAssistantMessage, "BELIEF: I am deterministic", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := p.model.Checkpoint(ctx); err != nil {
		t.Fatalf("checkpoint failed: %v", err)
	}

	// A fresh service over the same ledger must not re-emit an unchanged
	// snapshot after rebuild.
	restarted := NewModelService(p.ledger, selfmodel.NewProjection(), zap.NewNop())
	if err := restarted.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	emitted, err := restarted.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint failed: %v", err)
	}
	if emitted {
		t.Error("rebuilt service re-emitted an unchanged checkpoint")
	}
}

func TestRebuildMatchesIncrementalCatchUp(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	statements := []string{
		"BELIEF: I am deterministic",
		"CLAIM: {\"type\":\"VALUE\",\"predicate\":\"prioritizes_stability\",\"object\":\"always\"}",
		"BELIEF: I am not deterministic",
	}
	for _, content := range statements {
		if _, _, err := p.statements.Record(ctx, domain.KindAssistantMessage, content, nil); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	incremental := p.model.Snapshot()

	rebuilt := NewModelService(p.ledger, selfmodel.NewProjection(), zap.NewNop())
	if err := rebuilt.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if !reflect.DeepEqual(incremental, rebuilt.Snapshot()) {
		t.Errorf("incremental and rebuilt snapshots disagree:\n%+v\n%+v", incremental, rebuilt.Snapshot())
	}
}

func TestClaimLookupThroughService(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	_, claims, err := p.statements.Record(ctx, domain.KindAssistantMessage, "BELIEF: I am deterministic", nil)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(claims))
	}

	got, ok := p.model.ClaimByID(claims[0].ClaimID)
	if !ok {
		t.Fatal("registered claim not found in projection")
	}
	if got.Predicate != "is_deterministic" {
		t.Errorf("expected predicate is_deterministic, got %q", got.Predicate)
	}

	if _, ok := p.model.ClaimByID("does-not-exist"); ok {
		t.Error("expected miss for unknown claim id")
	}
}
