package selfmodel

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/selfmodel/mirror/internal/domain"
)

func registerEvent(t *testing.T, id int64, c *domain.Claim) domain.Event {
	t.Helper()
	payload, err := c.CanonicalJSON()
	if err != nil {
		t.Fatalf("failed to serialize claim: %v", err)
	}
	return domain.Event{ID: id, Kind: domain.KindClaimRegister, Content: string(payload)}
}

func testClaim(id int64, typ domain.ClaimType, predicate string, object any, strength float64) *domain.Claim {
	return &domain.Claim{
		ClaimID:       fmt.Sprintf("claim-%d", id),
		SourceEventID: id,
		Type:          typ,
		Subject:       domain.DefaultSubject,
		Predicate:     predicate,
		Object:        object,
		RawText:       fmt.Sprintf("raw %d", id),
		Strength:      strength,
		Status:        domain.StatusActive,
	}
}

func TestRebuildObserveEquivalence(t *testing.T) {
	events := []domain.Event{
		{ID: 1, Kind: domain.KindAssistantMessage, Content: "BELIEF: I am deterministic"},
		registerEvent(t, 2, testClaim(10, domain.ClaimBelief, "is_deterministic", "always", 1.0)),
		registerEvent(t, 3, testClaim(11, domain.ClaimValue, "prioritizes_stability", nil, 0.7)),
		{ID: 4, Kind: domain.KindSelfModelUpdate, Content: "{}"},
		registerEvent(t, 5, testClaim(12, domain.ClaimBelief, "is_deterministic", "never", 1.0)),
	}

	rebuilt := NewProjection()
	rebuilt.Rebuild(events)

	folded := NewProjection()
	for i := range events {
		folded.Observe(&events[i])
	}

	if !reflect.DeepEqual(rebuilt.Snapshot(), folded.Snapshot()) {
		t.Errorf("rebuild and incremental fold disagree:\n%+v\n%+v", rebuilt.Snapshot(), folded.Snapshot())
	}
	if !reflect.DeepEqual(rebuilt.Claims(), folded.Claims()) {
		t.Error("rebuild and incremental fold produced different claim sets")
	}
	if rebuilt.LastEventID() != folded.LastEventID() {
		t.Errorf("cursor mismatch: %d vs %d", rebuilt.LastEventID(), folded.LastEventID())
	}
}

func TestSnapshotTendencies(t *testing.T) {
	p := NewProjection()
	p.Observe(&domain.Event{ID: 1, Kind: domain.KindClaimRegister,
		Content: mustContent(t, testClaim(10, domain.ClaimBelief, "is_deterministic", nil, 1.0))})

	s := p.Snapshot()
	if got := s.BehavioralTendencies["determinism_emphasis"]; got != 1.0 {
		t.Errorf("expected determinism_emphasis 1.0, got %f", got)
	}

	// An unrelated active claim dilutes the proportion.
	p.Observe(&domain.Event{ID: 2, Kind: domain.KindClaimRegister,
		Content: mustContent(t, testClaim(11, domain.ClaimValue, "quality_focus", nil, 1.0))})

	s = p.Snapshot()
	if got := s.BehavioralTendencies["determinism_emphasis"]; got != 0.5 {
		t.Errorf("expected determinism_emphasis 0.5, got %f", got)
	}
	if _, ok := s.BehavioralTendencies["replay_centricity"]; ok {
		t.Error("tendency with no matching claims must be absent")
	}
	if s.BeliefCount != 1 || s.ValueCount != 1 || s.ActiveClaimCount != 2 {
		t.Errorf("unexpected counts: beliefs %d values %d active %d",
			s.BeliefCount, s.ValueCount, s.ActiveClaimCount)
	}
}

func TestContradictionMarksBothClaims(t *testing.T) {
	p := NewProjection()
	a := testClaim(10, domain.ClaimBelief, "is_deterministic", "always", 1.0)
	b := testClaim(11, domain.ClaimBelief, "is_deterministic", "never", 1.0)
	p.Observe(&domain.Event{ID: 1, Kind: domain.KindClaimRegister, Content: mustContent(t, a)})
	p.Observe(&domain.Event{ID: 2, Kind: domain.KindClaimRegister, Content: mustContent(t, b)})

	s := p.Snapshot()
	if s.ActiveClaimCount != 0 {
		t.Errorf("expected 0 active claims, got %d", s.ActiveClaimCount)
	}
	if len(s.Contradictions) != 1 || s.Contradictions[0] != [2]string{a.ClaimID, b.ClaimID} {
		t.Errorf("unexpected contradictions: %v", s.Contradictions)
	}

	for _, id := range []string{a.ClaimID, b.ClaimID} {
		got, ok := p.ClaimByID(id)
		if !ok {
			t.Fatalf("claim %s missing from projection", id)
		}
		if got.Status != domain.StatusContradicted {
			t.Errorf("claim %s: expected status contradicted, got %s", id, got.Status)
		}
	}
}

func TestDuplicateRegistrationIsNoOp(t *testing.T) {
	p := NewProjection()
	c := testClaim(10, domain.ClaimBelief, "is_deterministic", nil, 1.0)
	p.Observe(&domain.Event{ID: 1, Kind: domain.KindClaimRegister, Content: mustContent(t, c)})
	p.Observe(&domain.Event{ID: 2, Kind: domain.KindClaimRegister, Content: mustContent(t, c)})

	if got := len(p.Claims()); got != 1 {
		t.Errorf("expected 1 claim after duplicate registration, got %d", got)
	}
	if len(p.Snapshot().Contradictions) != 0 {
		t.Error("a duplicate must not contradict itself")
	}
}

func TestObserveIgnoresStaleAndCheckpointEvents(t *testing.T) {
	p := NewProjection()
	p.Observe(&domain.Event{ID: 3, Kind: domain.KindClaimRegister,
		Content: mustContent(t, testClaim(10, domain.ClaimBelief, "is_deterministic", nil, 1.0))})

	// Below the cursor: dropped even though it carries a new claim.
	p.Observe(&domain.Event{ID: 2, Kind: domain.KindClaimRegister,
		Content: mustContent(t, testClaim(11, domain.ClaimValue, "quality_focus", nil, 1.0))})
	if got := len(p.Claims()); got != 1 {
		t.Errorf("stale event must be ignored, got %d claims", got)
	}

	// Checkpoint output advances the cursor but contributes nothing.
	p.Observe(&domain.Event{ID: 4, Kind: domain.KindSelfModelUpdate, Content: "{}"})
	if got := p.LastEventID(); got != 4 {
		t.Errorf("expected cursor at 4, got %d", got)
	}
	if got := len(p.Claims()); got != 1 {
		t.Errorf("checkpoint must not add claims, got %d", got)
	}
}

func TestObserveSkipsMalformedClaimEvent(t *testing.T) {
	p := NewProjection()
	p.Observe(&domain.Event{ID: 1, Kind: domain.KindClaimRegister, Content: "not json"})
	if got := len(p.Claims()); got != 0 {
		t.Errorf("malformed claim event must be skipped, got %d claims", got)
	}
	if got := p.LastEventID(); got != 1 {
		t.Errorf("cursor must still advance, got %d", got)
	}
}

func TestSnapshotKnowledgeGaps(t *testing.T) {
	p := NewProjection()
	gap := testClaim(10, domain.ClaimBelief, "latency_budget", "unknown", 1.0)
	plain := testClaim(11, domain.ClaimBelief, "is_deterministic", nil, 1.0)
	bare := testClaim(12, domain.ClaimBelief, "has_knowledge_gap", nil, 1.0)
	p.Observe(&domain.Event{ID: 1, Kind: domain.KindClaimRegister, Content: mustContent(t, gap)})
	p.Observe(&domain.Event{ID: 2, Kind: domain.KindClaimRegister, Content: mustContent(t, plain)})
	p.Observe(&domain.Event{ID: 3, Kind: domain.KindClaimRegister, Content: mustContent(t, bare)})

	s := p.Snapshot()
	want := []string{"unknown", bare.RawText}
	if !reflect.DeepEqual(s.KnowledgeGaps, want) {
		t.Errorf("expected gaps %v, got %v", want, s.KnowledgeGaps)
	}
}

func TestClaimByIDMiss(t *testing.T) {
	p := NewProjection()
	if _, ok := p.ClaimByID("missing"); ok {
		t.Error("expected miss for unknown claim id")
	}
}

func mustContent(t *testing.T, c *domain.Claim) string {
	t.Helper()
	payload, err := c.CanonicalJSON()
	if err != nil {
		t.Fatalf("failed to serialize claim: %v", err)
	}
	return string(payload)
}
