// Package selfmodel holds the materialized self-model: a rebuildable
// projection over claim_register events plus the contradiction relation.
// All state here is disposable; the ledger is the only source of truth.
package selfmodel

import (
	"strings"
	"sync"

	"github.com/selfmodel/mirror/internal/domain"
)

// tendencyPredicates maps each named behavioral tendency to the predicates
// that feed it. The table is fixed; a tendency appears in a snapshot only
// when at least one active claim matches.
var tendencyPredicates = map[string][]string{
	"determinism_emphasis": {"is_deterministic", "deterministic"},
	"replay_centricity":    {"is_replay_centric", "replay"},
	"stability_emphasis":   {"prioritizes_stability", "stability"},
	"support_awareness":    {"support_aware", "support_awareness"},
}

type claimState struct {
	claim  domain.Claim
	status domain.ClaimStatus
}

// Projection folds claim_register events into an aggregate self-model.
// Rebuild and Observe share the same fold, so a full rebuild and an
// incremental event-by-event fold from empty state always agree.
type Projection struct {
	mu             sync.RWMutex
	claims         map[string]*claimState
	order          []string
	contradictions [][2]string
	lastEventID    int64
}

func NewProjection() *Projection {
	p := &Projection{}
	p.reset()
	return p
}

func (p *Projection) reset() {
	p.claims = make(map[string]*claimState)
	p.order = nil
	p.contradictions = nil
	p.lastEventID = 0
}

// Rebuild recomputes the projection from scratch over the given ordered
// events. Pure fold, safe to abort and restart.
func (p *Projection) Rebuild(events []domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reset()
	for i := range events {
		p.observe(&events[i])
	}
}

// Observe folds one new event into existing state. Events at or below the
// last processed sequence are ignored, so replays are harmless.
func (p *Projection) Observe(ev *domain.Event) {
	if ev == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observe(ev)
}

func (p *Projection) observe(ev *domain.Event) {
	if ev.ID != 0 {
		if p.lastEventID != 0 && ev.ID <= p.lastEventID {
			return
		}
		p.lastEventID = ev.ID
	}
	// Only claim_register carries claim material. This also means the
	// projection never consumes its own rsm_update output: the cursor
	// advances past a checkpoint, but its content is never folded.
	if ev.Kind != domain.KindClaimRegister {
		return
	}

	claim, err := domain.ParseClaim(ev.Content)
	if err != nil {
		// A malformed claim event degrades to "no claim", preserving
		// forward progress.
		return
	}
	if _, exists := p.claims[claim.ClaimID]; exists {
		// Content-addressed ids make duplicate registration a no-op.
		return
	}

	status := domain.StatusActive
	conflicting := DetectContradictions(p.activeClaims(), claim)
	for _, id := range conflicting {
		p.claims[id].status = domain.StatusContradicted
		p.contradictions = append(p.contradictions, [2]string{id, claim.ClaimID})
		status = domain.StatusContradicted
	}

	p.claims[claim.ClaimID] = &claimState{claim: *claim, status: status}
	p.order = append(p.order, claim.ClaimID)
}

// activeClaims returns active claims in ledger order with effective status.
// Callers hold p.mu.
func (p *Projection) activeClaims() []domain.Claim {
	out := make([]domain.Claim, 0, len(p.order))
	for _, id := range p.order {
		cs := p.claims[id]
		if cs.status != domain.StatusActive {
			continue
		}
		c := cs.claim
		c.Status = cs.status
		out = append(out, c)
	}
	return out
}

// Snapshot computes the aggregate view from current state. The result is a
// pure function of the active claim set.
func (p *Projection) Snapshot() *domain.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	active := p.activeClaims()

	s := &domain.Snapshot{
		BehavioralTendencies: make(map[string]float64),
		KnowledgeGaps:        make([]string, 0),
		ActiveClaimCount:     len(active),
		Contradictions:       make([][2]string, 0, len(p.contradictions)),
	}
	s.Contradictions = append(s.Contradictions, p.contradictions...)

	strengthByPredicate := make(map[string]float64)
	for i := range active {
		c := &active[i]
		switch c.Type {
		case domain.ClaimBelief:
			s.BeliefCount++
		case domain.ClaimValue:
			s.ValueCount++
		case domain.ClaimTendency:
			s.TendencyCount++
		case domain.ClaimIdentity:
			s.IdentityCount++
		}
		strengthByPredicate[c.Predicate] += c.Strength

		if isKnowledgeGap(c) {
			s.KnowledgeGaps = append(s.KnowledgeGaps, gapLabel(c))
		}
	}

	for name, predicates := range tendencyPredicates {
		var sum float64
		for _, pred := range predicates {
			sum += strengthByPredicate[pred]
		}
		if sum == 0 {
			continue
		}
		v := sum / float64(len(active))
		if v > 1 {
			v = 1
		}
		s.BehavioralTendencies[name] = v
	}

	return s
}

// Claims returns all active claims in ledger order.
func (p *Projection) Claims() []domain.Claim {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeClaims()
}

// ClaimByID looks up any known claim, active or contradicted. A miss is an
// absent result, not an error.
func (p *Projection) ClaimByID(id string) (domain.Claim, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cs, ok := p.claims[id]
	if !ok {
		return domain.Claim{}, false
	}
	c := cs.claim
	c.Status = cs.status
	return c, true
}

// LastEventID returns the highest event sequence folded so far.
func (p *Projection) LastEventID() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastEventID
}

// isKnowledgeGap flags claims that assert something explicitly unresolved.
func isKnowledgeGap(c *domain.Claim) bool {
	if containsGapMarker(strings.ToLower(c.Predicate)) {
		return true
	}
	if obj, ok := c.Object.(string); ok {
		return containsGapMarker(strings.ToLower(obj))
	}
	return false
}

func containsGapMarker(s string) bool {
	return strings.Contains(s, "unknown") || strings.Contains(s, "gap")
}

func gapLabel(c *domain.Claim) string {
	if obj, ok := c.Object.(string); ok && obj != "" {
		return obj
	}
	return c.RawText
}
