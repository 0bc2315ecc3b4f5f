package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/extract"
	"github.com/selfmodel/mirror/internal/ledger"
	"go.uber.org/zap"
)

// RegistrarService is the single idempotency checkpoint between extraction
// and the ledger: it scans already-registered claim ids before emitting, so
// re-running over an unchanged ledger appends nothing. Invocations are
// serialized by a mutex on top of the ledger's own append lock, because the
// scan-then-append sequence is not atomic by itself.
type RegistrarService struct {
	ledger *ledger.Ledger
	logger *zap.Logger

	mu sync.Mutex
}

func NewRegistrarService(l *ledger.Ledger, logger *zap.Logger) *RegistrarService {
	return &RegistrarService{ledger: l, logger: logger}
}

// Register extracts claims from one source event and appends the ones not
// yet in the ledger. Returns the newly registered claims in line order.
func (s *RegistrarService) Register(ctx context.Context, ev *domain.Event) ([]domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims := extract.FromEvent(ev)
	if len(claims) == 0 {
		return nil, nil
	}

	existing, err := s.existingClaimIDs(ctx)
	if err != nil {
		return nil, err
	}

	return s.appendNew(ctx, claims, existing)
}

// ScanAll walks the full event history and backfills claim_register events
// for every claim not yet present. Runs on every boot: O(n) but always
// correct, so partial or aborted runs recover on the next pass.
func (s *RegistrarService) ScanAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return 0, err
	}

	existing := make(map[string]struct{})
	for i := range events {
		if events[i].Kind != domain.KindClaimRegister {
			continue
		}
		if c, err := domain.ParseClaim(events[i].Content); err == nil {
			existing[c.ClaimID] = struct{}{}
		}
	}

	total := 0
	for i := range events {
		if events[i].Kind != domain.KindAssistantMessage {
			continue
		}
		registered, err := s.appendNew(ctx, extract.FromEvent(&events[i]), existing)
		if err != nil {
			return total, err
		}
		total += len(registered)
	}

	if total > 0 {
		s.logger.Info("claim backfill complete", zap.Int("registered", total))
	}
	return total, nil
}

// appendNew emits claim_register events for claims absent from existing,
// updating the set in place so duplicates within one batch stay out.
func (s *RegistrarService) appendNew(ctx context.Context, claims []domain.Claim, existing map[string]struct{}) ([]domain.Claim, error) {
	var registered []domain.Claim
	for i := range claims {
		c := &claims[i]
		if _, seen := existing[c.ClaimID]; seen {
			continue
		}

		payload, err := c.CanonicalJSON()
		if err != nil {
			return registered, fmt.Errorf("serialize claim %s: %w", c.ClaimID, err)
		}
		if _, err := s.ledger.Append(ctx, domain.KindClaimRegister, string(payload), map[string]string{
			"source": "claim_registrar",
		}); err != nil {
			return registered, err
		}

		existing[c.ClaimID] = struct{}{}
		registered = append(registered, *c)

		s.logger.Debug("claim registered",
			zap.String("claim_id", c.ClaimID),
			zap.Int64("source_event_id", c.SourceEventID),
			zap.String("type", string(c.Type)))
	}
	return registered, nil
}

func (s *RegistrarService) existingClaimIDs(ctx context.Context) (map[string]struct{}, error) {
	events, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	for i := range events {
		if events[i].Kind != domain.KindClaimRegister {
			continue
		}
		if c, err := domain.ParseClaim(events[i].Content); err == nil {
			ids[c.ClaimID] = struct{}{}
		}
	}
	return ids, nil
}
