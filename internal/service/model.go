package service

import (
	"bytes"
	"context"
	"sync"

	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/ledger"
	"github.com/selfmodel/mirror/internal/selfmodel"
	"go.uber.org/zap"
)

// ModelService owns the self-model projection lifecycle: full rebuilds from
// the verified ledger, incremental catch-up after new appends, and snapshot
// checkpoint emission. It reads claim events and writes only rsm_update
// checkpoints, never claims.
type ModelService struct {
	ledger     *ledger.Ledger
	projection *selfmodel.Projection
	logger     *zap.Logger

	mu             sync.Mutex
	lastCheckpoint []byte
}

func NewModelService(l *ledger.Ledger, p *selfmodel.Projection, logger *zap.Logger) *ModelService {
	return &ModelService{ledger: l, projection: p, logger: logger}
}

// Rebuild recomputes the projection from the full verified ledger. A chain
// integrity failure halts the rebuild; no partial state survives the next
// attempt since Rebuild always starts from empty.
func (s *ModelService) Rebuild(ctx context.Context) error {
	events, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return err
	}

	s.projection.Rebuild(events)

	// Seed checkpoint change detection from the last emitted snapshot, so
	// restarts do not re-emit an unchanged checkpoint.
	s.mu.Lock()
	s.lastCheckpoint = nil
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == domain.KindSelfModelUpdate {
			s.lastCheckpoint = []byte(events[i].Content)
			break
		}
	}
	s.mu.Unlock()

	s.logger.Info("self-model rebuilt",
		zap.Int("events", len(events)),
		zap.Int64("last_event_id", s.projection.LastEventID()))
	return nil
}

// CatchUp folds any events appended since the projection's last observed
// sequence. Suffix reads skip chain verification; Rebuild and Verify cover
// integrity.
func (s *ModelService) CatchUp(ctx context.Context) error {
	events, err := s.ledger.ReadSince(ctx, s.projection.LastEventID())
	if err != nil {
		return err
	}
	for i := range events {
		s.projection.Observe(&events[i])
	}
	return nil
}

func (s *ModelService) Snapshot() *domain.Snapshot {
	return s.projection.Snapshot()
}

func (s *ModelService) Claims() []domain.Claim {
	return s.projection.Claims()
}

func (s *ModelService) ClaimByID(id string) (domain.Claim, bool) {
	return s.projection.ClaimByID(id)
}

// Checkpoint appends an rsm_update event carrying the canonical snapshot,
// but only when the snapshot differs from the last one emitted. Returns
// whether an event was appended.
func (s *ModelService) Checkpoint(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.projection.Snapshot()
	payload, err := snap.CanonicalJSON()
	if err != nil {
		return false, err
	}

	if bytes.Equal(payload, s.lastCheckpoint) {
		return false, nil
	}

	ev, err := s.ledger.Append(ctx, domain.KindSelfModelUpdate, string(payload), map[string]string{
		"source": "self_model",
	})
	if err != nil {
		return false, err
	}

	s.lastCheckpoint = payload
	// Advance past our own output so the next catch-up skips it.
	s.projection.Observe(ev)

	s.logger.Info("self-model checkpoint emitted",
		zap.Int64("event_id", ev.ID),
		zap.Int("active_claims", snap.ActiveClaimCount))
	return true, nil
}
