package service

import (
	"context"
	"errors"

	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/ledger"
	"go.uber.org/zap"
)

var (
	ErrStatementContentEmpty = errors.New("content is required")
	ErrInvalidStatementKind  = errors.New("kind must be assistant_message or user_message")
)

// StatementService appends source statements to the ledger and drives claim
// registration plus projection catch-up for each one.
type StatementService struct {
	ledger    *ledger.Ledger
	registrar *RegistrarService
	model     *ModelService
	logger    *zap.Logger
}

func NewStatementService(l *ledger.Ledger, r *RegistrarService, m *ModelService, logger *zap.Logger) *StatementService {
	return &StatementService{ledger: l, registrar: r, model: m, logger: logger}
}

// Record appends one statement event, registers any claims it carries, and
// folds the resulting claim events into the projection. Only
// assistant_message statements produce claims.
func (s *StatementService) Record(ctx context.Context, kind, content string, meta map[string]string) (*domain.Event, []domain.Claim, error) {
	if content == "" {
		return nil, nil, ErrStatementContentEmpty
	}
	if kind == "" {
		kind = domain.KindAssistantMessage
	}
	if kind != domain.KindAssistantMessage && kind != domain.KindUserMessage {
		return nil, nil, ErrInvalidStatementKind
	}

	ev, err := s.ledger.Append(ctx, kind, content, meta)
	if err != nil {
		return nil, nil, err
	}

	claims, err := s.registrar.Register(ctx, ev)
	if err != nil {
		return ev, nil, err
	}

	if err := s.model.CatchUp(ctx); err != nil {
		return ev, claims, err
	}

	s.logger.Info("statement recorded",
		zap.Int64("event_id", ev.ID),
		zap.String("kind", kind),
		zap.Int("claims_registered", len(claims)))
	return ev, claims, nil
}
