// Package ledger implements the append-only, hash-chained event log that
// every derived view is rebuilt from. Appends go through a single mutex so
// prev_hash linkage is never split; records are immutable once written.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidKind is returned when an append names a kind outside the
// registered set.
var ErrInvalidKind = errors.New("event kind is not registered")

// IntegrityError reports a hash-chain mismatch found during verification.
// It is always surfaced to the caller and never repaired in place, since it
// signals tampering or corruption of a past record.
type IntegrityError struct {
	Sequence int64
	Field    string
	Want     string
	Got      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at event %d: %s mismatch (stored %s, computed %s)",
		e.Sequence, e.Field, e.Got, e.Want)
}

// Ledger wraps an EventStore with hash chaining, kind validation, and
// single-writer append discipline.
type Ledger struct {
	store  domain.EventStore
	logger *zap.Logger

	mu    sync.Mutex
	kinds map[string]struct{}
	last  *domain.Event
}

// New opens a ledger over the given store, loading the current chain tail.
// The default kind registry covers source statements, claim registration,
// and snapshot checkpoints.
func New(ctx context.Context, st domain.EventStore, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{
		store:  st,
		logger: logger,
		kinds: map[string]struct{}{
			domain.KindAssistantMessage: {},
			domain.KindUserMessage:      {},
			domain.KindClaimRegister:    {},
			domain.KindSelfModelUpdate:  {},
		},
	}

	last, err := st.Last(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load ledger tail: %w", err)
	}
	l.last = last

	return l, nil
}

// RegisterKind adds a kind to the set accepted by Append.
func (l *Ledger) RegisterKind(kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds[kind] = struct{}{}
}

// Append validates the kind, computes the chained hash, and persists a new
// event. It is the sole mutator of ledger state.
func (l *Ledger) Append(ctx context.Context, kind, content string, meta map[string]string) (*domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.kinds[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	prevHash := ""
	if l.last != nil {
		prevHash = l.last.Hash
	}

	e := &domain.Event{
		TS:       time.Now().UTC().Format(time.RFC3339Nano),
		Kind:     kind,
		Content:  content,
		Meta:     meta,
		PrevHash: prevHash,
	}
	e.Hash = eventHash(prevHash, kind, content, meta)

	if err := l.store.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	l.last = e
	l.logger.Debug("event appended",
		zap.Int64("id", e.ID),
		zap.String("kind", e.Kind),
		zap.String("hash", e.Hash))

	return e, nil
}

// ReadAll returns the full verified event sequence. A chain mismatch halts
// the read with an *IntegrityError rather than returning a plausible but
// wrong prefix.
func (l *Ledger) ReadAll(ctx context.Context) ([]domain.Event, error) {
	events, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if err := verifyChain(events); err != nil {
		return nil, err
	}
	return events, nil
}

// ReadSince returns events after the given sequence ID without re-verifying
// the whole chain; use Verify or ReadAll for integrity checks.
func (l *Ledger) ReadSince(ctx context.Context, afterID int64) ([]domain.Event, error) {
	events, err := l.store.ReadFrom(ctx, afterID)
	if err != nil {
		return nil, fmt.Errorf("read ledger from %d: %w", afterID, err)
	}
	return events, nil
}

// Verify recomputes the hash chain over the whole ledger.
func (l *Ledger) Verify(ctx context.Context) error {
	events, err := l.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	return verifyChain(events)
}

func verifyChain(events []domain.Event) error {
	prevHash := ""
	for i := range events {
		e := &events[i]
		if e.PrevHash != prevHash {
			return &IntegrityError{Sequence: e.ID, Field: "prev_hash", Want: prevHash, Got: e.PrevHash}
		}
		if computed := eventHash(e.PrevHash, e.Kind, e.Content, e.Meta); computed != e.Hash {
			return &IntegrityError{Sequence: e.ID, Field: "hash", Want: computed, Got: e.Hash}
		}
		prevHash = e.Hash
	}
	return nil
}

// eventHash covers (prev_hash, kind, content, meta). Metadata is encoded as
// sorted-key JSON so the digest is stable across runs and platforms. The
// sequence ID and timestamp are deliberately excluded: TS is informational
// and IDs are assigned by the store after hashing.
func eventHash(prevHash, kind, content string, meta map[string]string) string {
	metaJSON := []byte("{}")
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(meta)
	}

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte{'\n'})
	h.Write([]byte(kind))
	h.Write([]byte{'\n'})
	h.Write([]byte(content))
	h.Write([]byte{'\n'})
	h.Write(metaJSON)
	return hex.EncodeToString(h.Sum(nil))
}
