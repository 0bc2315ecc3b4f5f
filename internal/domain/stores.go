package domain

import "context"

// EventStore persists ledger records. Implementations only store and order;
// hash chaining and kind validation live in the ledger, which is the sole
// writer. ReadAll and ReadFrom return committed events only, so concurrent
// readers always observe a consistent prefix.
type EventStore interface {
	// Append persists e and assigns its sequence ID.
	Append(ctx context.Context, e *Event) error
	ReadAll(ctx context.Context) ([]Event, error)
	// ReadFrom returns events with ID greater than afterID, in order.
	ReadFrom(ctx context.Context, afterID int64) ([]Event, error)
	// Last returns the most recent event, or store.ErrNotFound when empty.
	Last(ctx context.Context) (*Event, error)
	Ping(ctx context.Context) error
	Close() error
}
