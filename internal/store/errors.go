package store

import "errors"

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("not found")
