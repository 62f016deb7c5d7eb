package repositories

import "errors"

// ErrNotFound is returned when a lookup resolves no row. Handlers
// branch on it to redirect rather than error, so it is a sentinel
// instead of a formatted message.
var ErrNotFound = errors.New("record not found")
