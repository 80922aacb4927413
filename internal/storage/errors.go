package storage

import "errors"

// ErrNotFound is returned by Get when no window exists for the key.
var ErrNotFound = errors.New("rate limit window not found")
