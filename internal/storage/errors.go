package storage

import "errors"

// ErrNotFound means no run exists with the requested id.
var ErrNotFound = errors.New("not found")
