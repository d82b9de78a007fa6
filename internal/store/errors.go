package store

import "errors"

// Sentinel errors for the storage engine (spec.md §7). The public paldb
// package re-exports these under its own names so callers never need to
// import internal/store directly.
var (
	ErrDuplicateKey    = errors.New("paldb: duplicate key")
	ErrCorruption      = errors.New("paldb: corrupt store")
	ErrOutOfDiskSpace  = errors.New("paldb: insufficient free disk space")
	ErrUnsupportedType = errors.New("paldb: unsupported value type")
	ErrStoreClosed     = errors.New("paldb: store is closed")
)
