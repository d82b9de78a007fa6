package paldb

import (
	"errors"

	"github.com/paldbgo/paldb/internal/store"
)

// Error kinds from spec.md §7. Each is a sentinel so callers can match with
// errors.Is even though call sites wrap it with context via %w. The
// storage-engine kinds are defined in internal/store and re-exported here
// so both layers raise (and callers match against) the exact same value.
var (
	// ErrDuplicateKey is returned by a Writer's Put when the key is
	// already present and duplicates are disabled.
	ErrDuplicateKey = store.ErrDuplicateKey

	// ErrCorruption is returned by a Reader when the file is malformed:
	// bad magic, unknown version, a truncated varint, or an inconsistent
	// metadata table.
	ErrCorruption = store.ErrCorruption

	// ErrOutOfDiskSpace is returned by Writer.Close's eager pre-merge
	// free-space check.
	ErrOutOfDiskSpace = store.ErrOutOfDiskSpace

	// ErrUnsupportedType is returned by Put when the value codec has no
	// tag or registered custom serializer for the value's type.
	ErrUnsupportedType = store.ErrUnsupportedType

	// ErrNotFound is returned by typed getters that do not accept a
	// default value.
	ErrNotFound = errors.New("paldb: key not found")

	// ErrStoreClosed is returned by any operation attempted after Close.
	ErrStoreClosed = store.ErrStoreClosed

	// ErrSerializerMismatch is returned by Open when the opener's
	// registered custom serializers (names, order) do not match the
	// ones the file was built with.
	ErrSerializerMismatch = errors.New("paldb: custom serializer registration mismatch")
)
