package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	// ErrNotFound marks operations keyed to a record that does not exist.
	ErrNotFound = errors.New("not_found")
	// ErrInvalid marks malformed or missing arguments, rejected before any write.
	ErrInvalid = errors.New("invalid")
	// ErrNoTable indicates the backing relation for a ledger kind has not
	// been provisioned yet. Reads degrade to empty results; writes
	// provision the relation before touching it.
	ErrNoTable = errors.New("backing_store_absent")
)
