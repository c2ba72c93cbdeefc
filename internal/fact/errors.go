package fact

import "errors"

// Sentinel errors for the fact data model and codecs.
// These are part of the package's public API and should be checked with
// errors.Is().
//
// Example:
//
//	key, err := fact.ParseKey(raw)
//	if errors.Is(err, fact.ErrKeyMalformed) {
//	    // reject the input
//	}
var (
	// ErrKeyMalformed indicates a key component or canonical encoding that
	// does not satisfy the key grammar.
	ErrKeyMalformed = errors.New("malformed fact key")

	// ErrInvariantViolation indicates a record whose embedded
	// (ecosystem, tool, version) does not match the key it is stored under.
	ErrInvariantViolation = errors.New("record does not match key")

	// ErrInvalidFormat indicates truncated or corrupt codec input.
	ErrInvalidFormat = errors.New("invalid record encoding")

	// ErrVersionMismatch indicates codec input written by an incompatible
	// future format revision.
	ErrVersionMismatch = errors.New("unsupported record format version")

	// ErrSchemaMismatch indicates codec input carrying an unknown required
	// field.
	ErrSchemaMismatch = errors.New("unknown required field in record encoding")
)
