package regmap

import "errors"

// Load and lookup errors. Load errors are fatal at startup; ErrInvalidPath
// is surfaced to Resolve callers and never retried.
var (
	// ErrNotFound indicates the map or policy document does not exist.
	ErrNotFound = errors.New("register map file not found")

	// ErrUnsupportedEncoding indicates the document extension or shape
	// is not one of the supported encodings.
	ErrUnsupportedEncoding = errors.New("unsupported register map encoding")

	// ErrMalformed indicates a missing required attribute or an
	// unparsable field in the document.
	ErrMalformed = errors.New("malformed register map")

	// ErrDuplicateAddress indicates two registers share an address.
	ErrDuplicateAddress = errors.New("duplicate register address")

	// ErrInvalidPath indicates a path segment that does not resolve.
	ErrInvalidPath = errors.New("invalid register path")
)
