// Package apperr defines the small set of sentinel errors QueryFrontend
// translates into HTTP status codes. Everything else recoverable at cycle
// granularity is absorbed by the clustering loop and never surfaces here.
package apperr

import "errors"

var (
	// ErrBadRequest marks a caller error: malformed body, missing or
	// unparsable Cache-Control header, invalid query parameters.
	ErrBadRequest = errors.New("bad request")

	// ErrNotReady marks a query made before the first clustering cycle
	// has published an index.
	ErrNotReady = errors.New("index not ready")

	// ErrNotFound marks a lookup for a file id that is not in the store.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks a failure in the DocumentStore collaborator.
	ErrStorage = errors.New("storage failure")
)

// StatusFor is left to the httpapi package, which is the only place a
// caller-visible error is ever translated into a status code; nothing
// below the frontend should need to know about HTTP.
