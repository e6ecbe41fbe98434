// File path: internal/engine/errors.go
package engine

import "errors"

var (
	// ErrInvalidQuestion marks a question outside the 3..2000 char bounds.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrMissingParameter marks a route whose required parameter could not
	// be normalized from the request.
	ErrMissingParameter = errors.New("missing required parameter")
	// ErrUnsupportedStrategy marks a route naming a strategy the
	// orchestrator does not implement.
	ErrUnsupportedStrategy = errors.New("unsupported strategy")
	// ErrRouterParseFailure marks a generative strategy response that was
	// not parseable, conforming structured data.
	ErrRouterParseFailure = errors.New("router response not parseable")
)
