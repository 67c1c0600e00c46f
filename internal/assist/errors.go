package assist

import "errors"

// Sentinel errors for query routing. Check with errors.Is.
var (
	// ErrNoAnswer indicates every routing stage failed or declined:
	// the gateway was unreachable, no local pattern matched, and the
	// model invocation failed.
	ErrNoAnswer = errors.New("no routing stage could answer the query")

	// ErrModelUnavailable indicates the model endpoint is not
	// configured or returned an unusable response.
	ErrModelUnavailable = errors.New("model unavailable")
)
