package manager

import (
	"errors"
	"fmt"

	"servingd/pkg/types"
)

// resourceExhaustedError signals that no port (or slot) is available for a new process.
type resourceExhaustedError struct{ what string }

func (e resourceExhaustedError) Error() string { return "resource exhausted: " + e.what }

// IsResourceExhausted reports whether err indicates an empty port pool.
func IsResourceExhausted(err error) bool {
	var e resourceExhaustedError
	return errors.As(err, &e)
}

// notFoundError is returned when a model version is not live (kill) or unknown
// to the artifact resolver (serve).
type notFoundError struct {
	key    types.ModelKey
	reason string
}

func (e notFoundError) Error() string {
	if e.reason != "" {
		return "model " + e.key.String() + " not found: " + e.reason
	}
	return "model " + e.key.String() + " not found"
}

// ErrNotFound constructs a not-found error for key.
func ErrNotFound(key types.ModelKey) error { return notFoundError{key: key} }

// IsNotFound reports whether err indicates a missing model or record.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// transportError is a retryable failure talking to a model process: the
// connection failed, or the process answered with something that is not a
// well-formed prediction.
type transportError struct {
	key   types.ModelKey
	port  int
	cause error
}

func (e transportError) Error() string {
	return fmt.Sprintf("transport failure for %s on port %d: %v", e.key, e.port, e.cause)
}

func (e transportError) Unwrap() error { return e.cause }

// IsTransportFailure reports whether err is a retryable transport failure.
func IsTransportFailure(err error) bool {
	var e transportError
	return errors.As(err, &e)
}

// ModelExecutionError is returned when the model process itself reports an
// error payload. It is terminal and never retried.
type ModelExecutionError struct {
	Key        types.ModelKey
	Code       string
	Message    string
	HTTPStatus int
}

func (e *ModelExecutionError) Error() string {
	return fmt.Sprintf("model %s failed: %s: %s", e.Key, e.Code, e.Message)
}

// IsModelExecutionError reports whether err carries a model error payload.
func IsModelExecutionError(err error) bool {
	var e *ModelExecutionError
	return errors.As(err, &e)
}

// RetriesExhaustedError is returned by Predict after the retry budget is spent
// without a success or a terminal model error.
type RetriesExhaustedError struct {
	Key      types.ModelKey
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("prediction for %s failed after %d attempts: %v", e.Key, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// IsRetriesExhausted reports whether err is a RetriesExhaustedError.
func IsRetriesExhausted(err error) bool {
	var e *RetriesExhaustedError
	return errors.As(err, &e)
}

// errShuttingDown is returned by Serve once StopAll has started.
var errShuttingDown = errors.New("orchestrator is shutting down")

// IsShuttingDown reports whether err was caused by a shutdown in progress.
func IsShuttingDown(err error) bool { return errors.Is(err, errShuttingDown) }
