package entities

// OutcomeStatus tags the result of one pipeline stage.
type OutcomeStatus string

const (
	// OutcomeSuccess means the stage produced its value through the primary path
	OutcomeSuccess OutcomeStatus = "success"

	// OutcomeFallback means the stage degraded to a deterministic fallback
	OutcomeFallback OutcomeStatus = "fallback"

	// OutcomeFailed means the stage failed and the pipeline must abort
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the uniform result shape returned by every pipeline stage, so
// the orchestrator sequences one shape regardless of which stage degraded.
type Outcome[T any] struct {
	Status OutcomeStatus
	Value  T
	Reason string
	Err    error
}

// Success wraps a value produced through the primary path.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{Status: OutcomeSuccess, Value: value}
}

// Fallback wraps a degraded value with the reason for degradation.
func Fallback[T any](value T, reason string) Outcome[T] {
	return Outcome[T]{Status: OutcomeFallback, Value: value, Reason: reason}
}

// Failed wraps an unrecoverable stage error.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Status: OutcomeFailed, Err: err}
}

// Degraded reports whether the stage used its fallback path.
func (o Outcome[T]) Degraded() bool {
	return o.Status == OutcomeFallback
}

// OK reports whether the stage produced a usable value.
func (o Outcome[T]) OK() bool {
	return o.Status != OutcomeFailed
}
