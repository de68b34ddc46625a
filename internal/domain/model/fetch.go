package model

// FetchStatus is the state of one view's fetch.
type FetchStatus string

const (
	StatusIdle    FetchStatus = "idle"
	StatusLoading FetchStatus = "loading"
	StatusSuccess FetchStatus = "success"
	StatusFailure FetchStatus = "failure"
)

// ReasonNoDataset marks an Idle view that has nothing to show because no
// dataset is selected. It is not a failure.
const ReasonNoDataset = "no dataset selected"

// FetchState is the per-view state machine value. Result is set only on
// Success and Reason only on Failure or an empty Idle.
type FetchState[T any] struct {
	Status FetchStatus
	Key    AnalysisRequest
	Result T
	Err    error
	Reason string
}

// Idle returns an Idle state with an optional reason.
func Idle[T any](reason string) FetchState[T] {
	return FetchState[T]{Status: StatusIdle, Reason: reason}
}

// Loading returns a Loading state for key. Any previous result is dropped.
func Loading[T any](key AnalysisRequest) FetchState[T] {
	return FetchState[T]{Status: StatusLoading, Key: key}
}

// Succeeded returns a Success state carrying result.
func Succeeded[T any](key AnalysisRequest, result T) FetchState[T] {
	return FetchState[T]{Status: StatusSuccess, Key: key, Result: result}
}

// Failed returns a Failure state. reason is what gets displayed.
func Failed[T any](key AnalysisRequest, err error, reason string) FetchState[T] {
	return FetchState[T]{Status: StatusFailure, Key: key, Err: err, Reason: reason}
}

// Empty reports whether the state is the "nothing to show" Idle.
func (s FetchState[T]) Empty() bool {
	return s.Status == StatusIdle && s.Reason == ReasonNoDataset
}
