package models

import "fmt"

// StageName identifies one of the two upload/response cycles.
type StageName string

const (
	StageAnalyze  StageName = "analyze"
	StageGenerate StageName = "generate"
)

// ParseStageName validates a stage name taken from a request path.
func ParseStageName(s string) (StageName, error) {
	switch StageName(s) {
	case StageAnalyze, StageGenerate:
		return StageName(s), nil
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

// Phase is the tag of a Stage.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Stage is the tagged state of one stage: Idle, Loading, Succeeded with a
// result, or Failed with a message. Use the constructors; the zero value
// is Idle.
type Stage[T any] struct {
	Phase  Phase  `json:"phase" msgpack:"phase"`
	Result *T     `json:"result,omitempty" msgpack:"result,omitempty"`
	Error  string `json:"error,omitempty" msgpack:"error,omitempty"`
}

func Idle[T any]() Stage[T] {
	return Stage[T]{Phase: PhaseIdle}
}

func Loading[T any]() Stage[T] {
	return Stage[T]{Phase: PhaseLoading}
}

func Succeeded[T any](result T) Stage[T] {
	return Stage[T]{Phase: PhaseSucceeded, Result: &result}
}

func Failed[T any](message string) Stage[T] {
	return Stage[T]{Phase: PhaseFailed, Error: message}
}

// IsLoading reports whether a request for the stage is in flight.
func (s Stage[T]) IsLoading() bool {
	return s.Phase == PhaseLoading
}

// Value returns the result when the stage succeeded.
func (s Stage[T]) Value() (T, bool) {
	var zero T
	if s.Phase != PhaseSucceeded || s.Result == nil {
		return zero, false
	}
	return *s.Result, true
}
