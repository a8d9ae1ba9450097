package orchestrator

import "fmt"

// FatalError is a failure in the shared setup of a run (authentication,
// tenant or instance discovery). It aborts the run; per-instance failures
// never produce one.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(stage string, err error) error {
	return &FatalError{Stage: stage, Err: err}
}
