// Package corerr holds the small set of fatal, cross-stage error types
// shared by the pipeline's goroutines. Business-rule rejections
// (account.TxnError) are not here: those are expected and stay local to
// core/account/core/worker. These are the structural failures spec.md §7
// says must abort the run.
package corerr

import "fmt"

// PanicError wraps a recovered goroutine panic so it can be returned as a
// normal error and surfaced by the joining goroutine, rather than crashing
// the process (spec.md §5: "A panic in any thread is fatal to the run;
// joiners must surface it").
type PanicError struct {
	Stage string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Stage, e.Value)
}

// NewPanicError builds a PanicError from a recover() result.
func NewPanicError(stage string, recovered any, stack []byte) *PanicError {
	return &PanicError{Stage: stage, Value: recovered, Stack: stack}
}
