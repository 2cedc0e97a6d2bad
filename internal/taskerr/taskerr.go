// Package taskerr defines the task-level error type the session controller
// and its components record into instead of returning errors up the stack —
// the core "never raises outward" (spec §7); it records and keeps going.
package taskerr

import "fmt"

// Stage classifies where a TaskError originated, matching spec §7's
// taxonomy: transport, protocol, navigation, fatal (session-ending), or
// timeout.
type Stage string

const (
	StageTransport  Stage = "transport"
	StageProtocol   Stage = "protocol"
	StageNavigation Stage = "navigation"
	StageFatal      Stage = "fatal"
	StageTimeout    Stage = "timeout"
)

// TaskError is the first-write-wins error latched onto a Session. Once set
// it is never overwritten — later callers inspecting it always see the
// first failure, not a subsequent one that occurred while cleanup was
// already underway.
type TaskError struct {
	Stage   Stage
	Message string
	Cause   error
}

func (e *TaskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *TaskError) Unwrap() error { return e.Cause }

// New builds a TaskError without a wrapped cause.
func New(stage Stage, message string) *TaskError {
	return &TaskError{Stage: stage, Message: message}
}

// Wrap builds a TaskError wrapping an underlying cause.
func Wrap(stage Stage, message string, cause error) *TaskError {
	return &TaskError{Stage: stage, Message: message, Cause: cause}
}

// ConnectionError reports a failed attempt to reach a debugging endpoint.
// Mirrors the teacher's errs.ConnectionError{URL, Cause} shape
// (internal/bidi/connection.go), generalized beyond just websocket dials.
type ConnectionError struct {
	URL   string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }
