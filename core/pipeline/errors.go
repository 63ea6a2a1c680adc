package pipeline

import (
	"fmt"
)

// SyntaxError is returned for structurally invalid pipelines. Nothing is
// started when it's returned.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

// CommandNotFoundError is returned when a program can't be located.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("%s: command not found", e.Name)
}

// PermissionError is returned when a program exists but can't be executed.
type PermissionError struct {
	Name string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: permission denied", e.Name)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// PanicError is returned by a builtin stage that panicked.
type PanicError struct {
	Command string
	Value   interface{}
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Command, e.Value)
}
