package commands

import (
	"errors"
	"fmt"
)

var errIsDirectory = errors.New("is a directory")

// ArgumentError is returned when a builtin is invoked with malformed flags or
// the wrong number of arguments.
type ArgumentError struct {
	Command string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func argumentErrorf(command, format string, a ...interface{}) error {
	return &ArgumentError{Command: command, Err: fmt.Errorf(format, a...)}
}

// IOError is returned when a builtin can't read a file it was given. The
// wrapped error is usually an *fs.PathError so errors.Is works against
// fs.ErrNotExist and fs.ErrPermission.
type IOError struct {
	Command string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
