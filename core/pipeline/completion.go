package pipeline

import (
	"errors"
	"os/exec"
	"sync"
)

// Completion is a handle on a started stage.
type Completion interface {
	// Wait blocks until the stage is done and returns its error, if any. It's
	// safe to call more than once.
	Wait() error
}

var (
	_ Completion = (*BuiltinCompletion)(nil)
	_ Completion = (*ProcessCompletion)(nil)
	_ Completion = ImmediateCompletion{}
)

// BuiltinCompletion tracks a builtin running on its own goroutine.
type BuiltinCompletion struct {
	done chan struct{}
	err  error
}

// Wait implements Completion.
func (c *BuiltinCompletion) Wait() error {
	<-c.done
	return c.err
}

// Done is closed when the builtin returns.
func (c *BuiltinCompletion) Done() <-chan struct{} {
	return c.done
}

// ProcessCompletion tracks an external process.
type ProcessCompletion struct {
	cmd *exec.Cmd

	once     sync.Once
	err      error
	exitCode int
}

func newProcessCompletion(cmd *exec.Cmd) *ProcessCompletion {
	return &ProcessCompletion{cmd: cmd, exitCode: -1}
}

// Wait implements Completion. A non-zero exit status is not an error, use
// ExitCode to inspect it.
func (c *ProcessCompletion) Wait() error {
	c.once.Do(func() {
		err := c.cmd.Wait()

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = nil
		}
		if c.cmd.ProcessState != nil {
			c.exitCode = c.cmd.ProcessState.ExitCode()
		}
		c.err = err
	})
	return c.err
}

// ExitCode returns the process's exit code once Wait has returned. It's -1
// before then, or if the process was killed by a signal.
func (c *ProcessCompletion) ExitCode() int {
	return c.exitCode
}

// Path is the resolved location of the program.
func (c *ProcessCompletion) Path() string {
	return c.cmd.Path
}

// Pid is the OS process ID.
func (c *ProcessCompletion) Pid() int {
	return c.cmd.Process.Pid
}

// ImmediateCompletion is a stage that finished as soon as it was launched,
// e.g. a variable assignment.
type ImmediateCompletion struct {
	Err error
}

// Wait implements Completion.
func (c ImmediateCompletion) Wait() error {
	return c.Err
}
