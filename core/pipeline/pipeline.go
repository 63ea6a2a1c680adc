// Package pipeline runs commands connected by pipes.
//
// Every stage is started before any is waited on so data can flow through
// the chain concurrently. Builtins run on goroutines inside the shell and
// everything else is started as an OS process.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/josephlewis42/pipesh/commands"
	"github.com/josephlewis42/pipesh/core/logger"
)

// EventRecorder receives an event for each stage and each pipeline.
type EventRecorder interface {
	Record(event logger.LogType) error
}

// Runner executes pipelines.
type Runner struct {
	// Builtins are consulted before searching for a program.
	Builtins commands.Table
	// Runtime is handed to builtins. Its Env is the environment given to
	// programs and the target of NAME=VALUE assignments.
	Runtime *commands.Runtime
	// Launcher starts programs.
	Launcher *Launcher
	// Events is optional.
	Events EventRecorder
}

// NewRunner creates a Runner with every registered builtin.
func NewRunner(rt *commands.Runtime) *Runner {
	return &Runner{
		Builtins: commands.AllBuiltins,
		Runtime:  rt,
		Launcher: &Launcher{},
	}
}

type stage struct {
	argv   []string
	stdin  io.Reader
	stdout io.Writer
	// pipedOut is set when stdout is a pipe to the next stage.
	pipedOut bool

	// owned holds the pipe ends this stage is responsible for closing.
	owned []*os.File

	handle Completion
	done   chan struct{}
	err    error
}

// release closes every pipe end the stage owns. It must only be called once
// the stage is done with them or will never start.
func (s *stage) release() error {
	var errs []error
	for _, f := range s.owned {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.owned = nil
	return errors.Join(errs...)
}

// watch waits for the stage in the background and releases its pipe ends as
// soon as it finishes, so a consumer that stops early unblocks its producer no
// matter the order stages are joined in.
func (s *stage) watch() {
	go func() {
		defer close(s.done)

		err := s.handle.Wait()
		if s.pipedOut && errors.Is(err, syscall.EPIPE) {
			// The reader went away, same as SIGPIPE for a process.
			err = nil
		}
		if relErr := s.release(); err == nil {
			err = relErr
		}
		s.err = err
	}()
}

func plumb(cmds [][]string, stdin io.Reader, stdout io.Writer) ([]*stage, error) {
	stages := make([]*stage, len(cmds))
	for i, argv := range cmds {
		stages[i] = &stage{argv: argv, done: make(chan struct{})}
	}
	stages[0].stdin = stdin
	stages[len(stages)-1].stdout = stdout

	for i := 0; i < len(stages)-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			for _, st := range stages {
				st.release()
			}
			return nil, fmt.Errorf("creating pipe: %w", err)
		}

		stages[i].stdout = pw
		stages[i].pipedOut = true
		stages[i].owned = append(stages[i].owned, pw)

		stages[i+1].stdin = pr
		stages[i+1].owned = append(stages[i+1].owned, pr)
	}

	return stages, nil
}

// Run executes the pipeline described by tokens. A nil stdin or stdout is
// replaced by the process's standard stream. Neither is ever closed.
//
// Run returns after every started stage has finished and every pipe it
// created is closed. If a stage can't be started, the stages before it are
// still waited on and the start error is returned. Otherwise the first stage
// error in pipeline order is returned.
func (r *Runner) Run(tokens []string, stdin io.Reader, stdout io.Writer) error {
	cmds, err := Split(tokens)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		return nil
	}

	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	start := time.Now()
	stages, err := plumb(cmds, stdin, stdout)
	if err != nil {
		return err
	}

	var launchErr error
	launched := 0
	for _, st := range stages {
		if launchErr = r.launch(st); launchErr != nil {
			break
		}
		st.watch()
		launched++
	}

	for _, st := range stages[launched:] {
		st.release()
	}

	var firstErr error
	var exitCodes []int
	for _, st := range stages[:launched] {
		<-st.done

		if st.err != nil {
			r.recordStageError(st)
			if firstErr == nil {
				firstErr = st.err
			}
		}

		if proc, ok := st.handle.(*ProcessCompletion); ok {
			exitCodes = append(exitCodes, proc.ExitCode())
		}
	}

	if launchErr != nil {
		firstErr = launchErr
	}

	complete := &logger.PipelineComplete{
		Stages:         len(stages),
		ExitCodes:      exitCodes,
		DurationMicros: time.Since(start).Microseconds(),
	}
	if firstErr != nil {
		complete.Error = firstErr.Error()
	}
	r.record(complete)

	return firstErr
}

func (r *Runner) launch(st *stage) error {
	if len(st.argv) == 0 {
		st.handle = ImmediateCompletion{}
		return nil
	}

	if name, value, ok := commands.ParseAssignment(st.argv[0]); ok {
		st.handle = ImmediateCompletion{Err: r.Runtime.Assign(name, value)}
		r.record(&logger.RunCommand{Command: st.argv, Builtin: true})
		return nil
	}

	if b, ok := r.Builtins.Resolve(st.argv[0]); ok {
		st.handle = ExecuteBuiltin(b, r.Runtime, st.argv, st.stdin, st.stdout)
		r.record(&logger.RunCommand{Command: st.argv, Builtin: true})
		return nil
	}

	proc, err := r.Launcher.Launch(st.argv, st.stdin, st.stdout, r.Runtime.Env)
	if err != nil {
		r.recordLaunchError(st.argv, err)
		return err
	}
	st.handle = proc
	r.record(&logger.RunCommand{Command: st.argv, ResolvedPath: proc.Path()})
	return nil
}

func (r *Runner) record(event logger.LogType) {
	if r.Events == nil {
		return
	}
	// Losing an event must never fail the pipeline.
	_ = r.Events.Record(event)
}

func (r *Runner) recordLaunchError(argv []string, err error) {
	status := logger.StatusStartFailed
	var notFound *CommandNotFoundError
	var denied *PermissionError
	switch {
	case errors.As(err, &notFound):
		status = logger.StatusNotFound
	case errors.As(err, &denied):
		status = logger.StatusPermissionDenied
	}

	r.record(&logger.UnknownCommand{
		Command:      argv,
		Status:       status,
		ErrorMessage: err.Error(),
	})
}

func (r *Runner) recordStageError(st *stage) {
	var argErr *commands.ArgumentError
	var panicErr *PanicError
	switch {
	case errors.As(st.err, &argErr):
		r.record(&logger.InvalidInvocation{Command: st.argv, Error: st.err.Error()})
	case errors.As(st.err, &panicErr):
		r.record(&logger.Panic{Context: st.err.Error(), Stacktrace: string(panicErr.Stack)})
	}
}
