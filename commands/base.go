package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/josephlewis42/pipesh/core/vos"
	getopt "github.com/pborman/getopt/v2"
	"github.com/spf13/afero"
)

// Builtin is a command that runs inside the shell process.
//
// Implementations must not close stdin or stdout, their lifetime belongs to
// whoever started the builtin.
type Builtin interface {
	Main(rt *Runtime, args []string, stdin io.Reader, stdout io.Writer) error
}

// BuiltinFunc adapts a function to the Builtin interface.
type BuiltinFunc func(rt *Runtime, args []string, stdin io.Reader, stdout io.Writer) error

// Main implements Builtin.
func (f BuiltinFunc) Main(rt *Runtime, args []string, stdin io.Reader, stdout io.Writer) error {
	return f(rt, args, stdin, stdout)
}

var _ Builtin = (BuiltinFunc)(nil)

// Table maps command names to builtins.
type Table map[string]Builtin

// Resolve looks up a builtin by name.
func (t Table) Resolve(name string) (Builtin, bool) {
	b, ok := t[name]
	return b, ok
}

// Names returns the sorted names of every builtin in the table.
func (t Table) Names() []string {
	var out []string
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AllBuiltins holds every registered builtin.
var AllBuiltins = make(Table)

func addBuiltin(name string, fn BuiltinFunc) {
	AllBuiltins[name] = fn
}

// Runtime is the shell state builtins are allowed to see.
type Runtime struct {
	// Fs is used for all file access.
	Fs afero.Fs
	// Env is the shell's environment, assignments are written here.
	Env vos.VEnv
	// Getwd returns the current working directory.
	Getwd func() (string, error)

	shouldExit atomic.Bool
}

// NewRuntime creates a runtime backed by the host filesystem and working
// directory.
func NewRuntime(env vos.VEnv) *Runtime {
	return &Runtime{
		Fs:    afero.NewOsFs(),
		Env:   env,
		Getwd: os.Getwd,
	}
}

// RequestExit asks the enclosing read-eval loop to stop after the current
// pipeline.
func (rt *Runtime) RequestExit() {
	rt.shouldExit.Store(true)
}

// ShouldExit reports whether exit was requested.
func (rt *Runtime) ShouldExit() bool {
	return rt.shouldExit.Load()
}

// Assign sets an environment variable on behalf of a NAME=VALUE command.
func (rt *Runtime) Assign(name, value string) error {
	return rt.Env.Setenv(name, value)
}

func (rt *Runtime) resolvePath(name string) string {
	if filepath.IsAbs(name) || rt.Getwd == nil {
		return name
	}

	wd, err := rt.Getwd()
	if err != nil {
		return name
	}
	return filepath.Join(wd, name)
}

// Open opens a file for reading relative to the working directory.
func (rt *Runtime) Open(name string) (afero.File, error) {
	fd, err := rt.Fs.Open(rt.resolvePath(name))
	if err != nil {
		return nil, err
	}

	if info, err := fd.Stat(); err == nil && info.IsDir() {
		fd.Close()
		return nil, &os.PathError{Op: "read", Path: name, Err: errIsDirectory}
	}
	return fd, nil
}

// eachFileOrStdin calls callback for each named file, or once for stdin when
// no files are given. "-" also means stdin. Files that can't be opened don't
// stop the others from being processed; the first failure is returned.
func (rt *Runtime) eachFileOrStdin(command string, files []string, stdin io.Reader, callback func(name string, r io.Reader) error) error {
	if len(files) == 0 {
		return callback("-", stdin)
	}

	var firstErr error
	for _, name := range files {
		if name == "-" {
			if err := callback(name, stdin); err != nil {
				return err
			}
			continue
		}

		fd, err := rt.Open(name)
		if err != nil {
			if firstErr == nil {
				firstErr = &IOError{Command: command, Err: err}
			}
			continue
		}

		err = callback(name, fd)
		fd.Close()
		if err != nil {
			return err
		}
	}

	return firstErr
}

// SimpleCommand parses POSIX style flags for a builtin.
type SimpleCommand struct {
	// Use holds a one line usage string, the first word is the command name.
	Use string
	// Short holds a one line description of the command.
	Short string

	showHelp *bool
	flags    *getopt.Set
}

func (s *SimpleCommand) name() string {
	if fields := strings.Fields(s.Use); len(fields) > 0 {
		return fields[0]
	}
	return "builtin"
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
		s.flags.SetProgram(s.name())
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses args and, unless help was requested, calls callback with the
// remaining positional arguments. Flag errors become an ArgumentError.
func (s *SimpleCommand) Run(args []string, stdout io.Writer, callback func(args []string) error) error {
	opts := s.Flags()
	if s.showHelp == nil {
		s.showHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	argv := append([]string{s.name()}, args...)
	if err := opts.Getopt(argv, nil); err != nil {
		return &ArgumentError{Command: s.name(), Err: err}
	}

	if *s.showHelp {
		s.PrintHelp(stdout)
		return nil
	}

	return callback(opts.Args())
}
