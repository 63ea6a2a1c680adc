package core

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/pipeline"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
)

const (
	EnvHome     = "HOME"
	EnvPath     = "PATH"
	EnvHostname = "HOSTNAME"
	EnvUser     = "USER"

	DefaultPrompt = `\u@\h:\w\$ `
)

// ShellOptions controls how a Shell reads lines and reports errors.
type ShellOptions struct {
	// Prompt is shown before each line when editing, see Shell.Prompt.
	Prompt string
	// HistoryFile persists line editor history, empty disables it.
	HistoryFile string
	// Terminal enables the line editor, otherwise lines are scanned plainly.
	Terminal bool
	// Width reports the terminal width to the line editor.
	Width func() int
	// Color enables red error messages.
	Color bool
	// CommandInput is the standard input of pipelines. Defaults to the
	// shell's own input.
	CommandInput io.Reader
}

// Shell is a read-eval loop that runs each line as a pipeline.
type Shell struct {
	runner       *pipeline.Runner
	io           vos.VIO
	prompt       string
	commandInput io.Reader
	errColor     *color.Color

	readline *readline.Instance
	scanner  *bufio.Scanner
}

// NewShell creates a shell reading from and writing to vio. Stderr of
// programs is expected to be configured on the runner's launcher.
func NewShell(runner *pipeline.Runner, vio vos.VIO, opts ShellOptions) (*Shell, error) {
	s := &Shell{
		runner:       runner,
		io:           vio,
		prompt:       opts.Prompt,
		commandInput: opts.CommandInput,
		errColor:     color.New(color.FgRed),
	}

	if s.prompt == "" {
		s.prompt = DefaultPrompt
	}
	if s.commandInput == nil {
		s.commandInput = vio.Stdin()
	}
	if opts.Color {
		s.errColor.EnableColor()
	} else {
		s.errColor.DisableColor()
	}

	if !opts.Terminal {
		s.scanner = bufio.NewScanner(vio.Stdin())
		return s, nil
	}

	cfg := &readline.Config{
		HistoryFile: opts.HistoryFile,
		Stdin:       readline.NewCancelableStdin(vio.Stdin()),
		Stdout:      vio.Stdout(),
		Stderr:      vio.Stderr(),
		FuncGetWidth: func() int {
			if opts.Width == nil {
				return 80
			}
			return opts.Width()
		},
		FuncIsTerminal: func() bool {
			return true
		},
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	s.readline = rl

	return s, nil
}

// Prompt expands the prompt template. \u is the user, \h the host, \w the
// working directory with the home directory shortened to ~ and \$ is # for
// root and $ for everyone else.
func (s *Shell) Prompt() string {
	env := s.runner.Runtime.Env

	host := env.Getenv(EnvHostname)
	if host == "" {
		host, _ = os.Hostname()
	}

	pwd := ""
	if s.runner.Runtime.Getwd != nil {
		pwd, _ = s.runner.Runtime.Getwd()
	}
	if home := env.Getenv(EnvHome); home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	prompt := s.prompt
	prompt = strings.ReplaceAll(prompt, `\u`, env.Getenv(EnvUser))
	prompt = strings.ReplaceAll(prompt, `\h`, host)
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)
	if os.Geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

func (s *Shell) readLine() (string, error) {
	if s.readline != nil {
		s.readline.SetPrompt(s.Prompt())
		return s.readline.Readline()
	}

	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// RunLine substitutes variables in line, tokenizes it and runs the resulting
// pipeline.
func (s *Shell) RunLine(line string) error {
	tokens, err := shell.Parse(line, s.runner.Runtime.Env)
	if err != nil {
		return err
	}

	return s.runner.Run(tokens, s.commandInput, s.io.Stdout())
}

// Run reads and executes lines until the input ends, the user interrupts or
// exit is called. Errors from individual lines are printed and don't stop
// the loop. It returns the error of the last line that ran.
func (s *Shell) Run() error {
	var lastErr error
	for !s.runner.Runtime.ShouldExit() {
		line, err := s.readLine()
		switch {
		case errors.Is(err, io.EOF):
			return lastErr
		case errors.Is(err, readline.ErrInterrupt):
			return lastErr
		case err != nil:
			return err
		}

		lastErr = s.RunLine(line)
		if lastErr != nil {
			s.ReportError(lastErr)
		}
	}

	return lastErr
}

// ReportError prints err to the shell's standard error.
func (s *Shell) ReportError(err error) {
	s.errColor.Fprintf(s.io.Stderr(), "pipesh: %v\n", err)
}

// Close releases the line editor.
func (s *Shell) Close() error {
	if s.readline != nil {
		return s.readline.Close()
	}
	return nil
}
