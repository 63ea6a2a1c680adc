package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/pipesh/commands"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wcFixture = "  tes t_co n\nc o\nnt en   t\n \n     \nt es\nt  "

type recordedEvents []logger.LogType

func (r *recordedEvents) Record(event logger.LogType) error {
	*r = append(*r, event)
	return nil
}

func newTestRunner(t *testing.T) (*Runner, *recordedEvents) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/wc.txt", []byte(wcFixture), 0644))
	require.NoError(t, afero.WriteFile(fs, "/work/big.txt", bytes.Repeat([]byte("x"), 1<<20), 0644))

	env := vos.NewMapEnv()
	env.Setenv("PATH", os.Getenv("PATH"))

	rt := &commands.Runtime{
		Fs:  fs,
		Env: env,
		Getwd: func() (string, error) {
			return "/work", nil
		},
	}

	events := &recordedEvents{}
	runner := NewRunner(rt)
	runner.Launcher.Stderr = io.Discard
	runner.Events = events

	return runner, events
}

func run(r *Runner, stdin string, tokens ...string) (string, error) {
	var out bytes.Buffer
	err := r.Run(tokens, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRun_builtins(t *testing.T) {
	cases := map[string]struct {
		stdin    string
		tokens   []string
		expected string
	}{
		"echo": {
			tokens:   []string{"echo", "a", "b", "c"},
			expected: "a b c\n",
		},
		"echo to wc": {
			tokens:   []string{"echo", "hello", "world", "|", "wc"},
			expected: "1 2 12",
		},
		"file to wc": {
			tokens:   []string{"cat", "wc.txt", "|", "wc"},
			expected: "7 11 43",
		},
		"stdin to wc": {
			stdin:    wcFixture,
			tokens:   []string{"wc"},
			expected: "7 11 43",
		},
		"stdin through cats": {
			stdin:    wcFixture,
			tokens:   []string{"cat", "|", "cat", "|", "cat", "|", "wc"},
			expected: "7 11 43",
		},
		"grep after": {
			stdin:    "a\nab\nabc\nabcd\ndcba\nxyz\n",
			tokens:   []string{"cat", "|", "grep", "-A", "1", "abc", "|", "wc"},
			expected: "3 3 14",
		},
		"pwd": {
			tokens:   []string{"pwd"},
			expected: "/work",
		},
		"consumer ignores input": {
			tokens:   []string{"cat", "big.txt", "|", "echo", "done"},
			expected: "done\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			runner, _ := newTestRunner(t)

			out, err := run(runner, tc.stdin, tc.tokens...)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestRun_matchesDirectInvocation(t *testing.T) {
	for _, tokens := range [][]string{
		{"echo", "x", "y"},
		{"wc", "wc.txt"},
		{"grep", "-i", "T", "wc.txt"},
		{"cat", "wc.txt"},
	} {
		t.Run(strings.Join(tokens, " "), func(t *testing.T) {
			runner, _ := newTestRunner(t)

			piped, err := run(runner, "", tokens...)
			require.NoError(t, err)

			var direct bytes.Buffer
			b, ok := runner.Builtins.Resolve(tokens[0])
			require.True(t, ok)
			require.NoError(t, b.Main(runner.Runtime, tokens[1:], strings.NewReader(""), &direct))

			assert.Equal(t, direct.String(), piped)
		})
	}
}

func TestRun_empty(t *testing.T) {
	runner, events := newTestRunner(t)

	out, err := run(runner, "", []string{}...)

	assert.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, *events)
}

func TestRun_syntaxError(t *testing.T) {
	runner, events := newTestRunner(t)

	out, err := run(runner, "", "A=1", "|", "|", "echo", "hi")

	var syntaxErr *SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
	assert.Empty(t, out)
	assert.Empty(t, *events, "nothing should be launched")
	_, set := runner.Runtime.Env.LookupEnv("A")
	assert.False(t, set)
}

func TestRun_assignment(t *testing.T) {
	runner, _ := newTestRunner(t)

	out, err := run(runner, "", "GREETING=hello world")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "hello world", runner.Runtime.Env.Getenv("GREETING"))

	t.Run("visible to later stages", func(t *testing.T) {
		requirePrograms(t, "env", "grep")

		out, err := run(runner, "", "NEXT=1", "|", "env", "|", "grep", "^NEXT=")

		assert.NoError(t, err)
		assert.Equal(t, "NEXT=1\n", out)
	})

	t.Run("visible to later pipelines", func(t *testing.T) {
		requirePrograms(t, "env")

		out, err := run(runner, "", "env")

		assert.NoError(t, err)
		assert.Contains(t, out, "GREETING=hello world\n")
	})
}

func TestRun_external(t *testing.T) {
	requirePrograms(t, "tr", "sort", "head", "yes")

	cases := map[string]struct {
		stdin    string
		tokens   []string
		expected string
	}{
		"builtin to program": {
			tokens:   []string{"echo", "hello", "|", "tr", "a-z", "A-Z"},
			expected: "HELLO\n",
		},
		"program to builtin": {
			stdin:    "b\na\nc\n",
			tokens:   []string{"sort", "|", "grep", "-A", "1", "a"},
			expected: "a\nb\n",
		},
		"mixed chain": {
			stdin:    wcFixture,
			tokens:   []string{"cat", "|", "tr", "t", "T", "|", "cat", "|", "wc"},
			expected: "7 11 43",
		},
		"consumer exits early": {
			tokens:   []string{"yes", "|", "head", "-n", "2"},
			expected: "y\ny\n",
		},
		"builtin producer outlives consumer": {
			tokens:   []string{"cat", "big.txt", "|", "head", "-c", "5"},
			expected: "xxxxx",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			runner, _ := newTestRunner(t)

			out, err := run(runner, tc.stdin, tc.tokens...)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestRun_exitCodes(t *testing.T) {
	requirePrograms(t, "true", "false")
	runner, events := newTestRunner(t)

	_, err := run(runner, "", "true", "|", "false")

	assert.NoError(t, err, "exit codes aren't errors")
	require.NotEmpty(t, *events)
	complete, ok := (*events)[len(*events)-1].(*logger.PipelineComplete)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, complete.ExitCodes)
	assert.Equal(t, 2, complete.Stages)
}

func TestRun_commandNotFound(t *testing.T) {
	runner, events := newTestRunner(t)

	out, err := run(runner, "", "echo", "hi", "|", "pipesh-no-such-program", "|", "wc")

	var notFound *CommandNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "pipesh-no-such-program", notFound.Name)
	assert.Empty(t, out, "later stages are never started")

	var unknown *logger.UnknownCommand
	for _, e := range *events {
		if u, ok := e.(*logger.UnknownCommand); ok {
			unknown = u
		}
	}
	require.NotNil(t, unknown)
	assert.Equal(t, logger.StatusNotFound, unknown.Status)
}

func TestRun_permissionDenied(t *testing.T) {
	runner, _ := newTestRunner(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noexec"), []byte("#!/bin/sh\n"), 0644))
	runner.Runtime.Env.Setenv("PATH", dir)

	_, err := run(runner, "", "noexec")

	var denied *PermissionError
	assert.ErrorAs(t, err, &denied)
}

func TestRun_argumentError(t *testing.T) {
	runner, events := newTestRunner(t)

	out, err := run(runner, "", "echo", "|", "wc")

	var argErr *commands.ArgumentError
	assert.ErrorAs(t, err, &argErr)
	assert.Equal(t, "0 0 0", out, "siblings still run to completion")

	var invalid *logger.InvalidInvocation
	for _, e := range *events {
		if i, ok := e.(*logger.InvalidInvocation); ok {
			invalid = i
		}
	}
	require.NotNil(t, invalid)
	assert.Equal(t, []string{"echo"}, invalid.Command)
}

func TestRun_firstErrorWins(t *testing.T) {
	runner, _ := newTestRunner(t)

	_, err := run(runner, "", "cat", "missing.txt", "|", "grep", "-A-1", "x")

	var ioErr *commands.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestRun_panickingBuiltin(t *testing.T) {
	runner, events := newTestRunner(t)
	runner.Builtins = commands.Table{
		"boom": commands.BuiltinFunc(func(*commands.Runtime, []string, io.Reader, io.Writer) error {
			panic("kaboom")
		}),
		"echo": commands.BuiltinFunc(commands.Echo),
	}

	out, err := run(runner, "", "echo", "hi", "|", "boom")

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "boom", panicErr.Command)
	assert.Empty(t, out)

	var sawPanic bool
	for _, e := range *events {
		_, ok := e.(*logger.Panic)
		sawPanic = sawPanic || ok
	}
	assert.True(t, sawPanic)
}

func TestRun_exitBuiltin(t *testing.T) {
	runner, _ := newTestRunner(t)

	out, err := run(runner, "", "exit", "|", "echo", "still", "runs")

	assert.NoError(t, err)
	assert.Equal(t, "still runs\n", out)
	assert.True(t, runner.Runtime.ShouldExit())
}

func TestRun_outerStreamsStayOpen(t *testing.T) {
	runner, _ := newTestRunner(t)

	outFile, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer outFile.Close()

	inFile, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer inFile.Close()

	require.NoError(t, runner.Run([]string{"cat", "|", "echo", "one"}, inFile, outFile))
	require.NoError(t, runner.Run([]string{"echo", "two"}, inFile, outFile))

	_, err = outFile.WriteString("three\n")
	assert.NoError(t, err, "outer output must not be closed")
	_, err = inFile.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err, "outer input must not be closed")

	contents, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", string(contents))
}

func openFDs(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("can't count open descriptors:", err)
	}
	return len(entries)
}

func TestRun_descriptorHygiene(t *testing.T) {
	runner, _ := newTestRunner(t)

	pipelines := [][]string{
		{"echo", "hi", "|", "cat", "|", "wc"},
		{"echo", "hi", "|", "pipesh-no-such-program", "|", "cat"},
		{"echo", "|", "cat"},
		{"cat", "big.txt", "|", "echo", "x"},
		{"a", "|", "|", "b"},
	}

	runAll := func() {
		for _, tokens := range pipelines {
			_, _ = run(runner, "", tokens...)
		}
	}

	// Let the runtime allocate whatever it keeps for the process lifetime.
	runAll()
	before := openFDs(t)

	for i := 0; i < 50; i++ {
		runAll()
	}

	assert.Equal(t, before, openFDs(t))
}
