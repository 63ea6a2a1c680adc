package pipeline

import (
	"io"
	"runtime/debug"

	"github.com/josephlewis42/pipesh/commands"
)

// ExecuteBuiltin runs a builtin on its own goroutine and returns immediately.
// The builtin's streams are never closed here.
func ExecuteBuiltin(b commands.Builtin, rt *commands.Runtime, argv []string, stdin io.Reader, stdout io.Writer) *BuiltinCompletion {
	c := &BuiltinCompletion{done: make(chan struct{})}

	go func() {
		defer close(c.done)
		defer func() {
			if r := recover(); r != nil {
				c.err = &PanicError{Command: argv[0], Value: r, Stack: debug.Stack()}
			}
		}()

		c.err = b.Main(rt, argv[1:], stdin, stdout)
	}()

	return c
}
