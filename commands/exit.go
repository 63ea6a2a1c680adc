package commands

import (
	"io"
)

// Exit asks the shell to quit once the running pipeline finishes.
func Exit(rt *Runtime, args []string, _ io.Reader, stdout io.Writer) error {
	cmd := &SimpleCommand{
		Use:   "exit",
		Short: "Exit the shell after the current command line completes.",
	}

	return cmd.Run(args, stdout, func([]string) error {
		rt.RequestExit()
		return nil
	})
}

var _ BuiltinFunc = Exit

func init() {
	addBuiltin("exit", Exit)
}
