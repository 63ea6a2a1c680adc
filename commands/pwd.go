package commands

import (
	"io"
)

// Pwd writes the working directory without a trailing newline.
func Pwd(rt *Runtime, args []string, _ io.Reader, stdout io.Writer) error {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(args, stdout, func([]string) error {
		dir, err := rt.Getwd()
		if err != nil {
			return &IOError{Command: "pwd", Err: err}
		}

		_, err = io.WriteString(stdout, dir)
		return err
	})
}

var _ BuiltinFunc = Pwd

func init() {
	addBuiltin("pwd", Pwd)
}
