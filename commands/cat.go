package commands

import (
	"io"
)

// Cat copies each FILE, or stdin if none are given, to stdout.
func Cat(rt *Runtime, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := &SimpleCommand{
		Use:   "cat [FILE]...",
		Short: "Concatenate files to standard output.",
	}

	return cmd.Run(args, stdout, func(files []string) error {
		return rt.eachFileOrStdin("cat", files, stdin, func(_ string, r io.Reader) error {
			_, err := io.Copy(stdout, r)
			return err
		})
	})
}

var _ BuiltinFunc = Cat

func init() {
	addBuiltin("cat", Cat)
}
