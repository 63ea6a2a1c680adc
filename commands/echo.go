package commands

import (
	"io"
	"strings"
)

// Echo writes its arguments separated by single spaces and followed by a
// newline. Arguments are never interpreted as flags.
func Echo(_ *Runtime, args []string, _ io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return argumentErrorf("echo", "at least one argument is required")
	}

	_, err := io.WriteString(stdout, strings.Join(args, " ")+"\n")
	return err
}

var _ BuiltinFunc = Echo

func init() {
	addBuiltin("echo", Echo)
}
