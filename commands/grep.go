package commands

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"regexp"
)

var errNegativeAfter = errors.New("-A parameter shouldn't be negative")

// Grep prints lines of FILE or stdin that match a regular expression.
//
// With -A N each match is followed by the next N lines. Windows that overlap
// merge: a line inside a window is still tested and a match restarts the
// window from that line.
func Grep(rt *Runtime, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := &SimpleCommand{
		Use:   "grep [-iw] [-A NUM] PATTERN [FILE]",
		Short: "Print lines matching a pattern.",
	}

	ignoreCase := cmd.Flags().Bool('i', "ignore case distinctions in PATTERN and data")
	wholeWord := cmd.Flags().Bool('w', "match only whole words")
	after := cmd.Flags().Int('A', 0, "print NUM lines of trailing context", "NUM")

	return cmd.Run(args, stdout, func(args []string) error {
		if *after < 0 {
			return &ArgumentError{Command: "grep", Err: errNegativeAfter}
		}

		switch len(args) {
		case 0:
			return argumentErrorf("grep", "missing argument PATTERN")
		case 1, 2:
		default:
			return argumentErrorf("grep", "expected at most one file, got %d", len(args)-1)
		}

		pattern := args[0]
		if *wholeWord {
			pattern = `\b(?:` + pattern + `)\b`
		}
		if *ignoreCase {
			pattern = "(?i)" + pattern
		}
		regex, err := regexp.Compile(pattern)
		if err != nil {
			return &ArgumentError{Command: "grep", Err: err}
		}

		return rt.eachFileOrStdin("grep", args[1:], stdin, func(_ string, r io.Reader) error {
			return grepLines(regex, *after, r, stdout)
		})
	})
}

func grepLines(regex *regexp.Regexp, after int, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	remaining := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if regex.Match(bytes.TrimSuffix(line, []byte{'\n'})) {
				remaining = after + 1
			}

			if remaining > 0 {
				remaining--
				if _, err := w.Write(line); err != nil {
					return err
				}
			}
		}

		switch {
		case readErr == io.EOF:
			return nil
		case readErr != nil:
			return readErr
		}
	}
}

var _ BuiltinFunc = Grep

func init() {
	addBuiltin("grep", Grep)
}
