package commands

import (
	"fmt"
	"io"
)

type wcCount struct {
	bytes int
	lines int
	words int

	inWord  bool
	lastEOL bool
}

func (w *wcCount) Write(data []byte) (int, error) {
	for _, c := range data {
		w.bytes++

		if isSpace(c) {
			w.inWord = false
		} else if !w.inWord {
			w.inWord = true
			w.words++
		}

		w.lastEOL = c == '\n'
		if w.lastEOL {
			w.lines++
		}
	}

	return len(data), nil
}

// Lines counts terminated lines plus a trailing unterminated one, if any.
func (w *wcCount) Lines() int {
	if w.bytes > 0 && !w.lastEOL {
		return w.lines + 1
	}
	return w.lines
}

func (w *wcCount) String() string {
	return fmt.Sprintf("%d %d %d", w.Lines(), w.words, w.bytes)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Wc writes "LINES WORDS BYTES" for FILE or stdin, without a trailing
// newline.
func Wc(rt *Runtime, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := &SimpleCommand{
		Use:   "wc [FILE]",
		Short: "Print the number of lines, words, and bytes in the input.",
	}

	return cmd.Run(args, stdout, func(files []string) error {
		if len(files) > 1 {
			return argumentErrorf("wc", "expected at most one file, got %d", len(files))
		}

		var count wcCount
		err := rt.eachFileOrStdin("wc", files, stdin, func(_ string, r io.Reader) error {
			_, err := io.Copy(&count, r)
			return err
		})
		if err != nil {
			return err
		}

		_, err = io.WriteString(stdout, count.String())
		return err
	})
}

var _ BuiltinFunc = Wc

func init() {
	addBuiltin("wc", Wc)
}
