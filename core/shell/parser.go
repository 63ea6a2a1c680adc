// Package shell turns a line of input into the tokens of a pipeline.
//
// Lines go through two passes: $NAME substitution on the raw text, then
// POSIX style word splitting.
package shell

import (
	"regexp"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/pipesh/core/pipeline"
	"github.com/josephlewis42/pipesh/core/vos"
)

var envRegex = regexp.MustCompile(`\$\w+`)

// Substitute replaces each $NAME in line with its value from env, unset
// variables become empty. References inside single quotes are kept as-is.
func Substitute(line string, env vos.VEnv) string {
	matches := envRegex.FindAllStringIndex(line, -1)
	if matches == nil {
		return line
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		sb.WriteString(line[last:start])
		if strings.Count(line[:start], "'")%2 == 1 {
			sb.WriteString(line[start:end])
		} else {
			sb.WriteString(env.Getenv(line[start+1 : end]))
		}
		last = end
	}
	sb.WriteString(line[last:])

	return sb.String()
}

// isolatePipes surrounds every unquoted, unescaped | with spaces so it always
// ends up as its own token.
func isolatePipes(line string) string {
	var sb strings.Builder
	var quote rune
	escaped := false

	for _, c := range line {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '|':
			sb.WriteString(" | ")
			continue
		}
		sb.WriteRune(c)
	}

	return sb.String()
}

// Split breaks line into words honoring quotes and backslash escapes. An
// unterminated quote or trailing escape is a *pipeline.SyntaxError.
func Split(line string) ([]string, error) {
	tokens, err := shlex.Split(isolatePipes(line), true)
	if err != nil {
		return nil, &pipeline.SyntaxError{Msg: "syntax error: unexpected end of file"}
	}
	return tokens, nil
}

// Parse substitutes variables in line then splits it into tokens.
func Parse(line string, env vos.VEnv) ([]string, error) {
	return Split(Substitute(line, env))
}
