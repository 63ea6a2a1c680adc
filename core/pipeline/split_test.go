package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	cases := map[string]struct {
		tokens   []string
		expected [][]string
	}{
		"nil":          {nil, nil},
		"empty":        {[]string{}, nil},
		"single":       {[]string{"echo", "a"}, [][]string{{"echo", "a"}}},
		"two stages":   {[]string{"echo", "a", "|", "wc"}, [][]string{{"echo", "a"}, {"wc"}}},
		"three stages": {[]string{"a", "|", "b", "c", "|", "d"}, [][]string{{"a"}, {"b", "c"}, {"d"}}},
		"pipe in word": {[]string{"echo", "a|b"}, [][]string{{"echo", "a|b"}}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := Split(tc.tokens)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestSplit_emptyStage(t *testing.T) {
	cases := map[string][]string{
		"interior": {"a", "|", "|", "b"},
		"leading":  {"|", "b"},
		"trailing": {"a", "|"},
		"only":     {"|"},
	}

	for tn, tokens := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := Split(tokens)

			var syntaxErr *SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
			assert.Equal(t, "empty command with pipes is restricted", err.Error())
			assert.Nil(t, actual)
		})
	}
}
