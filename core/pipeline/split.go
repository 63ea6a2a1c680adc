package pipeline

// Delimiter separates the stages of a pipeline.
const Delimiter = "|"

var errEmptyStage = &SyntaxError{Msg: "empty command with pipes is restricted"}

// Split breaks tokens into per-stage commands at each Delimiter. No tokens
// yield no commands. An empty stage in a pipeline of more than one stage is a
// SyntaxError.
func Split(tokens []string) ([][]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	commands := [][]string{{}}
	for _, tok := range tokens {
		if tok == Delimiter {
			commands = append(commands, []string{})
			continue
		}

		last := len(commands) - 1
		commands[last] = append(commands[last], tok)
	}

	if len(commands) > 1 {
		for _, cmd := range commands {
			if len(cmd) == 0 {
				return nil, errEmptyStage
			}
		}
	}

	return commands, nil
}
