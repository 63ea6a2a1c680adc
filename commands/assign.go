package commands

import (
	"regexp"
)

var (
	assignmentRegex = regexp.MustCompile(`^([A-Za-z0-9_]+)=`)
	varNameRegex    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ParseAssignment reports whether token has the form NAME=VALUE. The value is
// everything after the first '=' and may be empty.
func ParseAssignment(token string) (name, value string, ok bool) {
	match := assignmentRegex.FindStringSubmatch(token)
	if match == nil {
		return "", "", false
	}

	return match[1], token[len(match[0]):], true
}

// IsValidName reports whether name can be the target of an assignment.
func IsValidName(name string) bool {
	return varNameRegex.MatchString(name)
}
