package agent

import (
	"fmt"
	"strings"
)

// MissingVariableError is returned when a referenced template variable is absent.
type MissingVariableError struct {
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing required template variable: %q", e.Variable)
}

// Interpolate replaces {{variable}} placeholders in template with values from vars.
// Returns MissingVariableError if a referenced variable is not present.
// Substituted values are not rescanned, so buyer-supplied text containing
// braces is inserted literally.
func Interpolate(template string, vars map[string]string) (string, error) {
	result := template
	i := 0
	for {
		start := strings.Index(result[i:], "{{")
		if start == -1 {
			break
		}
		start += i
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start

		name := strings.TrimSpace(result[start+2 : end])
		value, ok := vars[name]
		if !ok {
			return "", &MissingVariableError{Variable: name}
		}

		result = result[:start] + value + result[end+2:]
		i = start + len(value)
	}

	return result, nil
}
