package bridge

import (
	"errors"
	"strings"
)

// ErrNoSQL is returned when a model response carries no SQL statement.
var ErrNoSQL = errors.New("could not extract SQL from model response")

// ExtractSQL pulls a statement out of a model response. The first fenced
// block wins, with an optional sql language tag; otherwise the response
// must itself start with SELECT.
func ExtractSQL(response string) (string, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", ErrNoSQL
	}

	if strings.Contains(response, "```") {
		parts := strings.Split(response, "```")
		candidate := parts[1]
		if strings.HasPrefix(strings.ToLower(candidate), "sql") {
			candidate = candidate[3:]
		}
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return "", ErrNoSQL
		}
		return candidate, nil
	}

	if strings.HasPrefix(strings.ToUpper(response), "SELECT") {
		return strings.TrimRight(response, ";"), nil
	}
	return "", ErrNoSQL
}
