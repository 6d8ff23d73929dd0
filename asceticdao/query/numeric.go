package query

import (
	"strconv"
	"strings"
)

// ParseNumber parses s as an int64 when possible and as a float64 otherwise.
func ParseNumber(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, &NumberParseError{Input: s}
	}
	return f, nil
}
