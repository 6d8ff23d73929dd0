package query

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrNotANumber   = errors.New("not a number")
)

// InvalidQueryError reports caller-fixable filter, sort or model-name input.
type InvalidQueryError struct {
	Message string
	Err     error
}

func (e *InvalidQueryError) Error() string {
	return e.Message
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

func (e *InvalidQueryError) Unwrap() error {
	return e.Err
}

func Invalidf(format string, args ...any) error {
	return &InvalidQueryError{Message: fmt.Sprintf(format, args...)}
}

// NumberParseError is returned by ParseNumber.
type NumberParseError struct {
	Input string
}

func (e *NumberParseError) Error() string {
	return fmt.Sprintf("the provided string %s is not a number", e.Input)
}

func (e *NumberParseError) Is(target error) bool {
	return target == ErrNotANumber
}
