package models

import (
	"errors"
	"fmt"
)

// Analytical error kinds. Callers branch on them with errors.Is.
var (
	ErrEmptyInput          = errors.New("no transaction records supplied")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrModelNotTrained     = errors.New("models not trained")
	ErrMalformedInput      = errors.New("malformed input")
)

// ModelFitError reports a regressor or forecaster that could not be fit.
type ModelFitError struct {
	Target string
	Method string
	Err    error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("fit %s/%s: %v", e.Target, e.Method, e.Err)
}

func (e *ModelFitError) Unwrap() error { return e.Err }

// InsufficientHistory wraps ErrInsufficientHistory with the observed and required counts.
func InsufficientHistory(what string, have, need int) error {
	return fmt.Errorf("%w: %s needs %d points, have %d", ErrInsufficientHistory, what, need, have)
}
