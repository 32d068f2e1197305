package domain

import "errors"

// Pricing error taxonomy. Engines wrap these with context; callers match with
// errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNumericalDomain = errors.New("numerical domain error")
	ErrNonConvergence  = errors.New("did not converge")
	ErrLookup          = errors.New("grid lookup failed")
	ErrBudgetExceeded  = errors.New("compute budget exceeded")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
)
