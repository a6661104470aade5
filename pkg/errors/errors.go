package errors

import "errors"

var (
	// Validation errors are rejected before any state mutation.
	ErrMissingField = errors.New("missing required field")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEmptyKey     = errors.New("empty key")

	// State errors.
	ErrNotFound         = errors.New("not found")
	ErrEntityExists     = errors.New("entity already exists")
	ErrRoundClosed      = errors.New("round is not active")
	ErrNotMember        = errors.New("participant is not in the round")
	ErrAlreadySubmitted = errors.New("participant already submitted for this round")
	ErrBlacklisted      = errors.New("participant is blacklisted")

	// Policy violations are surfaced to remote callers as a generic denial.
	ErrPolicyDenied   = errors.New("request denied")
	ErrBudgetExceeded = errors.New("privacy budget exceeded")

	// Resource exhaustion is retryable.
	ErrExhausted           = errors.New("request limit reached, retry later")
	ErrMarketplaceDisabled = errors.New("marketplace is disabled")

	// Expiry is a terminal state, not an exception path.
	ErrExpired = errors.New("expired")

	ErrIncompatible = errors.New("incompatible model version")
)
