package faults

import (
	"errors"
	"fmt"
)

// AuthError reports an invalid or expired credential. It is fatal to a run:
// the orchestrator surfaces it to the trigger instead of recording it
// per-message.
type AuthError struct {
	// Op is the operation that failed (e.g., "listUnread", "tokenSource")
	Op string

	// Account is the mailbox account the credential belongs to
	Account string

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("auth %s (account: %s): %v", e.Op, e.Account, e.Err)
	}
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProviderError reports a transport or HTTP failure from an external API.
// At the fetch stage it aborts the run; during per-message processing it is
// recorded as that message's failure and the run continues.
type ProviderError struct {
	// Op is the operation that failed (e.g., "applyLabel", "classify")
	Op string

	// Provider names the upstream service (e.g., "gmail", "openai")
	Provider string

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ClassifierError reports a model response that could not be resolved into
// any allowed category. The message stays unlabeled, the failure is recorded,
// and no label call is made for it.
type ClassifierError struct {
	// Response is the raw model output that failed to match
	Response string

	// Allowed is the category set the response was matched against
	Allowed []string
}

// Error implements the error interface
func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier response %q matches none of %v", e.Response, e.Allowed)
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsProvider reports whether err is or wraps a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsClassifier reports whether err is or wraps a ClassifierError.
func IsClassifier(err error) bool {
	var ce *ClassifierError
	return errors.As(err, &ce)
}
