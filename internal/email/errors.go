package email

import "errors"

var (
	// ErrValidation marks a request rejected before reaching the provider.
	ErrValidation = errors.New("email: validation failed")
	// ErrInvalidHandle marks a messageId that cannot be resolved: malformed,
	// altered, issued elsewhere or no longer known to the provider.
	ErrInvalidHandle = errors.New("email: invalid message id")
	// ErrUpstream marks a provider or transport failure.
	ErrUpstream = errors.New("email: provider request failed")
)
