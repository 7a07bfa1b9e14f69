package domain

import "errors"

var (
	// ErrTokenAbsent signals that no credentials are cached for the user;
	// the caller must restart the authorization flow.
	ErrTokenAbsent = errors.New("domain: no tokens stored for user")
	// ErrStateInvalid indicates the signed state failed verification,
	// expired, or did not match the client cookie.
	ErrStateInvalid = errors.New("domain: state verification failed")
)
