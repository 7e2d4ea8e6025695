package console

import "errors"

var (
	// ErrStaleSession means the owners listing redirected to the login
	// surface although a saved session was in use.
	ErrStaleSession = errors.New("session is stale: console redirected to login, re-authentication required")
	// ErrMFATimeout means SSO did not return to the console within the
	// approval window. A human has to approve the sign-in.
	ErrMFATimeout = errors.New("sso login did not complete within the multi-factor approval window")
	// ErrLoginControl means a control the login flow depends on never appeared.
	ErrLoginControl = errors.New("login control not found")
)
