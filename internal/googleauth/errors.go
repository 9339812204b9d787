package googleauth

import (
	"fmt"
	"strings"
)

// AuthenticationError means no usable credential: the user must sign in
// again. It is raised locally, before any network call, when no token is
// stored, and on refresh/exchange failures.
type AuthenticationError struct {
	Cause error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication required: %v", e.Cause)
	}
	return "authentication required"
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// WrapOAuthError appends a human-readable hint to known Google OAuth error
// codes. The original error is preserved via %w for unwrapping.
func WrapOAuthError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unauthorized_client"):
		return fmt.Errorf("%w (hint: refresh token expired; re-run 'postit login')", err)
	case strings.Contains(msg, "invalid_grant"):
		return fmt.Errorf("%w (hint: token revoked or invalid; re-run 'postit login')", err)
	case strings.Contains(msg, "invalid_client"):
		return fmt.Errorf("%w (hint: client_id/secret invalid; re-run 'postit credentials')", err)
	}
	return err
}
