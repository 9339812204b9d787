package drivestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	gapi "google.golang.org/api/googleapi"

	"github.com/polaco8525/postit/internal/googleauth"
)

// ConnectivityError means the transport was unreachable. Transient: safe to
// retry on the next trigger.
type ConnectivityError struct {
	Cause error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("network unreachable: %v", e.Cause)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Cause
}

// RemoteStoreError means the provider rejected the request; the provider's
// message is surfaced verbatim.
type RemoteStoreError struct {
	Code    int
	Message string
	Cause   error
}

func (e *RemoteStoreError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("remote store error (%d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("remote store error: %s", e.Message)
}

func (e *RemoteStoreError) Unwrap() error {
	return e.Cause
}

// classify maps a raw failure into the error taxonomy. Every external call
// site goes through here; no opaque message strings escape this layer.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var authErr *googleauth.AuthenticationError
	if errors.As(err, &authErr) {
		return err
	}

	var apiErr *gapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 {
			return &googleauth.AuthenticationError{Cause: fmt.Errorf("%s: %w", op, err)}
		}
		return &RemoteStoreError{Code: apiErr.Code, Message: apiErr.Message, Cause: fmt.Errorf("%s: %w", op, err)}
	}

	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &ConnectivityError{Cause: fmt.Errorf("%s: %w", op, err)}
	}

	return &RemoteStoreError{Message: err.Error(), Cause: fmt.Errorf("%s: %w", op, err)}
}
