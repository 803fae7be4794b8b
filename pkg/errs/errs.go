// Package errs holds the failure kinds shared by the clients, the services
// and the command front-end. Errors are built once where they happen and are
// turned into user text only by UserMessage.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotRegistered   = errors.New("server has no registered guild")
	ErrCatalogNotReady = errors.New("unit catalog is not loaded yet")
)

// TransportError is a non-success HTTP status (Status > 0) or a request that
// never got an answer (Status == 0).
type TransportError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("request to %s returned status %d", e.Endpoint, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type RemoteKind string

const (
	KindDuplicateRegistration RemoteKind = "duplicate-registration"
	KindNotFound              RemoteKind = "not-found"
	KindOther                 RemoteKind = "other"
)

// RemoteError is a condition reported by a remote service in its own payload.
// Technical goes to the logs, UserMessage is shown as is.
type RemoteError struct {
	Endpoint    string
	Kind        RemoteKind
	Technical   string
	UserMessage string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Endpoint, e.Kind, e.Technical)
}

type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q is not a valid %s", e.Value, e.Field)
}

type CatalogFetchError struct {
	Err error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("failed to fetch unit catalog: %v", e.Err)
}

func (e *CatalogFetchError) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind RemoteKind) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Kind == kind
}

// UserMessage renders err for the chat user.
func UserMessage(err error) string {
	var (
		remote     *RemoteError
		validation *ValidationError
		catalog    *CatalogFetchError
	)

	switch {
	case errors.As(err, &remote):
		return remote.UserMessage
	case errors.Is(err, ErrNotRegistered):
		return "**Mr.Lobot** did not find any guild in this server.\n" +
			"Use **/config guild <guild_id>** to add it."
	case errors.Is(err, ErrCatalogNotReady):
		return "**Mr.Lobot** is still loading the unit catalog, try again in a moment."
	case errors.As(err, &validation):
		return fmt.Sprintf("**%s** is not a valid %s", validation.Value, validation.Field)
	case errors.As(err, &catalog):
		return "**Mr.Lobot** found an error while getting the unit stats"
	default:
		return "**Mr.Lobot** found a problem while processing the command"
	}
}
