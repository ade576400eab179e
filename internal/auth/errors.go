package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for credential operations.
var (
	// ErrNoCredentials is returned by the store when no credential file
	// exists. This is a normal state, not a failure.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrAuthRequired is returned when the cached record cannot be used and
	// interactive re-authentication is the only way forward.
	ErrAuthRequired = errors.New("re-authentication required")

	// ErrTokenInvalid is returned when the game service rejects the cached
	// access token during validation.
	ErrTokenInvalid = errors.New("access token rejected by game service")

	// Per-hop sentinels of the delegated-authorization chain. Each hop's
	// failure mode stays independently observable.
	ErrIdentityHop    = errors.New("identity provider hop failed")
	ErrBrokerHop      = errors.New("authorization broker hop failed")
	ErrGameServiceHop = errors.New("game service hop failed")

	// ErrDeviceCodeExpired is returned when the user never completed the
	// interactive device-code prompt before it expired.
	ErrDeviceCodeExpired = errors.New("device code expired before authorization")
)

// HopError wraps a chain hop failure with the state the chain had reached.
type HopError struct {
	State State
	Err   error
}

func (e *HopError) Error() string {
	return fmt.Sprintf("auth chain failed at %s: %v", e.State, e.Err)
}

func (e *HopError) Unwrap() error {
	return e.Err
}
