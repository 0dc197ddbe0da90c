package ucdriver

import (
	"errors"
	"fmt"
	"time"
)

// TransportError reports a failure to reach or keep talking to a device:
// refused or timed-out dials, failed handshakes, dropped connections.
type TransportError struct {
	Addr     string
	Protocol string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport to %s failed: %v", e.Protocol, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports that the device rejected the supplied credentials.
type AuthError struct {
	Addr     string
	Protocol string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication to %s failed: %v", e.Protocol, e.Addr, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TimeoutError reports that an expected pattern never showed up.
type TimeoutError struct {
	Pattern string
	Timeout time.Duration
	Output  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s waiting for %q", e.Timeout, e.Pattern)
}

var ErrNotConnected = errors.New("not connected to device, make sure to call .Connect() first")

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
