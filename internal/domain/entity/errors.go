package entity

import "errors"

var (
	// ErrRateLimited is returned by adapters when the upstream provider throttled the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnsupportedAddress is returned for address formats an adapter cannot query.
	ErrUnsupportedAddress = errors.New("unsupported address")
	// ErrInvalidAddress is returned when an address fails validation before any request is made.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrDecode marks a malformed upstream payload.
	ErrDecode = errors.New("malformed response")
	// ErrInvalidInput marks a rejected registry mutation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLocked is returned by the vault when no session is open.
	ErrLocked = errors.New("vault is locked")
)
