package transport

import "errors"

// Sentinel errors for the three handlers' shared precondition checks
// (spec.md §6/§7). They are returned unwrapped, because statusFor maps them
// to HTTP statuses by identity.
var (
	ErrUnauthorized = errors.New("transport: invalid or missing token")
	ErrConflict     = errors.New("transport: id already attached in a different mode")
	ErrRateLimited  = errors.New("transport: rate limit exceeded")
)
