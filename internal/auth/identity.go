package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrNoIdentity means the upstream auth layer did not identify the caller.
var ErrNoIdentity = errors.New("caller identity missing")

// IdentityResolver extracts the already-authenticated caller's user id from
// a request. This service never derives identity itself; it is an opaque
// input provided at connection-accept time.
type IdentityResolver func(r *http.Request) (int64, error)

// FromHeader resolves identity from the header the auth proxy sets.
func FromHeader(header string) IdentityResolver {
	return func(r *http.Request) (int64, error) {
		raw := r.Header.Get(header)
		if raw == "" {
			return 0, ErrNoIdentity
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("malformed %s header: %q", header, raw)
		}
		return id, nil
	}
}
