// Package auth implements the credential gate that every websocket and REST
// request passes before it is bound to a principal. This file defines the
// rejection reasons.
package auth

import "errors"

// ErrAuthFailure is the kind every rejection reason wraps. Callers that only
// care whether authentication failed can test with errors.Is.
var ErrAuthFailure = errors.New("authentication failed")

// Rejection is a terminal reason for refusing a connection attempt. Code is
// stable and is sent to clients in connect_error frames and 401 bodies.
type Rejection struct {
	Code string
	msg  string
}

func (r *Rejection) Error() string { return r.msg }

// Unwrap lets errors.Is(err, ErrAuthFailure) match any rejection.
func (r *Rejection) Unwrap() error { return ErrAuthFailure }

var (
	// ErrMissingCredential is returned when no bearer token was supplied.
	ErrMissingCredential = &Rejection{Code: "missing_credential", msg: "missing credential"}

	// ErrMalformedCredential is returned when the supplied value is not a
	// syntactically valid bearer token.
	ErrMalformedCredential = &Rejection{Code: "malformed_credential", msg: "malformed credential"}

	// ErrInvalidCredential covers expired tokens, bad signatures, wrong
	// issuer and any other verifier failure.
	ErrInvalidCredential = &Rejection{Code: "invalid_credential", msg: "invalid or expired credential"}

	// ErrPrincipalNotFound is returned when the token is valid but names a
	// user that does not exist.
	ErrPrincipalNotFound = &Rejection{Code: "principal_not_found", msg: "principal not found"}
)

// Code returns the client-facing code for err, or "auth_failed" when err is
// not a known rejection.
func Code(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code
	}
	return "auth_failed"
}
