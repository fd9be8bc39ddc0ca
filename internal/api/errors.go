// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package api

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for the request failure taxonomy. Every error returned by the
// client carries exactly one of these.
const (
	// CodeValidation marks 400/422 responses. Field-level messages from the
	// API are preserved verbatim under the "fields" context key.
	CodeValidation = "VALIDATION_FAILED"

	// CodeAuth marks 401/403 responses. Callers holding a session must
	// force a clean logout when they see this.
	CodeAuth = "AUTH_INVALID"

	// CodeTransport marks network-level failures (dial, timeout, reset).
	// Session state is preserved; the user is prompted to retry.
	CodeTransport = "TRANSPORT_FAILED"

	// CodeServer marks unexpected 5xx responses. Surfaced as a generic
	// message; the original detail is logged.
	CodeServer = "SERVER_ERROR"

	// CodeNotFound marks 404 responses for entity lookups.
	CodeNotFound = "NOT_FOUND"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

func hasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool { return hasCode(err, CodeValidation) }

// IsAuthError reports whether err is an authentication/authorization failure.
func IsAuthError(err error) bool { return hasCode(err, CodeAuth) }

// IsTransportError reports whether err is a network-level failure.
func IsTransportError(err error) bool { return hasCode(err, CodeTransport) }

// IsServerError reports whether err is an unexpected 5xx failure.
func IsServerError(err error) bool { return hasCode(err, CodeServer) }

// FieldErrors extracts per-field validation messages from err, exactly as
// the API returned them. Returns nil if err carries none.
func FieldErrors(err error) map[string][]string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, ok := oopsErr.Context()["fields"].(map[string][]string)
	if !ok {
		return nil
	}
	return fields
}

// UserMessage normalizes err to a message suitable for an inline banner.
// Validation and auth details pass through; transport and server faults get
// a generic retryable message so raw internals never reach the user.
func UserMessage(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch oopsErr.Code() {
	case CodeValidation, CodeAuth, CodeNotFound:
		return oopsErr.Error()
	case CodeTransport:
		return "Could not reach the server. Check your connection and retry."
	default:
		return "Something went wrong. Please try again."
	}
}
