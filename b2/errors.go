package b2

import (
	"errors"
	"fmt"
)

var (
	ErrKeyExpired     = errors.New("b2: application key expired, create a new client")
	ErrEmptyCredsPair = errors.New("b2: key id and application key are required")
)

// Well-known error codes returned by the B2 API.
const (
	CodeExpiredAuthToken = "expired_auth_token"
	CodeBadAuthToken     = "bad_auth_token"
	CodeServiceBusy      = "service_unavailable"
	CodeUnknown          = "unknown"
)

// APIError is an error body returned by the B2 API, decoded as-is.
type APIError struct {
	Op      string `json:"-"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("b2 %s: %s (status %d, code %q)", e.Op, e.Message, e.Status, e.Code)
}

// IsAuthExpired reports whether err is a B2 API error caused by an expired
// or invalidated account authorization token.
func IsAuthExpired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeExpiredAuthToken || apiErr.Code == CodeBadAuthToken
}

// IsStatus reports whether err is a B2 API error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// CapabilityError is returned before any HTTP call when the application key
// behind the client lacks a capability the operation needs.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("b2: application key is missing capability %q", e.Capability)
}
