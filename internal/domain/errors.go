package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across a report run.

// ErrConfiguration indicates no usable configuration, e.g. no resolvable
// reporting window. Fatal: the run halts before any fetch.
type ErrConfiguration struct {
	Field   string
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error on '%s': %s", e.Field, e.Message)
}

// ErrDataShape indicates a source record is missing a field the normalizer
// requires. Fatal: no partial report is rendered.
type ErrDataShape struct {
	Record string
	Field  string
	Reason string
}

func (e *ErrDataShape) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed record %s: field '%s' %s", e.Record, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record %s: missing field '%s'", e.Record, e.Field)
}

// ErrSettlementAmbiguity indicates the shared summary did not find exactly
// two account holders. Non-fatal: surfaced inside the report.
type ErrSettlementAmbiguity struct {
	Holders []string
}

func (e *ErrSettlementAmbiguity) Error() string {
	return fmt.Sprintf("error: Not 2 account holders. Found [%s]", strings.Join(e.Holders, " "))
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the budgeting API refused the call for rate limiting.
type ErrRateLimited struct {
	Service string
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited by service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
