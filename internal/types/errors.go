// Package types provides shared type definitions used across the application.
package types

import (
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that map to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// ResolutionError indicates a media reference could not be turned into
// local bytes (network failure, missing file, invalid URI). Surfaced to the
// caller as a definite "no attachment" result.
type ResolutionError struct {
	Reference string
	Err       error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve media reference %q: %v", e.Reference, e.Err)
	}
	return fmt.Sprintf("cannot resolve media reference %q", e.Reference)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// StatusCode implements HTTPError.
func (e *ResolutionError) StatusCode() int { return http.StatusUnprocessableEntity }

// NewResolutionError creates a ResolutionError for the given reference.
func NewResolutionError(reference string, err error) *ResolutionError {
	return &ResolutionError{Reference: reference, Err: err}
}

// DecodeError indicates bytes did not match the structural requirements of
// their classified container format. Never surfaced to API callers: every
// decode failure is absorbed by a fallback tier in the normalizer.
type DecodeError struct {
	Format string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s data: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("invalid %s data", e.Format)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode implements HTTPError.
func (e *DecodeError) StatusCode() int { return http.StatusUnprocessableEntity }

// NewDecodeError creates a DecodeError for the given container format.
func NewDecodeError(format string, err error) *DecodeError {
	return &DecodeError{Format: format, Err: err}
}

// EncodeError indicates writing the output container or the final cache
// file failed (disk full, permission denied). The only error class that is
// fatal to a normalization call, since no fallback remains once writing
// itself fails.
type EncodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cannot write normalized media %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot write normalized media: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// StatusCode implements HTTPError.
func (e *EncodeError) StatusCode() int { return http.StatusInternalServerError }

// NewEncodeError creates an EncodeError for the given output path.
func NewEncodeError(path string, err error) *EncodeError {
	return &EncodeError{Path: path, Err: err}
}

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// StatusCode implements HTTPError.
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// NewNotFoundError creates a NotFoundError for the specified resource type and ID.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates input validation failed.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// StatusCode implements HTTPError.
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// NewValidationError creates a ValidationError for the specified field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError indicates a resource conflict (e.g., operation already running).
type ConflictError struct {
	Resource string
	Message  string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements HTTPError.
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// NewConflictError creates a ConflictError for the specified resource.
func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{Resource: resource, Message: message}
}

// ConfigError indicates invalid configuration.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s - %s", e.Field, e.Message)
}

// StatusCode implements HTTPError.
func (e *ConfigError) StatusCode() int { return http.StatusInternalServerError }

// NewConfigError creates a ConfigError for the specified configuration field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}
