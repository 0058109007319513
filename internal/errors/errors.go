// Package errors provides custom error types for the notifier pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors
var (
	ErrConfigInvalid  = errors.New("invalid configuration")
	ErrSecretNotFound = errors.New("secret not found")
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrRemoteFetch    = errors.New("remote fetch failed")
	ErrDetailFetch    = errors.New("detail fetch failed")
)

// RemoteFetchError is returned when the SISU list call fails. It aborts the run.
type RemoteFetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteFetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("remote fetch error [%s]: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote fetch error [%s]: status %d", e.Endpoint, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("remote fetch error [%s]: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("remote fetch error [%s]", e.Endpoint)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRemoteFetch) hold for every RemoteFetchError.
func (e *RemoteFetchError) Is(target error) bool {
	return target == ErrRemoteFetch
}

// NewRemoteFetchError creates a new RemoteFetchError.
func NewRemoteFetchError(endpoint string, status int, body string, err error) *RemoteFetchError {
	return &RemoteFetchError{
		Endpoint:   endpoint,
		StatusCode: status,
		Body:       strings.TrimSpace(body),
		Err:        err,
	}
}

// DetailFetchError describes a failed per-client detail call. The affected
// record is dropped and the run continues.
type DetailFetchError struct {
	ClientID   int64
	StatusCode int
	Err        error
}

func (e *DetailFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detail fetch error [client %d]: %v", e.ClientID, e.Err)
	}
	return fmt.Sprintf("detail fetch error [client %d]: status %d", e.ClientID, e.StatusCode)
}

func (e *DetailFetchError) Unwrap() error {
	return e.Err
}

func (e *DetailFetchError) Is(target error) bool {
	return target == ErrDetailFetch
}

// NewDetailFetchError creates a new DetailFetchError.
func NewDetailFetchError(clientID int64, status int, err error) *DetailFetchError {
	return &DetailFetchError{
		ClientID:   clientID,
		StatusCode: status,
		Err:        err,
	}
}

// DeliveryError represents a configured channel that failed to send.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error [%s]: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// NewDeliveryError creates a new DeliveryError.
func NewDeliveryError(channel string, err error) *DeliveryError {
	return &DeliveryError{
		Channel: channel,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
