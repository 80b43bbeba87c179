package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("missing api_key")
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrUnauthorized  = errors.New("unauthorized access")

	ErrInvalidInput    = errors.New("invalid input data")
	ErrMissingRequired = errors.New("missing or incorrect required parameters")

	ErrDeviceNotFound = errors.New("device not found")
	ErrStoreFailure   = errors.New("store operation failed")
	ErrQueueFull      = errors.New("notification queue is full")
	ErrShuttingDown   = errors.New("service is shutting down")
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StoreError wraps a persistence failure with the operation that produced it.
// It matches ErrStoreFailure under errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
