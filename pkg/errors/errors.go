package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig             = errors.New("invalid configuration")
	ErrProtocol           = errors.New("protocol violation")
	ErrFrameTooLarge      = errors.New("frame exceeds maximum size")
	ErrWorkerLost         = errors.New("worker connection lost")
	ErrWorkerTimeout      = errors.New("worker did not respond in time")
	ErrEmptyDocument      = errors.New("document has no tokens")
	ErrDocumentUnreadable = errors.New("document unreadable")
)

// Exit statuses used by the command-line entrypoints.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitProtocol = 3
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Configf is shorthand for a configuration error that aborts startup.
func Configf(format string, args ...any) *AppError {
	return Newf(ErrConfig, ExitConfig, format, args...)
}

// Protocolf is shorthand for a protocol violation.
func Protocolf(format string, args ...any) *AppError {
	return Newf(ErrProtocol, ExitProtocol, format, args...)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrProtocol), errors.Is(err, ErrFrameTooLarge):
		return ExitProtocol
	default:
		return ExitFailure
	}
}

