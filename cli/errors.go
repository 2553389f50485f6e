package cli

import (
	"errors"
	"fmt"

	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/dispatch"
)

// Process exit codes.
const (
	ExitSuccess  = 0 // Success
	ExitGeneral  = 1 // General/unknown error
	ExitConfig   = 2 // Invalid YAML, invalid config values
	ExitDatabase = 3 // Database or redis unavailable, corrupt or locked
	ExitPolicy   = 4 // Policy document rejected by the compiler
	ExitPlatform = 5 // Platform bridge unreachable or lost
)

// ExitCoder is an interface for errors that carry a custom exit code and message.
type ExitCoder interface {
	ExitCode() int
	Message() string
}

// cliError is a typed error that carries an exit code.
type cliError struct {
	code    int
	message string
	err     error
}

// NewCLIError creates a new cliError with the given code and message.
func NewCLIError(code int, message string) *cliError {
	return &cliError{
		code:    code,
		message: message,
	}
}

// WrapError creates a new cliError wrapping an underlying error.
func WrapError(code int, message string, err error) *cliError {
	return &cliError{
		code:    code,
		message: message,
		err:     err,
	}
}

// Error implements the error interface.
func (e *cliError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// ExitCode returns the exit code for this error.
func (e *cliError) ExitCode() int {
	return e.code
}

// Message returns the formatted message for display.
func (e *cliError) Message() string {
	return fmt.Sprintf("Error: %s\n", e.Error())
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *cliError) Unwrap() error {
	return e.err
}

// ErrConfig creates a configuration error.
func ErrConfig(message string, err error) *cliError {
	return WrapError(ExitConfig, message, err)
}

// ErrDatabase creates a database error.
func ErrDatabase(message string, err error) *cliError {
	return WrapError(ExitDatabase, message, err)
}

// ErrPolicy creates a policy error. Compiler errors keep their line number
// in the message.
func ErrPolicy(message string, err error) *cliError {
	return WrapError(ExitPolicy, message, err)
}

// ErrPlatform creates a platform connection error.
func ErrPlatform(message string, err error) *cliError {
	return WrapError(ExitPlatform, message, err)
}

// ExitCodeFor maps an error returned by a command to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if _, ok := gatekeeper.AsConfigError(err); ok {
		return ExitPolicy
	}
	if errors.Is(err, dispatch.ErrPlatformUnavailable) {
		return ExitPlatform
	}

	return ExitGeneral
}
