package gatekeeper

import (
	"errors"
	"fmt"
)

// ConfigErrorCode is the machine readable code of a configuration error.
type ConfigErrorCode string

const (
	// CodeUnknownCheck means a policy names a check that is not registered.
	CodeUnknownCheck ConfigErrorCode = "UNKNOWN_CHECK"
	// CodeMalformedDocument means the document is not a list of well formed entries.
	CodeMalformedDocument ConfigErrorCode = "MALFORMED_DOCUMENT"
)

var (
	// ErrUnknownCheck matches configuration errors with CodeUnknownCheck.
	ErrUnknownCheck = errors.New("unknown check")
	// ErrMalformedDocument matches configuration errors with CodeMalformedDocument.
	ErrMalformedDocument = errors.New("malformed policy document")
)

// ConfigError is returned when a policy document is rejected.
// No part of a rejected document is ever installed.
type ConfigError struct {
	Code ConfigErrorCode
	// Key is the offending check key for CodeUnknownCheck.
	Key string
	// Line is the 1-based document line, 0 when unknown.
	Line int
	// Detail describes what is wrong.
	Detail string
}

func newUnknownCheckError(key string, line int) *ConfigError {
	return &ConfigError{
		Code:   CodeUnknownCheck,
		Key:    key,
		Line:   line,
		Detail: fmt.Sprintf("unknown check %q", key),
	}
}

func newMalformedError(line int, format string, args ...any) *ConfigError {
	return &ConfigError{
		Code:   CodeMalformedDocument,
		Line:   line,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid policy (line %d): %s", e.Line, e.Detail)
	}
	return fmt.Sprintf("invalid policy: %s", e.Detail)
}

// Is supports errors.Is against ErrUnknownCheck and ErrMalformedDocument.
func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrUnknownCheck:
		return e.Code == CodeUnknownCheck
	case ErrMalformedDocument:
		return e.Code == CodeMalformedDocument
	}
	return false
}

// AsConfigError extracts a *ConfigError from an error chain.
func AsConfigError(err error) (*ConfigError, bool) {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr, true
	}
	return nil, false
}
