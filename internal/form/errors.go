// internal/form/errors.go
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrConfiguration is matched by every *ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a malformed table schema. It is fatal to the
// view being compiled, not to the process.
type ConfigurationError struct {
	Table  string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in table '%s', field '%s': %s", e.Table, e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error in table '%s': %s", e.Table, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ErrUpload is matched by every *UploadError.
var ErrUpload = errors.New("upload rejected")

// UploadError is the diagnostic for a rejected file selection.
type UploadError struct {
	Field  string
	Reason string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload rejected for field '%s': %s", e.Field, e.Reason)
}

func (e *UploadError) Unwrap() error {
	return ErrUpload
}

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError carries the per-field messages of a rejected record.
type ValidationError struct {
	Table  string
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Errors[name])
	}
	return fmt.Sprintf("validation failed for table '%s' (%s)", e.Table, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validation messages reported per field
const (
	MsgRequired    = "required"
	MsgNotANumber  = "must be a number"
	MsgNotText     = "must be text"
	MsgNotAFile    = "must be a file"
	msgMaxLengthFm = "must be at most %d characters"
)

// MaxLengthMessage is the message for a value longer than max characters.
func MaxLengthMessage(max int) string {
	return fmt.Sprintf(msgMaxLengthFm, max)
}
