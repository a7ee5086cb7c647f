// internal/draft/errors.go
package draft

import (
	"errors"
	"fmt"
)

// Precondition and coordination errors
var (
	ErrRecordExists   = errors.New("record already exists in working copy")
	ErrRecordNotFound = errors.New("record not found in working copy")
	ErrSaveInProgress = errors.New("a save is already in progress")
	ErrStaleResponse  = errors.New("response superseded by a newer request")
)

// TransportError wraps a failure of the external fetch/save collaborator.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
