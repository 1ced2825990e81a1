package media

import (
	"errors"
	"fmt"
)

var (
	// ErrSignerUnavailable is reported when no signer is configured or the
	// signer could not complete a call.
	ErrSignerUnavailable = errors.New("media: signer unavailable")

	// ErrObjectNotFound is returned by signers when Head finds no object.
	ErrObjectNotFound = errors.New("media: object not found")
)

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
