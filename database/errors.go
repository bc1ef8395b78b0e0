// database/errors.go
package database

import "fmt"

// StoreError wraps any failure from the persistence layer. Store failures are
// fatal to the running cycle: the caller aborts rather than guessing at
// partial state.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
