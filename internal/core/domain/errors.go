package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateSlug       = errors.New("duplicate slug")
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrUnknownField        = errors.New("unknown field")
	ErrInvalidFieldType    = errors.New("invalid field type")
	ErrIdentifierCollision = errors.New("identifier collision")
	ErrTypeCast            = errors.New("type cast failed")
	ErrNotFound            = errors.New("not found")
)

// TransactionAbortedError is returned by mutating operations whose transaction was rolled
// back. Err holds the failure that forced the rollback.
type TransactionAbortedError struct {
	Op  string
	Err error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
}

func (e *TransactionAbortedError) Unwrap() error {
	return e.Err
}

// Aborted wraps err in a *TransactionAbortedError unless it already is one.
func Aborted(op string, err error) error {
	if err == nil {
		return nil
	}
	var aborted *TransactionAbortedError
	if errors.As(err, &aborted) {
		return err
	}
	return &TransactionAbortedError{Op: op, Err: err}
}

// DefinitionViolationError is returned when a collection definition document does not
// conform to the request schema. Errors contains one message per failing constraint.
type DefinitionViolationError struct {
	Errors []string
}

func (e *DefinitionViolationError) Error() string {
	return fmt.Sprintf("definition validation failed: %s", strings.Join(e.Errors, "; "))
}
