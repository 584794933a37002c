package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrInvalidReport = errors.New("invalid report")

// StoreQueryError is a failed nearby-fetch or duplicate-check query.
type StoreQueryError struct {
	Op  string
	Err error
}

func (e *StoreQueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Op, e.Err)
}

func (e *StoreQueryError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failed alert insert.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist outbreak alert: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
