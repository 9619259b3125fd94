// Package repository holds the MySQL-backed stores.  The sentinel errors
// below let the service layer tell storage outcomes apart without looking
// at driver error codes.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when an insert collides on the primary key.
// Callers generating random identifiers retry with a fresh one.
var ErrDuplicateID = errors.New("duplicate id")

// ErrEmailExists is returned when a user insert or update collides on the
// unique email index.
var ErrEmailExists = errors.New("email already exists")

// ErrRetryable marks failures that are expected to succeed when the whole
// operation is retried: deadlocks and lock wait timeouts.
var ErrRetryable = errors.New("retryable storage failure")

const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == mysqlDuplicateEntry }

// classify wraps lock contention errors with ErrRetryable and returns any
// other error unchanged.
func classify(err error) error {
	switch mysqlCode(err) {
	case mysqlLockWaitTimeout, mysqlDeadlockDetected:
		return errors.Join(ErrRetryable, err)
	}
	return err
}
