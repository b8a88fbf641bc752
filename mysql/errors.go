package mysql

import "errors"

var (
	// ErrDBRequired is returned when a nil *sql.DB is provided.
	ErrDBRequired = errors.New("unlocknotify mysql: db is required")
	// ErrExecutorRequired is returned when enqueue is called with a nil executor.
	ErrExecutorRequired = errors.New("unlocknotify mysql: executor is required")
	// ErrTableNameRequired is returned when a table name is empty.
	ErrTableNameRequired = errors.New("unlocknotify mysql: table name is required")
	// ErrInvalidTableName is returned when a table name has disallowed characters.
	ErrInvalidTableName = errors.New("unlocknotify mysql: invalid table name")
	// ErrSameTable is returned when the outbox and subscription tables have the same name.
	ErrSameTable = errors.New("unlocknotify mysql: outbox and subscription tables must differ")
)
