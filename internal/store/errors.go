package store

import "errors"

var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrStoreClosed   = errors.New("store is closed")
	ErrMissingDSN    = errors.New("postgres dsn is required")
	ErrNotAnObject   = errors.New("path crosses a non-object value")
	ErrWriteTimeout  = errors.New("write operation timeout")
)
