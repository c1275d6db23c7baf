package apperrors

import "errors"

var (
	ErrMultipleStatements  = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	ErrCompilationFailed   = errors.New("backend compilation failed")
	ErrRegistryPersistence = errors.New("result registry persistence failed")
	ErrNotFound            = errors.New("not found")
	ErrBackendUnavailable  = errors.New("backend command not available")
)
