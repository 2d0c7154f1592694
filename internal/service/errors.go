package service

import "errors"

var (
	// ErrPermissionDenied means the session's role cannot open the view or
	// act on it.
	ErrPermissionDenied = errors.New("not available for this session")
	// ErrNotFound means the complaint is not in the session's list even after
	// a refetch.
	ErrNotFound     = errors.New("complaint not found")
	ErrInvalidInput = errors.New("invalid input")
)
