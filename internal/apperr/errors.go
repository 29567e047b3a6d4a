package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidDocument = errors.New("invalid document")
	ErrRemoteDisabled  = errors.New("remote store disabled")
)
