package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrShapeMismatch   = errors.New("shape mismatch")
	ErrMissingSnapshot = errors.New("missing snapshot for audit action")
	ErrInvalidAction   = errors.New("invalid audit action")
	ErrInvalidValue    = errors.New("invalid canonical value")
	ErrSinkClosed      = errors.New("audit sink closed")
)
