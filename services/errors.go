package services

import "errors"

// Common errors
var (
	ErrBlockNotFound     = errors.New("block not found")
	ErrPageNotFound      = errors.New("page not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrOperationLocked   = errors.New("operation locked")
	ErrMoveFailed        = errors.New("move failed")
	ErrBackingStore      = errors.New("backing store error")
	ErrNotSubscribed     = errors.New("not subscribed")
)
