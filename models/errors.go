package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrRateLimited       = errors.New("rate limited")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidTarget     = errors.New("invalid report target")
	ErrThreadLocked      = errors.New("thread is locked")
	ErrInvalidInput      = errors.New("invalid input")
)

// ErrInvalidOrderKey is a listing parameter error, so it also matches
// ErrInvalidFilter under errors.Is.
var ErrInvalidOrderKey error = invalidOrderKey{}

type invalidOrderKey struct{}

func (invalidOrderKey) Error() string { return "invalid order key" }

func (invalidOrderKey) Is(target error) bool { return target == ErrInvalidFilter }
