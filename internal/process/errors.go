package process

import "errors"

// Sentinel errors for the process package.
var (
	// ErrRefused may be returned by a Preflight hook to refuse a launch.
	ErrRefused = errors.New("launch refused")

	// ErrEmptyKey is returned when registering a descriptor without a key.
	ErrEmptyKey = errors.New("application key is empty")

	// ErrDuplicateKey is returned when a descriptor key is already registered.
	ErrDuplicateKey = errors.New("application key already registered")

	// ErrUnknownApplication is returned when a key is not in the catalog.
	ErrUnknownApplication = errors.New("unknown application")
)
