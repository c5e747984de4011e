package errs

import "errors"

var (
	ErrInvalidName          = errors.New("invalid file name")
	ErrNotFound             = errors.New("file not found")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrDiscoveryUnavailable = errors.New("discovery unavailable")
)
