package kvcache

import "errors"

var (
	// ErrNotFound reports an operation that requires an existing key. Plain
	// reads signal absence through their ok result instead.
	ErrNotFound = errors.New("key not found")

	// ErrTypeMismatch reports an operation applied to a key holding an
	// incompatible value kind.
	ErrTypeMismatch = errors.New("value kind does not support operation")

	// ErrResourceExhausted reports a write rejected because the entry budget
	// is exceeded and eviction could not free space.
	ErrResourceExhausted = errors.New("entry budget exhausted")

	// ErrInvalidArgument reports malformed input such as a negative TTL.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrClosed        = errors.New("store is closed")
	ErrInvalidConfig = errors.New("invalid configuration")
)
