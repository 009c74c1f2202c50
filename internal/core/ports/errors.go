package ports

import "errors"

// ErrLockTimeout is wrapped by storage adapters when a row lock could not
// be acquired within the configured bound.
var ErrLockTimeout = errors.New("lock wait timeout")
