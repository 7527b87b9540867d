package ports

import "errors"

// ErrStoreUnavailable marks backend connectivity failures that a caller may
// treat as transient.
var ErrStoreUnavailable = errors.New("backing store unavailable")
