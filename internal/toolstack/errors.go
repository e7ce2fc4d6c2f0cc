package toolstack

import "errors"

// ErrNotFound is the cause of the error Resolve returns for an unknown
// explicit toolstack key. Check it with errors.Is().
var ErrNotFound = errors.New("no toolstack is registered under this key")
