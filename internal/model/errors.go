package model

import (
	"github.com/cockroachdb/errors"
)

// Error classes. Concrete errors are marked with one of these so callers
// can classify them with errors.Is regardless of wrapping.
var (
	// ErrConnection means the backend was unreachable or rejected auth.
	ErrConnection = errors.New("connection error")
	// ErrCollection means a create/delete collection call was rejected.
	ErrCollection = errors.New("collection error")
	// ErrOperation means an insert or search call failed mid-scenario.
	ErrOperation = errors.New("operation error")
	// ErrInput means the caller supplied malformed configuration or data.
	ErrInput = errors.New("input error")
	// ErrTimeout means a driver call exceeded its per-call deadline.
	ErrTimeout = errors.New("timeout")
	// ErrNotFound is returned by adapters for missing collections.
	ErrNotFound = errors.New("not found")
)

// InputErrorf builds an error marked as ErrInput.
func InputErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInput)
}
