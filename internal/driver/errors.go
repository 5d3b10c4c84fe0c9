package driver

import (
	"github.com/cockroachdb/errors"

	"github.com/daryltucker/vecbench/internal/model"
)

// ConnectionError wraps err as a connect-time failure.
func ConnectionError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), model.ErrConnection)
}

// CollectionError wraps err as a rejected collection operation.
func CollectionError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), model.ErrCollection)
}

// OperationError wraps err as a failed insert or search.
func OperationError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), model.ErrOperation)
}

// NotConnected is returned by adapters used before Connect.
func NotConnected(backend string) error {
	return errors.Mark(errors.Newf("%s: not connected", backend), model.ErrConnection)
}

// IsClassified reports whether err already carries one of the model error
// classes.
func IsClassified(err error) bool {
	return errors.IsAny(err,
		model.ErrConnection,
		model.ErrCollection,
		model.ErrOperation,
		model.ErrInput,
		model.ErrTimeout,
	)
}
