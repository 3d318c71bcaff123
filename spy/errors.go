package spy

import (
	"errors"
	"fmt"
)

// NotFoundError is returned by Wrap when the named operation does not exist
// on the target definition.
type NotFoundError struct {
	Definition string
	Operation  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("operation %q not found on definition %s", e.Operation, e.Definition)
}

// DoubleWrapError is returned by Wrap when the (definition, operation) pair
// is already wrapped and has not been restored. Allowing a second wrap would
// corrupt call accounting, so it fails loudly instead.
type DoubleWrapError struct {
	Definition string
	Operation  string
}

// Error implements the error interface.
func (e *DoubleWrapError) Error() string {
	return fmt.Sprintf("operation %q on definition %s is already wrapped (restore it first)", e.Operation, e.Definition)
}

// IsNotFound reports whether err is a NotFoundError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDoubleWrap reports whether err is a DoubleWrapError.
// Uses errors.As to handle wrapped errors.
func IsDoubleWrap(err error) bool {
	var dw *DoubleWrapError
	return errors.As(err, &dw)
}
