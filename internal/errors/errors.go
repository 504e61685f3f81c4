package errors

import (
	"errors"
	"fmt"
)

// Common error types for the login engine
var (
	// ErrUnsupported reports a grant the resolved provider cannot perform.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrConfiguration reports an unusable provider config: a missing
	// endpoint, credential or redirect URI.
	ErrConfiguration = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
