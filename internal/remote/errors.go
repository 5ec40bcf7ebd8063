package remote

import (
	"errors"
	"fmt"
)

// ErrUnknownTable is returned when a caller names a table outside the schema.
var ErrUnknownTable = errors.New("unknown remote table")

// PermissionError marks a remote rejection caused by access policy rather
// than a transient fault. The full-mirror upload surfaces this case
// separately because the fix is "check your access policy", not "try again".
type PermissionError struct {
	Table string
	Op    string
	Err   error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("remote denied %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// IsPermissionDenied reports whether err (anywhere in its chain) is a remote
// access-policy rejection.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
