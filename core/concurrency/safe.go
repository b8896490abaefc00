// File: core/concurrency/safe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"
	"runtime/debug"
)

// PanicError carries a recovered panic value and the stack it was raised on.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverTo must be deferred directly. It stores a recovered panic in *err.
func RecoverTo(err *error) {
	if r := recover(); r != nil {
		*err = &PanicError{Value: r, Stack: debug.Stack()}
	}
}

// SafeCall runs fn and converts a panic into a *PanicError.
func SafeCall(fn func() error) (err error) {
	defer RecoverTo(&err)
	return fn()
}
