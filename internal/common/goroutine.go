package common

import (
	"fmt"
	"runtime"
)

// PanicError carries a recovered panic value and the stack of the goroutine
// that panicked.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// CapturePanic runs fn and converts a panic into a *PanicError.
//
// Example:
//
//	err := common.CapturePanic(func() error {
//	    return step(ctx)
//	})
func CapturePanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &PanicError{Value: r, Stack: string(buf[:n])}
		}
	}()
	return fn()
}
