//go:build debug_mmheap

package memutils

import "github.com/pkg/errors"

// DebugChecks is true when the module is built with the debug_mmheap build tag
const DebugChecks = true

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mmheap build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugAssert panics with the formatted message if condition is false. This method no-ops unless the
// debug_mmheap build tag is present.
func DebugAssert(condition bool, format string, args ...any) {
	if !condition {
		panic(errors.Errorf(format, args...))
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mmheap build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
