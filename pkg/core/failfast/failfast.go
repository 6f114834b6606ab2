// Package failfast turns programmer errors into immediate panics.
// Use it for wiring mistakes (nil handlers, nil submitters), never for
// conditions a caller can recover from.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics with err and the current stack if err is not nil
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics with the formatted message unless condition holds
func If(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+format, args...))
	}
}

// NotNil panics if v is nil, including typed nil pointers, funcs, maps,
// slices, channels and interfaces
func NotNil(v interface{}, name string) {
	if isNil(v) {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
