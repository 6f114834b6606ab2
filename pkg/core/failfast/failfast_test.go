package failfast

import (
	"errors"
	"strings"
	"testing"
)

func mustPanic(t *testing.T, fn func()) interface{} {
	t.Helper()
	var r interface{}
	func() {
		defer func() { r = recover() }()
		fn()
	}()
	if r == nil {
		t.Fatal("expected panic, got none")
	}
	return r
}

func mustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("expected no panic, got: %v", r)
		}
	}()
	fn()
}

func TestErr(t *testing.T) {
	mustNotPanic(t, func() { Err(nil) })

	sentinel := errors.New("boom")
	r := mustPanic(t, func() { Err(sentinel) })
	err, ok := r.(error)
	if !ok {
		t.Fatalf("expected error panic value, got %T", r)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("panic value should wrap the original error: %v", err)
	}
}

func TestIf(t *testing.T) {
	mustNotPanic(t, func() { If(true, "unused") })

	r := mustPanic(t, func() { If(false, "workers = %d", 0) })
	if !strings.Contains(r.(error).Error(), "workers = 0") {
		t.Errorf("unexpected message: %v", r)
	}
}

func TestNotNil(t *testing.T) {
	var nilPtr *int
	var nilFunc func()
	var nilMap map[string]int

	tests := []struct {
		name  string
		value interface{}
		panic bool
	}{
		{"untyped nil", nil, true},
		{"typed nil pointer", nilPtr, true},
		{"nil func", nilFunc, true},
		{"nil map", nilMap, true},
		{"value", 42, false},
		{"func", func() {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.panic {
				mustPanic(t, func() { NotNil(tt.value, "v") })
			} else {
				mustNotPanic(t, func() { NotNil(tt.value, "v") })
			}
		})
	}
}
