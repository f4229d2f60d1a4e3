// Package require includes test assertions that fail via TestingT, avoiding
// a dependency on a third-party test framework.
package require

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"syscall"
)

// TestingT is implemented by *testing.T. It is an interface so that mockT in
// this package's tests can capture failures without aborting the test binary.
type TestingT interface {
	Fatal(args ...interface{})
}

// CapturePanic invokes fn and returns the recovered panic value as an error,
// or nil if fn didn't panic.
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	fn()
	return
}

func fail(t TestingT, msg string, formatWithArgs ...interface{}) {
	if len(formatWithArgs) > 0 {
		msg = msg + ": " + sprint(formatWithArgs...)
	}
	t.Fatal(msg)
}

// sprint joins formatWithArgs the way callers of this package pass them: a
// bare value, a plain message, or a printf-style format plus its arguments.
func sprint(args ...interface{}) string {
	if len(args) == 1 {
		return fmt.Sprint(args[0])
	}
	if format, ok := args[0].(string); ok && strings.Contains(format, "%") {
		return fmt.Sprintf(format, args[1:]...)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

// format renders v the way Equal/NotEqual messages quote their operands.
func format(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("%#v", x)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Struct {
			return fmt.Sprintf("%#v", v)
		}
		return fmt.Sprintf("%v", v)
	}
}

func deepEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == actual
	}
	if b1, ok := expected.([]byte); ok {
		if b2, ok := actual.([]byte); ok {
			return bytes.Equal(b1, b2)
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

// Contains fails unless s contains substr.
func Contains(t TestingT, s, substr string, formatWithArgs ...interface{}) {
	if !strings.Contains(s, substr) {
		args := append([]interface{}{fmt.Sprintf("expected %q to contain %q", s, substr)}, formatWithArgs...)
		fail(t, sprint(args...))
	}
}

// Equal fails unless expected and actual are deeply equal and of the same type.
func Equal(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if actual == nil && expected != nil {
		fail(t, fmt.Sprintf("expected %s, but was nil", format(expected)), formatWithArgs...)
		return
	}
	if expected != nil && actual != nil && reflect.TypeOf(expected) != reflect.TypeOf(actual) {
		fail(t, fmt.Sprintf("expected %s, but was %s(%v)", format(expected), reflect.TypeOf(actual), actual), formatWithArgs...)
		return
	}
	if !deepEqual(expected, actual) {
		e, a := format(expected), format(actual)
		if strings.Contains(e, "\n") || strings.Contains(a, "\n") || len(e)+len(a) > 80 {
			fail(t, fmt.Sprintf("unexpected value\nexpected:\n\t%s\nwas:\n\t%s\n", e, a), formatWithArgs...)
		} else {
			fail(t, fmt.Sprintf("expected %s, but was %s", e, a), formatWithArgs...)
		}
		return
	}
}

// NotEqual fails if expected and actual are deeply equal.
func NotEqual(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if deepEqual(expected, actual) {
		fail(t, fmt.Sprintf("expected to not equal %s", format(expected)), formatWithArgs...)
	}
}

// Same fails unless expected and actual point to the same object.
func Same(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if reflect.TypeOf(expected) != reflect.TypeOf(actual) || !sameObj(expected, actual) {
		fail(t, fmt.Sprintf("expected %v to point to the same object as %v", actual, expected), formatWithArgs...)
	}
}

// NotSame fails if expected and actual point to the same object.
func NotSame(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if reflect.TypeOf(expected) == reflect.TypeOf(actual) && sameObj(expected, actual) {
		fail(t, fmt.Sprintf("expected %v to point to a different object", expected), formatWithArgs...)
	}
}

func sameObj(a, b interface{}) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Ptr || vb.Kind() != reflect.Ptr {
		return false
	}
	return va.Pointer() == vb.Pointer()
}

// True fails unless b is true.
func True(t TestingT, b bool, formatWithArgs ...interface{}) {
	if !b {
		fail(t, "expected true, but was false", formatWithArgs...)
	}
}

// False fails unless b is false.
func False(t TestingT, b bool, formatWithArgs ...interface{}) {
	if b {
		fail(t, "expected false, but was true", formatWithArgs...)
	}
}

// Zero fails unless v is the zero value for its type.
func Zero(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if !reflect.ValueOf(v).IsZero() {
		fail(t, fmt.Sprintf("expected zero, but was %v", v), formatWithArgs...)
	}
}

// Nil fails unless v is nil.
func Nil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if !isNil(v) {
		fail(t, fmt.Sprintf("expected nil, but was %v", v), formatWithArgs...)
	}
}

// NotNil fails if v is nil.
func NotNil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if isNil(v) {
		fail(t, "expected to not be nil", formatWithArgs...)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

// NoError fails unless err is nil.
func NoError(t TestingT, err error, formatWithArgs ...interface{}) {
	if err != nil {
		fail(t, fmt.Sprintf("expected no error, but was %v", err), formatWithArgs...)
	}
}

// Error fails unless err is non-nil.
func Error(t TestingT, err error, formatWithArgs ...interface{}) {
	if err == nil {
		fail(t, "expected an error, but was nil", formatWithArgs...)
	}
}

// EqualError fails unless err's message equals msg.
func EqualError(t TestingT, err error, msg string, formatWithArgs ...interface{}) {
	if err == nil {
		fail(t, "expected an error, but was nil", formatWithArgs...)
		return
	}
	if err.Error() != msg {
		fail(t, fmt.Sprintf("expected error %q, but was %q", msg, err.Error()), formatWithArgs...)
	}
}

// ErrorIs fails unless errors.Is(err, target).
func ErrorIs(t TestingT, err, target error, formatWithArgs ...interface{}) {
	if !errors.Is(err, target) {
		fail(t, fmt.Sprintf("expected errors.Is(%v, %v), but it wasn't", err, target), formatWithArgs...)
	}
}

// EqualErrno fails unless actual is a syscall.Errno equal to expected.
func EqualErrno(t TestingT, expected syscall.Errno, actual error, formatWithArgs ...interface{}) {
	if actual == nil {
		fail(t, "expected a syscall.Errno, but was nil", formatWithArgs...)
		return
	}
	errno, ok := actual.(syscall.Errno)
	if !ok {
		fail(t, fmt.Sprintf("expected %v to be a syscall.Errno", actual), formatWithArgs...)
		return
	}
	if errno != expected {
		fail(t, fmt.Sprintf("expected Errno %#x(%s), but was %#x(%s)", uintptr(expected), expected, uintptr(errno), errno), formatWithArgs...)
	}
}

// Len fails unless v has the given length.
func Len(t TestingT, expected int, v interface{}, formatWithArgs ...interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Len() != expected {
		fail(t, fmt.Sprintf("expected length %d, but was %d", expected, rv.Len()), formatWithArgs...)
	}
}
