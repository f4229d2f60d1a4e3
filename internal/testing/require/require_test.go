package require

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestCapturePanic(t *testing.T) {
	tests := []struct {
		name        string
		panics      func()
		expectedErr string
	}{
		{name: "doesn't panic", panics: func() {}, expectedErr: ""},
		{name: "panics with error", panics: func() { panic(errors.New("error")) }, expectedErr: "error"},
		{name: "panics with string", panics: func() { panic("crash") }, expectedErr: "crash"},
		{name: "panics with object", panics: func() { panic(struct{}{}) }, expectedErr: "{}"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			captured := CapturePanic(tc.panics)
			if tc.expectedErr == "" {
				if captured != nil {
					t.Fatalf("expected no error, but found %v", captured)
				}
			} else if captured.Error() != tc.expectedErr {
				t.Fatalf("expected %s, but found %s", tc.expectedErr, captured.Error())
			}
		})
	}
}

type testStruct struct {
	name string
}

func TestRequire(t *testing.T) {
	struct1 := &testStruct{"hello"}
	struct2 := &testStruct{"hello"}

	tests := []struct {
		name        string
		require     func(TestingT)
		expectedLog string
	}{
		{name: "Contains passes", require: func(t TestingT) { Contains(t, "hello cat", "cat") }},
		{
			name:        "Contains fails",
			require:     func(t TestingT) { Contains(t, "hello cat", "dog") },
			expectedLog: `expected "hello cat" to contain "dog"`,
		},
		{name: "Equal passes on string", require: func(t TestingT) { Equal(t, "mpkpool", "mpkpool") }},
		{name: "Equal passes on struct", require: func(t TestingT) { Equal(t, struct1, &testStruct{"hello"}) }},
		{
			name:        "Equal fails on nil",
			require:     func(t TestingT) { Equal(t, "mpkpool", nil) },
			expectedLog: `expected "mpkpool", but was nil`,
		},
		{
			name:        "Equal fails on not equal",
			require:     func(t TestingT) { Equal(t, "mpkpool", "walero") },
			expectedLog: `expected "mpkpool", but was "walero"`,
		},
		{name: "NotEqual passes", require: func(t TestingT) { NotEqual(t, uint32(1), uint32(2)) }},
		{
			name:        "NotEqual fails",
			require:     func(t TestingT) { NotEqual(t, "mpkpool", "mpkpool") },
			expectedLog: `expected to not equal "mpkpool"`,
		},
		{name: "Same passes", require: func(t TestingT) { Same(t, struct1, struct1) }},
		{
			name:        "Same fails",
			require:     func(t TestingT) { Same(t, struct1, struct2) },
			expectedLog: "expected &{hello} to point to the same object as &{hello}",
		},
		{name: "NotSame passes", require: func(t TestingT) { NotSame(t, struct1, struct2) }},
		{
			name:        "NotSame fails",
			require:     func(t TestingT) { NotSame(t, struct1, struct1) },
			expectedLog: "expected &{hello} to point to a different object",
		},
		{name: "True passes", require: func(t TestingT) { True(t, true) }},
		{name: "True fails", require: func(t TestingT) { True(t, false) }, expectedLog: "expected true, but was false"},
		{name: "False passes", require: func(t TestingT) { False(t, false) }},
		{name: "Zero passes", require: func(t TestingT) { Zero(t, uint64(0)) }},
		{name: "Zero fails", require: func(t TestingT) { Zero(t, uint64(1)) }, expectedLog: "expected zero, but was 1"},
		{name: "Nil passes", require: func(t TestingT) { Nil(t, nil) }},
		{name: "Nil fails", require: func(t TestingT) { Nil(t, io.EOF) }, expectedLog: "expected nil, but was EOF"},
		{name: "NotNil passes", require: func(t TestingT) { NotNil(t, io.EOF) }},
		{name: "NotNil fails", require: func(t TestingT) { NotNil(t, nil) }, expectedLog: "expected to not be nil"},
		{name: "NoError passes", require: func(t TestingT) { NoError(t, nil) }},
		{name: "NoError fails", require: func(t TestingT) { NoError(t, io.EOF) }, expectedLog: "expected no error, but was EOF"},
		{name: "Error passes", require: func(t TestingT) { Error(t, io.EOF) }},
		{name: "Error fails", require: func(t TestingT) { Error(t, nil) }, expectedLog: "expected an error, but was nil"},
		{name: "EqualError passes", require: func(t TestingT) { EqualError(t, io.EOF, io.EOF.Error()) }},
		{
			name:        "EqualError fails",
			require:     func(t TestingT) { EqualError(t, io.EOF, "crash") },
			expectedLog: `expected error "crash", but was "EOF"`,
		},
		{name: "ErrorIs passes on wrapped", require: func(t TestingT) { ErrorIs(t, fmt.Errorf("cause: %w", io.EOF), io.EOF) }},
		{
			name:        "ErrorIs fails",
			require:     func(t TestingT) { ErrorIs(t, io.EOF, io.ErrUnexpectedEOF) },
			expectedLog: "expected errors.Is(EOF, unexpected EOF), but it wasn't",
		},
		{name: "Len passes", require: func(t TestingT) { Len(t, 3, []int{1, 2, 3}) }},
		{name: "Len fails", require: func(t TestingT) { Len(t, 2, []int{1, 2, 3}) }, expectedLog: "expected length 2, but was 3"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			m := &mockT{t: t}
			tc.require(m)
			m.require(tc.expectedLog)
		})
	}
}

var _ TestingT = &mockT{}

type mockT struct {
	t   *testing.T
	log string
}

func (t *mockT) Fatal(args ...interface{}) {
	if t.log != "" {
		t.t.Fatal("already called Fatal")
	}
	t.log = fmt.Sprint(args...)
}

func (t *mockT) require(expectedLog string) {
	if expectedLog != t.log {
		t.t.Fatalf("expected log=%q, but found %q", expectedLog, t.log)
	}
}
