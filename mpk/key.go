// Package mpk implements x86 Memory Protection Keys (MPK) support for use in
// striped memory pool allocation.
//
// MPK is a Linux/amd64 feature ("pku") that adds three syscalls
// (pkey_alloc, pkey_free, pkey_mprotect) and a per-thread PKRU control
// register. ProtectionKey gives a pooling allocator an abstraction over a
// kernel-allocated key; ProtectionMask gives a store an abstraction over
// which keys the current thread may access.
package mpk

import (
	"fmt"

	"github.com/tetratelabs/mpkpool/internal/platform"
)

// ProtectionKey is a single kernel-allocated protection key. The zero value
// is not a valid key the kernel ever hands out (key 0 is reserved for the
// kernel itself); code that needs "no key" uses a pointer or a slice of
// length zero rather than the zero value of this type.
type ProtectionKey struct {
	id uint32
}

// IsSupported reports whether MPK is usable on this process: Linux/amd64
// with the CPUID `pku` bit set. The CR4.PKE control bit can't be checked
// from user space, so this is necessary, not sufficient — the first
// PkeyAlloc syscall is the actual proof.
func IsSupported() bool {
	return platform.HasMPK()
}

// newProtectionKey asks the kernel for a new key. It only succeeds when
// IsSupported reports true.
func newProtectionKey() (ProtectionKey, error) {
	if !IsSupported() {
		return ProtectionKey{}, fmt.Errorf("mpk is not supported on this system")
	}
	id, err := platform.PkeyAlloc()
	if err != nil {
		return ProtectionKey{}, err
	}
	if id == 0 {
		// The kernel reserves key 0 for itself; it must never be handed to
		// a caller of pkey_alloc.
		return ProtectionKey{}, fmt.Errorf("kernel allocated reserved pkey 0")
	}
	return ProtectionKey{id: uint32(id)}, nil
}

// AsStripe returns the 0-based stripe index this key corresponds to,
// determined by the assumption that the kernel reserves key 0 for itself.
func (k ProtectionKey) AsStripe() int {
	if k.id == 0 {
		return 0
	}
	return int(k.id) - 1
}

// Mark colors region so that only threads with this key enabled in their
// PKRU register may read or write it. region must be page-aligned.
func (k ProtectionKey) Mark(region []byte) error {
	return platform.PkeyMprotect(region, int(k.id))
}

// free returns the key to the kernel. The registry never calls this: keys
// are leaked deliberately for the life of the process (see registry.go).
func (k ProtectionKey) free() error {
	return platform.PkeyFree(int(k.id))
}

// String renders the key for debugging; it is not part of the wire/API
// contract.
func (k ProtectionKey) String() string {
	return fmt.Sprintf("pkey(%d)", k.id)
}
