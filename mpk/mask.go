package mpk

import "github.com/tetratelabs/mpkpool/internal/platform"

// ProtectionMask is a set of protection keys currently permitted on the
// calling thread. It is immutable once constructed: changing what a thread
// may access means writing a new mask with Allow.
type ProtectionMask uint16

// AllowAll permits every key, including those this process hasn't
// allocated. It is more permissive than the kernel default (which only
// allows key 0); that's necessary so the host can reach pages marked with
// any stripe's key from outside instance code, e.g. to copy an image in.
const AllowAll ProtectionMask = 0xFFFF

// AllowNone permits only the kernel's reserved key, key 0.
const AllowNone ProtectionMask = 0

// MaskForKeys builds a mask permitting exactly the given keys.
func MaskForKeys(keys ...ProtectionKey) ProtectionMask {
	var mask ProtectionMask
	for _, k := range keys {
		mask |= 1 << k.id
	}
	return mask
}

// Allow writes the calling thread's PKRU register so that only the keys set
// in mask (plus the kernel's key 0) may be read or written; every other key
// faults with SIGSEGV on access.
//
// This must be called on the thread that is about to run, or has just
// finished running, instance code — PKRU is per-thread CPU state. This
// package only provides the primitive; choosing the call sites belongs to
// the host.
func Allow(mask ProtectionMask) {
	pkru := platform.PKRUDisableAccess
	for i := 0; i < 16; i++ {
		if mask&(1<<uint(i)) != 0 {
			pkru &^= allowBits(i)
		}
	}
	// Key 0 is the kernel's; it must always be left enabled.
	pkru &^= allowBits(0)
	platform.WritePKRU(pkru)
}

// allowBits returns the two PKRU bits (ADn, WDn) that gate key i.
func allowBits(i int) uint32 {
	return 0b11 << uint(i*2)
}
