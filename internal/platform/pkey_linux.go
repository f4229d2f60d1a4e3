//go:build linux && amd64

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PkeyAlloc asks the kernel for a new protection key (see pkey_alloc(2)). The
// flags argument is reserved by the kernel and must be 0.
func PkeyAlloc() (int, error) {
	key, err := unix.PkeyAlloc(0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate pkey: %w", err)
	}
	return key, nil
}

// PkeyFree releases a protection key back to the kernel (see pkey_free(2)).
func PkeyFree(key int) error {
	if err := unix.PkeyFree(key); err != nil {
		return fmt.Errorf("failed to free pkey %d: %w", key, err)
	}
	return nil
}

// PkeyMprotect marks region as readable and writable only when key is
// enabled in the calling thread's PKRU register (see pkey_mprotect(2)).
// region must be page-aligned.
func PkeyMprotect(region []byte, key int) error {
	if len(region) == 0 {
		return nil
	}
	prot := unix.PROT_READ | unix.PROT_WRITE
	if err := unix.PkeyMprotect(region, prot, key); err != nil {
		return fmt.Errorf("failed to mark region with pkey (addr = %#x, len = %d, prot = %#b): %w",
			addrOf(region), len(region), prot, err)
	}
	return nil
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
