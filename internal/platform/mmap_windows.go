//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Mmap mirrors the unix implementation using VirtualAlloc/VirtualProtect.
// MPK itself is Linux/amd64-only (see HasMPK), so on Windows the pool always
// runs with a single stripe; this type exists so the slab reservation still
// works uniformly across platforms.
type Mmap struct {
	addr uintptr
	size int
}

func AccessibleReserved(accessible, total int) (*Mmap, error) {
	if total == 0 {
		return &Mmap{}, nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(total), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory pool mapping of %d bytes: %w", total, err)
	}
	m := &Mmap{addr: addr, size: total}
	if accessible > 0 {
		var old uint32
		if err := windows.VirtualProtect(addr, uintptr(accessible), windows.PAGE_READWRITE, &old); err != nil {
			_, _ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
			return nil, fmt.Errorf("failed to make %d bytes accessible: %w", accessible, err)
		}
	}
	return m, nil
}

func (m *Mmap) Len() int { return m.size }

func (m *Mmap) AsPtr() uintptr { return m.addr }

func (m *Mmap) SliceMut(lo, hi int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m.addr+uintptr(lo))), hi-lo)
}

func (m *Mmap) Close() error {
	if m.addr == 0 {
		return nil
	}
	addr := m.addr
	m.addr = 0
	if _, err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("failed to unmap memory pool slab: %w", err)
	}
	return nil
}

// Mprotect changes region's protection to PAGE_READWRITE (writable) or
// PAGE_NOACCESS.
func Mprotect(region []byte, writable bool) error {
	if len(region) == 0 {
		return nil
	}
	prot := uint32(windows.PAGE_NOACCESS)
	if writable {
		prot = windows.PAGE_READWRITE
	}
	var old uint32
	addr := uintptr(unsafe.Pointer(&region[0]))
	if err := windows.VirtualProtect(addr, uintptr(len(region)), prot, &old); err != nil {
		return fmt.Errorf("failed to mprotect %d bytes: %w", len(region), err)
	}
	return nil
}

// DecommitRange re-commits region with VirtualAlloc(MEM_COMMIT) as
// PAGE_READWRITE. It does not release the physical backing, and pages that
// were already committed keep their contents, so unlike the unix version a
// subsequent read does not necessarily observe zero bytes.
func DecommitRange(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&region[0]))
	if _, err := windows.VirtualAlloc(addr, uintptr(len(region)), windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("failed to decommit %d bytes: %w", len(region), err)
	}
	return nil
}
