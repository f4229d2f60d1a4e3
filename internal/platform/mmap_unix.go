//go:build unix

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap is a single anonymous virtual memory reservation that backs the
// entire pool slab. It is created once, fully PROT_NONE, and later carved
// into per-slot regions via SliceMut and per-stripe calls to PkeyMprotect.
type Mmap struct {
	data []byte
}

// AccessibleReserved reserves a mapping of total bytes, of which the first
// accessible bytes are mapped PROT_READ|PROT_WRITE and the remainder is
// PROT_NONE. The pool always requests accessible=0: every slot's
// protection is established explicitly afterward.
func AccessibleReserved(accessible, total int) (*Mmap, error) {
	if total == 0 {
		return &Mmap{}, nil
	}
	prot := unix.PROT_NONE
	data, err := unix.Mmap(-1, 0, total, prot, unix.MAP_PRIVATE|unix.MAP_ANON|mapNoReserve)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory pool mapping of %d bytes: %w", total, err)
	}
	m := &Mmap{data: data}
	if accessible > 0 {
		if err := unix.Mprotect(data[:accessible], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			_ = unix.Munmap(data)
			return nil, fmt.Errorf("failed to make %d bytes accessible: %w", accessible, err)
		}
	}
	return m, nil
}

// Len returns the total number of bytes reserved.
func (m *Mmap) Len() int {
	return len(m.data)
}

// AsPtr returns the base address of the reservation.
func (m *Mmap) AsPtr() uintptr {
	if len(m.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.data[0]))
}

// SliceMut returns the byte range [lo, hi) of the reservation. The caller is
// responsible for ensuring the range has been made accessible first.
func (m *Mmap) SliceMut(lo, hi int) []byte {
	return m.data[lo:hi]
}

// Close releases the reservation back to the kernel. A second call finds the
// reservation already released and returns nil.
func (m *Mmap) Close() error {
	if len(m.data) == 0 {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("failed to unmap memory pool slab: %w", err)
	}
	return nil
}

// Mprotect changes region's protection to PROT_READ|PROT_WRITE (writable)
// or PROT_NONE. region must be a page-aligned sub-slice of a reservation
// made by AccessibleReserved.
func Mprotect(region []byte, writable bool) error {
	if len(region) == 0 {
		return nil
	}
	prot := unix.PROT_NONE
	if writable {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	if err := unix.Mprotect(region, prot); err != nil {
		return fmt.Errorf("failed to mprotect %d bytes: %w", len(region), err)
	}
	return nil
}

// DecommitRange releases region's physical backing to the kernel while
// keeping the mapping itself intact and accessible; a subsequent read
// observes zero bytes. On Linux this is MADV_DONTNEED.
func DecommitRange(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Madvise(region, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("failed to decommit %d bytes: %w", len(region), err)
	}
	return nil
}
