//go:build linux

package platform

import "golang.org/x/sys/unix"

// mapNoReserve skips upfront commit accounting for the reservation: the
// slab is typically many times larger than physical memory, and we expect
// the kernel to back only the pages instances actually touch.
const mapNoReserve = unix.MAP_NORESERVE
