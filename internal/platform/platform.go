package platform

import "os"

var pageSizeValue = os.Getpagesize()

// PageSize returns the OS page size in bytes. Slot sizes in the pool are
// always rounded up to a multiple of this value so that pkey_mprotect (which
// requires page-aligned regions) never fails on alignment grounds.
func PageSize() int {
	return pageSizeValue
}
