package platform

// PKRUAllowAccess is a PKRU value that permits reads and writes to pages
// marked with any protection key.
const PKRUAllowAccess = uint32(0)

// PKRUDisableAccess is a PKRU value that forbids reads and writes to pages
// marked with any protection key other than key 0.
const PKRUDisableAccess = ^uint32(0)

// ReadPKRU reads the calling thread's x86 PKRU register. On platforms
// without MPK support this always returns PKRUAllowAccess.
func ReadPKRU() uint32 {
	return readPKRU()
}

// WritePKRU writes the calling thread's x86 PKRU register. On platforms
// without MPK support this is a no-op.
func WritePKRU(pkru uint32) {
	writePKRU(pkru)
}
