// Package platform isolates the OS- and architecture-specific code needed to
// reserve virtual memory, change its protection, and drive x86 Memory
// Protection Keys (MPK). Everything above this package works only with the
// types declared here, never with syscall or CPUID directly.
package platform

// HasMPK reports whether the current process can use protection keys: a
// Linux/amd64 host whose CPU advertises the `pku` CPUID feature. We cannot
// check CR4.PKE from user space, so this is necessary but not sufficient;
// the first call to PkeyAlloc is the actual proof.
func HasMPK() bool {
	return hasMPK()
}
