//go:build linux && amd64

package platform

// readPKRU and writePKRU are implemented in pkru_amd64.s.
func readPKRU() uint32
func writePKRU(pkru uint32)
