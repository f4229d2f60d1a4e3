//go:build !(linux && amd64)

package platform

func readPKRU() uint32    { return PKRUAllowAccess }
func writePKRU(_ uint32) {}
