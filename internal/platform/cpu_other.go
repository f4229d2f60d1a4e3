//go:build !(linux && amd64)

package platform

func hasMPK() bool { return false }
