//go:build !(linux && amd64)

package platform

import "errors"

// errMPKUnsupported is returned by the pkey_* shims on platforms where MPK
// does not exist. Callers should gate on HasMPK and never reach these.
var errMPKUnsupported = errors.New("memory protection keys are not supported on this platform")

func PkeyAlloc() (int, error) { return 0, errMPKUnsupported }
func PkeyFree(key int) error  { return errMPKUnsupported }
func PkeyMprotect(region []byte, key int) error { return errMPKUnsupported }
