package mpk

import "sync"

// keysOnce guards the process-wide key registry. Protection keys are a
// per-process kernel resource; this package intentionally never frees them
// (see ProtectionKey.free), so the registry's result is immortal for the
// life of the process. There is deliberately no reset hook: a test that
// wants a fresh registry must fork a subprocess.
var (
	keysOnce sync.Once
	keys     []ProtectionKey
)

// Keys returns every protection key available to this process. On the
// first call it repeatedly asks the kernel for a new key until allocation
// fails, collecting the keys it received in order; every later call
// (including concurrent first calls from other goroutines) observes that
// same slice.
//
// If MPK is unsupported (wrong CPU, wrong OS, or the kernel refuses the
// very first allocation) Keys returns an empty slice. Callers must treat an
// empty slice as "striping disabled" rather than as an error.
func Keys() []ProtectionKey {
	keysOnce.Do(func() {
		var allocated []ProtectionKey
		for {
			key, err := newProtectionKey()
			if err != nil {
				break
			}
			allocated = append(allocated, key)
		}
		keys = allocated
	})
	return keys
}
