package mpk

import (
	"testing"

	"github.com/tetratelabs/mpkpool/internal/testing/require"
)

func TestMaskForKeys(t *testing.T) {
	a := ProtectionKey{id: 1}
	b := ProtectionKey{id: 3}
	mask := MaskForKeys(a, b)
	require.Equal(t, ProtectionMask(1<<1|1<<3), mask)
}

func TestMaskForKeysEmpty(t *testing.T) {
	require.Equal(t, AllowNone, MaskForKeys())
}

func TestAllowBits(t *testing.T) {
	require.Equal(t, uint32(0b11), allowBits(0))
	require.Equal(t, uint32(0b11<<2), allowBits(1))
	require.Equal(t, uint32(0b11<<30), allowBits(15))
}

// Allow itself only touches CPU register state on a supported host; here we
// just confirm it doesn't panic on any host.
func TestAllowNoPanic(t *testing.T) {
	Allow(AllowAll)
	Allow(AllowNone)
	Allow(MaskForKeys(ProtectionKey{id: 1}))
}
