package platform

import (
	"runtime"
	"testing"

	"github.com/tetratelabs/mpkpool/internal/testing/require"
)

func TestAccessibleReserved(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exercised via mmap_windows.go on windows CI")
	}

	total := PageSize() * 4
	m, err := AccessibleReserved(0, total)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()

	require.Equal(t, total, m.Len())
	require.NotEqual(t, uintptr(0), m.AsPtr())
}

func TestAccessibleReserved_zero(t *testing.T) {
	m, err := AccessibleReserved(0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, m.Len())
}

func TestPageSize(t *testing.T) {
	require.True(t, PageSize() > 0)
	require.Zero(t, PageSize()%4096)
}
