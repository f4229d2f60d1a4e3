package pooling

import (
	"testing"

	"github.com/tetratelabs/mpkpool/internal/testing/require"
)

func TestStripeAllocatorAllocFree(t *testing.T) {
	a := NewStripeAllocator(4, 4)
	require.Equal(t, 4, a.NumEmptySlots())

	var got []SlotID
	for i := 0; i < 4; i++ {
		id, ok := a.Alloc(Affinity{})
		require.True(t, ok)
		got = append(got, id)
	}
	require.Equal(t, 0, a.NumEmptySlots())

	_, ok := a.Alloc(Affinity{})
	require.False(t, ok)

	a.Free(got[0])
	require.Equal(t, 1, a.NumEmptySlots())
}

func TestStripeAllocatorLowestIDFirst(t *testing.T) {
	a := NewStripeAllocator(4, 4)
	id, ok := a.Alloc(Affinity{})
	require.True(t, ok)
	require.Equal(t, SlotID(0), id)

	id2, ok := a.Alloc(Affinity{})
	require.True(t, ok)
	require.Equal(t, SlotID(1), id2)
}

func TestStripeAllocatorWarmReuse(t *testing.T) {
	a := NewStripeAllocator(4, 4)
	affinity := NewAffinity(ModuleID(1), DefinedMemoryIndex(0))

	id, ok := a.Alloc(affinity)
	require.True(t, ok)
	a.Free(id)

	// A second, unrelated alloc/free should not disturb the affinity slot.
	other, ok := a.Alloc(Affinity{})
	require.True(t, ok)
	a.Free(other)

	reused, ok := a.Alloc(affinity)
	require.True(t, ok)
	require.Equal(t, id, reused)
}

func TestStripeAllocatorWarmEviction(t *testing.T) {
	a := NewStripeAllocator(3, 1)

	ids := make([]SlotID, 3)
	for i := 0; i < 3; i++ {
		id, ok := a.Alloc(NewAffinity(ModuleID(i), DefinedMemoryIndex(0)))
		require.True(t, ok)
		ids[i] = id
	}
	for _, id := range ids {
		a.Free(id)
	}

	// maxUnusedWarmSlots is 1, so at most one retained affinity survives;
	// the rest were cleared. We can't assert exactly which one without
	// replicating eviction order, but warm count should be bounded.
	require.True(t, a.unusedWarmCount <= 1)
}

func TestStripeAllocatorAllocAffineAndClearAffinity(t *testing.T) {
	a := NewStripeAllocator(4, 4)
	affinity := NewAffinity(ModuleID(7), DefinedMemoryIndex(2))

	id, ok := a.Alloc(affinity)
	require.True(t, ok)
	a.Free(id)

	purged, ok := a.AllocAffineAndClearAffinity(ModuleID(7), DefinedMemoryIndex(2))
	require.True(t, ok)
	require.Equal(t, id, purged)

	_, ok = a.AllocAffineAndClearAffinity(ModuleID(7), DefinedMemoryIndex(2))
	require.False(t, ok)
}

func TestStripedAllocationIndexBijection(t *testing.T) {
	for numStripes := 1; numStripes <= 4; numStripes++ {
		for stripeIdx := 0; stripeIdx < numStripes; stripeIdx++ {
			for striped := 0; striped < 8; striped++ {
				alloc := StripedAllocationIndex(striped).AsAllocationIndex(stripeIdx, numStripes)
				require.Equal(t, stripeIdx, alloc.Stripe(numStripes))
				require.Equal(t, StripedAllocationIndex(striped), alloc.Striped(numStripes))
			}
		}
	}
}
