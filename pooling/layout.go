package pooling

import "github.com/tetratelabs/mpkpool/internal/platform"

// SlabConstraints is the input to calculateLayout: the budget the slab must
// fit (address space, guard bytes, available keys) and the knobs that shape
// how that budget is spent.
type SlabConstraints struct {
	// MaxMemoryBytes is the per-slot accessible region budget, typically
	// 4 GiB so that small-offset bounds checks can be elided entirely.
	MaxMemoryBytes uint64
	// NumMemorySlots is the pool's capacity.
	NumMemorySlots uint64
	// NumPkeysAvailable is the number of non-kernel protection keys the
	// registry returned (0-15).
	NumPkeysAvailable uint64
	// GuardBytes is the requested trailing guard size per slot.
	GuardBytes uint64
	// GuardBeforeSlots additionally reserves a guard region before the
	// first slot.
	GuardBeforeSlots bool
}

// SlabLayout is the result of calculateLayout: how the slab is carved up
// into a leading guard, a run of equal-size slots, and a trailing guard.
type SlabLayout struct {
	TotalSlabBytes     uint64
	PreSlabGuardBytes  uint64
	PostSlabGuardBytes uint64
	// SlotBytes is the page-aligned size of each slot, i.e. the accessible
	// memory plus whatever guard bytes weren't absorbed by overlap with a
	// neighboring stripe.
	SlotBytes uint64
	// NumStripes is always at least 1.
	NumStripes int
}

// calculateLayout decides slot size, stripe count, and guard sizes from the
// given constraints. It performs no I/O; every failure is a LayoutOverflow
// from address-space math overflowing a 64-bit word.
func calculateLayout(c SlabConstraints) (SlabLayout, error) {
	preSlabGuardBytes := uint64(0)
	if c.GuardBeforeSlots {
		preSlabGuardBytes = c.GuardBytes
	}

	var numStripes int
	var neededGuardBytes uint64
	switch {
	case c.GuardBytes == 0 || c.MaxMemoryBytes == 0:
		// No guard or no memory: nothing to stripe, lay slots back to
		// back with a single stripe.
		numStripes = 1
		neededGuardBytes = c.GuardBytes
	case c.NumPkeysAvailable < 2:
		// Can't stripe without at least two keys.
		numStripes = 1
		neededGuardBytes = c.GuardBytes
	default:
		// Use another stripe's slot as this slot's guard region. We want
		// the fewest stripes that still cover guard_bytes, but never
		// fewer than two, and never more than num_pkeys_available.
		neededNumStripes := c.GuardBytes/c.MaxMemoryBytes + 1
		if c.GuardBytes%c.MaxMemoryBytes != 0 {
			neededNumStripes++
		}
		n := c.NumPkeysAvailable
		if neededNumStripes < n {
			n = neededNumStripes
		}
		numStripes = int(n)

		overlap, ok := mulOverflow(c.MaxMemoryBytes, uint64(numStripes-1))
		if !ok {
			overlap = ^uint64(0)
		}
		if overlap >= c.GuardBytes {
			neededGuardBytes = 0
		} else {
			neededGuardBytes = c.GuardBytes - overlap
		}
	}

	pageAlignment := uint64(platform.PageSize()) - 1

	slotBytes, ok := addOverflow(c.MaxMemoryBytes, neededGuardBytes)
	if !ok {
		return SlabLayout{}, newError(LayoutOverflow, "slot size is too large")
	}
	slotBytes, ok = addOverflow(slotBytes, pageAlignment)
	if !ok {
		return SlabLayout{}, newError(LayoutOverflow, "slot size is too large")
	}
	slotBytes &^= pageAlignment

	postSlabGuardBytes := c.GuardBytes - neededGuardBytes

	total, ok := mulOverflow(slotBytes, c.NumMemorySlots)
	if !ok {
		return SlabLayout{}, newError(LayoutOverflow, "total size of memory reservation exceeds addressable memory")
	}
	total, ok = addOverflow(total, preSlabGuardBytes)
	if !ok {
		return SlabLayout{}, newError(LayoutOverflow, "total size of memory reservation exceeds addressable memory")
	}
	total, ok = addOverflow(total, postSlabGuardBytes)
	if !ok {
		return SlabLayout{}, newError(LayoutOverflow, "total size of memory reservation exceeds addressable memory")
	}

	return SlabLayout{
		TotalSlabBytes:     total,
		PreSlabGuardBytes:  preSlabGuardBytes,
		PostSlabGuardBytes: postSlabGuardBytes,
		SlotBytes:          slotBytes,
		NumStripes:         numStripes,
	}, nil
}

func addOverflow(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

func mulOverflow(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	return product, product/a == b
}
