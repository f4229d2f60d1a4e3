package pooling

import (
	"sync/atomic"

	"github.com/tetratelabs/mpkpool/internal/platform"
	"github.com/tetratelabs/mpkpool/mpk"
)

type stripe struct {
	allocator *StripeAllocator
	key       *mpk.ProtectionKey
}

// MemoryPool is a fixed-capacity pool of WebAssembly linear memory slots,
// backed by one large virtual-address reservation and striped across
// available protection keys so each slot's trailing guard region overlaps a
// neighboring stripe's slot rather than costing its own address space.
type MemoryPool struct {
	mapping *platform.Mmap
	stripes []stripe
	images  *ImageSlotTable

	memorySize          int
	memoryAndGuardSize  int
	maxAccessible       int
	preSlabGuardSize    int
	maxTotalMemories    int
	memoriesPerInstance int
	keepResident        int

	constructor MemoryConstructor

	nextAvailablePkey atomic.Uint64
}

// New builds a MemoryPool honoring config and tunables. It resolves the MPK
// policy, computes the slab layout, reserves and stripes the slab, and
// builds the per-stripe allocators and image-slot table. The slab
// reservation is the only syscall-issuing step outside of striping marks;
// nothing else in construction touches the kernel.
func New(config Config, tunables Tunables) (*MemoryPool, error) {
	if config.Limits.MemoryPages > 0x10000 {
		return nil, newError(ConfigRejected, "module memory page limit exceeds the maximum of 65536")
	}

	keys, err := resolvePkeys(config.MemoryProtectionKeys)
	if err != nil {
		return nil, err
	}

	maxMemoryPages := uint64(config.Limits.MemoryPages)
	if tunables.StaticMemoryBound > maxMemoryPages {
		maxMemoryPages = tunables.StaticMemoryBound
	}
	maxMemoryBytes := maxMemoryPages * WasmPageSize

	constraints := SlabConstraints{
		MaxMemoryBytes:    maxMemoryBytes,
		NumMemorySlots:    uint64(config.Limits.TotalMemories),
		NumPkeysAvailable: uint64(len(keys)),
		GuardBytes:        tunables.StaticMemoryOffsetGuardSize,
		GuardBeforeSlots:  tunables.GuardBeforeLinearMemory,
	}
	layout, err := calculateLayout(constraints)
	if err != nil {
		return nil, err
	}

	mapping, err := platform.AccessibleReserved(0, int(layout.TotalSlabBytes))
	if err != nil {
		return nil, wrapError(MappingFailed, "failed to create memory pool mapping", err)
	}

	if layout.NumStripes >= 2 {
		cursor := int(layout.PreSlabGuardBytes)
		usable := keys[:layout.NumStripes]
		for i := uint64(0); i < constraints.NumMemorySlots; i++ {
			key := usable[int(i)%len(usable)]
			region := mapping.SliceMut(cursor, cursor+int(layout.SlotBytes))
			if err := key.Mark(region); err != nil {
				_ = mapping.Close()
				return nil, wrapError(MappingFailed, "failed to mark slot with protection key", err)
			}
			cursor += int(layout.SlotBytes)
		}
		if cursor != int(layout.TotalSlabBytes-layout.PostSlabGuardBytes) {
			panic("pooling: slot marking did not end at the start of the post-slab guard")
		}
	}

	stripes := make([]stripe, layout.NumStripes)
	for i := range stripes {
		numSlots := constraints.NumMemorySlots/uint64(layout.NumStripes) +
			boolToU64(uint64(i) < constraints.NumMemorySlots%uint64(layout.NumStripes))
		stripes[i].allocator = NewStripeAllocator(uint32(numSlots), config.MaxUnusedWarmSlots)
		if i < len(keys) {
			k := keys[i]
			stripes[i].key = &k
		}
	}

	constructor := config.memoryConstructor()

	return &MemoryPool{
		mapping:             mapping,
		stripes:             stripes,
		images:              NewImageSlotTable(int(constraints.NumMemorySlots)),
		memorySize:          int(constraints.MaxMemoryBytes),
		memoryAndGuardSize:  int(layout.SlotBytes),
		preSlabGuardSize:    int(layout.PreSlabGuardBytes),
		maxTotalMemories:    int(constraints.NumMemorySlots),
		memoriesPerInstance: int(config.Limits.MaxMemoriesPerModule),
		maxAccessible:       int(config.Limits.MemoryPages) * WasmPageSize,
		keepResident:        int(config.LinearMemoryKeepResident),
		constructor:         constructor,
	}, nil
}

func resolvePkeys(policy AutoEnabled) ([]mpk.ProtectionKey, error) {
	switch policy {
	case Disable:
		return nil, nil
	case Enable:
		if !mpk.IsSupported() {
			return nil, newError(ConfigRejected, "mpk is disabled on this system")
		}
		return mpk.Keys(), nil
	default: // Auto
		if mpk.IsSupported() {
			return mpk.Keys(), nil
		}
		return nil, nil
	}
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (c Config) memoryConstructor() MemoryConstructor {
	if c.MemoryConstructor != nil {
		return c.MemoryConstructor
	}
	return DefaultMemoryConstructor
}

// GetNextPkey round-robins through the pool's stripes, returning the key
// (if any) a newly-created host-side instance should use for all of its
// memories. Passing that key's stripe (AsStripe) back in the request's
// StripeIndex, with HasStripe set, pins every memory the instance allocates
// to the same stripe.
func (p *MemoryPool) GetNextPkey() *mpk.ProtectionKey {
	index := (p.nextAvailablePkey.Add(1) - 1) % uint64(len(p.stripes))
	return p.stripes[index].key
}

// Validate reports whether this pool can host module, without allocating
// anything.
func (p *MemoryPool) Validate(module *Module) error {
	defined := len(module.MemoryPlans) - module.NumImportedMemory
	if defined > p.memoriesPerInstance {
		return newError(ConfigRejected, "defined memories count exceeds the per-instance limit")
	}

	maxPages := uint64(p.maxAccessible / WasmPageSize)
	for _, plan := range module.MemoryPlans[module.NumImportedMemory:] {
		if plan.Style == MemoryStyleStatic {
			boundBytes := plan.Bound * WasmPageSize
			if boundBytes > uint64(p.memorySize) {
				return newError(ConfigRejected, "memory size allocated per-memory is too small to satisfy static bound")
			}
		}
		if plan.Minimum > maxPages {
			return newError(ConfigRejected, "memory minimum page size exceeds the pool's limit")
		}
	}
	return nil
}

// IsEmpty reports whether every stripe's allocator is fully free.
func (p *MemoryPool) IsEmpty() bool {
	for i := range p.stripes {
		if !p.stripes[i].allocator.IsEmpty() {
			return false
		}
	}
	return true
}

// Allocate allocates one memory for request's module, for the memory plan
// at memoryIndex. If request carries a protection key (HasStripe), the
// allocation is pinned to that key's stripe; otherwise the pool must have
// exactly one stripe.
func (p *MemoryPool) Allocate(request *InstanceAllocationRequest, plan MemoryPlan, memoryIndex DefinedMemoryIndex) (AllocationIndex, Memory, error) {
	stripeIndex := 0
	if request.HasStripe {
		stripeIndex = request.StripeIndex
	}

	affinity := Affinity{}
	if request.Module != nil {
		affinity = NewAffinity(request.Module.ID, memoryIndex)
	}

	s := &p.stripes[stripeIndex]
	slotID, ok := s.allocator.Alloc(affinity)
	if !ok {
		return 0, nil, newError(PoolExhausted, "maximum concurrent memory limit reached for stripe")
	}
	striped := StripedAllocationIndex(slotID)
	allocationIndex := striped.AsAllocationIndex(stripeIndex, len(p.stripes))

	memory, err := p.finishAllocate(allocationIndex, request, plan, memoryIndex)
	if err != nil {
		s.allocator.Free(slotID)
		return 0, nil, err
	}
	return allocationIndex, memory, nil
}

func (p *MemoryPool) finishAllocate(allocationIndex AllocationIndex, request *InstanceAllocationRequest, plan MemoryPlan, memoryIndex DefinedMemoryIndex) (Memory, error) {
	base := p.getBase(allocationIndex)
	region := p.mapping.SliceMut(int(base)-int(p.mapping.AsPtr()), int(base)-int(p.mapping.AsPtr())+p.maxAccessible)

	slot := p.images.Take(allocationIndex.index(), region)

	var image MemoryImage
	if request.Images != nil {
		img, err := request.Images.MemoryImage(memoryIndex)
		if err != nil {
			return nil, wrapError(ImageInstantiationFailed, "failed to resolve memory image", err)
		}
		image = img
	}

	initialSize := int(plan.Minimum * WasmPageSize)
	if err := slot.Instantiate(initialSize, image, plan); err != nil {
		return nil, wrapError(ImageInstantiationFailed, "failed to instantiate memory image", err)
	}

	memory, err := p.constructor.NewStatic(plan, base, p.maxAccessible, slot, p.memoryAndGuardSize)
	if err != nil {
		return nil, wrapError(ImageInstantiationFailed, "failed to construct memory", err)
	}
	return memory, nil
}

// Deallocate returns memory, previously returned by Allocate at
// allocationIndex, to the pool. The caller must never touch memory again:
// its backing pages may be handed to an unrelated instance immediately
// after this call returns.
func (p *MemoryPool) Deallocate(allocationIndex AllocationIndex, memory Memory) {
	slot := memory.UnwrapSlot()
	if slot.ClearAndRemainReady(p.keepResident) == nil {
		p.images.Return(allocationIndex.index(), slot)
	}

	numStripes := len(p.stripes)
	stripeIndex := allocationIndex.Stripe(numStripes)
	striped := allocationIndex.Striped(numStripes)
	p.stripes[stripeIndex].allocator.Free(SlotID(striped))
}

// PurgeModule clears every image still affine to module across every
// stripe, freeing those slots back to their allocators. It must only be
// called once module is otherwise unreachable: a concurrent Allocate
// request for module racing a purge may still observe and reuse a slot
// before this call reaches its stripe.
func (p *MemoryPool) PurgeModule(module ModuleID) {
	for i := range p.stripes {
		s := &p.stripes[i]
		for mi := 0; mi < p.memoriesPerInstance; mi++ {
			memoryIndex := DefinedMemoryIndex(mi)
			for {
				slotID, ok := s.allocator.AllocAffineAndClearAffinity(module, memoryIndex)
				if !ok {
					break
				}
				allocationIndex := StripedAllocationIndex(slotID).AsAllocationIndex(i, len(p.stripes))
				base := p.getBase(allocationIndex)
				region := p.mapping.SliceMut(int(base)-int(p.mapping.AsPtr()), int(base)-int(p.mapping.AsPtr())+p.maxAccessible)
				slot := p.images.Take(allocationIndex.index(), region)
				if slot.RemoveImage() == nil {
					p.images.Return(allocationIndex.index(), slot)
				}
				s.allocator.Free(slotID)
			}
		}
	}
}

func (p *MemoryPool) getBase(allocationIndex AllocationIndex) uintptr {
	offset := p.preSlabGuardSize + allocationIndex.index()*p.memoryAndGuardSize
	return p.mapping.AsPtr() + uintptr(offset)
}

// Close releases the pool's single backing mapping. Every image slot is
// marked to skip its own reprotection-on-drop first, since one munmap call
// reclaims the whole address range at once.
func (p *MemoryPool) Close() error {
	p.images.Close()
	return p.mapping.Close()
}
