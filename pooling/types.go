// Package pooling implements a fixed-capacity pool of WebAssembly linear
// memory slots backed by a single large virtual-address reservation, striped
// across x86 Memory Protection Keys so that an out-of-bounds store from one
// instance faults against a neighbor protected by a different key.
//
// The pool does not compile or execute WebAssembly, does not handle SIGSEGV,
// and does not itself implement copy-on-write image loading: it hands a
// prepared MemoryImageSlot and a base pointer to a Memory constructor
// supplied by the host (see InstanceAllocationRequest and MemoryConstructor).
package pooling

import "fmt"

// WasmPageSize is the size, in bytes, of one WebAssembly linear memory page.
const WasmPageSize = 65536

// AutoEnabled is a tri-state policy: resolve automatically, force on, or
// force off. It governs whether the pool attempts to use memory protection
// keys.
type AutoEnabled int

const (
	// Auto uses MPK when the host supports it, and falls back to a single
	// stripe otherwise.
	Auto AutoEnabled = iota
	// Enable requires MPK; pool construction fails if it is unavailable.
	Enable
	// Disable never uses MPK, regardless of host support.
	Disable
)

func (a AutoEnabled) String() string {
	switch a {
	case Auto:
		return "auto"
	case Enable:
		return "enable"
	case Disable:
		return "disable"
	default:
		return fmt.Sprintf("AutoEnabled(%d)", int(a))
	}
}

// Limits bounds the shape of modules the pool will accept.
type Limits struct {
	// MemoryPages is the per-memory maximum, in 64 KiB pages. Must be at
	// most 65536 (the full 32-bit address space).
	MemoryPages uint32
	// TotalMemories is the pool's slot capacity.
	TotalMemories uint32
	// MaxMemoriesPerModule bounds how many defined memories a single
	// module instance may use.
	MaxMemoriesPerModule uint32
}

// Config is the pool's construction-time configuration.
type Config struct {
	Limits Limits
	// MaxUnusedWarmSlots bounds how many freed-but-still-affine slots a
	// single stripe allocator retains. When the bound is exceeded, the
	// retained affinity of the lowest-id free slot is cleared; that is not
	// necessarily the least recently freed slot.
	MaxUnusedWarmSlots uint32
	// LinearMemoryKeepResident is how many bytes of a deallocated memory
	// are kept resident (memset to zero) rather than released to the
	// kernel via madvise.
	LinearMemoryKeepResident uint32
	// MemoryProtectionKeys selects the MPK policy.
	MemoryProtectionKeys AutoEnabled
	// MemoryConstructor builds the Memory handle Allocate returns. A host
	// that needs a wasm-aware Memory (tracking current size, bounds-check
	// style, etc.) supplies its own implementation here; a nil value
	// leaves the pool using DefaultMemoryConstructor.
	MemoryConstructor MemoryConstructor
}

// Tunables carries engine-wide sizing knobs that affect slab layout.
type Tunables struct {
	// StaticMemoryBound is a floor, in pages, on the per-slot address
	// space reservation, independent of any single module's declared
	// maximum.
	StaticMemoryBound uint64
	// StaticMemoryOffsetGuardSize is the requested trailing guard region
	// size, in bytes, used to elide bounds checks on small offsets.
	StaticMemoryOffsetGuardSize uint64
	// GuardBeforeLinearMemory additionally reserves a guard region before
	// the first slot.
	GuardBeforeLinearMemory bool
}

// ModuleID identifies a compiled module for affinity tracking and purge.
type ModuleID uint64

// DefinedMemoryIndex is the index of a memory defined (not imported) by a
// module.
type DefinedMemoryIndex uint32

// MemoryStyle describes how a memory's accessible region may grow.
type MemoryStyle int

const (
	// MemoryStyleDynamic memories may be remapped to grow; the pool does
	// not need to reserve their full bound up front.
	MemoryStyleDynamic MemoryStyle = iota
	// MemoryStyleStatic memories have their entire bound reserved at
	// allocation time; growth never moves the base pointer.
	MemoryStyleStatic
)

// MemoryPlan describes one memory a module declares.
type MemoryPlan struct {
	Style MemoryStyle
	// Bound is the static reservation size in pages; meaningful only
	// when Style is MemoryStyleStatic.
	Bound uint64
	// Minimum is the memory's initial size in pages.
	Minimum uint64
}

// Module is the subset of compiled-module metadata the pool needs to
// validate and allocate memories for.
type Module struct {
	ID                ModuleID
	MemoryPlans       []MemoryPlan
	NumImportedMemory int
}

// MemoryImage is an optional copy-on-write backing for a memory's initial
// contents. The pool never inspects its contents; it only hands it to the
// MemoryImageSlot collaborator.
type MemoryImage interface{}

// MemoryImageProvider resolves the COW image (if any) for one of a module's
// defined memories.
type MemoryImageProvider interface {
	MemoryImage(memoryIndex DefinedMemoryIndex) (MemoryImage, error)
}

// InstanceAllocationRequest carries the per-instance context needed to
// allocate a memory: the module requesting it (for affinity), and the stripe
// of the protection key it was handed at instance-creation time (StripeIndex,
// used only when HasStripe is set).
type InstanceAllocationRequest struct {
	Module      *Module
	Images      MemoryImageProvider
	StripeIndex int
	HasStripe   bool
}

// StripedAllocationIndex is a slot index local to a single stripe: dense
// within that stripe's allocator.
type StripedAllocationIndex uint32

// AsAllocationIndex converts a stripe-local index into a pool-wide
// AllocationIndex given the stripe it came from and the pool's total stripe
// count.
func (s StripedAllocationIndex) AsAllocationIndex(stripe, numStripes int) AllocationIndex {
	return AllocationIndex(uint32(s)*uint32(numStripes) + uint32(stripe))
}

// AllocationIndex is a slot index dense across the whole pool.
type AllocationIndex uint32

// Stripe returns the stripe this allocation index belongs to.
func (a AllocationIndex) Stripe(numStripes int) int {
	return int(uint32(a) % uint32(numStripes))
}

// Striped returns the stripe-local index this allocation index corresponds
// to.
func (a AllocationIndex) Striped(numStripes int) StripedAllocationIndex {
	return StripedAllocationIndex(uint32(a) / uint32(numStripes))
}

func (a AllocationIndex) index() int { return int(a) }
