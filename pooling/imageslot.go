package pooling

import (
	"sync"

	"github.com/tetratelabs/mpkpool/internal/platform"
)

// MemoryImageSlot is a lazily-initialized, possibly copy-on-write-backed
// region of a pool slot. The pool treats it as a collaborator: it creates
// one per slot on first use, hands ownership to the allocated Memory, and
// reclaims it (or lets it drop) on deallocate.
//
// This is a plain, anonymous-mapping implementation, and it is the only one
// the pool uses: the pool, ImageSlotTable and MemoryConstructor all work with
// *MemoryImageSlot directly, so a host cannot substitute its own
// copy-on-write image slot type.
type MemoryImageSlot struct {
	// region is the slot's full reservation, still PROT_NONE beyond
	// accessible bytes.
	region     []byte
	accessible int
	dirty      bool
	noClear    bool
}

// newMemoryImageSlot creates a slot over region, initially with no bytes
// made accessible.
func newMemoryImageSlot(region []byte) *MemoryImageSlot {
	return &MemoryImageSlot{region: region}
}

// Instantiate prepares the slot to back a memory of initialSize bytes,
// applying image (if non-nil) as the memory's initial contents. This
// package's implementation ignores image's contents (it treats MemoryImage
// as an opaque collaborator type) and simply ensures initialSize bytes are
// accessible and zeroed; image contents are never copied or mapped in.
func (s *MemoryImageSlot) Instantiate(initialSize int, image MemoryImage, plan MemoryPlan) error {
	if initialSize > len(s.region) {
		return newError(ImageInstantiationFailed, "initial size exceeds slot capacity")
	}
	if initialSize > s.accessible {
		if err := platform.Mprotect(s.region[:initialSize], true); err != nil {
			return wrapError(ImageInstantiationFailed, "failed to make slot accessible", err)
		}
		s.accessible = initialSize
	}
	for i := range s.region[:initialSize] {
		s.region[i] = 0
	}
	s.dirty = true
	return nil
}

// ClearAndRemainReady zeroes the slot's dirty bytes, keeping up to
// keepResident bytes mapped and zero-filled so a future Instantiate call can
// reuse them without a fresh page fault; anything beyond that is released
// back to the kernel with madvise.
func (s *MemoryImageSlot) ClearAndRemainReady(keepResident int) error {
	if s.accessible == 0 {
		s.dirty = false
		return nil
	}
	if keepResident < s.accessible {
		if err := platform.DecommitRange(s.region[keepResident:s.accessible]); err != nil {
			return wrapError(ImageInstantiationFailed, "failed to decommit slot", err)
		}
		s.accessible = keepResident
	}
	for i := range s.region[:s.accessible] {
		s.region[i] = 0
	}
	s.dirty = false
	return nil
}

// RemoveImage discards any COW image backing this slot, leaving it a plain
// anonymous zero region. This package's implementation has no real image
// backing to remove, so it degrades to ClearAndRemainReady(0).
func (s *MemoryImageSlot) RemoveImage() error {
	return s.ClearAndRemainReady(0)
}

// IsDirty reports whether the slot currently holds live instance data.
func (s *MemoryImageSlot) IsDirty() bool { return s.dirty }

// NoClearOnDrop tells the slot its owning Mmap will be unmapped wholesale,
// so there is no need to individually reprotect this slot's range.
func (s *MemoryImageSlot) NoClearOnDrop() { s.noClear = true }

// ImageSlotTable is an array of independently-lockable MemoryImageSlot
// cells, one per pool slot. Taking a slot removes it from the table (or
// lazily creates it if this is the slot's first use); returning it requires
// the slot be clean.
type ImageSlotTable struct {
	cells []imageSlotCell
}

type imageSlotCell struct {
	mu   sync.Mutex
	slot *MemoryImageSlot
}

// NewImageSlotTable creates a table with n empty cells.
func NewImageSlotTable(n int) *ImageSlotTable {
	return &ImageSlotTable{cells: make([]imageSlotCell, n)}
}

// Take removes and returns the slot at index, creating a fresh one over
// region if the cell was empty. Concurrent Take calls on the same index are
// serialized by the cell's lock; Take on distinct indices never contend.
func (t *ImageSlotTable) Take(index int, region []byte) *MemoryImageSlot {
	c := &t.cells[index]
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot == nil {
		return newMemoryImageSlot(region)
	}
	slot := c.slot
	c.slot = nil
	return slot
}

// Return stores slot back into the cell at index. slot must not be dirty.
func (t *ImageSlotTable) Return(index int, slot *MemoryImageSlot) {
	if slot.IsDirty() {
		panic("pooling: returning a dirty image slot")
	}
	c := &t.cells[index]
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// Close marks every still-resident slot to skip its own unmap-on-drop
// reprotection, since the pool's single backing mapping is about to be torn
// down as one unit.
func (t *ImageSlotTable) Close() {
	for i := range t.cells {
		c := &t.cells[i]
		c.mu.Lock()
		if c.slot != nil {
			c.slot.NoClearOnDrop()
		}
		c.mu.Unlock()
	}
}
