package jit

import "sync"

// CodeCache maps a guest entry address to its compiled block.
// Multiple goroutines may race to compile the same address (e.g. two
// threads both taking a cold branch into it); compile-once
// discard-duplicate honors whichever compile finishes installing
// itself first (spec §5) rather than serializing compilation behind a
// single lock.
type CodeCache struct {
	mu     sync.RWMutex
	blocks map[uint32]*CompiledBlock
}

// NewCodeCache returns an empty CodeCache.
func NewCodeCache() *CodeCache {
	return &CodeCache{blocks: make(map[uint32]*CompiledBlock)}
}

// Lookup returns the cached block starting at pc, if any.
func (cc *CodeCache) Lookup(pc uint32) (*CompiledBlock, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	b, ok := cc.blocks[pc]
	return b, ok
}

// Install registers a freshly compiled block. If another goroutine
// already installed a block at the same start address first, b is
// freed and the winning block is returned instead — the caller's
// compile work is simply discarded, not retried.
func (cc *CodeCache) Install(b *CompiledBlock) *CompiledBlock {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if existing, ok := cc.blocks[b.StartPC]; ok {
		b.Free()
		return existing
	}
	cc.blocks[b.StartPC] = b
	return b
}

// Invalidate frees and removes every cached block whose guest range
// overlaps [start, start+size) — used when guest code is modified
// after having been compiled (spec §4.E.6/§9).
func (cc *CodeCache) Invalidate(start, size uint32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	end := start + size
	for pc, b := range cc.blocks {
		if b.StartPC < end && b.EndPC > start {
			b.Free()
			delete(cc.blocks, pc)
		}
	}
}

// Len reports the number of cached blocks, for tests and stats.
func (cc *CodeCache) Len() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.blocks)
}
