package jit

import (
	"encoding/binary"
	"testing"

	"github.com/xyproto/xenonjit/arena"
)

func newTestArena(t *testing.T) *arena.Arena {
	t.Helper()
	a := arena.New()
	if err := a.Init(); err != nil {
		t.Fatalf("arena Init: %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })

	r := arena.Region{Start: 0, Size: 0x1000}
	if err := a.Commit(r, arena.ReadWrite); err != nil {
		t.Fatalf("arena Commit: %v", err)
	}
	return a
}

func putWord(a *arena.Arena, addr uint32, word uint32) {
	binary.BigEndian.PutUint32(a.Bytes(addr, 4), word)
}

func TestCompileStopsAtUnconditionalBranch(t *testing.T) {
	a := newTestArena(t)
	// addi r3, r0, 5 ; b -4 (infinite loop back to the addi)
	putWord(a, 0, 0x38600005)
	putWord(a, 4, 0x4BFFFFFC)

	c := NewCompiler(a)
	block, err := c.Compile(0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if block.InstructionCount != 2 {
		t.Errorf("InstructionCount = %d, want 2", block.InstructionCount)
	}
	if block.EndPC != 8 {
		t.Errorf("EndPC = %#x, want 0x8", block.EndPC)
	}
	if block.Entry() == 0 {
		t.Errorf("Entry() returned 0")
	}
	if err := block.Free(); err != nil {
		t.Errorf("Free: %v", err)
	}
}

func TestCompileOrGetCachesByAddress(t *testing.T) {
	a := newTestArena(t)
	putWord(a, 0, 0x4E800020) // blr

	c := NewCompiler(a)
	first, err := c.CompileOrGet(0)
	if err != nil {
		t.Fatalf("CompileOrGet: %v", err)
	}
	second, err := c.CompileOrGet(0)
	if err != nil {
		t.Fatalf("CompileOrGet (cached): %v", err)
	}
	if first != second {
		t.Errorf("CompileOrGet returned distinct blocks for the same address")
	}
	if c.Cache().Len() != 1 {
		t.Errorf("Cache().Len() = %d, want 1", c.Cache().Len())
	}
}

func TestInvalidateFreesOverlappingBlocks(t *testing.T) {
	a := newTestArena(t)
	putWord(a, 0, 0x4E800020)   // blr at 0
	putWord(a, 0x100, 0x4E800020) // blr at 0x100

	c := NewCompiler(a)
	if _, err := c.CompileOrGet(0); err != nil {
		t.Fatalf("CompileOrGet(0): %v", err)
	}
	if _, err := c.CompileOrGet(0x100); err != nil {
		t.Fatalf("CompileOrGet(0x100): %v", err)
	}
	if c.Cache().Len() != 2 {
		t.Fatalf("Cache().Len() = %d, want 2", c.Cache().Len())
	}

	c.Cache().Invalidate(0, 4)
	if c.Cache().Len() != 1 {
		t.Errorf("Cache().Len() after Invalidate = %d, want 1", c.Cache().Len())
	}
	if _, ok := c.Cache().Lookup(0); ok {
		t.Errorf("block at 0 still cached after Invalidate")
	}
	if _, ok := c.Cache().Lookup(0x100); !ok {
		t.Errorf("block at 0x100 was incorrectly invalidated")
	}
}

func TestCompileOverrunEmitsBrk(t *testing.T) {
	a := arena.New()
	if err := a.Init(); err != nil {
		t.Fatalf("arena Init: %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })
	r := arena.Region{Start: 0, Size: uint64(MaxBlockBytes * 2)}
	if err := a.Commit(r, arena.ReadWrite); err != nil {
		t.Fatalf("arena Commit: %v", err)
	}

	// A long run of non-terminating, lowerable instructions (addi r3,
	// r3, 1) so the scan never hits a natural terminator and must be
	// cut off by the size bound instead.
	for addr := uint32(0); addr < uint32(MaxBlockBytes*2); addr += 4 {
		putWord(a, addr, 0x38630001)
	}

	c := NewCompiler(a)
	block, err := c.Compile(0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if block.EndPC-block.StartPC >= uint32(MaxBlockBytes*2) {
		t.Errorf("compile scanned the full buffer instead of stopping at the size bound")
	}
	block.Free()
}

func TestCompileRejectsUnlowerableFirstInstruction(t *testing.T) {
	a := newTestArena(t)
	putWord(a, 0, 0x08600005) // tdi: primary 2, no lowering rule

	c := NewCompiler(a)
	if _, err := c.Compile(0); err != ErrBlockNotLowerable {
		t.Errorf("Compile() error = %v, want ErrBlockNotLowerable", err)
	}
}

func TestCompileStopsBeforeUnlowerableMidBlockInstruction(t *testing.T) {
	a := newTestArena(t)
	putWord(a, 0, 0x38600005) // addi r3, r0, 5
	putWord(a, 4, 0x08600005) // tdi: no lowering rule, ends the block here

	c := NewCompiler(a)
	block, err := c.Compile(0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if block.InstructionCount != 1 {
		t.Errorf("InstructionCount = %d, want 1", block.InstructionCount)
	}
	if block.EndPC != 4 {
		t.Errorf("EndPC = %#x, want 0x4", block.EndPC)
	}
	block.Free()
}
