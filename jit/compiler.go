// Package jit compiles runs of decoded PPC instructions into AArch64
// machine code and caches the result per guest entry address (spec
// §4.E.4/4.E.6), generalizing flapc's HotReloadManager (hotreload.go)
// from "reload one named function" to "compile one block per guest
// address, invalidate by address range."
package jit

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/xyproto/xenonjit/aarch64"
	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/lower"
	"github.com/xyproto/xenonjit/ppc"
)

// ErrBlockNotLowerable is returned by Compile when the very first guest
// instruction at the requested address has no lowering rule (spec
// §4.E.4's interpreter-fallback safety invariant): compiling such a
// block would either crash or — before this fix — silently treat the
// instruction as a NOP, so callers must fall back to the interpreter
// for at least that one instruction instead.
var ErrBlockNotLowerable = errors.New("jit: no lowering rule for instruction at block start")

// Verbose enables disassembly-on-finalize logging, mirroring
// ppc.Verbose and lower.Verbose.
var Verbose = false

// MaxBlockBytes bounds a single compiled block's host code size; a scan
// that would exceed it is cut short with a trap rather than growing
// without limit (spec §4.E.4).
const MaxBlockBytes = 64 * 1024

// CompiledBlock is one finalized, directly-callable run of host code
// translated from a contiguous run of guest instructions starting at
// StartPC. A block opens with lower.EmitPrologue, which pushes register
// pairs, and every exit goes through lower.EmitEpilogue, which pops them
// before RET, so SP is back at its entry value when the block returns.
type CompiledBlock struct {
	StartPC          uint32
	EndPC            uint32 // first guest address not covered by this block
	InstructionCount int
	region           *arena.ExecRegion
}

// Entry returns the host address of the block's first instruction.
func (b *CompiledBlock) Entry() uintptr {
	return b.region.Addr()
}

// Free releases the block's executable memory. Called by
// CodeCache.Install on a losing race and by CodeCache.Invalidate.
func (b *CompiledBlock) Free() error {
	return arena.FreeExecutable(b.region)
}

// Compiler lowers guest code reachable through a shared arena into
// CompiledBlocks, installing each into a CodeCache.
type Compiler struct {
	mem   *arena.Arena
	lo    *lower.Lowering
	cache *CodeCache
}

// NewCompiler returns a Compiler reading guest code through mem.
func NewCompiler(mem *arena.Arena) *Compiler {
	return &Compiler{mem: mem, lo: lower.New(), cache: NewCodeCache()}
}

// Cache returns the Compiler's CodeCache, for callers that need to
// invalidate a range directly (e.g. on a detected self-modifying store).
func (c *Compiler) Cache() *CodeCache { return c.cache }

// CompileOrGet returns the cached block for pc, compiling and
// installing one if none exists yet.
func (c *Compiler) CompileOrGet(pc uint32) (*CompiledBlock, error) {
	if b, ok := c.cache.Lookup(pc); ok {
		return b, nil
	}
	b, err := c.Compile(pc)
	if err != nil {
		return nil, err
	}
	return c.cache.Install(b), nil
}

// Compile scans guest code starting at pc, lowering each decoded
// instruction until lower.IsTerminator reports true, lower.CanLower
// reports false for the next instruction, or the block would exceed
// MaxBlockBytes (in which case a Brk replaces the instruction that
// would have overrun the budget). An instruction lower.CanLower
// rejects never reaches lower.Lower: if it is the block's first
// instruction, Compile fails with ErrBlockNotLowerable so the caller
// can single-step it in the interpreter instead; if it follows at
// least one already-lowered instruction, the block simply ends before
// it, leaving EndPC short so the next CompileOrGet resumes there.
func (c *Compiler) Compile(pc uint32) (*CompiledBlock, error) {
	asm := aarch64.NewAssembler()
	if err := lower.EmitPrologue(asm); err != nil {
		return nil, fmt.Errorf("jit: emit prologue: %w", err)
	}
	addr := pc
	count := 0

	for {
		if asm.Len()+16 > MaxBlockBytes {
			asm.Brk(0)
			break
		}

		word := binary.BigEndian.Uint32(c.mem.Bytes(addr, 4))
		ins := ppc.Decode(addr, word)

		if !lower.CanLower(ins) {
			if count == 0 {
				return nil, ErrBlockNotLowerable
			}
			if err := lower.EmitFallthrough(asm, addr); err != nil {
				return nil, fmt.Errorf("jit: compile %08x: %w", addr, err)
			}
			break
		}

		if err := c.lo.Lower(asm, ins); err != nil {
			return nil, fmt.Errorf("jit: compile %08x: %w", addr, err)
		}
		count++
		addr += 4

		if lower.IsTerminator(ins) {
			break
		}
	}

	region, err := arena.AllocateExecutable(asm.Len())
	if err != nil {
		return nil, fmt.Errorf("jit: allocate executable region: %w", err)
	}
	copy(region.Bytes(), asm.Bytes())
	if err := region.Finalize(); err != nil {
		arena.FreeExecutable(region)
		return nil, fmt.Errorf("jit: finalize executable region: %w", err)
	}

	block := &CompiledBlock{
		StartPC:          pc,
		EndPC:            addr,
		InstructionCount: count,
		region:           region,
	}
	if Verbose {
		logBlock(block, asm.Bytes())
	}
	return block, nil
}
