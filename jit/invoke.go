package jit

import "unsafe"

// Invoke calls the compiled block's host code directly, pinning ctx
// into X9 (the lower package's ContextReg) and arenaBase into X8
// (ArenaBaseReg) per the register convention lowering assumes (spec
// §4.E.1). ctx must point at the owning ThreadState's fixed-offset ABI
// region; arenaBase is the host address of guest offset zero.
//
// After the call returns, the block has already written its computed
// target PC to ctx+ppc.OffsetPC; Invoke itself only bumps the caller's
// instruction counter, since that counter lives outside the ABI region
// the compiled code is allowed to touch.
func (b *CompiledBlock) Invoke(ctx, arenaBase unsafe.Pointer, retired *uint64) {
	callBlock(b.Entry(), ctx, arenaBase)
	*retired += uint64(b.InstructionCount)
}
