package lower

import (
	"github.com/xyproto/xenonjit/aarch64"
	"github.com/xyproto/xenonjit/ppc"
)

// BO field option bits, mirrored from ppc's unexported constants of the
// same name (spec §4.D.3) — lowering needs them at compile time since
// BO/BI are immediate fields of the instruction word, even though the
// CR bit and CTR values they test are only known at run time.
const (
	boDontCheckCondition = 0x10
	boBranchIfTrue       = 0x08
	boDontDecrementCTR   = 0x04
	boBranchIfCTRZero    = 0x02
)

// branchTarget computes a direct branch's destination PC, which is
// always a compile-time constant: both ins.Address and ins.BranchOffset
// come from the instruction word itself.
func branchTarget(ins ppc.Instruction) uint32 {
	if ins.Absolute {
		return uint32(ins.BranchOffset)
	}
	return ins.Address + uint32(ins.BranchOffset)
}

// storePC materializes a constant PC value into the context and writes
// it to the ThreadState.PC slot, the last thing every branch lowering
// does before handing control back to the dispatcher.
func storePC(asm *aarch64.Assembler, value uint32) {
	asm.MovImm64(scratch0, uint64(value))
	asm.StrImm32(scratch0, ContextReg, ppc.OffsetPC)
}

// storeLR stores a constant link value — always the instruction
// following the branch — to ThreadState.LR.
func storeLR(asm *aarch64.Assembler, value uint32) {
	asm.MovImm64(scratch1, uint64(value))
	asm.StrImm64(scratch1, ContextReg, ppc.OffsetLR)
}

// lowerB lowers the unconditional direct branch family b/ba/bl/bla,
// opcode 18. Both the taken target and the fallthrough are compile-time
// constants, so there is nothing to branch on at run time: the
// compiled block simply commits PC and returns to the dispatcher.
// Every direct and conditional branch ends the block it appears in —
// a deliberate simplification from the spec's literal "blr/bcctr only"
// terminator wording (spec §4.D.4), documented in DESIGN.md, that keeps
// the lowering free of any need to track intra-block jump targets.
func lowerB(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if ins.Link {
		storeLR(asm, ins.Address+4)
	}
	storePC(asm, branchTarget(ins))
	return EmitEpilogue(asm)
}

// lowerBC lowers the relative conditional branch, opcode 16. BO/BI pick
// out which of the CTR and CR checks apply at compile time; the checks
// themselves run at block-execution time since the register contents
// they examine aren't known until then.
func lowerBC(asm *aarch64.Assembler, ins ppc.Instruction) error {
	bo, bi := ins.BO, ins.BI
	checkCTR := bo&boDontDecrementCTR == 0
	checkCond := bo&boDontCheckCondition == 0

	if ins.Link {
		storeLR(asm, ins.Address+4)
	}

	// taken accumulates in scratch3, starting true; each applicable
	// check ANDs its own 0/1 verdict in.
	taken := scratch3
	asm.MovImm64(taken, 1)

	if checkCTR {
		if err := asm.LdrImm64(scratch0, ContextReg, ppc.OffsetCTR); err != nil {
			return err
		}
		if err := asm.SubImm64(scratch0, scratch0, 1); err != nil {
			return err
		}
		if err := asm.StrImm64(scratch0, ContextReg, ppc.OffsetCTR); err != nil {
			return err
		}
		asm.CmpReg64(scratch0, aarch64.XZR)
		cond := aarch64.NE
		if bo&boBranchIfCTRZero != 0 {
			cond = aarch64.EQ
		}
		asm.CsetReg64(scratch1, cond)
		asm.AndReg64(taken, taken, scratch1)
	}

	if checkCond {
		if err := asm.LdrImm32(scratch0, ContextReg, ppc.OffsetCR); err != nil {
			return err
		}
		shift := uint32(31 - bi)
		asm.MovImm64(scratch1, uint64(1)<<shift)
		asm.AndReg64(scratch0, scratch0, scratch1)
		asm.CmpReg64(scratch0, aarch64.XZR)
		cond := aarch64.EQ
		if bo&boBranchIfTrue != 0 {
			cond = aarch64.NE
		}
		asm.CsetReg64(scratch2, cond)
		asm.AndReg64(taken, taken, scratch2)
	}

	notTaken := asm.CbzPlaceholder(taken)
	storePC(asm, branchTarget(ins))
	join := asm.BranchPlaceholder()
	if err := asm.Patch(notTaken); err != nil {
		return err
	}
	storePC(asm, ins.Address+4)
	if err := asm.Patch(join); err != nil {
		return err
	}

	return EmitEpilogue(asm)
}

// canLowerOpcode19 reports whether lowerOpcode19 has a real case for
// ins.XO10, mirroring its switch exactly so jit.Compiler can stop a
// block before emitting a NOP for a form this file doesn't cover.
// bclr forms that decrement CTR are rejected, since lowerIndirectBranch
// does not decrement or test CTR.
func canLowerOpcode19(ins ppc.Instruction) bool {
	switch ins.XO10 {
	case 16:
		return ins.BO&boDontDecrementCTR != 0
	case 528, 0, 257, 129, 193, 225, 289, 33, 417, 449, 150:
		return true
	default:
		return false
	}
}

// lowerOpcode19 covers the XL-form branch-register family (bclr,
// bcctr) plus mcrf and the CR-logical ops, all sharing primary 19. The
// register-indirect forms read their target (LR or CTR) from the
// context at run time, so — unlike lowerB/lowerBC — the target itself,
// not just the taken/not-taken decision, is computed at block-execution
// time.
func lowerOpcode19(asm *aarch64.Assembler, ins ppc.Instruction) error {
	switch ins.XO10 {
	case 16: // bclr / blr
		return lowerBclr(asm, ins)
	case 528: // bcctr / bctr
		return lowerBcctr(asm, ins)
	case 0: // mcrf
		return lowerMcrf(asm, ins)
	case 257, 129, 193, 225, 289, 33, 417, 449: // cr-logical family
		return lowerCRLogical(asm, ins)
	case 150: // isync: no-op on a single-threaded target
		asm.Nop()
		return nil
	default:
		logUnimplemented(ins)
		asm.Nop()
		return nil
	}
}

// lowerIndirectBranch is shared by bclr and bcctr: both test the BO/BI
// condition-register bit as lowerBC does, but branch to a register-held
// target (LR or CTR) instead of a compile-time constant. CTR is neither
// decremented nor tested here; canLowerOpcode19 keeps CTR-decrementing
// bclr forms out of compiled blocks.
func lowerIndirectBranch(asm *aarch64.Assembler, ins ppc.Instruction, targetOffset int32) error {
	bo, bi := ins.BO, ins.BI
	checkCond := bo&boDontCheckCondition == 0

	taken := scratch3
	asm.MovImm64(taken, 1)
	if checkCond {
		if err := asm.LdrImm32(scratch0, ContextReg, ppc.OffsetCR); err != nil {
			return err
		}
		shift := uint32(31 - bi)
		asm.MovImm64(scratch1, uint64(1)<<shift)
		asm.AndReg64(scratch0, scratch0, scratch1)
		asm.CmpReg64(scratch0, aarch64.XZR)
		cond := aarch64.EQ
		if bo&boBranchIfTrue != 0 {
			cond = aarch64.NE
		}
		asm.CsetReg64(scratch1, cond)
		asm.AndReg64(taken, taken, scratch1)
	}

	if err := asm.LdrImm64(scratch2, ContextReg, targetOffset); err != nil {
		return err
	}

	notTaken := asm.CbzPlaceholder(taken)
	if err := asm.StrImm32(scratch2, ContextReg, ppc.OffsetPC); err != nil {
		return err
	}
	join := asm.BranchPlaceholder()
	if err := asm.Patch(notTaken); err != nil {
		return err
	}
	storePC(asm, ins.Address+4)
	if err := asm.Patch(join); err != nil {
		return err
	}

	return EmitEpilogue(asm)
}

func lowerBclr(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if ins.Link {
		storeLR(asm, ins.Address+4)
	}
	return lowerIndirectBranch(asm, ins, ppc.OffsetLR)
}

func lowerBcctr(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if ins.Link {
		storeLR(asm, ins.Address+4)
	}
	// bcctr's real encodings always set "don't decrement CTR", so only
	// the CR check (if any) matters here — lowerIndirectBranch's
	// checkCond path already covers that.
	return lowerIndirectBranch(asm, ins, ppc.OffsetCTR)
}

// lowerMcrf copies CR field CRFS into CRFD — a non-terminating op, so
// unlike the rest of this file it falls through rather than returning.
func lowerMcrf(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if err := asm.LdrImm32(scratch0, ContextReg, ppc.OffsetCR); err != nil {
		return err
	}
	srcShift := uint32(28 - 4*ins.CRFS)
	dstShift := uint32(28 - 4*ins.CRFD)
	asm.MovImm64(scratch1, uint64(uint32(0xF)<<srcShift))
	asm.AndReg64(scratch0, scratch0, scratch1) // isolate the source field, still at its own shift
	if srcShift != dstShift {
		if srcShift > dstShift {
			asm.LsrReg64(scratch0, scratch0, constReg(asm, srcShift-dstShift))
		} else {
			asm.LslReg64(scratch0, scratch0, constReg(asm, dstShift-srcShift))
		}
	}
	asm.MovImm64(scratch2, uint64(uint32(0xF)<<dstShift))
	if err := asm.LdrImm32(scratch3, ContextReg, ppc.OffsetCR); err != nil {
		return err
	}
	asm.BicReg64(scratch3, scratch3, scratch2)
	asm.OrrReg64(scratch3, scratch3, scratch0)
	return asm.StrImm32(scratch3, ContextReg, ppc.OffsetCR)
}

// constReg materializes a small shift-amount constant into a scratch
// register, since LslReg64/LsrReg64 take their shift amount as a
// register operand (LSLV/LSRV), not an immediate.
func constReg(asm *aarch64.Assembler, v uint32) aarch64.Reg {
	asm.MovImm64(scratchShift, uint64(v))
	return scratchShift
}

// lowerCRLogical lowers crand/crandc/crxor/crnand/crnor/creqv/crorc/
// cror: extract two CR bits, combine, write the result bit back.
func lowerCRLogical(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if err := loadCRBit(asm, scratch0, ins.CRBA); err != nil {
		return err
	}
	if err := loadCRBit(asm, scratch1, ins.CRBB); err != nil {
		return err
	}

	switch ins.XO10 {
	case 257: // crand
		asm.AndReg64(scratch2, scratch0, scratch1)
	case 129: // crandc
		asm.BicReg64(scratch2, scratch0, scratch1)
	case 193: // crxor
		asm.EorReg64(scratch2, scratch0, scratch1)
	case 225: // crnand
		asm.AndReg64(scratch2, scratch0, scratch1)
		asm.EorReg64(scratch2, scratch2, constReg(asm, 1))
	case 33: // crnor
		asm.OrrReg64(scratch2, scratch0, scratch1)
		asm.EorReg64(scratch2, scratch2, constReg(asm, 1))
	case 289: // creqv
		asm.EorReg64(scratch2, scratch0, scratch1)
		asm.EorReg64(scratch2, scratch2, constReg(asm, 1))
	case 417: // crorc
		asm.OrnReg64(scratch2, scratch0, scratch1)
		asm.MovImm64(scratch3, 1)
		asm.AndReg64(scratch2, scratch2, scratch3)
	case 449: // cror
		asm.OrrReg64(scratch2, scratch0, scratch1)
	}

	return storeCRBit(asm, ins.CRBD, scratch2)
}

// loadCRBit loads CR bit `bit` (MSB-first, 0..31) as a 0/1 value into dst.
func loadCRBit(asm *aarch64.Assembler, dst aarch64.Reg, bit uint8) error {
	if err := asm.LdrImm32(dst, ContextReg, ppc.OffsetCR); err != nil {
		return err
	}
	shift := uint32(31 - bit)
	asm.MovImm64(scratchShift, uint64(1)<<shift)
	asm.AndReg64(dst, dst, scratchShift)
	asm.CmpReg64(dst, aarch64.XZR)
	asm.CsetReg64(dst, aarch64.NE)
	return nil
}

// storeCRBit writes a 0/1 value in src back into CR bit `bit`.
func storeCRBit(asm *aarch64.Assembler, bit uint8, src aarch64.Reg) error {
	shift := uint32(31 - bit)
	if err := asm.LdrImm32(scratch0, ContextReg, ppc.OffsetCR); err != nil {
		return err
	}
	asm.MovImm64(scratch1, uint64(1)<<shift)
	asm.BicReg64(scratch0, scratch0, scratch1)
	asm.LslReg64(scratch2, src, constReg(asm, shift))
	asm.OrrReg64(scratch0, scratch0, scratch2)
	return asm.StrImm32(scratch0, ContextReg, ppc.OffsetCR)
}
