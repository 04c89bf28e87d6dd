package lower

import (
	"github.com/xyproto/xenonjit/aarch64"
	"github.com/xyproto/xenonjit/ppc"
)

// lowerOpcode31 covers a representative, non-exhaustive subset of the
// X/XO-form instruction set sharing primary opcode 31 (spec §4.E.5):
// register-register arithmetic and logical ops, compares, and the
// indexed load/store family. canLowerOpcode31 lists exactly the XO10
// values handled below; jit.Compiler consults it before ever calling
// this function, so the long tail of opcode 31 forms (multiply/divide,
// shifts, SPR/cache/sync, atomics) stops the block and falls to the
// interpreter instead of silently becoming a NOP.
func lowerOpcode31(asm *aarch64.Assembler, ins ppc.Instruction) error {
	switch ins.XO10 {
	case 0: // cmp
		return lowerCmp(asm, ins, true)
	case 32: // cmpl
		return lowerCmp(asm, ins, false)

	case 266: // add
		return lowerAddSubReg(asm, ins, addReg)
	case 40: // subf
		return lowerAddSubReg(asm, ins, subfReg)
	case 104: // neg
		return lowerNeg(asm, ins)

	case 28: // and
		return lowerLogicalReg(asm, ins, andReg)
	case 60: // andc
		return lowerLogicalReg(asm, ins, bicReg)
	case 124: // nor
		return lowerLogicalReg(asm, ins, norReg)
	case 316: // xor
		return lowerLogicalReg(asm, ins, eorReg)
	case 412: // orc
		return lowerLogicalReg(asm, ins, ornReg)
	case 444: // or / mr
		return lowerLogicalReg(asm, ins, orrReg)
	case 476: // nand
		return lowerLogicalReg(asm, ins, nandReg)
	case 284: // eqv
		return lowerLogicalReg(asm, ins, eqvReg)

	case 26: // cntlzw
		return lowerCntlzw(asm, ins)

	case 23, 55: // lwzx / lwzux
		return lowerIndexedLoad(asm, ins, 4, false, ins.XO10 == 55)
	case 87, 119: // lbzx / lbzux
		return lowerIndexedLoad(asm, ins, 1, false, ins.XO10 == 119)
	case 279, 311: // lhzx / lhzux
		return lowerIndexedLoad(asm, ins, 2, false, ins.XO10 == 311)
	case 343, 375: // lhax / lhaux
		return lowerIndexedLoad(asm, ins, 2, true, ins.XO10 == 375)

	case 151, 183: // stwx / stwux
		return lowerIndexedStore(asm, ins, 4, ins.XO10 == 183)
	case 215, 247: // stbx / stbux
		return lowerIndexedStore(asm, ins, 1, ins.XO10 == 247)
	case 407, 439: // sthx / sthux
		return lowerIndexedStore(asm, ins, 2, ins.XO10 == 439)

	default:
		logUnimplemented(ins)
		asm.Nop()
		return nil
	}
}

// canLowerOpcode31 reports whether lowerOpcode31 has a real case for
// ins.XO10, mirroring its switch's case list exactly.
func canLowerOpcode31(ins ppc.Instruction) bool {
	switch ins.XO10 {
	case 0, 32, 266, 40, 104, 28, 60, 124, 316, 412, 444, 476, 284, 26,
		23, 55, 87, 119, 279, 311, 343, 375, 151, 183, 215, 247, 407, 439:
		return true
	default:
		return false
	}
}

// addReg/andReg/bicReg/eorReg/ornReg/orrReg adapt the Assembler's bound
// methods to the free (asm, rd, rn, rm) shape lowerAddSubReg and
// lowerLogicalReg dispatch through, matching the sign (dst, lhs, rhs)
// so PPC's "RD op RB" source order lines up regardless of which
// AArch64 primitive actually computes it.
func addReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.AddReg64(rd, rn, rm) }
func andReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.AndReg64(rd, rn, rm) }
func bicReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.BicReg64(rd, rn, rm) }
func eorReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.EorReg64(rd, rn, rm) }
func ornReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.OrnReg64(rd, rn, rm) }
func orrReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.OrrReg64(rd, rn, rm) }

func subfReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) { asm.SubReg64(rd, rm, rn) }

func norReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) {
	asm.OrrReg64(rd, rn, rm)
	notReg(asm, rd, rd)
}

func nandReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) {
	asm.AndReg64(rd, rn, rm)
	notReg(asm, rd, rd)
}

func eqvReg(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg) {
	asm.EorReg64(rd, rn, rm)
	notReg(asm, rd, rd)
}

// notReg computes bitwise NOT via EOR with an all-ones mask — AArch64
// has no standalone NOT; MVN is an EOR-with-XZR... alias restricted to
// the EorReg64 shape this package already has, so spell it out instead.
func notReg(asm *aarch64.Assembler, rd, rn aarch64.Reg) {
	asm.MovImm64(scratchShift, ^uint64(0))
	asm.EorReg64(rd, rn, scratchShift)
}

// lowerAddSubReg lowers the non-OE add/subf forms. Overflow (OE) and
// carry (XER.CA) bookkeeping are not reproduced here — instructions
// using OE fall to the interpreter by never matching this dispatch
// (their XO10 differs from the plain form's).
func lowerAddSubReg(asm *aarch64.Assembler, ins ppc.Instruction, op func(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg)) error {
	a := loadGPR(asm, ins.RD, scratch0)
	b := loadGPR(asm, ins.RB, scratch1)
	op(asm, scratch2, a, b)
	storeGPR(asm, ins.RA, scratch2)
	if ins.Record {
		return updateCR0(asm, scratch2)
	}
	return nil
}

func lowerNeg(asm *aarch64.Assembler, ins ppc.Instruction) error {
	a := loadGPR(asm, ins.RD, scratch0)
	asm.NegReg64(scratch2, a)
	storeGPR(asm, ins.RA, scratch2)
	if ins.Record {
		return updateCR0(asm, scratch2)
	}
	return nil
}

func lowerLogicalReg(asm *aarch64.Assembler, ins ppc.Instruction, op func(asm *aarch64.Assembler, rd, rn, rm aarch64.Reg)) error {
	a := loadGPR(asm, ins.RD, scratch0)
	b := loadGPR(asm, ins.RB, scratch1)
	op(asm, scratch2, a, b)
	storeGPR(asm, ins.RA, scratch2)
	if ins.Record {
		return updateCR0(asm, scratch2)
	}
	return nil
}

// lowerCntlzw lowers cntlzw by masking the source to its low 32 bits,
// counting with the 64-bit CLZ Xd, Xn, and subtracting 32.
func lowerCntlzw(asm *aarch64.Assembler, ins ppc.Instruction) error {
	a := loadGPR(asm, ins.RD, scratch0)
	asm.MovImm64(scratchShift, 0xFFFFFFFF)
	asm.AndReg64(scratch2, a, scratchShift) // CLZ is 64-bit here; mask to the 32-bit view first
	asm.ClzReg64(scratch2, scratch2)
	if err := asm.SubImm64(scratch2, scratch2, 32); err != nil {
		return err
	}
	storeGPR(asm, ins.RA, scratch2)
	if ins.Record {
		return updateCR0(asm, scratch2)
	}
	return nil
}

// lowerCmp lowers cmp (signed) and cmpl (unsigned): it compares RA with
// RB and writes the full LT/GT/EQ/SO nibble (spec §4.D.5) into CR field
// ins.CRFD. The L bit (the low bit of ins.RD), which selects a 32- or
// 64-bit compare in the interpreter, is ignored: the comparison always
// runs at 64-bit width, so a 32-bit compare whose operands differ in
// their upper halves can give a different result than the interpreter.
func lowerCmp(asm *aarch64.Assembler, ins ppc.Instruction, signed bool) error {
	a := loadGPR(asm, ins.RA, scratch0)
	b := loadGPR(asm, ins.RB, scratch1)
	asm.CmpReg64(a, b)

	ltCond, gtCond := aarch64.LT, aarch64.GT
	if !signed {
		ltCond, gtCond = aarch64.CC, aarch64.HI
	}
	if err := buildCompareNibble(asm, ltCond, gtCond); err != nil {
		return err
	}
	return storeCRFieldNibble(asm, ins.CRFD)
}

// updateCR0 writes CR field 0 from result's sign versus zero, ORed
// with XER[SO] — the record-form (Rc) side effect of the arithmetic
// and logical ops above (spec §4.D.5, mirroring ppc.ThreadState.UpdateCR0).
func updateCR0(asm *aarch64.Assembler, result aarch64.Reg) error {
	asm.CmpReg64(result, aarch64.XZR)
	if err := buildCompareNibble(asm, aarch64.LT, aarch64.GT); err != nil {
		return err
	}
	return storeCRFieldNibble(asm, 0)
}

// buildCompareNibble assumes CMP has already set NZCV and assembles
// the resulting LT/GT/EQ/SO nibble into scratch3, clobbering
// scratch0..scratch2 along the way.
func buildCompareNibble(asm *aarch64.Assembler, ltCond, gtCond aarch64.Cond) error {
	asm.CsetReg64(scratch0, ltCond)
	asm.CsetReg64(scratch1, gtCond)
	asm.CsetReg64(scratch2, aarch64.EQ)
	asm.LslReg64(scratch0, scratch0, constReg(asm, 3))
	asm.LslReg64(scratch1, scratch1, constReg(asm, 2))
	asm.LslReg64(scratch2, scratch2, constReg(asm, 1))
	asm.OrrReg64(scratch3, scratch0, scratch1)
	asm.OrrReg64(scratch3, scratch3, scratch2)

	if err := asm.LdrImm64(scratch0, ContextReg, ppc.OffsetXER); err != nil {
		return err
	}
	asm.MovImm64(scratch1, ppc.XERBitSO)
	asm.AndReg64(scratch0, scratch0, scratch1)
	asm.CmpReg64(scratch0, aarch64.XZR)
	asm.CsetReg64(scratch0, aarch64.NE)
	asm.OrrReg64(scratch3, scratch3, scratch0)
	return nil
}

// storeCRFieldNibble merges the 4-bit value in scratch3 into CR field
// crf, leaving every other field untouched.
func storeCRFieldNibble(asm *aarch64.Assembler, crf uint8) error {
	shift := uint32(28 - 4*crf)
	if err := asm.LdrImm32(scratch0, ContextReg, ppc.OffsetCR); err != nil {
		return err
	}
	asm.MovImm64(scratch1, uint64(uint32(0xF)<<shift))
	asm.BicReg64(scratch0, scratch0, scratch1)
	asm.LslReg64(scratch3, scratch3, constReg(asm, shift))
	asm.OrrReg64(scratch0, scratch0, scratch3)
	return asm.StrImm32(scratch0, ContextReg, ppc.OffsetCR)
}

// lowerIndexedLoad lowers the lwzx/lbzx/lhzx/lhax family (and their
// update forms): effective address RA+RB (or just RB when RA==0),
// byte-reversed load of `size` bytes, optional sign extension, and the
// "ux" forms additionally writing the computed address back to RA.
func lowerIndexedLoad(asm *aarch64.Assembler, ins ppc.Instruction, size int, signExtend, update bool) error {
	ea := effectiveAddrIndexed2(asm, ins)
	asm.AddReg64(scratch2, ea, ArenaBaseReg)

	dst := scratch3
	switch size {
	case 1:
		if err := asm.LdrbImm(dst, scratch2, 0); err != nil {
			return err
		}
	case 2:
		if err := asm.LdrhImm(dst, scratch2, 0); err != nil {
			return err
		}
		revLoadHalf(asm, dst)
		if signExtend {
			signExtend16(asm, dst)
		}
	case 4:
		if err := asm.LdrImm32(dst, scratch2, 0); err != nil {
			return err
		}
		revLoadWord(asm, dst)
	}

	storeGPR(asm, ins.RD, dst)
	if update && ins.RA != 0 {
		storeGPR(asm, ins.RA, ea)
	}
	return nil
}

// lowerIndexedStore lowers stwx/stbx/sthx and their update forms.
func lowerIndexedStore(asm *aarch64.Assembler, ins ppc.Instruction, size int, update bool) error {
	ea := effectiveAddrIndexed2(asm, ins)
	asm.AddReg64(scratch2, ea, ArenaBaseReg)

	src := loadGPR(asm, ins.RD, scratch3)
	asm.MovReg64(scratch0, src)
	switch size {
	case 1:
		if err := asm.StrbImm(scratch0, scratch2, 0); err != nil {
			return err
		}
	case 2:
		revStoreHalf(asm, scratch0)
		if err := asm.StrhImm(scratch0, scratch2, 0); err != nil {
			return err
		}
	case 4:
		revStoreWord(asm, scratch0)
		if err := asm.StrImm32(scratch0, scratch2, 0); err != nil {
			return err
		}
	}

	if update && ins.RA != 0 {
		storeGPR(asm, ins.RA, ea)
	}
	return nil
}

// effectiveAddrIndexed2 computes (RA|0) + RB into scratch1, matching
// the X-form indexed addressing mode (spec §4.E.5); named to avoid
// colliding with the D-form effectiveAddrImm this package already has.
func effectiveAddrIndexed2(asm *aarch64.Assembler, ins ppc.Instruction) aarch64.Reg {
	b := loadGPR(asm, ins.RB, scratch1)
	if ins.RA == 0 {
		asm.MovReg64(scratch1, b)
		return scratch1
	}
	a := loadGPR(asm, ins.RA, scratch0)
	asm.AddReg64(scratch1, a, b)
	return scratch1
}

// revLoadHalf/revStoreHalf byte-swap a 16-bit halfword via a 32-bit REV
// then a 16-bit right shift, since this package has no dedicated REV16.
func revLoadHalf(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.RevW(reg, reg)
	asm.LsrReg64(reg, reg, constReg(asm, 16))
}

func revStoreHalf(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.LslReg64(reg, reg, constReg(asm, 16))
	asm.RevW(reg, reg)
}

// signExtend16 sign-extends the bottom 16 bits of reg into its full
// 64-bit width (PPC lhax/lhaux), via a left-shift/arithmetic-right-shift
// pair since this package has no dedicated SXTH.
func signExtend16(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.LslReg64(reg, reg, constReg(asm, 48))
	asm.AsrReg64(reg, reg, constReg(asm, 48))
}
