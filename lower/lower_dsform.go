package lower

import (
	"github.com/xyproto/xenonjit/aarch64"
	"github.com/xyproto/xenonjit/ppc"
)

// canLowerDSForm reports whether lowerDSForm handles ins's exact
// sub-opcode: only the plain ld/std forms (DSXO 0) are lowered here;
// ldu/lwa/stdu fall to the interpreter via jit.Compiler's CanLower gate.
func canLowerDSForm(ins ppc.Instruction) bool {
	switch ins.Primary {
	case 58:
		return ins.DSXO == 0 // ld
	case 62:
		return ins.DSXO == 0 // std
	default:
		return false
	}
}

// lowerDSForm lowers plain ld (primary 58, DSXO 0) and std (primary 62,
// DSXO 0): the DS-form doubleword family's effective address is D-form
// shaped (RA|0 plus a displacement) but the displacement comes from
// ins.DSOffset, already scaled by 4 in the decoder, not ins.SIMM.
func lowerDSForm(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if err := effectiveAddrDS(asm, ins, scratch0); err != nil {
		return err
	}
	asm.AddReg64(scratch0, scratch0, ArenaBaseReg)

	switch ins.Primary {
	case 58: // ld
		if err := asm.LdrImm64(scratch1, scratch0, 0); err != nil {
			return err
		}
		revLoadDword(asm, scratch1)
		storeGPR(asm, ins.RD, scratch1)
	case 62: // std
		src := loadGPR(asm, ins.RD, scratch1)
		asm.MovReg64(scratch2, src)
		revStoreDword(asm, scratch2)
		if err := asm.StrImm64(scratch2, scratch0, 0); err != nil {
			return err
		}
	}
	return nil
}

// effectiveAddrDS computes (rA|0) + DSOffset into dst.
func effectiveAddrDS(asm *aarch64.Assembler, ins ppc.Instruction, dst aarch64.Reg) error {
	if ins.RA == 0 {
		asm.MovImm64(dst, uint64(uint32(ins.DSOffset)))
		return nil
	}
	base := loadGPR(asm, ins.RA, dst)
	asm.MovImm64(scratch3, uint64(int64(ins.DSOffset)))
	asm.AddReg64(dst, base, scratch3)
	return nil
}

// revLoadDword/revStoreDword byte-swap a loaded/stored doubleword:
// guest memory is big-endian (spec §2), so every 64-bit compiled
// access must swap the same way lowerLwz/lowerStw do for words, via
// the 64-bit REV.
func revLoadDword(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.RevDW(reg, reg)
}

func revStoreDword(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.RevDW(reg, reg)
}
