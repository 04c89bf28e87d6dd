// Package lower translates decoded PPC instructions into AArch64
// machine code via the aarch64 encoder, implementing the register
// mapping and context ABI of spec §4.E.
package lower

import (
	"log"

	"github.com/xyproto/xenonjit/aarch64"
	"github.com/xyproto/xenonjit/ppc"
)

// Verbose mirrors ppc.Verbose for lowering-specific diagnostics
// (unimplemented opcodes, block-size overruns).
var Verbose = false

// Dedicated registers, spec §4.E.1.
const (
	ArenaBaseReg = aarch64.X8
	ContextReg   = aarch64.X9
	scratch0     = aarch64.X10
	scratch1     = aarch64.X11
	scratch2     = aarch64.X12
	scratch3     = aarch64.X13
	scratchShift = aarch64.X14
)

// hotFirst/hotLast/hotBase: PPC r3..r12 pin to callee-saved X19..X28.
const (
	hotFirst = 3
	hotLast  = 12
	hotBase  = aarch64.X19
)

// calleeSavedPairs lists every register pair a compiled block's
// prologue/epilogue saves and restores around the hot-register window:
// X29/X30 (frame pointer/link, AAPCS64) plus X19..X28 (spec §4.E.3).
// X27 and X28 of this set are the host Go runtime's REGTMP and
// goroutine-pointer registers respectively; without this save/restore
// a compiled block would clobber live runtime state the instant it ran.
var calleeSavedPairs = [6][2]aarch64.Reg{
	{aarch64.X29, aarch64.X30},
	{aarch64.X19, aarch64.X20},
	{aarch64.X21, aarch64.X22},
	{aarch64.X23, aarch64.X24},
	{aarch64.X25, aarch64.X26},
	{aarch64.X27, aarch64.X28},
}

// EmitPrologue pushes calleeSavedPairs onto the stack and then loads
// PPC r3..r12 from the context into their pinned hot registers: the
// only place the hot-register window is actually populated from
// ThreadState, since loadGPR's hot path assumes they already hold the
// right values.
func EmitPrologue(asm *aarch64.Assembler) error {
	for _, pair := range calleeSavedPairs {
		if err := asm.StpPreIndex64(pair[0], pair[1], aarch64.SP, -16); err != nil {
			return err
		}
	}
	for n := uint8(hotFirst); n <= hotLast; n++ {
		if err := asm.LdrImm64(hotReg(n), ContextReg, gprOffset(n)); err != nil {
			return err
		}
	}
	return nil
}

// EmitEpilogue stores the hot registers back to the context, pops
// calleeSavedPairs in reverse order, and returns to the trampoline.
// Every path that ends a compiled block — a taken or fallthrough
// branch, or the block stopping short of an unlowerable instruction —
// must route its exit through this instead of a bare Ret.
func EmitEpilogue(asm *aarch64.Assembler) error {
	for n := uint8(hotFirst); n <= hotLast; n++ {
		if err := asm.StrImm64(hotReg(n), ContextReg, gprOffset(n)); err != nil {
			return err
		}
	}
	for i := len(calleeSavedPairs) - 1; i >= 0; i-- {
		pair := calleeSavedPairs[i]
		if err := asm.LdpPostIndex64(pair[0], pair[1], aarch64.SP, 16); err != nil {
			return err
		}
	}
	asm.Ret(aarch64.X30)
	return nil
}

// EmitFallthrough ends a block one instruction early, at pc, because
// the next instruction has no lowering rule (CanLower reports false):
// the interpreter takes over starting at pc instead of the block
// silently treating that instruction as a NOP (spec §4.E.4).
func EmitFallthrough(asm *aarch64.Assembler, pc uint32) error {
	storePC(asm, pc)
	return EmitEpilogue(asm)
}

func isHot(ppcReg uint8) bool {
	return ppcReg >= hotFirst && ppcReg <= hotLast
}

func hotReg(ppcReg uint8) aarch64.Reg {
	return hotBase + aarch64.Reg(ppcReg-hotFirst)
}

// Context-relative byte offsets for PPC GPRs: the R array sits at
// offset 0 of the context (ppc.OffsetR), 8 bytes per register.
func gprOffset(n uint8) int32 { return int32(n) * 8 }

// loadGPR ensures ppc register n's value is available in a usable
// AArch64 register, returning it. Hot registers are already resident;
// cold registers (including r0, which is never in the hot r3..r12
// range but always reads as a real register value) are loaded into
// the given scratch slot.
func loadGPR(asm *aarch64.Assembler, n uint8, scratch aarch64.Reg) aarch64.Reg {
	if isHot(n) {
		return hotReg(n)
	}
	asm.LdrImm64(scratch, ContextReg, gprOffset(n))
	return scratch
}

// storeGPR writes a computed value back to ppc register n: a register
// move if n is hot (so subsequent instructions in the block see it
// without reloading), a context store otherwise.
func storeGPR(asm *aarch64.Assembler, n uint8, value aarch64.Reg) {
	if isHot(n) {
		if value != hotReg(n) {
			asm.MovReg64(hotReg(n), value)
		}
		return
	}
	asm.StrImm64(value, ContextReg, gprOffset(n))
}

// Lowering holds no state beyond what package-level functions need; it
// exists so call sites read `lower.New().Lower(...)` symmetrically with
// the other component constructors, even though today it is stateless.
type Lowering struct{}

// New returns a Lowering.
func New() *Lowering { return &Lowering{} }

// Lower emits the AArch64 sequence for one decoded PPC instruction.
// Unimplemented opcodes lower to a NOP plus a verbose-mode log line
// (spec §4.D.4's "dispatched but may be NOP + warning" contract,
// extended here to cover opcodes lower simply hasn't grown yet).
func (lo *Lowering) Lower(asm *aarch64.Assembler, ins ppc.Instruction) error {
	switch ins.Primary {
	case 14: // addi / li
		return lowerAddImm(asm, ins)
	case 15: // addis / lis
		return lowerAddisImm(asm, ins)
	case 24: // ori
		return lowerOrImm(asm, ins)
	case 32: // lwz
		return lowerLwz(asm, ins)
	case 36: // stw
		return lowerStw(asm, ins)
	case 16: // bc
		return lowerBC(asm, ins)
	case 18: // b / bl
		return lowerB(asm, ins)
	case 19:
		return lowerOpcode19(asm, ins)
	case 31:
		return lowerOpcode31(asm, ins)
	case 58, 62: // ld, std (DSXO 0 only; other DS-form variants aren't reached here)
		return lowerDSForm(asm, ins)
	default:
		logUnimplemented(ins)
		asm.Nop()
		return nil
	}
}

// CanLower reports whether Lower has a real lowering rule for ins,
// instead of falling to its default NOP case. jit.Compiler calls this
// before every Lower so an unhandled instruction stops the block and
// falls back to the interpreter rather than being silently skipped.
func CanLower(ins ppc.Instruction) bool {
	switch ins.Primary {
	case 14, 15, 24, 32, 36, 16, 18:
		return true
	case 19:
		return canLowerOpcode19(ins)
	case 31:
		return canLowerOpcode31(ins)
	case 58, 62:
		return canLowerDSForm(ins)
	default:
		return false
	}
}

// IsTerminator reports whether ins ends a compiled block. Every direct
// and conditional branch qualifies, not just blr/bcctr (see
// lower_branch.go) — the jit package's scanner stops at the first
// instruction for which this returns true.
func IsTerminator(ins ppc.Instruction) bool {
	switch ins.Primary {
	case 16, 18: // bc, b/bl
		return true
	case 19:
		switch ins.XO10 {
		case 16, 528: // bclr, bcctr
			return true
		}
	}
	return false
}

func logUnimplemented(ins ppc.Instruction) {
	if Verbose {
		log.Printf("lower: no lowering rule for primary opcode %d at %08x, emitting NOP", ins.Primary, ins.Address)
	}
}

func lowerAddImm(asm *aarch64.Assembler, ins ppc.Instruction) error {
	dst := scratch0
	if ins.RA == 0 {
		asm.MovImm64(dst, uint64(int64(ins.SIMM)))
	} else {
		src := loadGPR(asm, ins.RA, scratch0)
		if ins.SIMM >= 0 {
			if err := asm.AddImm64(dst, src, uint32(ins.SIMM)); err != nil {
				asm.MovImm64(scratch1, uint64(int64(ins.SIMM)))
				asm.AddReg64(dst, src, scratch1)
			}
		} else {
			asm.MovImm64(scratch1, uint64(int64(ins.SIMM)))
			asm.AddReg64(dst, src, scratch1)
		}
	}
	storeGPR(asm, ins.RD, dst)
	return nil
}

func lowerAddisImm(asm *aarch64.Assembler, ins ppc.Instruction) error {
	dst := scratch0
	imm := int64(ins.SIMM) << 16
	if ins.RA == 0 {
		asm.MovImm64(dst, uint64(imm))
	} else {
		src := loadGPR(asm, ins.RA, scratch0)
		asm.MovImm64(scratch1, uint64(imm))
		asm.AddReg64(dst, src, scratch1)
	}
	storeGPR(asm, ins.RD, dst)
	return nil
}

func lowerOrImm(asm *aarch64.Assembler, ins ppc.Instruction) error {
	src := loadGPR(asm, ins.RD, scratch0)
	asm.MovImm64(scratch1, uint64(ins.UIMM))
	asm.OrrReg64(scratch2, src, scratch1)
	storeGPR(asm, ins.RA, scratch2)
	return nil
}

func lowerLwz(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if err := effectiveAddrImm(asm, ins, scratch0); err != nil {
		return err
	}
	asm.AddReg64(scratch0, scratch0, ArenaBaseReg)
	asm.LdrImm32(scratch1, scratch0, 0)
	revLoadWord(asm, scratch1)
	storeGPR(asm, ins.RD, scratch1)
	return nil
}

func lowerStw(asm *aarch64.Assembler, ins ppc.Instruction) error {
	if err := effectiveAddrImm(asm, ins, scratch0); err != nil {
		return err
	}
	asm.AddReg64(scratch0, scratch0, ArenaBaseReg)
	src := loadGPR(asm, ins.RD, scratch1)
	asm.MovReg64(scratch2, src)
	revStoreWord(asm, scratch2)
	asm.StrImm32(scratch2, scratch0, 0)
	return nil
}

// effectiveAddrImm computes (rA|0) + SIMM into dst, matching PPC's
// D-form addressing (spec §4.E.5).
func effectiveAddrImm(asm *aarch64.Assembler, ins ppc.Instruction, dst aarch64.Reg) error {
	if ins.RA == 0 {
		asm.MovImm64(dst, uint64(uint32(int32(ins.SIMM))))
		return nil
	}
	base := loadGPR(asm, ins.RA, dst)
	asm.MovImm64(scratch3, uint64(int64(ins.SIMM)))
	asm.AddReg64(dst, base, scratch3)
	return nil
}

// revLoadWord/revStoreWord byte-swap a loaded/stored word in place:
// guest memory is big-endian (spec §2) but the host load/store
// instructions are little-endian, so every compiled access must swap.
func revLoadWord(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.RevW(reg, reg)
}

func revStoreWord(asm *aarch64.Assembler, reg aarch64.Reg) {
	asm.RevW(reg, reg)
}
