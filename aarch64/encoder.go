package aarch64

import (
	"encoding/binary"
	"errors"
)

// ErrImmediateRange is returned by any encoding whose immediate operand
// doesn't fit the instruction's field width.
var ErrImmediateRange = errors.New("aarch64: immediate out of range")

// Assembler accumulates 32-bit instruction words into a linear buffer.
// It has no notion of symbols or sections; the lower/jit packages track
// guest-address-to-offset mapping themselves and call Patch for
// forward branches.
type Assembler struct {
	buf []byte
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Len returns the number of bytes emitted so far.
func (a *Assembler) Len() int { return len(a.buf) }

// Bytes returns the accumulated machine code.
func (a *Assembler) Bytes() []byte { return a.buf }

// emit appends one instruction word in little-endian byte order via
// binary.LittleEndian.PutUint32.
func (a *Assembler) emit(instr uint32) {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], instr)
	a.buf = append(a.buf, word[:]...)
}

// EmitRaw appends one raw instruction word, for the rare instruction
// the typed surface below doesn't cover yet (callers should prefer a
// named method when one exists).
func (a *Assembler) EmitRaw(instr uint32) { a.emit(instr) }

// RevW (REV Wd, Wn) — byte-reverses the 32-bit value in Wn into Wd,
// the big-endian/little-endian swap every compiled guest memory access
// needs (spec §2).
func (a *Assembler) RevW(rd, rn Reg) {
	a.emit(uint32(0x5AC00800) | (rn.enc() << 5) | rd.enc())
}

// RevDW (REV Xd, Xn) — the 64-bit sibling of RevW, for the DS-form
// doubleword loads/stores (ld/std) that need a full 8-byte swap.
func (a *Assembler) RevDW(rd, rn Reg) {
	a.emit(uint32(0xDAC00C00) | (rn.enc() << 5) | rd.enc())
}

// PatchWord overwrites the instruction word at byte offset pos — used
// to back-patch a branch emitted before its target address was known.
func (a *Assembler) PatchWord(pos int, instr uint32) {
	binary.LittleEndian.PutUint32(a.buf[pos:pos+4], instr)
}

// ---- Data processing: immediate ----

// MovZ64 (MOVZ Xd, #imm16, LSL #(shift*16)): load a 16-bit immediate
// into one lane of Xd, zeroing the rest.
func (a *Assembler) MovZ64(rd Reg, imm16 uint16, shift uint8) error {
	if shift > 3 {
		return ErrImmediateRange
	}
	instr := uint32(0xD2800000) | (uint32(shift) << 21) | (uint32(imm16) << 5) | rd.enc()
	a.emit(instr)
	return nil
}

// MovK64 (MOVK Xd, #imm16, LSL #(shift*16)): overwrite one 16-bit lane,
// leaving the rest of Xd untouched — used with MovZ64 to materialize
// arbitrary 64-bit constants, as flapc's MovImm64 chains MOVZ+MOVK.
func (a *Assembler) MovK64(rd Reg, imm16 uint16, shift uint8) error {
	if shift > 3 {
		return ErrImmediateRange
	}
	instr := uint32(0xF2800000) | (uint32(shift) << 21) | (uint32(imm16) << 5) | rd.enc()
	a.emit(instr)
	return nil
}

// MovImm64 materializes an arbitrary 64-bit constant via MOVZ followed
// by as many MOVK as needed, generalizing flapc's MovImm64.
func (a *Assembler) MovImm64(rd Reg, imm uint64) {
	a.MovZ64(rd, uint16(imm), 0)
	for shift := uint8(1); shift < 4; shift++ {
		lane := uint16(imm >> (16 * shift))
		if lane != 0 {
			a.MovK64(rd, lane, shift)
		}
	}
}

// MovReg64 (MOV Xd, Xn), encoded as ORR Xd, XZR, Xn.
func (a *Assembler) MovReg64(rd, rn Reg) {
	instr := uint32(0xAA0003E0) | (rn.enc() << 16) | rd.enc()
	a.emit(instr)
}

// AddImm64 (ADD Xd, Xn, #imm12).
func (a *Assembler) AddImm64(rd, rn Reg, imm uint32) error {
	if imm > 0xFFF {
		return ErrImmediateRange
	}
	a.emit(uint32(0x91000000) | (imm << 10) | (rn.enc() << 5) | rd.enc())
	return nil
}

// SubImm64 (SUB Xd, Xn, #imm12).
func (a *Assembler) SubImm64(rd, rn Reg, imm uint32) error {
	if imm > 0xFFF {
		return ErrImmediateRange
	}
	a.emit(uint32(0xD1000000) | (imm << 10) | (rn.enc() << 5) | rd.enc())
	return nil
}

// AndsImm64 (ANDS Xd, Xn, #bitmask) is deliberately not implemented:
// AArch64's logical-immediate encoding uses a repeating bitmask scheme
// incompatible with plain imm12 math; lower always materializes the
// PPC rotate/logical-immediate mask into a scratch register with
// MovImm64 first and uses the register forms below instead.

// ---- Data processing: register ----

func (a *Assembler) dp3Reg(base uint32, rd, rn, rm Reg) {
	a.emit(base | (rm.enc() << 16) | (rn.enc() << 5) | rd.enc())
}

// AddReg64 (ADD Xd, Xn, Xm).
func (a *Assembler) AddReg64(rd, rn, rm Reg) { a.dp3Reg(0x8B000000, rd, rn, rm) }

// AddsReg64 (ADDS Xd, Xn, Xm) — sets NZCV, used to derive PPC XER.CA.
func (a *Assembler) AddsReg64(rd, rn, rm Reg) { a.dp3Reg(0xAB000000, rd, rn, rm) }

// SubReg64 (SUB Xd, Xn, Xm).
func (a *Assembler) SubReg64(rd, rn, rm Reg) { a.dp3Reg(0xCB000000, rd, rn, rm) }

// SubsReg64 (SUBS Xd, Xn, Xm) — sets NZCV.
func (a *Assembler) SubsReg64(rd, rn, rm Reg) { a.dp3Reg(0xEB000000, rd, rn, rm) }

// MulReg64 (MUL Xd, Xn, Xm), encoded as MADD Xd, Xn, Xm, XZR.
func (a *Assembler) MulReg64(rd, rn, rm Reg) {
	a.emit(uint32(0x9B000000) | (rm.enc() << 16) | (XZR.enc() << 10) | (rn.enc() << 5) | rd.enc())
}

// SDivReg64 (SDIV Xd, Xn, Xm).
func (a *Assembler) SDivReg64(rd, rn, rm Reg) { a.dp3Reg(0x9AC00C00, rd, rn, rm) }

// UDivReg64 (UDIV Xd, Xn, Xm).
func (a *Assembler) UDivReg64(rd, rn, rm Reg) { a.dp3Reg(0x9AC00800, rd, rn, rm) }

// AndReg64 (AND Xd, Xn, Xm).
func (a *Assembler) AndReg64(rd, rn, rm Reg) { a.dp3Reg(0x8A000000, rd, rn, rm) }

// OrrReg64 (ORR Xd, Xn, Xm).
func (a *Assembler) OrrReg64(rd, rn, rm Reg) { a.dp3Reg(0xAA000000, rd, rn, rm) }

// EorReg64 (EOR Xd, Xn, Xm).
func (a *Assembler) EorReg64(rd, rn, rm Reg) { a.dp3Reg(0xCA000000, rd, rn, rm) }

// BicReg64 (BIC Xd, Xn, Xm) i.e. Xn AND NOT Xm — the PPC andc lowering.
func (a *Assembler) BicReg64(rd, rn, rm Reg) { a.dp3Reg(0x8A200000, rd, rn, rm) }

// OrnReg64 (ORN Xd, Xn, Xm) i.e. Xn OR NOT Xm — the PPC orc lowering.
func (a *Assembler) OrnReg64(rd, rn, rm Reg) { a.dp3Reg(0xAA200000, rd, rn, rm) }

// LslReg64 (LSLV Xd, Xn, Xm).
func (a *Assembler) LslReg64(rd, rn, rm Reg) { a.dp3Reg(0x9AC02000, rd, rn, rm) }

// LsrReg64 (LSRV Xd, Xn, Xm).
func (a *Assembler) LsrReg64(rd, rn, rm Reg) { a.dp3Reg(0x9AC02400, rd, rn, rm) }

// AsrReg64 (ASRV Xd, Xn, Xm).
func (a *Assembler) AsrReg64(rd, rn, rm Reg) { a.dp3Reg(0x9AC02800, rd, rn, rm) }

// RorReg64 (RORV Xd, Xn, Xm) — the direct AArch64 counterpart of PPC's
// rotate-word-immediate family once the shift amount is in a register.
func (a *Assembler) RorReg64(rd, rn, rm Reg) { a.dp3Reg(0x9AC02C00, rd, rn, rm) }

// CmpReg64 (CMP Xn, Xm), encoded as SUBS XZR, Xn, Xm.
func (a *Assembler) CmpReg64(rn, rm Reg) { a.SubsReg64(XZR, rn, rm) }

// CsetReg64 (CSET Xd, cond), encoded as CSINC Xd, XZR, XZR, invert(cond).
func (a *Assembler) CsetReg64(rd Reg, cond Cond) {
	inv := cond ^ 1
	a.emit(uint32(0x9A9F07E0) | (uint32(inv) << 12) | rd.enc())
}

// NegReg64 (NEG Xd, Xm), encoded as SUB Xd, XZR, Xm.
func (a *Assembler) NegReg64(rd, rm Reg) { a.SubReg64(rd, XZR, rm) }

// ClzReg64 (CLZ Xd, Xn) — counts leading zeros across all 64 bits;
// lowerCntlzw masks its source to 32 bits and subtracts 32.
func (a *Assembler) ClzReg64(rd, rn Reg) {
	a.emit(uint32(0xDAC01000) | (rn.enc() << 5) | rd.enc())
}

// Nop (NOP).
func (a *Assembler) Nop() { a.emit(0xD503201F) }

// Brk (BRK #imm) traps to the host debugger/signal handler; emitted at
// the end of an over-budget compiled block so a runaway scan fails
// loudly instead of executing past its allotted buffer.
func (a *Assembler) Brk(imm16 uint16) { a.emit(0xD4200000 | uint32(imm16)<<5) }
