package aarch64

// Load/store encodings, generalizing flapc's StrImm64/LdrImm64 (and
// their FP counterparts) from string-keyed registers to Reg, plus the
// indexed and load-acquire/store-exclusive forms the PPC lowering
// needs for lwzx-family and lwarx/stwcx. reservations that
// arm64_instructions.go never had a reason to cover.

// LdrImm64 (LDR Xt, [Xn, #offset]), unsigned 12-bit scaled immediate.
func (a *Assembler) LdrImm64(rt, rn Reg, offset int32) error {
	if offset < 0 || offset%8 != 0 || offset >= (1<<12)*8 {
		return ErrImmediateRange
	}
	imm12 := uint32(offset / 8)
	a.emit(uint32(0xF9400000) | (imm12 << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// StrImm64 (STR Xt, [Xn, #offset]).
func (a *Assembler) StrImm64(rt, rn Reg, offset int32) error {
	if offset < 0 || offset%8 != 0 || offset >= (1<<12)*8 {
		return ErrImmediateRange
	}
	imm12 := uint32(offset / 8)
	a.emit(uint32(0xF9000000) | (imm12 << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// LdrImm32 (LDR Wt, [Xn, #offset]) — 32-bit (word) load, zero-extended
// into the bottom of Xt's 64-bit view.
func (a *Assembler) LdrImm32(rt, rn Reg, offset int32) error {
	if offset < 0 || offset%4 != 0 || offset >= (1<<12)*4 {
		return ErrImmediateRange
	}
	imm12 := uint32(offset / 4)
	a.emit(uint32(0xB9400000) | (imm12 << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// StrImm32 (STR Wt, [Xn, #offset]).
func (a *Assembler) StrImm32(rt, rn Reg, offset int32) error {
	if offset < 0 || offset%4 != 0 || offset >= (1<<12)*4 {
		return ErrImmediateRange
	}
	imm12 := uint32(offset / 4)
	a.emit(uint32(0xB9000000) | (imm12 << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// LdrbImm (LDRB Wt, [Xn, #offset]).
func (a *Assembler) LdrbImm(rt, rn Reg, offset int32) error {
	if offset < 0 || offset >= 4096 {
		return ErrImmediateRange
	}
	a.emit(uint32(0x39400000) | (uint32(offset) << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// StrbImm (STRB Wt, [Xn, #offset]).
func (a *Assembler) StrbImm(rt, rn Reg, offset int32) error {
	if offset < 0 || offset >= 4096 {
		return ErrImmediateRange
	}
	a.emit(uint32(0x39000000) | (uint32(offset) << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// LdrhImm (LDRH Wt, [Xn, #offset]).
func (a *Assembler) LdrhImm(rt, rn Reg, offset int32) error {
	if offset < 0 || offset%2 != 0 || offset >= 8192 {
		return ErrImmediateRange
	}
	a.emit(uint32(0x79400000) | (uint32(offset/2) << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// StrhImm (STRH Wt, [Xn, #offset]).
func (a *Assembler) StrhImm(rt, rn Reg, offset int32) error {
	if offset < 0 || offset%2 != 0 || offset >= 8192 {
		return ErrImmediateRange
	}
	a.emit(uint32(0x79000000) | (uint32(offset/2) << 10) | (rn.enc() << 5) | rt.enc())
	return nil
}

// LdrRegOffset64 (LDR Xt, [Xn, Xm]) — register-offset addressing, used
// for PPC's indexed load/store family (lwzx et al.) where the guest
// effective address is RA+RB computed at runtime.
func (a *Assembler) LdrRegOffset64(rt, rn, rm Reg) {
	a.emit(uint32(0xF8606800) | (rm.enc() << 16) | (rn.enc() << 5) | rt.enc())
}

// StrRegOffset64 (STR Xt, [Xn, Xm]).
func (a *Assembler) StrRegOffset64(rt, rn, rm Reg) {
	a.emit(uint32(0xF8206800) | (rm.enc() << 16) | (rn.enc() << 5) | rt.enc())
}

// LdrRegOffset32 (LDR Wt, [Xn, Xm]).
func (a *Assembler) LdrRegOffset32(rt, rn, rm Reg) {
	a.emit(uint32(0xB8606800) | (rm.enc() << 16) | (rn.enc() << 5) | rt.enc())
}

// StrRegOffset32 (STR Wt, [Xn, Xm]).
func (a *Assembler) StrRegOffset32(rt, rn, rm Reg) {
	a.emit(uint32(0xB8206800) | (rm.enc() << 16) | (rn.enc() << 5) | rt.enc())
}

// LdaxrReg32 (LDAXR Wt, [Xn]) — load-acquire exclusive, the host
// primitive backing lwarx's reservation (spec §4.D.4).
func (a *Assembler) LdaxrReg32(rt, rn Reg) {
	a.emit(uint32(0x885FFC00) | (rn.enc() << 5) | rt.enc())
}

// StlxrReg32 (STLXR Ws, Wt, [Xn]) — store-release exclusive; Ws
// receives 0 on success, 1 on failure, matching PPC stwcx.'s CR0.EQ
// polarity once inverted by the caller.
func (a *Assembler) StlxrReg32(rs, rt, rn Reg) {
	a.emit(uint32(0x8800FC00) | (rs.enc() << 16) | (rn.enc() << 5) | rt.enc())
}

// LdaxrReg64 / StlxrReg64: the doubleword forms backing ldarx/stdcx.
func (a *Assembler) LdaxrReg64(rt, rn Reg) {
	a.emit(uint32(0xC85FFC00) | (rn.enc() << 5) | rt.enc())
}

func (a *Assembler) StlxrReg64(rs, rt, rn Reg) {
	a.emit(uint32(0xC800FC00) | (rs.enc() << 16) | (rn.enc() << 5) | rt.enc())
}

// ClrexOp (CLREX) — releases any outstanding exclusive monitor; used
// when the interpreter/JIT boundary needs to drop a stale reservation.
func (a *Assembler) ClrexOp() { a.emit(0xD503305F) }

// StpPreIndex64 (STP Xt1, Xt2, [Xn, #imm]!) — pre-indexed store pair,
// the compiled block prologue's register-save instruction (spec
// §4.E.3): one instruction both reserves stack space and saves a
// callee-saved pair.
func (a *Assembler) StpPreIndex64(rt1, rt2, rn Reg, imm int32) error {
	if imm%8 != 0 || imm < -512 || imm > 504 {
		return ErrImmediateRange
	}
	imm7 := uint32(imm/8) & 0x7F
	a.emit(uint32(0xA9800000) | (imm7 << 15) | (rt2.enc() << 10) | (rn.enc() << 5) | rt1.enc())
	return nil
}

// LdpPostIndex64 (LDP Xt1, Xt2, [Xn], #imm) — post-indexed load pair,
// the epilogue's mirror image of StpPreIndex64.
func (a *Assembler) LdpPostIndex64(rt1, rt2, rn Reg, imm int32) error {
	if imm%8 != 0 || imm < -512 || imm > 504 {
		return ErrImmediateRange
	}
	imm7 := uint32(imm/8) & 0x7F
	a.emit(uint32(0xA8C00000) | (imm7 << 15) | (rt2.enc() << 10) | (rn.enc() << 5) | rt1.enc())
	return nil
}
