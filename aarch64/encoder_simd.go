package aarch64

// Scalar double-precision FP encodings, generalizing flapc's
// LdrImm64Double/StrImm64Double to a typed VReg and adding the
// arithmetic ops arm64_instructions.go left as a TODO — PPC's FPR file
// is exposed to the interpreter as raw bit patterns (spec §4.D.3) but
// the JIT needs real FADD/FSUB/FMUL/FDIV/FCMP to avoid a software
// helper call per instruction.

// LdrImm64D (LDR Dt, [Xn, #offset]).
func (a *Assembler) LdrImm64D(vt VReg, rn Reg, offset int32) error {
	if offset%8 != 0 {
		return ErrImmediateRange
	}
	if offset < 0 {
		if offset < -256 || offset > 255 {
			return ErrImmediateRange
		}
		imm9 := uint32(offset) & 0x1FF
		a.emit(uint32(0xFC400000) | (imm9 << 12) | (rn.enc() << 5) | vt.enc())
		return nil
	}
	if offset >= (1<<12)*8 {
		return ErrImmediateRange
	}
	imm12 := uint32(offset / 8)
	a.emit(uint32(0xFD400000) | (imm12 << 10) | (rn.enc() << 5) | vt.enc())
	return nil
}

// StrImm64D (STR Dt, [Xn, #offset]).
func (a *Assembler) StrImm64D(vt VReg, rn Reg, offset int32) error {
	if offset%8 != 0 {
		return ErrImmediateRange
	}
	if offset < 0 {
		if offset < -256 || offset > 255 {
			return ErrImmediateRange
		}
		imm9 := uint32(offset) & 0x1FF
		a.emit(uint32(0xFC000000) | (imm9 << 12) | (rn.enc() << 5) | vt.enc())
		return nil
	}
	if offset >= (1<<12)*8 {
		return ErrImmediateRange
	}
	imm12 := uint32(offset / 8)
	a.emit(uint32(0xFD000000) | (imm12 << 10) | (rn.enc() << 5) | vt.enc())
	return nil
}

func (a *Assembler) fp3Reg(base uint32, vd, vn, vm VReg) {
	a.emit(base | (vm.enc() << 16) | (vn.enc() << 5) | vd.enc())
}

// FaddD (FADD Dd, Dn, Dm).
func (a *Assembler) FaddD(vd, vn, vm VReg) { a.fp3Reg(0x1E602800, vd, vn, vm) }

// FsubD (FSUB Dd, Dn, Dm).
func (a *Assembler) FsubD(vd, vn, vm VReg) { a.fp3Reg(0x1E603800, vd, vn, vm) }

// FmulD (FMUL Dd, Dn, Dm).
func (a *Assembler) FmulD(vd, vn, vm VReg) { a.fp3Reg(0x1E600800, vd, vn, vm) }

// FdivD (FDIV Dd, Dn, Dm).
func (a *Assembler) FdivD(vd, vn, vm VReg) { a.fp3Reg(0x1E601800, vd, vn, vm) }

// FnegD (FNEG Dd, Dn).
func (a *Assembler) FnegD(vd, vn VReg) {
	a.emit(uint32(0x1E614000) | (vn.enc() << 5) | vd.enc())
}

// FabsD (FABS Dd, Dn).
func (a *Assembler) FabsD(vd, vn VReg) {
	a.emit(uint32(0x1E60C000) | (vn.enc() << 5) | vd.enc())
}

// FmovD (FMOV Dd, Dn) — register-to-register move, no conversion.
func (a *Assembler) FmovD(vd, vn VReg) {
	a.emit(uint32(0x1E604000) | (vn.enc() << 5) | vd.enc())
}

// FcmpD (FCMP Dn, Dm) — sets NZCV for a subsequent CSET, the AArch64
// side of PPC's fcmpu/fcmpo (spec §4.D.3).
func (a *Assembler) FcmpD(vn, vm VReg) {
	a.emit(uint32(0x1E602000) | (vm.enc() << 16) | (vn.enc() << 5))
}

// FcvtDS (FCVT Sd, Dn) — double to single, narrowing (PPC frsp/stfs).
func (a *Assembler) FcvtDS(vd, vn VReg) {
	a.emit(uint32(0x1E624000) | (vn.enc() << 5) | vd.enc())
}

// FcvtSD (FCVT Dd, Sn) — single to double, widening (PPC lfs).
func (a *Assembler) FcvtSD(vd, vn VReg) {
	a.emit(uint32(0x1E22C000) | (vn.enc() << 5) | vd.enc())
}

// FmovXToD (FMOV Dd, Xn) — move a 64-bit GPR's raw bits into a D
// register, the JIT's route for materializing an FPR bit pattern the
// interpreter stored as a plain uint64 in ThreadState.FPR.
func (a *Assembler) FmovXToD(vd VReg, rn Reg) {
	a.emit(uint32(0x9E670000) | (rn.enc() << 5) | vd.enc())
}

// FmovDToX (FMOV Xd, Dn) — the inverse move.
func (a *Assembler) FmovDToX(rd Reg, vn VReg) {
	a.emit(uint32(0x9E660000) | (vn.enc() << 5) | rd.enc())
}
