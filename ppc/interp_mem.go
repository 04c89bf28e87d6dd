package ppc

import "unsafe"

// Guest memory is big-endian (spec §2); the host is AArch64 running
// little-endian. Every access here swaps byte order explicitly rather
// than relying on an unsafe cast, so the behavior is correct regardless
// of host endianness assumptions elsewhere in the toolchain.

func (in *Interpreter) loadU8(addr uint32) uint8 {
	return *(*uint8)(in.hostPtr(addr))
}

func (in *Interpreter) storeU8(addr uint32, v uint8) {
	*(*uint8)(in.hostPtr(addr)) = v
}

func (in *Interpreter) loadU16(addr uint32) uint16 {
	p := in.hostPtr(addr)
	b0 := *(*uint8)(p)
	b1 := *(*uint8)(unsafe.Add(p, 1))
	return uint16(b0)<<8 | uint16(b1)
}

func (in *Interpreter) storeU16(addr uint32, v uint16) {
	p := in.hostPtr(addr)
	*(*uint8)(p) = uint8(v >> 8)
	*(*uint8)(unsafe.Add(p, 1)) = uint8(v)
}

func (in *Interpreter) loadU32(addr uint32) uint32 {
	p := in.hostPtr(addr)
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(*(*uint8)(unsafe.Add(p, i)))
	}
	return v
}

func (in *Interpreter) storeU32(addr uint32, v uint32) {
	p := in.hostPtr(addr)
	for i := 0; i < 4; i++ {
		*(*uint8)(unsafe.Add(p, i)) = uint8(v >> uint(8*(3-i)))
	}
}

func (in *Interpreter) loadU64(addr uint32) uint64 {
	hi := in.loadU32(addr)
	lo := in.loadU32(addr + 4)
	return uint64(hi)<<32 | uint64(lo)
}

func (in *Interpreter) storeU64(addr uint32, v uint64) {
	in.storeU32(addr, uint32(v>>32))
	in.storeU32(addr+4, uint32(v))
}

// execLoadStoreImm covers the D-form integer load/store family,
// opcodes 32..47 (spec §4.D.3). u-suffixed forms write RA back with the
// computed effective address (update forms).
func (in *Interpreter) execLoadStoreImm(ts *ThreadState, ins Instruction) (StepResult, error) {
	ea := uint32(int32(ts.R[ins.RA]) + int32(ins.SIMM))
	if ins.RA == 0 {
		ea = uint32(int32(ins.SIMM))
	}
	update := func() {
		if ins.RA != 0 {
			ts.R[ins.RA] = uint64(ea)
		}
	}

	switch ins.Primary {
	case 32: // lwz
		ts.R[ins.RD] = uint64(in.loadU32(ea))
	case 33: // lwzu
		ts.R[ins.RD] = uint64(in.loadU32(ea))
		update()
	case 34: // lbz
		ts.R[ins.RD] = uint64(in.loadU8(ea))
	case 35: // lbzu
		ts.R[ins.RD] = uint64(in.loadU8(ea))
		update()
	case 36: // stw
		in.storeU32(ea, uint32(ts.R[ins.RD]))
	case 37: // stwu
		in.storeU32(ea, uint32(ts.R[ins.RD]))
		update()
	case 38: // stb
		in.storeU8(ea, uint8(ts.R[ins.RD]))
	case 39: // stbu
		in.storeU8(ea, uint8(ts.R[ins.RD]))
		update()
	case 40: // lhz
		ts.R[ins.RD] = uint64(in.loadU16(ea))
	case 41: // lhzu
		ts.R[ins.RD] = uint64(in.loadU16(ea))
		update()
	case 42: // lha
		ts.R[ins.RD] = uint64(int64(int16(in.loadU16(ea))))
	case 43: // lhau
		ts.R[ins.RD] = uint64(int64(int16(in.loadU16(ea))))
		update()
	case 44: // sth
		in.storeU16(ea, uint16(ts.R[ins.RD]))
	case 45: // sthu
		in.storeU16(ea, uint16(ts.R[ins.RD]))
		update()
	case 46: // lmw: load multiple words RD..r31 from ea, ea+4, ...
		for r := int(ins.RD); r <= 31; r++ {
			ts.R[r] = uint64(in.loadU32(ea))
			ea += 4
		}
	case 47: // stmw
		for r := int(ins.RD); r <= 31; r++ {
			in.storeU32(ea, uint32(ts.R[r]))
			ea += 4
		}
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execDSForm covers the DS-form doubleword family, opcodes 58 (ld/ldu/
// lwa) and 62 (std/stdu): same D-form-style effective address as
// execLoadStoreImm, but the displacement comes from DSOffset (14 bits,
// pre-scaled by 4) rather than SIMM, and the 2-bit sub-opcode in
// DSXO — not Primary alone — picks the exact form.
func (in *Interpreter) execDSForm(ts *ThreadState, ins Instruction) (StepResult, error) {
	ea := uint32(int32(ts.R[ins.RA]) + ins.DSOffset)
	if ins.RA == 0 {
		ea = uint32(ins.DSOffset)
	}
	update := func() {
		if ins.RA != 0 {
			ts.R[ins.RA] = uint64(ea)
		}
	}

	switch ins.Primary {
	case 58:
		switch ins.DSXO {
		case 0: // ld
			ts.R[ins.RD] = in.loadU64(ea)
		case 1: // ldu
			ts.R[ins.RD] = in.loadU64(ea)
			update()
		case 2: // lwa
			ts.R[ins.RD] = uint64(int64(int32(in.loadU32(ea))))
		default:
			return Halt, ErrInvalidOpcode
		}
	case 62:
		switch ins.DSXO {
		case 0: // std
			in.storeU64(ea, ts.R[ins.RD])
		case 1: // stdu
			in.storeU64(ea, ts.R[ins.RD])
			update()
		default:
			return Halt, ErrInvalidOpcode
		}
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execFloatLoadStoreImm covers lfs/lfsu/lfd/lfdu/stfs/stfsu/stfd/stfdu,
// opcodes 48..55. Single-precision forms convert through float32 on the
// way in/out, matching the PowerPC single<->double load/store contract.
func (in *Interpreter) execFloatLoadStoreImm(ts *ThreadState, ins Instruction) (StepResult, error) {
	ea := uint32(int32(ts.R[ins.RA]) + int32(ins.SIMM))
	if ins.RA == 0 {
		ea = uint32(int32(ins.SIMM))
	}
	update := func() {
		if ins.RA != 0 {
			ts.R[ins.RA] = uint64(ea)
		}
	}

	switch ins.Primary {
	case 48: // lfs
		ts.FPR[ins.RD] = expandSingle(in.loadU32(ea))
	case 49: // lfsu
		ts.FPR[ins.RD] = expandSingle(in.loadU32(ea))
		update()
	case 50: // lfd
		ts.FPR[ins.RD] = in.loadU64(ea)
	case 51: // lfdu
		ts.FPR[ins.RD] = in.loadU64(ea)
		update()
	case 52: // stfs
		in.storeU32(ea, narrowToSingle(ts.FPR[ins.RD]))
	case 53: // stfsu
		in.storeU32(ea, narrowToSingle(ts.FPR[ins.RD]))
		update()
	case 54: // stfd
		in.storeU64(ea, ts.FPR[ins.RD])
	case 55: // stfdu
		in.storeU64(ea, ts.FPR[ins.RD])
		update()
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}
