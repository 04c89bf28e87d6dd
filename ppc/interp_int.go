package ppc

// execArithImm covers the D-form immediate-arithmetic family: mulli(7),
// subfic(8), addic(12), addic.(13), addi(14), addis(15) — spec §4.D.3.
func (in *Interpreter) execArithImm(ts *ThreadState, ins Instruction) (StepResult, error) {
	simm := int64(ins.SIMM)
	ra := int64(ts.R[ins.RA])
	if ins.RA == 0 && (ins.Primary == 14 || ins.Primary == 15) {
		ra = 0
	}

	switch ins.Primary {
	case 7: // mulli
		ts.R[ins.RD] = uint64(ra * simm)
	case 8: // subfic
		result, carry := subWithCarry(uint64(simm), uint64(ra))
		ts.R[ins.RD] = result
		ts.SetXERCA(carry)
	case 12: // addic
		result, carry := addWithCarry(uint64(ra), uint64(simm))
		ts.R[ins.RD] = result
		ts.SetXERCA(carry)
	case 13: // addic.
		result, carry := addWithCarry(uint64(ra), uint64(simm))
		ts.R[ins.RD] = result
		ts.SetXERCA(carry)
		ts.UpdateCR0(result, 64)
	case 14: // addi / li
		ts.R[ins.RD] = uint64(ra + simm)
	case 15: // addis / lis
		ts.R[ins.RD] = uint64(ra + (simm << 16))
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execCompareImm covers cmpi(11) and cmpli(10): compare RA against a
// sign- or zero-extended immediate, writing the chosen CR field.
func (in *Interpreter) execCompareImm(ts *ThreadState, ins Instruction) (StepResult, error) {
	width := 32
	if ins.RD&1 != 0 { // L bit (bit 10, the low bit of the RD field)
		width = 64
	}
	crf := int(ins.CRFD)

	switch ins.Primary {
	case 11: // cmpi (signed)
		var lhs, rhs int64
		if width == 64 {
			lhs, rhs = int64(ts.R[ins.RA]), int64(ins.SIMM)
		} else {
			lhs, rhs = int64(int32(uint32(ts.R[ins.RA]))), int64(ins.SIMM)
		}
		ts.SetCRField(crf, signedCompareField(lhs, rhs, ts.XERSO()))
	case 10: // cmpli (unsigned)
		var lhs, rhs uint64
		if width == 64 {
			lhs, rhs = ts.R[ins.RA], uint64(ins.UIMM)
		} else {
			lhs, rhs = uint64(uint32(ts.R[ins.RA])), uint64(ins.UIMM)
		}
		ts.SetCRField(crf, unsignedCompareField(lhs, rhs, ts.XERSO()))
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execLogicalImm covers ori/oris/xori/xoris (no CR update) and
// andi./andis. (always update CR0), opcodes 24..29.
func (in *Interpreter) execLogicalImm(ts *ThreadState, ins Instruction) (StepResult, error) {
	ra := ts.R[ins.RA]
	uimm := uint64(ins.UIMM)

	switch ins.Primary {
	case 24: // ori
		ts.R[ins.RA] = ts.R[ins.RD] | uimm
	case 25: // oris
		ts.R[ins.RA] = ts.R[ins.RD] | (uimm << 16)
	case 26: // xori
		ts.R[ins.RA] = ts.R[ins.RD] ^ uimm
	case 27: // xoris
		ts.R[ins.RA] = ts.R[ins.RD] ^ (uimm << 16)
	case 28: // andi.
		result := ts.R[ins.RD] & uimm
		ts.R[ins.RA] = result
		ts.UpdateCR0(result, 32)
	case 29: // andis.
		result := ts.R[ins.RD] & (uimm << 16)
		ts.R[ins.RA] = result
		ts.UpdateCR0(result, 32)
	default:
		_ = ra
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execRotate32 covers rlwimi(20), rlwinm(21), rlwnm(23) — the M-form
// 32-bit rotate-and-mask family (spec property 4).
func (in *Interpreter) execRotate32(ts *ThreadState, ins Instruction) (StepResult, error) {
	mask := uint32(MaskMBME(ins.MB, ins.ME))

	switch ins.Primary {
	case 21: // rlwinm
		rotated := rotl32(uint32(ts.R[ins.RD]), ins.SH)
		result := rotated & mask
		ts.R[ins.RA] = uint64(result)
		if ins.Record {
			ts.UpdateCR0(uint64(result), 32)
		}
	case 20: // rlwimi
		rotated := rotl32(uint32(ts.R[ins.RD]), ins.SH)
		result := (rotated & mask) | (uint32(ts.R[ins.RA]) &^ mask)
		ts.R[ins.RA] = uint64(result)
		if ins.Record {
			ts.UpdateCR0(uint64(result), 32)
		}
	case 23: // rlwnm
		sh := uint8(ts.R[ins.RB] & 0x1F)
		rotated := rotl32(uint32(ts.R[ins.RD]), sh)
		result := rotated & mask
		ts.R[ins.RA] = uint64(result)
		if ins.Record {
			ts.UpdateCR0(uint64(result), 32)
		}
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execRotate64 covers the md/mds-form 64-bit rotate family: rldicl,
// rldicr, rldic, rldimi (md-form, XO5 selects the variant) and rldcl,
// rldcr (mds-form, register shift amount).
func (in *Interpreter) execRotate64(ts *ThreadState, ins Instruction) (StepResult, error) {
	switch ins.XO5 {
	case 0, 1: // rldicl (XO 0x)
		mask := Mask64MBME(ins.MB64, 63)
		result := rotl64(ts.R[ins.RD], ins.SH64) & mask
		ts.R[ins.RA] = result
		if ins.Record {
			ts.UpdateCR0(result, 64)
		}
	case 2, 3: // rldicr
		mask := Mask64MBME(0, ins.MB64)
		result := rotl64(ts.R[ins.RD], ins.SH64) & mask
		ts.R[ins.RA] = result
		if ins.Record {
			ts.UpdateCR0(result, 64)
		}
	case 4, 5: // rldic
		mask := Mask64MBME(ins.MB64, 63-uint8(ins.SH64))
		result := rotl64(ts.R[ins.RD], ins.SH64) & mask
		ts.R[ins.RA] = result
		if ins.Record {
			ts.UpdateCR0(result, 64)
		}
	case 6, 7: // rldimi
		mask := Mask64MBME(ins.MB64, 63-uint8(ins.SH64))
		rotated := rotl64(ts.R[ins.RD], ins.SH64)
		result := (rotated & mask) | (ts.R[ins.RA] &^ mask)
		ts.R[ins.RA] = result
		if ins.Record {
			ts.UpdateCR0(result, 64)
		}
	default:
		switch ins.XO4 {
		case 8: // rldcl (mds-form, shift from RB)
			sh := uint8(ts.R[ins.RB] & 0x3F)
			mask := Mask64MBME(ins.MB64, 63)
			result := rotl64(ts.R[ins.RD], sh) & mask
			ts.R[ins.RA] = result
			if ins.Record {
				ts.UpdateCR0(result, 64)
			}
		case 9: // rldcr
			sh := uint8(ts.R[ins.RB] & 0x3F)
			mask := Mask64MBME(0, ins.MB64)
			result := rotl64(ts.R[ins.RD], sh) & mask
			ts.R[ins.RA] = result
			if ins.Record {
				ts.UpdateCR0(result, 64)
			}
		default:
			return Halt, ErrInvalidOpcode
		}
	}
	ts.PC += 4
	return Continue, nil
}

func addWithCarry(a, b uint64) (result uint64, carry bool) {
	result = a + b
	carry = result < a
	return
}

func subWithCarry(a, b uint64) (result uint64, carry bool) {
	// PPC subfic/subf carry convention: CA is set when no borrow occurs,
	// i.e. when b <= a for `a - b` computed here as (^b + 1 + a).
	result = a - b
	carry = a >= b
	return
}

func addOverflow32(a, b int32, result int32) bool {
	return ((a >= 0) == (b >= 0)) && ((result >= 0) != (a >= 0))
}

func addOverflow64(a, b int64, result int64) bool {
	return ((a >= 0) == (b >= 0)) && ((result >= 0) != (a >= 0))
}

func signedCompareField(lhs, rhs int64, so bool) uint8 {
	var f uint8
	switch {
	case lhs < rhs:
		f = CRBitLT
	case lhs > rhs:
		f = CRBitGT
	default:
		f = CRBitEQ
	}
	if so {
		f |= CRBitSO
	}
	return f
}

func unsignedCompareField(lhs, rhs uint64, so bool) uint8 {
	var f uint8
	switch {
	case lhs < rhs:
		f = CRBitLT
	case lhs > rhs:
		f = CRBitGT
	default:
		f = CRBitEQ
	}
	if so {
		f |= CRBitSO
	}
	return f
}
