package ppc

// BO field option bits (spec §4.D.3), named per the common emulator
// convention rather than the ISA manual's bit-0..4 numbering.
const (
	boDontCheckCondition = 0x10
	boBranchIfTrue       = 0x08
	boDontDecrementCTR   = 0x04
	boBranchIfCTRZero    = 0x02
)

func evalBranchCondition(ts *ThreadState, bo, bi uint8) bool {
	ctrOK := true
	if bo&boDontDecrementCTR == 0 {
		ts.CTR--
		if bo&boBranchIfCTRZero == 0 {
			ctrOK = ts.CTR != 0
		} else {
			ctrOK = ts.CTR == 0
		}
	}

	condOK := true
	if bo&boDontCheckCondition == 0 {
		bit := ts.CRBit(int(bi))
		if bo&boBranchIfTrue != 0 {
			condOK = bit
		} else {
			condOK = !bit
		}
	}

	return ctrOK && condOK
}

// execBC is the relative conditional branch, opcode 16 (spec §4.D.3).
func (in *Interpreter) execBC(ts *ThreadState, ins Instruction) (StepResult, error) {
	taken := evalBranchCondition(ts, ins.BO, ins.BI)

	nextPC := ts.PC + 4
	if ins.Link {
		ts.LR = uint64(nextPC)
	}

	if taken {
		if ins.Absolute {
			ts.PC = uint32(ins.BranchOffset)
		} else {
			ts.PC = ts.PC + uint32(ins.BranchOffset)
		}
		return Branch, nil
	}
	ts.PC = nextPC
	return Continue, nil
}

// execB is the unconditional direct branch family b/ba/bl/bla, opcode
// 18.
func (in *Interpreter) execB(ts *ThreadState, ins Instruction) (StepResult, error) {
	nextPC := ts.PC + 4
	if ins.Link {
		ts.LR = uint64(nextPC)
	}
	if ins.Absolute {
		ts.PC = uint32(ins.BranchOffset)
	} else {
		ts.PC = ts.PC + uint32(ins.BranchOffset)
	}
	return Branch, nil
}

// execOpcode19 covers the XL-form branch-register family (bclr,
// bcctr), the CR-logical ops, mcrf, and isync — all sharing primary 19.
func (in *Interpreter) execOpcode19(ts *ThreadState, ins Instruction) (StepResult, error) {
	switch ins.XO10 {
	case 16: // bclr / blr
		taken := evalBranchCondition(ts, ins.BO, ins.BI)
		target := uint32(ts.LR)
		nextPC := ts.PC + 4
		if ins.Link {
			ts.LR = uint64(nextPC)
		}
		if !taken {
			ts.PC = nextPC
			return Continue, nil
		}
		ts.PC = target
		if ins.IsReturn() {
			return Return, nil
		}
		return Branch, nil

	case 528: // bcctr / bctr
		// CTR is never the decremented register here (BO forces
		// "don't decrement" in all real encodings of this form), but
		// the CR test still applies.
		condOK := true
		if ins.BO&boDontCheckCondition == 0 {
			bit := ts.CRBit(int(ins.BI))
			if ins.BO&boBranchIfTrue != 0 {
				condOK = bit
			} else {
				condOK = !bit
			}
		}
		nextPC := ts.PC + 4
		if ins.Link {
			ts.LR = uint64(nextPC)
		}
		if !condOK {
			ts.PC = nextPC
			return Continue, nil
		}
		ts.PC = uint32(ts.CTR)
		return Branch, nil

	case 0: // mcrf: copy CR field CRFS into CRFD
		ts.SetCRField(int(ins.CRFD), ts.CRField(int(ins.CRFS)))

	case 257, 129, 193, 225, 289, 33, 417, 449: // cr-logical family
		return in.execCRLogical(ts, ins)

	case 150: // isync: no-op for the single-threaded interpreter
	case 18: // rfi: not meaningful outside a hypervisor context; stub
		return Halt, ErrInvalidOpcode

	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

// execCRLogical covers crand/cror/crxor/crnand/crnor/creqv/crandc/crorc
// identified by XO10 (spec §4.D.3).
func (in *Interpreter) execCRLogical(ts *ThreadState, ins Instruction) (StepResult, error) {
	a := ts.CRBit(int(ins.CRBA))
	b := ts.CRBit(int(ins.CRBB))
	var result bool

	switch ins.XO10 {
	case 257: // crand
		result = a && b
	case 129: // crandc
		result = a && !b
	case 193: // crxor
		result = a != b
	case 225: // crnand
		result = !(a && b)
	case 33: // crnor
		result = !(a || b)
	case 289: // creqv
		result = a == b
	case 417: // crorc
		result = a || !b
	case 449: // cror
		result = a || b
	default:
		return Halt, ErrInvalidOpcode
	}

	ts.SetCRBit(int(ins.CRBD), result)
	ts.PC += 4
	return Continue, nil
}

// execSC is the system-call gate, opcode 17. It takes the dispatch
// ordinal from R0, which the XEX2 import thunk (`li r0, ordinal; sc;
// blr`) loads just before the `sc` (spec §4.D.6, §6).
func (in *Interpreter) execSC(ts *ThreadState, ins Instruction) (StepResult, error) {
	ordinal := uint32(ts.R[0])
	result, err := in.runDispatch(ts, ordinal)
	if err != nil {
		ts.PC += 4
		return Syscall, err
	}
	ts.R[3] = result
	ts.PC += 4
	return Syscall, nil
}
