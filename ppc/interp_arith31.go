package ppc

// addSubOp identifies which XO-form arithmetic operation execAddSub
// performs; every variant shares the same OE/Rc/CA bookkeeping.
type addSubOp int

const (
	addOp addSubOp = iota
	addcOp
	addeOp
	addzeOp
	addmeOp
	subfOp
	subfcOp
	subfeOp
	subfzeOp
	subfmeOp
	negOp
)

// execAddSub implements the full add/subf family (spec §4.D.3): all
// variants compute a 64-bit result plus a carry-out, optionally fold
// in the incoming XER[CA] for the extended (e) forms, and optionally
// set OV/SO when OE is set in the instruction word.
func (in *Interpreter) execAddSub(ts *ThreadState, ins Instruction, op addSubOp) (StepResult, error) {
	a := ts.R[ins.RD]
	b := ts.R[ins.RB]
	ca := uint64(0)
	if ts.XERCA() {
		ca = 1
	}

	var result uint64
	var carryOut bool
	var setsCA bool = true

	switch op {
	case addOp:
		result, carryOut = addWithCarry(a, b)
		setsCA = false
	case addcOp:
		result, carryOut = addWithCarry(a, b)
	case addeOp:
		result, carryOut = addWithCarry(a, b)
		result2, carry2 := addWithCarry(result, ca)
		result, carryOut = result2, carryOut || carry2
	case addzeOp:
		result, carryOut = addWithCarry(a, ca)
	case addmeOp:
		result, carryOut = addWithCarry(a, ^uint64(0))
		result2, carry2 := addWithCarry(result, ca)
		result, carryOut = result2, carryOut || carry2
	case subfOp:
		result, carryOut = addWithCarry(^a, b+1)
		setsCA = false
	case subfcOp:
		result = b - a
		carryOut = b >= a
	case subfeOp:
		result, carryOut = addWithCarry(^a, b)
		result2, carry2 := addWithCarry(result, ca)
		result, carryOut = result2, carryOut || carry2
	case subfzeOp:
		result, carryOut = addWithCarry(^a, ca)
	case subfmeOp:
		result, carryOut = addWithCarry(^a, ^uint64(0))
		result2, carry2 := addWithCarry(result, ca)
		result, carryOut = result2, carryOut || carry2
	case negOp:
		result = ^a + 1
		carryOut = a == 0
		setsCA = false
	}

	ts.R[ins.RA] = result
	if setsCA {
		ts.SetXERCA(carryOut)
	}

	if ins.OE {
		var ov bool
		switch op {
		case addOp, addcOp, addeOp, addzeOp, addmeOp:
			ov = addOverflow64(int64(a), int64(b), int64(result))
		default:
			ov = addOverflow64(int64(b), -int64(a), int64(result))
		}
		ts.SetXEROV(ov)
		if ov {
			ts.SetXERSO(true)
		}
	}

	if ins.Record {
		ts.UpdateCR0(result, 64)
	}

	ts.PC += 4
	return Continue, nil
}

func (in *Interpreter) execMulHigh(ts *ThreadState, ins Instruction, signed bool) (StepResult, error) {
	var result uint64
	if signed {
		a := int64(int32(uint32(ts.R[ins.RD])))
		b := int64(int32(uint32(ts.R[ins.RB])))
		result = uint64((a * b) >> 32)
	} else {
		a := uint64(uint32(ts.R[ins.RD]))
		b := uint64(uint32(ts.R[ins.RB]))
		result = (a * b) >> 32
	}
	ts.R[ins.RA] = uint32ExtendZero(uint32(result))
	if ins.Record {
		ts.UpdateCR0(ts.R[ins.RA], 32)
	}
	ts.PC += 4
	return Continue, nil
}

func uint32ExtendZero(v uint32) uint64 { return uint64(v) }

func (in *Interpreter) execMulLow32(ts *ThreadState, ins Instruction) (StepResult, error) {
	a := int32(uint32(ts.R[ins.RD]))
	b := int32(uint32(ts.R[ins.RB]))
	result := int64(a) * int64(b)
	ts.R[ins.RA] = uint64(uint32(result))
	if ins.OE {
		full := result
		ov := full != int64(int32(full))
		ts.SetXEROV(ov)
		if ov {
			ts.SetXERSO(true)
		}
	}
	if ins.Record {
		ts.UpdateCR0(ts.R[ins.RA], 32)
	}
	ts.PC += 4
	return Continue, nil
}

func (in *Interpreter) execMulLow64(ts *ThreadState, ins Instruction) (StepResult, error) {
	a := int64(ts.R[ins.RD])
	b := int64(ts.R[ins.RB])
	result := a * b
	ts.R[ins.RA] = uint64(result)
	if ins.Record {
		ts.UpdateCR0(ts.R[ins.RA], 64)
	}
	ts.PC += 4
	return Continue, nil
}

func (in *Interpreter) execDiv32(ts *ThreadState, ins Instruction, signed bool) (StepResult, error) {
	var result uint32
	var ov bool
	if signed {
		a := int32(uint32(ts.R[ins.RD]))
		b := int32(uint32(ts.R[ins.RB]))
		if b == 0 || (a == math32MinInt && b == -1) {
			ov = true
		} else {
			result = uint32(a / b)
		}
	} else {
		a := uint32(ts.R[ins.RD])
		b := uint32(ts.R[ins.RB])
		if b == 0 {
			ov = true
		} else {
			result = a / b
		}
	}
	ts.R[ins.RA] = uint64(result)
	if ins.OE {
		ts.SetXEROV(ov)
		if ov {
			ts.SetXERSO(true)
		}
	}
	if ins.Record {
		ts.UpdateCR0(uint64(result), 32)
	}
	ts.PC += 4
	return Continue, nil
}

const math32MinInt = -2147483648

func (in *Interpreter) execDiv64(ts *ThreadState, ins Instruction, signed bool) (StepResult, error) {
	var result uint64
	var ov bool
	if signed {
		a := int64(ts.R[ins.RD])
		b := int64(ts.R[ins.RB])
		if b == 0 || (a == math64MinInt && b == -1) {
			ov = true
		} else {
			result = uint64(a / b)
		}
	} else {
		a := ts.R[ins.RD]
		b := ts.R[ins.RB]
		if b == 0 {
			ov = true
		} else {
			result = a / b
		}
	}
	ts.R[ins.RA] = result
	if ins.OE {
		ts.SetXEROV(ov)
		if ov {
			ts.SetXERSO(true)
		}
	}
	if ins.Record {
		ts.UpdateCR0(result, 64)
	}
	ts.PC += 4
	return Continue, nil
}

const math64MinInt = -9223372036854775808
