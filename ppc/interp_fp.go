package ppc

import "math"

// FPRs always hold double-precision bit patterns internally, even when
// loaded or computed at single precision (spec §4.D.3); expandSingle
// and narrowToSingle implement the two conversions the single-precision
// load/store and arithmetic forms need.
func expandSingle(bits uint32) uint64 {
	return math.Float64bits(float64(math.Float32frombits(bits)))
}

func narrowToSingle(bits uint64) uint32 {
	return math.Float32bits(float32(math.Float64frombits(bits)))
}

func f64(bits uint64) float64 { return math.Float64frombits(bits) }
func bits64(v float64) uint64 { return math.Float64bits(v) }

// execOpcode59 covers the single-precision A-form float arithmetic
// family sharing primary opcode 59: fdivs(18) fsubs(20) fadds(21)
// fres(24) fmuls(25).
func (in *Interpreter) execOpcode59(ts *ThreadState, ins Instruction) (StepResult, error) {
	a := f64(ts.FPR[ins.RD])
	b := f64(ts.FPR[ins.RB])
	c := f64(ts.FPR[ins.RC])

	var result float64
	switch ins.XO5 {
	case 18: // fdivs
		result = a / b
	case 20: // fsubs
		result = a - b
	case 21: // fadds
		result = a + b
	case 24: // fres
		result = 1.0 / a
	case 25: // fmuls
		result = a * c
	default:
		return Halt, ErrInvalidOpcode
	}

	single := float64(float32(result))
	ts.FPR[ins.RA] = bits64(single)
	if ins.Record {
		ts.SetCRField(1, 0) // FPSCR exception summary bits not modeled
	}
	ts.PC += 4
	return Continue, nil
}

// execOpcode63 covers the double-precision float family sharing
// primary opcode 63: compares, arithmetic, and the register-move/round
// forms.
func (in *Interpreter) execOpcode63(ts *ThreadState, ins Instruction) (StepResult, error) {
	switch ins.XO10 {
	case 0: // fcmpu
		return in.execFCmp(ts, ins)
	case 32: // fcmpo (treated identically; no distinct exception model)
		return in.execFCmp(ts, ins)
	case 12: // frsp
		ts.FPR[ins.RA] = bits64(float64(float32(f64(ts.FPR[ins.RB]))))
		ts.PC += 4
		return Continue, nil
	case 40: // fneg
		ts.FPR[ins.RA] = bits64(-f64(ts.FPR[ins.RB]))
		ts.PC += 4
		return Continue, nil
	case 72: // fmr
		ts.FPR[ins.RA] = ts.FPR[ins.RB]
		ts.PC += 4
		return Continue, nil
	case 136: // fnabs
		ts.FPR[ins.RA] = bits64(-math.Abs(f64(ts.FPR[ins.RB])))
		ts.PC += 4
		return Continue, nil
	case 264: // fabs
		ts.FPR[ins.RA] = bits64(math.Abs(f64(ts.FPR[ins.RB])))
		ts.PC += 4
		return Continue, nil
	}

	switch ins.XO5 {
	case 18: // fdiv
		ts.FPR[ins.RA] = bits64(f64(ts.FPR[ins.RD]) / f64(ts.FPR[ins.RB]))
	case 20: // fsub
		ts.FPR[ins.RA] = bits64(f64(ts.FPR[ins.RD]) - f64(ts.FPR[ins.RB]))
	case 21: // fadd
		ts.FPR[ins.RA] = bits64(f64(ts.FPR[ins.RD]) + f64(ts.FPR[ins.RB]))
	case 23: // fsel
		if f64(ts.FPR[ins.RD]) >= 0 {
			ts.FPR[ins.RA] = ts.FPR[ins.RC]
		} else {
			ts.FPR[ins.RA] = ts.FPR[ins.RB]
		}
	case 25: // fmul
		ts.FPR[ins.RA] = bits64(f64(ts.FPR[ins.RD]) * f64(ts.FPR[ins.RC]))
	default:
		return Halt, ErrInvalidOpcode
	}
	ts.PC += 4
	return Continue, nil
}

func (in *Interpreter) execFCmp(ts *ThreadState, ins Instruction) (StepResult, error) {
	a := f64(ts.FPR[ins.RD])
	b := f64(ts.FPR[ins.RB])

	var field uint8
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		field = 0b0001 // FU (unordered)
	case a < b:
		field = 0b1000
	case a > b:
		field = 0b0100
	default:
		field = 0b0010
	}
	ts.SetCRField(int(ins.CRFD), field)
	ts.PC += 4
	return Continue, nil
}

// execMfspr/execMtspr implement the SPR family the interpreter models:
// LR (8), CTR (9), XER (1). SPR is encoded split across the RA/RB
// field positions as spr = (RB_field<<5)|RA_field (spec §4.D.7).
func sprNumber(ins Instruction) uint16 {
	return uint16(ins.RB)<<5 | uint16(ins.RA)
}

func (in *Interpreter) execMfspr(ts *ThreadState, ins Instruction) (StepResult, error) {
	switch sprNumber(ins) {
	case 1:
		ts.R[ins.RD] = ts.XER
	case 8:
		ts.R[ins.RD] = ts.LR
	case 9:
		ts.R[ins.RD] = ts.CTR
	default:
		ts.R[ins.RD] = 0
	}
	ts.PC += 4
	return Continue, nil
}

func (in *Interpreter) execMtspr(ts *ThreadState, ins Instruction) (StepResult, error) {
	switch sprNumber(ins) {
	case 1:
		ts.XER = ts.R[ins.RD]
	case 8:
		ts.LR = ts.R[ins.RD]
	case 9:
		ts.CTR = ts.R[ins.RD]
	}
	ts.PC += 4
	return Continue, nil
}
