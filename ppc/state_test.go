package ppc

import "testing"

func TestCRFieldRoundTrip(t *testing.T) {
	ts := NewThreadState(0)
	ts.SetCRField(3, CRBitLT|CRBitSO)
	if got := ts.CRField(3); got != CRBitLT|CRBitSO {
		t.Errorf("CRField(3) = %04b, want %04b", got, CRBitLT|CRBitSO)
	}
	if got := ts.CRField(0); got != 0 {
		t.Errorf("CRField(0) = %04b, want 0 (untouched)", got)
	}
}

func TestCRBitAddressing(t *testing.T) {
	ts := NewThreadState(0)
	ts.SetCRBit(0, true) // CR0's LT bit
	if ts.CRField(0) != CRBitLT {
		t.Errorf("SetCRBit(0,true) did not set CR0.LT")
	}
	if !ts.CRBit(0) {
		t.Errorf("CRBit(0) = false after SetCRBit(0,true)")
	}
}

func TestUpdateCR0Signed(t *testing.T) {
	ts := NewThreadState(0)
	ts.UpdateCR0(uint64(int64(-5)), 64)
	if ts.CRField(0) != CRBitLT {
		t.Errorf("UpdateCR0(-5) = %04b, want LT", ts.CRField(0))
	}

	ts.UpdateCR0(0, 64)
	if ts.CRField(0) != CRBitEQ {
		t.Errorf("UpdateCR0(0) = %04b, want EQ", ts.CRField(0))
	}

	ts.UpdateCR0(7, 64)
	if ts.CRField(0) != CRBitGT {
		t.Errorf("UpdateCR0(7) = %04b, want GT", ts.CRField(0))
	}
}

func TestUpdateCR0Width32TruncatesSignExtension(t *testing.T) {
	ts := NewThreadState(0)
	// 0xFFFFFFFF00000001 truncated to 32 bits is 1 (positive), even
	// though the full 64-bit value is negative.
	ts.UpdateCR0(0xFFFFFFFF00000001, 32)
	if ts.CRField(0) != CRBitGT {
		t.Errorf("UpdateCR0 width=32 = %04b, want GT", ts.CRField(0))
	}
}

func TestUpdateCR0CarriesSO(t *testing.T) {
	ts := NewThreadState(0)
	ts.SetXERSO(true)
	ts.UpdateCR0(0, 64)
	if ts.CRField(0) != CRBitEQ|CRBitSO {
		t.Errorf("UpdateCR0 with SO set = %04b, want EQ|SO", ts.CRField(0))
	}
}

func TestXERBitAccessors(t *testing.T) {
	ts := NewThreadState(0)
	ts.SetXERCA(true)
	if !ts.XERCA() {
		t.Errorf("XERCA() false after SetXERCA(true)")
	}
	ts.SetXERCA(false)
	if ts.XERCA() {
		t.Errorf("XERCA() true after SetXERCA(false)")
	}
}

func TestABIOffsetsDidNotPanic(t *testing.T) {
	// init() already ran at package load; reaching this line at all is
	// the assertion. Exercise the fields directly too.
	var ts ThreadState
	ts.R[0] = 1
	ts.LR = 2
	ts.FPR[0] = 3
	ts.VMX[0][0] = 4
	if ts.R[0] != 1 || ts.LR != 2 || ts.FPR[0] != 3 || ts.VMX[0][0] != 4 {
		t.Fatalf("field writes did not round-trip")
	}
}
