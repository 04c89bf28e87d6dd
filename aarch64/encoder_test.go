package aarch64

import "testing"

func lastWord(a *Assembler) uint32 {
	b := a.buf[len(a.buf)-4:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestAddImm64Encoding(t *testing.T) {
	a := NewAssembler()
	if err := a.AddImm64(X1, X2, 5); err != nil {
		t.Fatalf("AddImm64: %v", err)
	}
	// ADD X1, X2, #5 -> 0x91001441
	want := uint32(0x91000000) | (5 << 10) | (2 << 5) | 1
	if got := lastWord(a); got != want {
		t.Errorf("AddImm64 = %#08x, want %#08x", got, want)
	}
}

func TestAddImm64RangeCheck(t *testing.T) {
	a := NewAssembler()
	if err := a.AddImm64(X0, X0, 0x1000); err != ErrImmediateRange {
		t.Errorf("AddImm64 with imm=0x1000: got %v, want ErrImmediateRange", err)
	}
}

func TestMovReg64Encoding(t *testing.T) {
	a := NewAssembler()
	a.MovReg64(X0, X1)
	want := uint32(0xAA0003E0) | (1 << 16)
	if got := lastWord(a); got != want {
		t.Errorf("MovReg64 = %#08x, want %#08x", got, want)
	}
}

func TestMovImm64SmallFitsOneMovz(t *testing.T) {
	a := NewAssembler()
	a.MovImm64(X3, 0x1234)
	if a.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (single MOVZ)", a.Len())
	}
	want := uint32(0xD2800000) | (0x1234 << 5) | 3
	if got := lastWord(a); got != want {
		t.Errorf("MovImm64 = %#08x, want %#08x", got, want)
	}
}

func TestMovImm64LargeEmitsMovzPlusMovk(t *testing.T) {
	a := NewAssembler()
	a.MovImm64(X4, 0x123456789ABCDEF0)
	// 4 lanes, all nonzero -> 1 MOVZ + 3 MOVK = 16 bytes.
	if a.Len() != 16 {
		t.Errorf("Len() = %d, want 16", a.Len())
	}
}

func TestRetEncoding(t *testing.T) {
	a := NewAssembler()
	a.Ret(X30)
	if got := lastWord(a); got != 0xD65F03C0 {
		t.Errorf("Ret(X30) = %#08x, want 0xD65F03C0", got)
	}
}

func TestBranchPlaceholderAndPatch(t *testing.T) {
	a := NewAssembler()
	l := a.BranchPlaceholder()
	a.Nop()
	a.Nop()
	if err := a.Patch(l); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	word := binaryWordAt(a, l.pos)
	imm26 := int32(word & 0x3FFFFFF)
	if imm26 >= 1<<25 {
		imm26 -= 1 << 26
	}
	if imm26*4 != 12 {
		t.Errorf("patched branch offset = %d bytes, want 12", imm26*4)
	}
}

func TestBranchCondPlaceholderPreservesCondition(t *testing.T) {
	a := NewAssembler()
	l := a.BranchCondPlaceholder(NE)
	a.Nop()
	if err := a.Patch(l); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	word := binaryWordAt(a, l.pos)
	if Cond(word&0xF) != NE {
		t.Errorf("patched B.cond lost condition code: got %d, want NE", word&0xF)
	}
}

func TestLdrStrImm64RoundTripOffset(t *testing.T) {
	a := NewAssembler()
	if err := a.StrImm64(X0, X1, 16); err != nil {
		t.Fatalf("StrImm64: %v", err)
	}
	if err := a.StrImm64(X0, X1, 7); err != ErrImmediateRange {
		t.Errorf("StrImm64 unaligned offset: got %v, want ErrImmediateRange", err)
	}
}

func TestFaddDEncoding(t *testing.T) {
	a := NewAssembler()
	a.FaddD(V0, V1, V2)
	want := uint32(0x1E602800) | (2 << 16) | (1 << 5)
	if got := lastWord(a); got != want {
		t.Errorf("FaddD = %#08x, want %#08x", got, want)
	}
}
