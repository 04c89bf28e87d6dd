package lower

import (
	"testing"

	"github.com/xyproto/xenonjit/aarch64"
	"github.com/xyproto/xenonjit/ppc"
)

func TestIsHotRange(t *testing.T) {
	cases := []struct {
		reg  uint8
		want bool
	}{
		{0, false}, {2, false}, {3, true}, {7, true}, {12, true}, {13, false}, {31, false},
	}
	for _, c := range cases {
		if got := isHot(c.reg); got != c.want {
			t.Errorf("isHot(%d) = %v, want %v", c.reg, got, c.want)
		}
	}
}

func TestHotRegMapping(t *testing.T) {
	if got := hotReg(3); got != aarch64.X19 {
		t.Errorf("hotReg(3) = %v, want X19", got)
	}
	if got := hotReg(12); got != aarch64.X28 {
		t.Errorf("hotReg(12) = %v, want X28", got)
	}
}

func TestLowerAddImmHotDestUsesMovReg(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	// addi r5, 0, 42 -> li r5, 42; r5 is hot, so the result is
	// materialized directly then moved into its pinned register.
	ins := ppc.Decode(0, 0x38A0002A) // addi r5, r0, 42
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if asm.Len() == 0 {
		t.Fatal("expected emitted instructions")
	}
}

func TestLowerLwzEmitsLoadAndByteSwap(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	ins := ppc.Decode(0, 0x80010008) // lwz r0, 8(r1)
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	// effective address, arena add, word load, REV, store-back: at
	// least 4 instructions for a cold destination.
	if asm.Len() < 4*4 {
		t.Errorf("Len() = %d, want at least 16 bytes", asm.Len())
	}
}

func TestLowerBUnconditionalComputesConstantTarget(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	ins := ppc.Decode(0x1000, 0x48000010) // b +16 (not absolute, not linked)
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if asm.Len() == 0 {
		t.Fatal("expected emitted instructions")
	}
}

func TestLowerBCEmitsConditionalJoinPattern(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	// bc with BO=0 (decrement CTR and branch if nonzero, AND check the
	// condition bit), BI=2, target +32: exercises both the CTR and CR
	// check paths being compile-time selected from BO.
	word := uint32(16)<<26 | uint32(0)<<21 | uint32(2)<<16 | uint32(8)<<2
	ins := ppc.Decode(0, word)
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if asm.Len() == 0 {
		t.Fatal("expected emitted instructions")
	}
}

func TestLowerOpcode31AddRegister(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	// add r3, r4, r5 (XO10=266): primary=31, RD=3, RA=4, RB=5, XO10=266
	word := uint32(31)<<26 | uint32(3)<<21 | uint32(4)<<16 | uint32(5)<<11 | uint32(266)<<1
	ins := ppc.Decode(0, word)
	if ins.XO10 != 266 {
		t.Fatalf("test construction error: XO10 = %d, want 266", ins.XO10)
	}
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if asm.Len() == 0 {
		t.Fatal("expected emitted instructions")
	}
}

func TestLowerOpcode31CmpWritesCRField(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	// cmp cr1, r3, r4 (XO10=0): primary=31, crfD=1 (bits 6-8), RD=3(RA field)...
	// encode crfD at bits 6-8, RA at 11-15, RB at 16-20, XO10=0 at bits 21-30.
	word := uint32(31)<<26 | uint32(1)<<(31-8) | uint32(3)<<16 | uint32(4)<<11
	ins := ppc.Decode(0, word)
	if ins.XO10 != 0 {
		t.Fatalf("test construction error: XO10 = %d, want 0", ins.XO10)
	}
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if asm.Len() == 0 {
		t.Fatal("expected emitted instructions")
	}
}

func TestCanLowerAcceptsKnownRejectsUnknown(t *testing.T) {
	addi := ppc.Decode(0, 0x38A0002A)   // addi r5, r0, 42
	tdi := ppc.Decode(0, 0x08600005)    // primary 2, no lowering rule
	unknown := ppc.Decode(0, 0x00000000) // primary 0

	if !CanLower(addi) {
		t.Error("CanLower(addi) = false, want true")
	}
	if CanLower(tdi) {
		t.Error("CanLower(tdi) = true, want false")
	}
	if CanLower(unknown) {
		t.Error("CanLower(primary 0) = true, want false")
	}
}

func TestCanLowerOpcode31MatchesLowerOpcode31Cases(t *testing.T) {
	// add r3, r4, r5 (XO10=266) is handled by lowerOpcode31.
	addWord := uint32(31)<<26 | uint32(3)<<21 | uint32(4)<<16 | uint32(5)<<11 | uint32(266)<<1
	add := ppc.Decode(0, addWord)
	if !CanLower(add) {
		t.Error("CanLower(opcode31 add) = false, want true")
	}

	// mulhwu (XO10=11) isn't in lowerOpcode31's switch.
	mulWord := uint32(31)<<26 | uint32(11)<<1
	mul := ppc.Decode(0, mulWord)
	if CanLower(mul) {
		t.Error("CanLower(opcode31 mulhwu) = true, want false")
	}
}

func TestEmitPrologueEpilogueEmitInstructions(t *testing.T) {
	asm := aarch64.NewAssembler()
	if err := EmitPrologue(asm); err != nil {
		t.Fatalf("EmitPrologue: %v", err)
	}
	// 6 STP pairs + 10 hot-register loads (r3..r12).
	if asm.Len() != (6+10)*4 {
		t.Errorf("EmitPrologue Len() = %d, want %d", asm.Len(), (6+10)*4)
	}

	before := asm.Len()
	if err := EmitEpilogue(asm); err != nil {
		t.Fatalf("EmitEpilogue: %v", err)
	}
	// 10 hot-register stores + 6 LDP pairs + RET.
	want := before + (10+6+1)*4
	if asm.Len() != want {
		t.Errorf("EmitEpilogue Len() = %d, want %d", asm.Len(), want)
	}
}

func TestLowerUnimplementedOpcodeEmitsNop(t *testing.T) {
	asm := aarch64.NewAssembler()
	lo := New()
	ins := ppc.Decode(0, 0x00000000) // primary 0, not handled anywhere
	if err := lo.Lower(asm, ins); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if asm.Len() != 4 {
		t.Errorf("Len() = %d, want 4 (single NOP)", asm.Len())
	}
}
