package ppc

import (
	"testing"

	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/kernel"
)

func newTestInterpreter(t *testing.T) (*Interpreter, *arena.Arena) {
	t.Helper()
	a := arena.New()
	if err := a.Init(); err != nil {
		t.Fatalf("arena.Init: %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })

	if err := a.Commit(arena.Region{Start: 0, Size: 0x10000}, arena.ReadWrite); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	in := NewInterpreter()
	in.SetArenaBase(a.ArenaBase())
	return in, a
}

func putWordBE(b []byte, off int, word uint32) {
	b[off] = byte(word >> 24)
	b[off+1] = byte(word >> 16)
	b[off+2] = byte(word >> 8)
	b[off+3] = byte(word)
}

func TestStepAddImmediate(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	putWordBE(mem, 0, 0x38600001) // addi r3, r0, 1

	ts := NewThreadState(0)
	res, err := in.Step(ts)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res != Continue {
		t.Fatalf("result = %v, want Continue", res)
	}
	if ts.R[3] != 1 {
		t.Errorf("r3 = %d, want 1", ts.R[3])
	}
	if ts.PC != 4 {
		t.Errorf("PC = %d, want 4", ts.PC)
	}
}

func TestStepLoadStoreWord(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 8)
	putWordBE(mem, 0, 0x38610100) // addi r3, r1, 0x100 (r1=0 at reset)
	putWordBE(mem, 4, 0x90790000) // stw r3, 0(r25)

	ts := NewThreadState(0)
	ts.R[25] = 0x200

	if _, err := in.Step(ts); err != nil {
		t.Fatalf("step1: %v", err)
	}
	if _, err := in.Step(ts); err != nil {
		t.Fatalf("step2: %v", err)
	}

	got := uint32(a.Bytes(0x200, 4)[0])<<24 | uint32(a.Bytes(0x200, 4)[1])<<16 |
		uint32(a.Bytes(0x200, 4)[2])<<8 | uint32(a.Bytes(0x200, 4)[3])
	if got != 0x100 {
		t.Errorf("stored word = %#x, want 0x100", got)
	}
}

func TestExecBranchAlways(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	putWordBE(mem, 0, 0x48000008) // b +8

	ts := NewThreadState(0)
	res, err := in.Step(ts)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res != Branch {
		t.Errorf("result = %v, want Branch", res)
	}
	if ts.PC != 8 {
		t.Errorf("PC = %d, want 8", ts.PC)
	}
}

func TestExecBranchToLinkRegisterReturns(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	putWordBE(mem, 0, 0x4E800020) // blr

	ts := NewThreadState(0)
	ts.LR = 0x1000
	res, err := in.Step(ts)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res != Return {
		t.Errorf("result = %v, want Return", res)
	}
	if ts.PC != 0x1000 {
		t.Errorf("PC = %#x, want 0x1000", ts.PC)
	}
}

func TestAddWithOverflowSetsOV(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	// addo. r3, r4, r5 (XO=778, OE=1, Rc=1): primary31, RD=3,RA=4,RB=5.
	word := uint32(31)<<26 | uint32(3)<<21 | uint32(4)<<16 | uint32(5)<<11 | uint32(778)<<1 | 1
	putWordBE(mem, 0, word)

	ts := NewThreadState(0)
	ts.R[4] = uint64(int64(1) << 62)
	ts.R[5] = uint64(int64(1) << 62)

	if _, err := in.Step(ts); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !ts.XEROV() {
		t.Errorf("XER[OV] not set after signed overflow")
	}
	if !ts.XERSO() {
		t.Errorf("XER[SO] not set after signed overflow")
	}
}

type fakeDispatcher struct {
	lastOrdinal uint32
	result      uint64
}

func (f *fakeDispatcher) Invoke(thread kernel.ThreadContext, ordinal uint32) (uint64, error) {
	f.lastOrdinal = ordinal
	thread.SetGPR(4, 0xAA)
	return f.result, nil
}

func TestSyscallDispatch(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	putWordBE(mem, 0, uint32(17)<<26|2) // sc

	disp := &fakeDispatcher{result: 0x42}
	in.SetKernelDispatch(disp)

	ts := NewThreadState(0)
	ts.R[0] = 7 // ordinal

	res, err := in.Step(ts)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res != Syscall {
		t.Errorf("result = %v, want Syscall", res)
	}
	if disp.lastOrdinal != 7 {
		t.Errorf("dispatched ordinal = %d, want 7", disp.lastOrdinal)
	}
	if ts.R[3] != 0x42 {
		t.Errorf("r3 = %#x, want 0x42", ts.R[3])
	}
	if ts.R[4] != 0xAA {
		t.Errorf("r4 = %#x, want 0xAA (set by dispatcher)", ts.R[4])
	}
}

func TestThunkShortcutBypassesDecode(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	putWordBE(mem, 0, 0xFFFFFFFF) // garbage; must never be decoded

	disp := &fakeDispatcher{result: 0x99}
	in.SetKernelDispatch(disp)
	in.RegisterThunk(0, 42)

	ts := NewThreadState(0)
	ts.LR = 0x2000

	res, err := in.Step(ts)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res != Continue {
		t.Errorf("result = %v, want Continue", res)
	}
	if disp.lastOrdinal != 42 {
		t.Errorf("dispatched ordinal = %d, want 42", disp.lastOrdinal)
	}
	if ts.PC != 0x2000 {
		t.Errorf("PC = %#x, want LR (0x2000)", ts.PC)
	}
}

func TestSradiShiftsArithmeticWithoutCarry(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	// sradi r3, r4, 4 (immediate form): primary31, RD=4(RS), RA=3, SH64=4, XO10=826/827.
	word := uint32(31)<<26 | uint32(4)<<21 | uint32(3)<<16 | uint32(4)<<11 | uint32(413)<<2 | 0<<1
	putWordBE(mem, 0, word)

	ts := NewThreadState(0)
	ts.R[4] = uint64(int64(-16)) // all shifted-out bits zero, no carry expected

	res, err := in.Step(ts)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res != Continue {
		t.Fatalf("result = %v, want Continue", res)
	}
	if int64(ts.R[3]) != -1 {
		t.Errorf("r3 = %d, want -1 (-16 >> 4)", int64(ts.R[3]))
	}
	if ts.XERCA() {
		t.Errorf("XER[CA] set, want clear (no bits shifted out)")
	}
}

func TestSradiSetsCarryOnShiftedOutBits(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	// sradi r3, r4, 1
	word := uint32(31)<<26 | uint32(4)<<21 | uint32(3)<<16 | uint32(1)<<11 | uint32(413)<<2 | 0<<1
	putWordBE(mem, 0, word)

	ts := NewThreadState(0)
	ts.R[4] = uint64(int64(-3)) // negative, odd -> a 1 bit shifts out

	if _, err := in.Step(ts); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !ts.XERCA() {
		t.Errorf("XER[CA] clear, want set (negative value with shifted-out 1 bits)")
	}
}

func TestLdStdRoundTripThroughMemory(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 8)
	putWordBE(mem, 0, uint32(62)<<26|uint32(3)<<21|uint32(1)<<16|8|0) // std r3, 8(r1)
	putWordBE(mem, 4, uint32(58)<<26|uint32(4)<<21|uint32(1)<<16|8|0) // ld r4, 8(r1)

	ts := NewThreadState(0)
	ts.R[1] = 0x100
	ts.R[3] = 0xDEADBEEFCAFEBABE

	if _, err := in.Step(ts); err != nil {
		t.Fatalf("step1 (std): %v", err)
	}
	if _, err := in.Step(ts); err != nil {
		t.Fatalf("step2 (ld): %v", err)
	}
	if ts.R[4] != 0xDEADBEEFCAFEBABE {
		t.Errorf("r4 = %#x, want 0xDEADBEEFCAFEBABE", ts.R[4])
	}
}

func TestTdiDispatchesTrapImmediate(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 4)
	// tdi 0x8 (trap if greater), r3, 0: primary2, TO=8, RA=3, SIMM=0.
	word := uint32(2)<<26 | uint32(8)<<21 | uint32(3)<<16 | 0
	putWordBE(mem, 0, word)

	ts := NewThreadState(0)
	ts.R[3] = 5 // 5 > 0, trap condition met

	res, err := in.Step(ts)
	if err != ErrTrap {
		t.Errorf("Step() error = %v, want ErrTrap", err)
	}
	if res != Trap {
		t.Errorf("result = %v, want Trap", res)
	}
}

func TestRunStopsOnReturn(t *testing.T) {
	in, a := newTestInterpreter(t)
	mem := a.Bytes(0, 8)
	putWordBE(mem, 0, 0x38600001) // addi r3,r0,1
	putWordBE(mem, 4, 0x4E800020) // blr

	ts := NewThreadState(0)
	ts.LR = 0x3000

	n, err := in.Run(ts, 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Errorf("executed = %d, want 2", n)
	}
	if ts.PC != 0x3000 {
		t.Errorf("PC = %#x, want 0x3000", ts.PC)
	}
}
