package executor

import (
	"testing"

	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/kernel"
)

type fakeDispatcher struct {
	lastOrdinal uint32
	result      uint64
}

func (f *fakeDispatcher) Invoke(thread kernel.ThreadContext, ordinal uint32) (uint64, error) {
	f.lastOrdinal = ordinal
	return f.result, nil
}

func newTestExecutor(t *testing.T, useJIT bool) (*Executor, *arena.Arena) {
	t.Helper()
	mem := arena.New()
	if err := mem.Init(); err != nil {
		t.Fatalf("arena.Init: %v", err)
	}
	t.Cleanup(func() { mem.Shutdown() })

	if err := mem.Commit(arena.Region{Start: 0, Size: 0x10000}, arena.ReadWrite); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	return New(mem, &fakeDispatcher{}, useJIT), mem
}

func putWordBE(b []byte, off int, word uint32) {
	b[off] = byte(word >> 24)
	b[off+1] = byte(word >> 16)
	b[off+2] = byte(word >> 8)
	b[off+3] = byte(word)
}

func TestCreateThreadSeedsStackPointer(t *testing.T) {
	e, _ := newTestExecutor(t, false)

	t0 := e.CreateThread(0)
	if t0.R[1] != 0x70000000 {
		t.Errorf("thread 0 r1 = %#x, want %#x", t0.R[1], 0x70000000)
	}

	t2 := e.CreateThread(2)
	want := uint64(0x70000000 - 2*0x100000)
	if t2.R[1] != want {
		t.Errorf("thread 2 r1 = %#x, want %#x", t2.R[1], want)
	}

	if len(e.Threads()) != 2 {
		t.Fatalf("Threads() len = %d, want 2", len(e.Threads()))
	}
}

func TestExecuteInterpretRunsToReturn(t *testing.T) {
	e, mem := newTestExecutor(t, false)

	code := mem.Bytes(0, 8)
	putWordBE(code, 0, 0x38600005) // addi r3, r0, 5
	putWordBE(code, 4, 0x4E800020) // blr

	thread := e.CreateThread(0)
	executed, err := e.Execute(thread, 0, ModeInterpret, 10)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed != 2 {
		t.Errorf("executed = %d, want 2", executed)
	}
	if thread.R[3] != 5 {
		t.Errorf("r3 = %d, want 5", thread.R[3])
	}

	retired, ok := e.Stats(0)
	if !ok || retired != uint64(executed) {
		t.Errorf("Stats(0) = (%d, %v), want (%d, true)", retired, ok, executed)
	}
}

func TestExecuteJITWithoutCompilerFails(t *testing.T) {
	e, _ := newTestExecutor(t, false)
	thread := e.CreateThread(0)

	if _, err := e.Execute(thread, 0, ModeJIT, 10); err != ErrNoJIT {
		t.Errorf("Execute(ModeJIT) error = %v, want ErrNoJIT", err)
	}
}

func TestInvalidateRangeNoopWithoutCompiler(t *testing.T) {
	e, _ := newTestExecutor(t, false)
	e.InvalidateRange(0, 0x1000) // must not panic
}

func TestThunkTableSharedWithInterpreter(t *testing.T) {
	e, _ := newTestExecutor(t, false)
	e.ThunkTable().Register(0x1000, 42)

	if ordinal, ok := e.ThunkTable().Lookup(0x1000); !ok || ordinal != 42 {
		t.Errorf("Lookup(0x1000) = (%d, %v), want (42, true)", ordinal, ok)
	}
}

// TestExecuteScenarioMinimalArithmetic is spec scenario S1: three words
// at 0x1000 with no blr, driven via Execute(..., 3) instead of running
// to a natural return.
func TestExecuteScenarioMinimalArithmetic(t *testing.T) {
	e, mem := newTestExecutor(t, false)

	code := mem.Bytes(0x1000, 12)
	putWordBE(code, 0, 0x38600007) // li r3, 7
	putWordBE(code, 4, 0x38800003) // li r4, 3
	putWordBE(code, 8, 0x7C632214) // add r3, r3, r4

	thread := e.CreateThread(0)
	executed, err := e.Execute(thread, 0x1000, ModeInterpret, 3)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed != 3 {
		t.Errorf("executed = %d, want 3", executed)
	}
	if thread.R[3] != 10 {
		t.Errorf("r3 = %d, want 10", thread.R[3])
	}
	if thread.R[4] != 3 {
		t.Errorf("r4 = %d, want 3", thread.R[4])
	}
	if thread.PC != 0x1000+12 {
		t.Errorf("PC = %#x, want %#x", thread.PC, 0x1000+12)
	}
}

// TestExecuteScenarioThunkTrip is spec scenario S3: a bl to a
// registered thunk address dispatches through the kernel bridge exactly
// once and returns to the instruction after the call. The thunk sits
// close enough to the caller to fit the 24-bit bl displacement field
// (a real thunk slot can be anywhere in the 32-bit guest space; guest
// code reaches a far one through an indirect bctrl, not a direct bl,
// so the direct-bl case exercised here only covers the reachable subset).
func TestExecuteScenarioThunkTrip(t *testing.T) {
	_, mem := newTestExecutor(t, false)

	const (
		callerAddr = uint32(0x1004)
		thunkAddr  = uint32(0x1010)
		ordinal    = uint32(0x42)
	)

	disp := &fakeDispatcher{result: 99}
	e2 := New(mem, disp, false)

	li := int32(thunkAddr) - int32(callerAddr)
	word := uint32(18)<<26 | (uint32(li) & 0x3FFFFFC) | 0x1 // AA=0, LK=1
	code := mem.Bytes(callerAddr, 4)
	putWordBE(code, 0, word)

	e2.ThunkTable().Register(thunkAddr, ordinal)

	thread := e2.CreateThread(0)
	thread.LR = 0
	thread.R[3] = 0

	executed, err := e2.Execute(thread, callerAddr, ModeInterpret, 2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed != 2 {
		t.Errorf("executed = %d, want 2 (bl + thunk dispatch)", executed)
	}
	if thread.R[3] != 99 {
		t.Errorf("r3 = %d, want 99", thread.R[3])
	}
	if disp.lastOrdinal != ordinal {
		t.Errorf("lastOrdinal = %#x, want %#x", disp.lastOrdinal, ordinal)
	}
	if thread.PC != callerAddr+4 {
		t.Errorf("PC = %#x, want %#x", thread.PC, callerAddr+4)
	}
}
