package ppc

import (
	"errors"
	"log"
	"unsafe"

	"github.com/xyproto/xenonjit/kernel"
)

// StepResult reports what a single Step produced, driving the caller's
// run loop (spec §4.D.1).
type StepResult int

const (
	Continue StepResult = iota
	Branch
	Syscall
	Trap
	Halt
	Return
)

func (r StepResult) String() string {
	switch r {
	case Continue:
		return "Continue"
	case Branch:
		return "Branch"
	case Syscall:
		return "Syscall"
	case Trap:
		return "Trap"
	case Halt:
		return "Halt"
	case Return:
		return "Return"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidOpcode = errors.New("ppc: invalid or unimplemented opcode")
	ErrHalt          = errors.New("ppc: arena base not set or invalid PC")
	ErrTrap          = errors.New("ppc: trap instruction fired")
)

// Verbose enables diagnostic logging for unknown extended opcodes and
// VMX stub dispatch, mirroring flapc's VerboseMode global.
var Verbose = false

// Interpreter executes decoded PPC instructions against a ThreadState.
// One Interpreter may drive many ThreadStates; it holds no per-thread
// state itself, only the process-wide wiring (arena base, kernel
// dispatch target, thunk table) spec §4.D requires.
type Interpreter struct {
	arenaBase uintptr
	dispatch  kernel.Dispatcher
	thunks    *kernel.ThunkTable
}

// NewInterpreter returns an Interpreter with no arena base set; callers
// must call SetArenaBase before Step/Run.
func NewInterpreter() *Interpreter {
	return &Interpreter{thunks: kernel.NewThunkTable()}
}

// SetArenaBase installs the host pointer guest address 0 maps to.
// Required before execution (spec §4.D.1).
func (in *Interpreter) SetArenaBase(base uintptr) {
	in.arenaBase = base
}

// SetKernelDispatch installs the shim invoked for `sc` and thunk hits.
func (in *Interpreter) SetKernelDispatch(d kernel.Dispatcher) {
	in.dispatch = d
}

// RegisterThunk populates the shared ThunkTable; the executor's JIT run
// loop consults the same table before running each block.
func (in *Interpreter) RegisterThunk(guestAddr, ordinal uint32) {
	in.thunks.Register(guestAddr, ordinal)
}

// ThunkTable exposes the shared table so the executor can hand the same
// instance to the JIT backend.
func (in *Interpreter) ThunkTable() *kernel.ThunkTable { return in.thunks }

func (in *Interpreter) hostPtr(guestAddr uint32) unsafe.Pointer {
	return unsafe.Pointer(in.arenaBase + uintptr(guestAddr))
}

// Step executes exactly one instruction (or, for a thunk hit, the
// synthetic kernel-dispatch call that substitutes for one) and reports
// what happened.
func (in *Interpreter) Step(ts *ThreadState) (StepResult, error) {
	if in.arenaBase == 0 {
		return Halt, ErrHalt
	}

	// Thunk shortcut (spec §4.D.6): supersedes executing the thunk's
	// installed bytes entirely.
	if raw, ok := in.thunks.Lookup(ts.PC); ok {
		res, err := in.runDispatch(ts, raw)
		if err != nil {
			return Syscall, err
		}
		ts.R[3] = res
		ts.PC = uint32(ts.LR)
		ts.InstructionsRetired++
		return Continue, nil
	}

	word := in.loadU32(ts.PC)
	ins := Decode(ts.PC, word)

	result, err := in.execute(ts, ins)
	ts.InstructionsRetired++

	return result, err
}

func (in *Interpreter) runDispatch(ts *ThreadState, rawOrdinal uint32) (uint64, error) {
	if in.dispatch == nil {
		return 0, errors.New("ppc: kernel dispatch invoked with no Dispatcher installed")
	}
	return in.dispatch.Invoke((*threadContextAdapter)(ts), rawOrdinal)
}

// DispatchThunk invokes the installed kernel.Dispatcher for a thunk
// hit, exported so the executor's JIT-mode run loop can handle a thunk
// PC the exact same way Step does without duplicating the Dispatcher
// nil-check (spec §4.D.6).
func (in *Interpreter) DispatchThunk(ts *ThreadState, rawOrdinal uint32) (uint64, error) {
	return in.runDispatch(ts, rawOrdinal)
}

// Run executes up to maxInstructions instructions, stopping early on
// Return/Halt/Trap or when the thread's Running flag is cleared
// (cooperative cancellation, spec §5). It returns the number of
// instructions actually executed.
func (in *Interpreter) Run(ts *ThreadState, maxInstructions int) (int, error) {
	executed := 0
	for executed < maxInstructions {
		if !ts.Running {
			break
		}

		result, err := in.Step(ts)
		executed++

		switch result {
		case Return, Halt:
			return executed, err
		case Trap:
			return executed, err
		case Syscall:
			if err != nil {
				return executed, err
			}
		case Continue, Branch:
			if err != nil && Verbose {
				log.Printf("ppc: step error (continuing): %v", err)
			}
		}
	}
	return executed, nil
}

// execute dispatches one decoded instruction. Unknown primary/extended
// opcodes return Halt+ErrInvalidOpcode per spec §7, except within the
// VMX/VMX128 family which logs and continues as a NOP per spec §4.D.4.
func (in *Interpreter) execute(ts *ThreadState, ins Instruction) (StepResult, error) {
	switch ins.Primary {
	case 2, 3, 4: // tdi, twi, VMX/VMX128 (opcode 4 stub dispatch)
		if ins.Primary == 2 || ins.Primary == 3 {
			return in.execTrapImm(ts, ins)
		}
		if Verbose {
			log.Printf("ppc: VMX128 opcode 4 at %08x treated as NOP (stub dispatch)", ts.PC)
		}
		ts.PC += 4
		return Continue, nil

	case 7, 8, 12, 13, 14, 15: // mulli, subfic, addic/addic., addi, addis
		return in.execArithImm(ts, ins)

	case 10, 11: // cmpli, cmpi
		return in.execCompareImm(ts, ins)

	case 16: // bc
		return in.execBC(ts, ins)
	case 18: // b/bl/ba/bla
		return in.execB(ts, ins)
	case 19: // bclr, bcctr, cr-logical, mcrf, isync
		return in.execOpcode19(ts, ins)

	case 17: // sc
		return in.execSC(ts, ins)

	case 20, 21, 23: // rlwimi, rlwinm, rlwnm
		return in.execRotate32(ts, ins)

	case 24, 25, 26, 27, 28, 29: // ori, oris, xori, xoris, andi., andis.
		return in.execLogicalImm(ts, ins)

	case 30: // rld* family (64-bit rotates)
		return in.execRotate64(ts, ins)

	case 31: // extended: arithmetic/logical/compare/load-store-indexed/system
		return in.execOpcode31(ts, ins)

	case 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47:
		return in.execLoadStoreImm(ts, ins)

	case 48, 49, 50, 51, 52, 53, 54, 55: // lfs/lfsu/lfd/lfdu/stfs/stfsu/stfd/stfdu
		return in.execFloatLoadStoreImm(ts, ins)

	case 58, 62: // ld/ldu/lwa (DS-form), std/stdu (DS-form)
		return in.execDSForm(ts, ins)

	case 59: // float single-precision extended (5-bit XO)
		return in.execOpcode59(ts, ins)

	case 63: // float double-precision extended (10-bit, fallback to 5-bit)
		return in.execOpcode63(ts, ins)

	default:
		return Halt, ErrInvalidOpcode
	}
}

// threadContextAdapter adapts *ThreadState to kernel.ThreadContext
// without ppc importing anything back from kernel beyond the interface
// it already depends on.
type threadContextAdapter ThreadState

func (t *threadContextAdapter) GPR(n int) uint64     { return t.R[n] }
func (t *threadContextAdapter) SetGPR(n int, v uint64) { t.R[n] = v }
func (t *threadContextAdapter) StackPointer() uint32 { return uint32(t.R[1]) }

// ReadGuest/WriteGuest are unimplemented on the bare adapter: guest
// memory is only reachable through the Interpreter's arena base, which
// a ThreadState alone doesn't carry. Dispatchers that need to marshal
// structs are constructed with their own arena handle instead.
func (t *threadContextAdapter) ReadGuest(addr uint32, size int) []byte { return nil }
func (t *threadContextAdapter) WriteGuest(addr uint32, data []byte)    {}
