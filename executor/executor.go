// Package executor is the façade a host program drives: it owns every
// guest thread's state, picks interpreter or JIT per call, and wires
// the shared kernel-dispatch bridge into both (spec §4.G).
package executor

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/jit"
	"github.com/xyproto/xenonjit/kernel"
	"github.com/xyproto/xenonjit/ppc"
)

// Mode selects how Execute drives a thread.
type Mode int

const (
	ModeInterpret Mode = iota
	ModeJIT
)

func (m Mode) String() string {
	switch m {
	case ModeInterpret:
		return "interpret"
	case ModeJIT:
		return "jit"
	default:
		return "unknown"
	}
}

var (
	// ErrNoJIT is returned by Execute when ModeJIT is requested on an
	// Executor constructed without a compiler.
	ErrNoJIT = errors.New("executor: JIT execution requested but no compiler configured")
)

// stackBase/stackStride implement the documented per-thread stack
// pointer convention: thread id seeds r1 at stackBase - id*stackStride
// (spec §4.G).
const (
	stackBase   = uint64(0x70000000)
	stackStride = uint64(0x100000)
)

// Executor owns the per-thread ThreadState vector, the shared guest
// arena, the shared thunk table, and — when JIT mode is enabled — the
// compiler and code cache backing it. Grounded on flapc's
// ExecutableBuilder (one struct owning everything, a handful of entry
// points) and gokvm's machine.Machine (owns vCPU state, forwards to
// subsystems).
type Executor struct {
	mem      *arena.Arena
	interp   *ppc.Interpreter
	compiler *jit.Compiler
	thunks   *kernel.ThunkTable
	threads  []*ppc.ThreadState
}

// New returns an Executor reading/writing guest memory through mem and
// forwarding kernel traps to dispatch. useJIT enables JIT-mode
// execution and constructs the backing compiler; interpreter-only
// callers can pass false to skip that cost entirely.
func New(mem *arena.Arena, dispatch kernel.Dispatcher, useJIT bool) *Executor {
	in := ppc.NewInterpreter()
	in.SetArenaBase(mem.ArenaBase())
	in.SetKernelDispatch(dispatch)

	e := &Executor{
		mem:    mem,
		interp: in,
		thunks: in.ThunkTable(),
	}
	if useJIT {
		e.compiler = jit.NewCompiler(mem)
	}
	return e
}

// ThunkTable returns the table shared between the loader, the
// interpreter, and JIT-mode dispatch; the loader populates it while
// resolving imports, before any thread runs (spec §5).
func (e *Executor) ThunkTable() *kernel.ThunkTable { return e.thunks }

// Compiler returns the JIT compiler, or nil if the Executor was
// constructed without JIT support.
func (e *Executor) Compiler() *jit.Compiler { return e.compiler }

// CreateThread allocates a ThreadState and seeds its stack pointer to
// the documented convention 0x70000000 - id*0x100000 (spec §4.G).
func (e *Executor) CreateThread(id uint32) *ppc.ThreadState {
	ts := ppc.NewThreadState(id)
	ts.R[1] = stackBase - uint64(id)*stackStride
	e.threads = append(e.threads, ts)
	return ts
}

// Threads returns every thread created so far, in creation order.
func (e *Executor) Threads() []*ppc.ThreadState {
	return e.threads
}

// Stats returns threadID's retired-instruction count, for host-side
// profiling and as a cheap interpreter/JIT equivalence check
// (supplemented feature: equal work should retire equal counts).
func (e *Executor) Stats(threadID uint32) (retired uint64, ok bool) {
	for _, t := range e.threads {
		if t.ThreadID == threadID {
			return t.InstructionsRetired, true
		}
	}
	return 0, false
}

// InvalidateRange drops any cached JIT blocks overlapping
// [start, start+size) — the SMC recovery hook (spec §7's
// SmcInvalidation): a caller that detects a guest store into an
// executable region invokes this before resuming guest execution. It
// is a no-op when the Executor has no compiler.
func (e *Executor) InvalidateRange(start, size uint32) {
	if e.compiler == nil {
		return
	}
	e.compiler.Cache().Invalidate(start, size)
}

// Execute runs thread starting at start for up to maxInstructions
// instructions, dispatching to the interpreter or the JIT per mode,
// and returns the number of instructions actually executed (spec
// table row H).
func (e *Executor) Execute(thread *ppc.ThreadState, start uint32, mode Mode, maxInstructions int) (int, error) {
	thread.PC = start
	thread.Running = true

	switch mode {
	case ModeInterpret:
		return e.interp.Run(thread, maxInstructions)
	case ModeJIT:
		if e.compiler == nil {
			return 0, ErrNoJIT
		}
		return e.runJIT(thread, maxInstructions)
	default:
		return 0, fmt.Errorf("executor: unknown execution mode %v", mode)
	}
}

// runJIT drives thread one compiled block at a time, the JIT-mode
// counterpart to Interpreter.Run's instruction-at-a-time loop. A
// thunk hit at the current PC is handled exactly as the interpreter
// handles it (spec §4.D.6), since a thunk's three installed
// instructions are never compiled — CompileOrGet is only ever reached
// for genuine guest code.
func (e *Executor) runJIT(thread *ppc.ThreadState, maxInstructions int) (int, error) {
	ctx := unsafe.Pointer(thread)
	arenaBase := unsafe.Pointer(e.mem.ArenaBase())
	executed := 0

	for executed < maxInstructions && thread.Running {
		if ordinal, ok := e.thunks.Lookup(thread.PC); ok {
			result, err := e.interp.DispatchThunk(thread, ordinal)
			if err != nil {
				return executed, err
			}
			thread.R[3] = result
			thread.PC = uint32(thread.LR)
			thread.InstructionsRetired++
			executed++
			continue
		}

		block, err := e.compiler.CompileOrGet(thread.PC)
		if errors.Is(err, jit.ErrBlockNotLowerable) {
			if _, stepErr := e.interp.Step(thread); stepErr != nil {
				return executed, stepErr
			}
			executed++
			continue
		}
		if err != nil {
			return executed, err
		}

		before := thread.InstructionsRetired
		block.Invoke(ctx, arenaBase, &thread.InstructionsRetired)
		executed += int(thread.InstructionsRetired - before)

		thread.PC = ppc.ReadContextPC(ctx)
	}

	return executed, nil
}
