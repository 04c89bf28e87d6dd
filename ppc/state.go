// Package ppc implements the stateless PowerPC (Xenon) instruction
// decoder and the full-fidelity software interpreter that executes
// decoded instructions against a ThreadState.
package ppc

import (
	"fmt"
	"strings"
	"unsafe"
)

// Context-layout byte offsets (spec §4.E.2) — the ABI shared between
// ThreadState and the machine code the lower/jit packages emit. These
// are asserted against the real field offsets in init() below so that a
// future field reorder fails at process start rather than corrupting
// guest state silently.
const (
	OffsetR      = 0
	OffsetLR     = 256
	OffsetCTR    = 264
	OffsetXER    = 272
	OffsetCR     = 280
	OffsetFPSCR  = 288
	OffsetFPR    = 1024
	OffsetVMX    = 2048
	contextBytes = 4096 // end of the fixed-offset ABI region

	// OffsetPC sits just past the fixed-offset ABI region. It isn't
	// part of the spec's JIT/interpreter context contract, but the
	// JIT still needs to know where to store a computed target PC
	// before returning control to the dispatcher, so it's asserted
	// the same way as the ABI fields below.
	OffsetPC = contextBytes
)

// XER is modeled as a 64-bit register but only three bits matter to the
// core: CA at MSB-0 bit 29, OV at bit 30, SO at bit 31. Expressed here
// as masks from the low end so call sites never re-derive MSB-0 math.
const (
	XERBitSO uint64 = 1 << 31
	XERBitOV uint64 = 1 << 30
	XERBitCA uint64 = 1 << 29
)

// CR field nibble values, spec §3/§4.D.5: LT=1000, GT=0100, EQ=0010,
// SO mirrors XER[SO] and occupies the low bit of the nibble.
const (
	CRBitLT uint8 = 0b1000
	CRBitGT uint8 = 0b0100
	CRBitEQ uint8 = 0b0010
	CRBitSO uint8 = 0b0001
)

// Reservation is the load-linked/store-conditional state (spec §3).
type Reservation struct {
	Address uint32
	Valid   bool
}

// ThreadState is exclusively owned by the thread executing on it.
// Fields up to contextBytes sit at the fixed offsets the JIT's emitted
// machine code hardcodes; fields after that boundary are Go-only and
// may be reordered freely.
type ThreadState struct {
	R     [32]uint64 // r0..r31                     offset 0
	LR    uint64      // link register               offset 256
	CTR   uint64      // count register              offset 264
	XER   uint64      // integer exception register  offset 272
	CR    uint32      // condition register          offset 280
	_pad0 [4]byte
	FPSCR uint32 // floating-point status/control     offset 288
	_pad1 [732]byte
	FPR   [32]uint64 // f0..f31 (double bits)         offset 1024
	_pad2 [768]byte
	VMX [128][16]byte // VMX/VMX128 registers          offset 2048

	// --- fields below here are outside the JIT's fixed-offset ABI ---

	PC          uint32
	Reservation Reservation
	Running     bool
	ExitCode    int32
	ThreadID    uint32

	// InstructionsRetired is a supplemental per-thread counter (not in
	// the original spec's data model) incremented by the interpreter
	// and, for JIT execution, by CompiledBlock.Invoke after each native
	// call, used for profiling and as a cheap interpreter/JIT
	// equivalence check.
	InstructionsRetired uint64
}

func init() {
	var ts ThreadState
	assertOffset("R", unsafe.Offsetof(ts.R), OffsetR)
	assertOffset("LR", unsafe.Offsetof(ts.LR), OffsetLR)
	assertOffset("CTR", unsafe.Offsetof(ts.CTR), OffsetCTR)
	assertOffset("XER", unsafe.Offsetof(ts.XER), OffsetXER)
	assertOffset("CR", unsafe.Offsetof(ts.CR), OffsetCR)
	assertOffset("FPSCR", unsafe.Offsetof(ts.FPSCR), OffsetFPSCR)
	assertOffset("FPR", unsafe.Offsetof(ts.FPR), OffsetFPR)
	assertOffset("VMX", unsafe.Offsetof(ts.VMX), OffsetVMX)
	assertOffset("PC", unsafe.Offsetof(ts.PC), OffsetPC)
}

func assertOffset(name string, got uintptr, want int) {
	if int(got) != want {
		panic(fmt.Sprintf("ppc: ThreadState.%s at offset %d, want %d (JIT context ABI violated)", name, got, want))
	}
}

// NewThreadState returns a zero-initialized ThreadState (GPRs and FPRs
// are always defined per spec invariant).
func NewThreadState(id uint32) *ThreadState {
	return &ThreadState{ThreadID: id, Running: true}
}

// CRField returns the 4-bit value of CR field n (0..7), where field 0
// occupies the four most significant bits of the 32-bit CR word.
func (ts *ThreadState) CRField(n int) uint8 {
	shift := uint(28 - 4*n)
	return uint8((ts.CR >> shift) & 0xF)
}

// SetCRField writes the 4-bit value of CR field n.
func (ts *ThreadState) SetCRField(n int, value uint8) {
	shift := uint(28 - 4*n)
	mask := uint32(0xF) << shift
	ts.CR = (ts.CR &^ mask) | (uint32(value&0xF) << shift)
}

// CRBit returns a single bit of the full 32-bit CR, addressed 0..31
// MSB-first (bit 0 is CR0's LT).
func (ts *ThreadState) CRBit(bit int) bool {
	shift := uint(31 - bit)
	return (ts.CR>>shift)&1 != 0
}

// SetCRBit sets or clears a single bit of CR, addressed as in CRBit.
func (ts *ThreadState) SetCRBit(bit int, set bool) {
	shift := uint(31 - bit)
	if set {
		ts.CR |= 1 << shift
	} else {
		ts.CR &^= 1 << shift
	}
}

// XERSO/XEROV/XERCA read/write the three exception-register bits the
// core cares about.
func (ts *ThreadState) XERSO() bool { return ts.XER&XERBitSO != 0 }
func (ts *ThreadState) XEROV() bool { return ts.XER&XERBitOV != 0 }
func (ts *ThreadState) XERCA() bool { return ts.XER&XERBitCA != 0 }

func (ts *ThreadState) SetXERSO(v bool) { ts.setXERBit(XERBitSO, v) }
func (ts *ThreadState) SetXEROV(v bool) { ts.setXERBit(XERBitOV, v) }
func (ts *ThreadState) SetXERCA(v bool) { ts.setXERBit(XERBitCA, v) }

func (ts *ThreadState) setXERBit(mask uint64, v bool) {
	if v {
		ts.XER |= mask
	} else {
		ts.XER &^= mask
	}
}

// UpdateCR0 writes CR field 0 from a signed comparison of result
// against zero, ORed with the current XER[SO] — spec §4.D.5. width is
// 32 or 64.
func (ts *ThreadState) UpdateCR0(result uint64, width int) {
	var signed int64
	if width == 32 {
		signed = int64(int32(uint32(result)))
	} else {
		signed = int64(result)
	}

	var field uint8
	switch {
	case signed < 0:
		field = CRBitLT
	case signed > 0:
		field = CRBitGT
	default:
		field = CRBitEQ
	}
	if ts.XERSO() {
		field |= CRBitSO
	}
	ts.SetCRField(0, field)
}

// ReadContextPC reads the target PC a compiled block wrote to
// ctx+OffsetPC just before returning (spec §4.E.1's context ABI). ctx
// must point at the owning ThreadState; the executor's JIT run loop
// uses this instead of reaching into ThreadState.PC directly since a
// compiled block only ever touches the fixed-offset ABI region, never
// the Go-only fields after it.
func ReadContextPC(ctx unsafe.Pointer) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(ctx) + uintptr(OffsetPC)))
}

// DumpRegisters renders a human-readable register dump, grounded on
// gokvm's machine/debug_amd64.go register-dump helpers.
func (ts *ThreadState) DumpRegisters() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC=%08x LR=%016x CTR=%016x XER=%016x CR=%08x\n", ts.PC, ts.LR, ts.CTR, ts.XER, ts.CR)
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(&b, "r%-2d=%016x r%-2d=%016x r%-2d=%016x r%-2d=%016x\n",
			i, ts.R[i], i+1, ts.R[i+1], i+2, ts.R[i+2], i+3, ts.R[i+3])
	}
	return b.String()
}
