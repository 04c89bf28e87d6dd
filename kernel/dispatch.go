// Package kernel defines the single contract both the interpreter and
// the JIT use to trap out of guest code into host-implemented HLE
// services: the kernel dispatch bridge (spec §6). xenonjit never
// implements a kernel service itself — callers supply a Dispatcher.
package kernel

import "sync"

// ThreadContext is the minimal view of guest thread state a Dispatcher
// needs: read arguments from r3..r10 and the stack, write the scalar
// result back into r3. Defined as an interface (rather than importing
// ppc.ThreadState directly) so the kernel package has no dependency on
// ppc, keeping the contract genuinely two-sided.
type ThreadContext interface {
	GPR(n int) uint64
	SetGPR(n int, v uint64)
	// StackPointer returns the guest address in r1, for dispatchers
	// that need to read spilled arguments beyond r3..r10.
	StackPointer() uint32
	// ReadGuest/WriteGuest access big-endian guest memory at an
	// arbitrary guest address, for dispatchers that marshal structs.
	ReadGuest(addr uint32, size int) []byte
	WriteGuest(addr uint32, data []byte)
}

// Dispatcher is the polymorphic kernel-dispatch target: invoke(thread,
// ordinal) -> result_code, per spec §6. Bit 16 of an ordinal (0x10000,
// just above the 16-bit kernel ordinal) selects the user-services
// namespace (NamespaceUser) vs. the core
// kernel namespace (NamespaceKernel); Dispatcher implementations are
// expected to route internally rather than have callers split the two.
type Dispatcher interface {
	Invoke(thread ThreadContext, ordinal uint32) (result uint64, err error)
}

// Namespace tag bits ORed into an ordinal, per spec §4.F.3.
const (
	NamespaceKernel uint32 = 0
	NamespaceUser   uint32 = 0x10000
)

// Ordinal splits a dispatch ordinal into its 16-bit kernel ordinal and
// namespace tag.
func Ordinal(raw uint32) (ordinal uint16, namespace uint32) {
	return uint16(raw & 0xFFFF), raw & NamespaceUser
}

// ThunkTable maps a guest code address to a dispatch ordinal. Populated
// once by the XEX2 loader and the executor's registration path before
// guest execution begins; read-only thereafter (spec §5). Register
// takes the write lock; Lookup and Len take the read lock.
type ThunkTable struct {
	mu      sync.RWMutex
	entries map[uint32]uint32
}

// NewThunkTable returns an empty table.
func NewThunkTable() *ThunkTable {
	return &ThunkTable{entries: make(map[uint32]uint32)}
}

// Register installs guestAddr -> ordinal. Called by the loader and by
// ppc.Interpreter.RegisterThunk, both before execution starts.
func (t *ThunkTable) Register(guestAddr, ordinal uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[guestAddr] = ordinal
}

// Lookup returns the ordinal registered at guestAddr, if any.
func (t *ThunkTable) Lookup(guestAddr uint32) (ordinal uint32, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ordinal, ok = t.entries[guestAddr]
	return
}

// Len returns the number of installed thunks (used by loader tests to
// check import-count invariants, spec property 11).
func (t *ThunkTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
