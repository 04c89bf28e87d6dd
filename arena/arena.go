// Package arena owns the single 4 GiB guest-memory reservation that
// backs every Xenon guest address, plus the separate executable-memory
// allocator the JIT uses for compiled blocks.
//
// The guest arena is process-wide: one reservation, commit-on-demand,
// released explicitly at shutdown. There is no page table — translation
// is base+offset, and the host MMU (via mmap/mprotect) is the only
// enforcement of access rights.
package arena

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GuestSize is the fixed size of the guest address space: exactly 4 GiB.
const GuestSize = 1 << 32

// AccessMode is one of the five page protections the arena supports.
type AccessMode int

const (
	NoAccess AccessMode = iota
	ReadOnly
	ReadWrite
	ExecuteRead
	ExecuteReadWrite
)

func (m AccessMode) String() string {
	switch m {
	case NoAccess:
		return "NoAccess"
	case ReadOnly:
		return "ReadOnly"
	case ReadWrite:
		return "ReadWrite"
	case ExecuteRead:
		return "ExecuteRead"
	case ExecuteReadWrite:
		return "ExecuteReadWrite"
	default:
		return "unknown"
	}
}

func (m AccessMode) prot() int {
	switch m {
	case NoAccess:
		return syscall.PROT_NONE
	case ReadOnly:
		return syscall.PROT_READ
	case ReadWrite:
		return syscall.PROT_READ | syscall.PROT_WRITE
	case ExecuteRead:
		return syscall.PROT_READ | syscall.PROT_EXEC
	case ExecuteReadWrite:
		return syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC
	default:
		return syscall.PROT_NONE
	}
}

// Region is a page-aligned [Start, Start+Size) byte range, either inside
// the guest arena (an offset from the arena base) or inside the separate
// executable-memory pool (a host virtual address).
type Region struct {
	Start uint64
	Size  uint64
}

var (
	ErrNotInitialized = errors.New("arena: not initialized")
	ErrAlreadyInit    = errors.New("arena: already initialized")
	ErrOutOfRange     = errors.New("arena: region out of range")
	ErrReserveFailed  = errors.New("arena: reserve failed")
)

// Arena owns one 4 GiB reservation and the bookkeeping needed to
// commit/decommit/protect pages within it. It is not re-entrant: callers
// that mutate overlapping regions from multiple goroutines must
// serialize themselves (spec §5).
type Arena struct {
	mu   sync.Mutex
	base []byte // len == GuestSize once initialized
	init bool

	pageSize int
}

// New returns an uninitialized Arena. Call Init before use.
func New() *Arena {
	return &Arena{pageSize: syscall.Getpagesize()}
}

// Init reserves the full 4 GiB guest range with no backing (PROT_NONE).
// It must be called exactly once per Arena.
func (a *Arena) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.init {
		return ErrAlreadyInit
	}

	b, err := syscall.Mmap(-1, 0, GuestSize, syscall.PROT_NONE,
		syscall.MAP_PRIVATE|syscall.MAP_ANON|syscall.MAP_NORESERVE)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReserveFailed, err)
	}

	a.base = b
	a.init = true

	return nil
}

// Shutdown releases the entire 4 GiB reservation. The Arena is unusable
// afterwards.
func (a *Arena) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.init {
		return ErrNotInitialized
	}

	err := syscall.Munmap(a.base)
	a.base = nil
	a.init = false

	return err
}

// ArenaBase returns the host address of guest offset zero. Valid only
// after Init.
func (a *Arena) ArenaBase() uintptr {
	if len(a.base) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.base[0]))
}

// Translate maps a guest address to a host pointer (arena_base + addr).
func (a *Arena) Translate(guestAddr uint32) uintptr {
	return a.ArenaBase() + uintptr(guestAddr)
}

func (a *Arena) roundRegion(r Region) (Region, error) {
	ps := uint64(a.pageSize)
	start := (r.Start / ps) * ps
	end := r.Start + r.Size
	end = ((end + ps - 1) / ps) * ps
	if end > GuestSize || start >= GuestSize {
		return Region{}, ErrOutOfRange
	}
	return Region{Start: start, Size: end - start}, nil
}

// Commit transitions the given guest-relative region to the requested
// access mode, backing it with zero-filled pages on first touch.
func (a *Arena) Commit(r Region, access AccessMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.init {
		return ErrNotInitialized
	}

	rr, err := a.roundRegion(r)
	if err != nil {
		return err
	}

	return syscall.Mprotect(a.base[rr.Start:rr.Start+rr.Size], access.prot())
}

// Decommit releases the physical backing for a region while preserving
// the reservation; the region reads as NoAccess until Commit'd again.
func (a *Arena) Decommit(r Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.init {
		return ErrNotInitialized
	}

	rr, err := a.roundRegion(r)
	if err != nil {
		return err
	}

	slice := a.base[rr.Start : rr.Start+rr.Size]
	if err := unix.Madvise(slice, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("arena: madvise: %w", err)
	}

	return syscall.Mprotect(slice, syscall.PROT_NONE)
}

// Protect changes the access mode of an already-committed region
// without touching its backing.
func (a *Arena) Protect(r Region, access AccessMode) error {
	return a.Commit(r, access)
}

// Release is a no-op beyond bookkeeping for guest regions: the 4 GiB
// reservation itself is only released by Shutdown. Release exists to
// satisfy the component-A interface named in the spec and to decommit
// the region as a courtesy.
func (a *Arena) Release(r Region) error {
	return a.Decommit(r)
}

// Bytes returns the live backing slice for a guest-relative region, for
// callers that want to read/write guest memory directly (the
// interpreter's big-endian load/store helpers use this).
func (a *Arena) Bytes(guestAddr uint32, size int) []byte {
	return a.base[guestAddr : guestAddr+uint32(size)]
}
