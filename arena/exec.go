package arena

import (
	"fmt"
	"syscall"
	"unsafe"
)

// ExecRegion is an allocation from the executable-memory pool — outside
// the guest arena entirely (spec §6 "Executable memory"). Each one is
// its own mmap, so Free can give each block's pages straight back to
// the kernel on invalidation without disturbing its neighbours.
type ExecRegion struct {
	buf []byte
}

// Addr returns the host address of byte zero of the region.
func (r *ExecRegion) Addr() uintptr {
	if len(r.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.buf[0]))
}

// Bytes exposes the writable backing slice while the region is still
// RW (before Finalize switches it to RX).
func (r *ExecRegion) Bytes() []byte {
	return r.buf
}

// AllocateExecutable reserves a fresh RW mapping of at least size bytes,
// rounded up to the host page size. The caller writes machine code into
// it via Bytes, then calls Finalize to flip it RX and make it safely
// callable.
func AllocateExecutable(size int) (*ExecRegion, error) {
	pageSize := syscall.Getpagesize()
	alloc := ((size + pageSize - 1) / pageSize) * pageSize
	if alloc == 0 {
		alloc = pageSize
	}

	buf, err := syscall.Mmap(-1, 0, alloc, syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena: allocate_executable: %w", err)
	}

	return &ExecRegion{buf: buf}, nil
}

// Finalize flips the region from RW to RX. On Linux/arm64 this
// transition is the point at which the kernel performs the icache
// maintenance needed before any branch into the region is safe — the
// W^X toggle itself is the i-cache flush mechanism (spec §9).
func (r *ExecRegion) Finalize() error {
	if err := syscall.Mprotect(r.buf, syscall.PROT_READ|syscall.PROT_EXEC); err != nil {
		return fmt.Errorf("arena: finalize: %w", err)
	}
	return nil
}

// FreeExecutable returns the region's pages to the kernel. Called on
// JIT block invalidation or backend shutdown.
func FreeExecutable(r *ExecRegion) error {
	if r == nil || len(r.buf) == 0 {
		return nil
	}
	err := syscall.Munmap(r.buf)
	r.buf = nil
	return err
}
