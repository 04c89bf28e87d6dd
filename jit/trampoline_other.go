//go:build !arm64

package jit

import "unsafe"

// callBlock has no implementation on non-arm64 hosts: the compiled
// blocks themselves are AArch64 machine code and can never run there.
func callBlock(entry uintptr, ctx, arenaBase unsafe.Pointer) {
	panic("jit: compiled blocks require an arm64 host")
}
