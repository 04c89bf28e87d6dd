//go:build arm64

package jit

import "unsafe"

// callBlock branches into a compiled block's host code. Implemented in
// trampoline_arm64.s: each block saves and restores the registers it
// uses in its own prologue and epilogue and returns with SP at its
// entry value, so this is a plain call with nothing to save or restore
// around it.
//
//go:noescape
func callBlock(entry uintptr, ctx, arenaBase unsafe.Pointer)
