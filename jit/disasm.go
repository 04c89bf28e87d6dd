package jit

import (
	"log"

	"golang.org/x/arch/arm64/arm64asm"
)

// logBlock disassembles a freshly compiled block's host bytes back
// through arm64asm and logs them, mirroring gokvm's x86asm-based debug
// disassembly in machine/debug_amd64.go — there: decode host x86 at a
// VM exit; here: decode host arm64 of a block this process itself just
// emitted, as a sanity trace rather than a debugger aid.
func logBlock(b *CompiledBlock, code []byte) {
	log.Printf("jit: compiled %08x..%08x (%d host bytes, %d guest instructions)",
		b.StartPC, b.EndPC, len(code), b.InstructionCount)
	for i := 0; i+4 <= len(code); i += 4 {
		inst, err := arm64asm.Decode(code[i : i+4])
		if err != nil {
			log.Printf("  +%#04x: %08x (undecodable: %v)", i, code[i:i+4], err)
			continue
		}
		log.Printf("  +%#04x: %s", i, inst.String())
	}
}
