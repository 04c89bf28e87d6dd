package xex

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/kernel"
)

// ImportLibrary is one library an image imports from, with its raw
// import records still carrying the variable/function flag and
// guest address (spec §4.F.2 step 4).
type ImportLibrary struct {
	Name       string
	VersionMin uint32
	Version    uint32
	Records    []uint32
}

// parseImportLibraries locates the import-libraries optional header
// (if any) and parses its string table followed by the variable-
// stride per-library records.
func parseImportLibraries(data []byte, opts []OptHeader) ([]ImportLibrary, error) {
	offset := -1
	for _, h := range opts {
		if h.Key == headerImportLibraries {
			offset = int(h.Value)
			break
		}
	}
	if offset < 0 {
		return nil, nil
	}

	c := newCursor(data)
	c.seek(offset)
	stringTableSize, ok1 := c.u32()
	libCount, ok2 := c.u32()
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: truncated import libraries header", ErrLoadFormat)
	}

	stringsStart := offset + 8
	stringsEnd := stringsStart + int(stringTableSize)
	if stringsEnd > len(data) {
		return nil, fmt.Errorf("%w: truncated import library string table", ErrLoadFormat)
	}

	var names []string
	for p := stringsStart; p < stringsEnd; {
		if data[p] == 0 {
			p++
			continue
		}
		end := p
		for end < stringsEnd && data[end] != 0 {
			end++
		}
		names = append(names, string(data[p:end]))
		p = end + 1
	}

	recPtr := (stringsEnd + 3) &^ 3
	libs := make([]ImportLibrary, 0, libCount)

	for i := uint32(0); i < libCount; i++ {
		if recPtr+20 > len(data) {
			break
		}
		rc := newCursor(data)
		rc.seek(recPtr)
		recordSize, _ := rc.u32()
		versionMin, _ := rc.u32()
		version, _ := rc.u32()

		lib := ImportLibrary{VersionMin: versionMin, Version: version}
		if int(i) < len(names) {
			lib.Name = names[i]
		} else {
			lib.Name = "unknown"
		}

		if recordSize > 20 {
			recordCount := (recordSize - 20) / 4
			rc.seek(recPtr + 20)
			for r := uint32(0); r < recordCount; r++ {
				v, ok := rc.u32()
				if !ok {
					break
				}
				lib.Records = append(lib.Records, v)
			}
		}

		libs = append(libs, lib)
		recPtr += int(recordSize)
	}

	return libs, nil
}

// InstallImports rewrites each function import's guest address with a
// three-instruction PPC thunk — li r0, ordinal; sc; blr, stored
// big-endian (spec §4.F.3), where ordinal is the low 16 bits of the
// big-endian word the image holds at that address before it is
// overwritten — and registers the guest address with
// thunks so the interpreter and JIT can both dispatch through the
// kernel bridge. Variable imports are seeded with a null pointer
// instead of a thunk. Returns counts for test assertions (testable
// property 11).
func (m *Module) InstallImports(mem *arena.Arena, thunks *kernel.ThunkTable) (resolved, variables, unresolved int) {
	regionEnd := m.BaseAddress + m.ImageSize

	for _, lib := range m.ImportLibs {
		namespace := kernel.NamespaceKernel
		if strings.Contains(lib.Name, "xam") {
			namespace = kernel.NamespaceUser
		}

		for _, record := range lib.Records {
			isVariable := record&0x80000000 != 0
			addr := record & 0x7FFFFFFF

			if addr < m.BaseAddress || addr >= regionEnd {
				unresolved++
				continue
			}

			if isVariable {
				binary.BigEndian.PutUint32(mem.Bytes(addr, 4), 0)
				variables++
				continue
			}

			ordinal := binary.BigEndian.Uint32(mem.Bytes(addr, 4)) & 0xFFFF
			dispatchOrdinal := ordinal | namespace
			thunk := mem.Bytes(addr, 12)
			binary.BigEndian.PutUint32(thunk[0:4], 0x38000000|(dispatchOrdinal&0xFFFF))
			binary.BigEndian.PutUint32(thunk[4:8], 0x44000002)
			binary.BigEndian.PutUint32(thunk[8:12], 0x4E800020)

			thunks.Register(addr, dispatchOrdinal)
			resolved++
		}
	}

	return resolved, variables, unresolved
}
