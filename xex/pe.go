package xex

import "encoding/binary"

// Section describes one section of the embedded PE image (spec §4.F.2
// step 6).
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	RawAddress     uint32
	RawSize        uint32
	Flags          uint32
}

// parsePEHeader reads the embedded PE/COFF header out of the
// decompressed image. Unlike the XEX2 container (big-endian
// throughout), the PE payload is the PE/COFF format's own native
// little-endian layout — every field read here deliberately uses
// binary.LittleEndian, in contrast to the rest of this package. A
// missing or malformed PE header is non-fatal: entry point and image
// size are already seeded from the XEX2 optional headers and security
// info, and some dev-signed images ship with a stripped PE header.
func (m *Module) parsePEHeader() {
	pe := m.Image
	if len(pe) < 0x200 || pe[0] != 'M' || pe[1] != 'Z' {
		return
	}

	peOffset := int(binary.LittleEndian.Uint32(pe[0x3C:]))
	if peOffset < 0 || peOffset+4 > len(pe) || pe[peOffset] != 'P' || pe[peOffset+1] != 'E' {
		return
	}

	optHdrOff := peOffset + 0x18
	if optHdrOff+0x60 <= len(pe) {
		entryRVA := binary.LittleEndian.Uint32(pe[optHdrOff+0x10:])
		imageSize := binary.LittleEndian.Uint32(pe[optHdrOff+0x38:])
		if m.EntryPoint == 0 {
			m.EntryPoint = m.BaseAddress + entryRVA
		}
		if m.ImageSize == 0 {
			m.ImageSize = imageSize
		}
	}

	if peOffset+0x16+2 > len(pe) {
		return
	}
	sectionCount := binary.LittleEndian.Uint16(pe[peOffset+6:])
	optHdrSize := binary.LittleEndian.Uint16(pe[peOffset+0x14:])
	sectionTable := peOffset + 0x18 + int(optHdrSize)

	for i := uint16(0); i < sectionCount; i++ {
		off := sectionTable + int(i)*40
		if off+40 > len(pe) {
			break
		}
		name := pe[off : off+8]
		end := 0
		for end < 8 && name[end] != 0 {
			end++
		}
		m.Sections = append(m.Sections, Section{
			Name:           string(name[:end]),
			VirtualSize:    binary.LittleEndian.Uint32(pe[off+8:]),
			VirtualAddress: binary.LittleEndian.Uint32(pe[off+12:]),
			RawSize:        binary.LittleEndian.Uint32(pe[off+16:]),
			RawAddress:     binary.LittleEndian.Uint32(pe[off+20:]),
			Flags:          binary.LittleEndian.Uint32(pe[off+36:]),
		})
	}
}
