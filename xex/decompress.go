package xex

import (
	"encoding/binary"
	"fmt"
)

// xenonWindowBits is the fixed LZX window size every Xbox 360 title
// uses (spec §9 design note: "the Xbox 360 corpus uses 17").
const xenonWindowBits = 17

// decompressImage produces the PE payload per the (encryption,
// compression) pair carried in the base-file-format optional header
// (spec §4.F.2 step 5).
func (m *Module) decompressImage(data []byte) ([]byte, error) {
	peOffset := int(m.Header.PEDataOffset)
	if peOffset < 0 || peOffset > len(data) {
		return nil, fmt.Errorf("%w: pe_data_offset out of range", ErrLoadFormat)
	}

	if m.Format.Encryption != EncryptionNone {
		return nil, fmt.Errorf("%w: encrypted XEX images are not supported", ErrLoadFormat)
	}

	switch m.Format.Compression {
	case CompressionNone:
		peSize := len(data) - peOffset
		if m.ImageSize > 0 && uint32(peSize) > m.ImageSize {
			peSize = int(m.ImageSize)
		}
		image := make([]byte, peSize)
		copy(image, data[peOffset:peOffset+peSize])
		return image, nil

	case CompressionRaw:
		return m.decompressRaw(data)

	case CompressionLZX, CompressionDeltaLZX:
		if m.ImageSize == 0 {
			return nil, fmt.Errorf("%w: LZX image requires a known image size", ErrLoadFormat)
		}
		return decompressLZXChain(data[peOffset:], int(m.ImageSize), xenonWindowBits)

	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrLoadFormat, m.Format.Compression)
	}
}

// decompressRaw expands a sequence of {data_size, zero_size} blocks
// (spec §4.F.2 step 5, "(None, Raw)"): copy data_size source bytes,
// then emit zero_size zero bytes, per block, concatenated.
func (m *Module) decompressRaw(data []byte) ([]byte, error) {
	fmtOffset := -1
	for _, h := range m.OptHeaders {
		if h.Key == headerBaseFileFormat {
			fmtOffset = int(h.Value)
			break
		}
	}
	if fmtOffset < 0 || fmtOffset+8 > len(data) {
		return nil, fmt.Errorf("%w: missing base file format header for raw compression", ErrLoadFormat)
	}

	infoSize := binary.BigEndian.Uint32(data[fmtOffset:])
	if infoSize < 8 {
		return nil, fmt.Errorf("%w: truncated base file format info", ErrLoadFormat)
	}
	blockCount := (infoSize - 8) / 8
	blockOff := fmtOffset + 8

	type rawBlock struct{ dataSize, zeroSize uint32 }
	blocks := make([]rawBlock, 0, blockCount)
	total := 0
	for i := uint32(0); i < blockCount; i++ {
		off := blockOff + int(i)*8
		if off+8 > len(data) {
			break
		}
		ds := binary.BigEndian.Uint32(data[off:])
		zs := binary.BigEndian.Uint32(data[off+4:])
		blocks = append(blocks, rawBlock{ds, zs})
		total += int(ds) + int(zs)
	}
	if total == 0 {
		total = int(m.ImageSize)
	}

	image := make([]byte, total)
	src := int(m.Header.PEDataOffset)
	dst := 0
	for _, b := range blocks {
		copySize := int(b.dataSize)
		if src+copySize > len(data) {
			copySize = len(data) - src
		}
		if dst+copySize > len(image) {
			copySize = len(image) - dst
		}
		if copySize > 0 {
			copy(image[dst:dst+copySize], data[src:src+copySize])
			src += copySize
			dst += copySize
		}

		zeroFill := int(b.zeroSize)
		if dst+zeroFill > len(image) {
			zeroFill = len(image) - dst
		}
		dst += zeroFill // image is already zero-initialized by make()
	}

	return image, nil
}
