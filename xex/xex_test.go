package xex

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/kernel"
)

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	data := make([]byte, fileHeaderSize)
	binary.BigEndian.PutUint32(data[0:], 0x12345678)

	_, err := parseHeader(data)
	if !errors.Is(err, ErrLoadFormat) {
		t.Fatalf("parseHeader() error = %v, want ErrLoadFormat", err)
	}
}

// buildRawXEX assembles the minimal XEX2 container described by
// end-to-end scenario S4: Raw compression, one block, entry point
// 0x82000100, base address 0x82000000.
func buildRawXEX() []byte {
	const (
		entryPoint  = 0x82000100
		baseAddress = 0x82000000
		fmtOffset   = 48
		peDataOff   = 64
	)

	buf := make([]byte, peDataOff+4)

	binary.BigEndian.PutUint32(buf[0:], Magic2)
	binary.BigEndian.PutUint32(buf[4:], 0)         // module flags
	binary.BigEndian.PutUint32(buf[8:], peDataOff) // pe_data_offset
	binary.BigEndian.PutUint32(buf[12:], 0)        // reserved
	binary.BigEndian.PutUint32(buf[16:], 0)        // security_offset: absent
	binary.BigEndian.PutUint32(buf[20:], 3)        // opt_header_count

	binary.BigEndian.PutUint32(buf[24:], headerEntryPoint)
	binary.BigEndian.PutUint32(buf[28:], entryPoint)
	binary.BigEndian.PutUint32(buf[32:], headerImageBaseAddress)
	binary.BigEndian.PutUint32(buf[36:], baseAddress)
	binary.BigEndian.PutUint32(buf[40:], headerBaseFileFormat)
	binary.BigEndian.PutUint32(buf[44:], fmtOffset)

	binary.BigEndian.PutUint32(buf[fmtOffset:], 16) // info_size: 8 + one 8-byte block
	binary.BigEndian.PutUint16(buf[fmtOffset+4:], uint16(EncryptionNone))
	binary.BigEndian.PutUint16(buf[fmtOffset+6:], uint16(CompressionRaw))
	binary.BigEndian.PutUint32(buf[fmtOffset+8:], 4) // data_size
	binary.BigEndian.PutUint32(buf[fmtOffset+12:], 4) // zero_size

	copy(buf[peDataOff:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	return buf
}

func TestLoadBytesRawXEX(t *testing.T) {
	m, err := LoadBytes(buildRawXEX())
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	if m.EntryPoint != 0x82000100 {
		t.Errorf("EntryPoint = %#x, want %#x", m.EntryPoint, 0x82000100)
	}
	if m.BaseAddress != 0x82000000 {
		t.Errorf("BaseAddress = %#x, want %#x", m.BaseAddress, 0x82000000)
	}
	if m.ImageSize < 8 {
		t.Errorf("ImageSize = %d, want >= 8", m.ImageSize)
	}

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x00}
	if len(m.Image) < len(want) || !bytes.Equal(m.Image[:len(want)], want) {
		t.Fatalf("Image[:8] = % x, want % x", m.Image[:min(len(m.Image), len(want))], want)
	}
}

// buildUncompressedLZXBlock encodes one LZX "Uncompressed" block
// (block_type=3, block_size=4) carrying the literal payload
// 0xAA 0xBB 0xCC 0xDD, preceded by an R0=R1=R2=1 reseed.
func buildUncompressedLZXBlock() []byte {
	// block_type (3 bits) = 3, block_size (24 bits) = 4: 27 bits total,
	// MSB-first into 16-bit little-endian words.
	// bit pattern: 011 000000000000000000000100 (27 bits) then padded
	// to a 32-bit boundary with zero bits.
	word0 := uint16(0x6000)
	word1 := uint16(0x0080)

	buf := make([]byte, 0, 4+12+4)
	buf = append(buf, byte(word0), byte(word0>>8))
	buf = append(buf, byte(word1), byte(word1>>8))

	r0r1r2 := make([]byte, 12)
	binary.LittleEndian.PutUint32(r0r1r2[0:], 1)
	binary.LittleEndian.PutUint32(r0r1r2[4:], 1)
	binary.LittleEndian.PutUint32(r0r1r2[8:], 1)
	buf = append(buf, r0r1r2...)

	buf = append(buf, 0xAA, 0xBB, 0xCC, 0xDD)
	return buf
}

func TestDecompressLZXUncompressedBlock(t *testing.T) {
	stream := buildUncompressedLZXBlock()

	out, err := decompressLZX(stream, 4, xenonWindowBits)
	if err != nil {
		t.Fatalf("decompressLZX() error = %v", err)
	}

	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if !bytes.Equal(out, want) {
		t.Fatalf("decompressLZX() = % x, want % x", out, want)
	}
}

func TestDecompressLZXChainVerifiesHash(t *testing.T) {
	block := buildUncompressedLZXBlock()

	t.Run("single block decodes", func(t *testing.T) {
		chain := make([]byte, 0, 24+len(block))
		var header [24]byte
		binary.BigEndian.PutUint32(header[0:], uint32(len(block)))
		chain = append(chain, header[:]...)
		chain = append(chain, block...)

		out, err := decompressLZXChain(chain, 4, xenonWindowBits)
		if err != nil {
			t.Fatalf("decompressLZXChain() error = %v", err)
		}
		want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
		if !bytes.Equal(out, want) {
			t.Fatalf("decompressLZXChain() = % x, want % x", out, want)
		}
	})

	t.Run("mismatched hash rejected", func(t *testing.T) {
		blockA := buildUncompressedLZXBlock()
		blockB := buildUncompressedLZXBlock()
		blockB[len(blockB)-1] ^= 0xFF // make B distinguishable from A

		chain := make([]byte, 0, 48+len(blockA)+len(blockB))

		var headerA [24]byte
		binary.BigEndian.PutUint32(headerA[0:], uint32(len(blockA)))
		copy(headerA[4:], sha1.Sum(blockA)[:]) // wrong: should hash blockB
		chain = append(chain, headerA[:]...)
		chain = append(chain, blockA...)

		var headerB [24]byte
		binary.BigEndian.PutUint32(headerB[0:], uint32(len(blockB)))
		chain = append(chain, headerB[:]...)
		chain = append(chain, blockB...)

		_, err := decompressLZXChain(chain, 8, xenonWindowBits)
		if !errors.Is(err, ErrLoadFormat) {
			t.Fatalf("decompressLZXChain() error = %v, want ErrLoadFormat", err)
		}
	})
}

func TestInstallImportsWritesThunkAndRegisters(t *testing.T) {
	mem := arena.New()
	if err := mem.Init(); err != nil {
		t.Fatalf("arena.Init() error = %v", err)
	}
	defer mem.Shutdown()

	const (
		base      = uint32(0x00100000)
		imageSize = uint32(0x1000)
		thunkAddr = base + 0x100
	)

	region := arena.Region{Start: uint64(base), Size: uint64(imageSize)}
	if err := mem.Commit(region, arena.ExecuteReadWrite); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	m := &Module{
		BaseAddress: base,
		ImageSize:   imageSize,
		ImportLibs: []ImportLibrary{
			{
				Name:    "xboxkrnl.exe",
				Records: []uint32{thunkAddr}, // function import, ordinal 0
			},
		},
	}

	thunks := kernel.NewThunkTable()
	resolved, variables, unresolved := m.InstallImports(mem, thunks)

	if resolved != 1 || variables != 0 || unresolved != 0 {
		t.Fatalf("resolved=%d variables=%d unresolved=%d, want 1/0/0", resolved, variables, unresolved)
	}
	if thunks.Len() != 1 {
		t.Fatalf("thunks.Len() = %d, want 1", thunks.Len())
	}
	ordinal, ok := thunks.Lookup(thunkAddr)
	if !ok || ordinal != kernel.NamespaceKernel {
		t.Fatalf("Lookup(%#x) = (%d, %v), want (%d, true)", thunkAddr, ordinal, ok, kernel.NamespaceKernel)
	}

	code := mem.Bytes(thunkAddr, 12)
	want := []byte{
		0x38, 0x00, 0x00, 0x00, // li r0, 0
		0x44, 0x00, 0x00, 0x02, // sc
		0x4E, 0x80, 0x00, 0x20, // blr
	}
	if !bytes.Equal(code, want) {
		t.Fatalf("thunk bytes = % x, want % x", code, want)
	}
}
