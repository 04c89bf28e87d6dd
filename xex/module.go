package xex

import (
	"fmt"
	"io"

	"github.com/xyproto/xenonjit/arena"
)

// Module is a fully parsed, decompressed XEX2 image: everything
// needed to map it into a guest arena and install its import thunks.
type Module struct {
	Header     Header
	OptHeaders []OptHeader

	EntryPoint  uint32
	BaseAddress uint32
	ImageSize   uint32
	StackSize   uint32
	HeapSize    uint32
	TitleID     uint32
	SystemFlags uint32

	Format FileFormatInfo
	Exec   ExecutionInfo
	TLS    TLSInfo

	ImportLibs []ImportLibrary
	Sections   []Section

	// Image is the decompressed PE payload, ready to be copied into
	// the guest arena at BaseAddress.
	Image []byte
}

// Load reads and parses a complete XEX2 container from r, following
// spec §4.F.2's parsing order: header, optional headers, security
// info, import libraries, payload decompression, embedded PE header.
func Load(r io.ReaderAt) (*Module, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("xex: read source: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses an already-buffered XEX2 container, for callers
// that already hold the file contents (tests, embedded assets).
func LoadBytes(data []byte) (*Module, error) {
	m := &Module{
		BaseAddress: 0x82000000,
		StackSize:   0x40000,
	}

	hdr, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	m.Header = hdr

	if err := m.parseOptionalHeaders(data); err != nil {
		return nil, err
	}
	if err := m.parseSecurityInfo(data); err != nil {
		return nil, err
	}

	libs, err := parseImportLibraries(data, m.OptHeaders)
	if err != nil {
		return nil, err
	}
	m.ImportLibs = libs

	image, err := m.decompressImage(data)
	if err != nil {
		return nil, err
	}
	if m.ImageSize > 0 && uint32(len(image)) < m.ImageSize {
		return nil, fmt.Errorf("%w: decompressed image (%d bytes) shorter than advertised size (%d)",
			ErrLoadFormat, len(image), m.ImageSize)
	}
	m.Image = image

	m.parsePEHeader()
	if m.ImageSize == 0 {
		// Neither security info nor the embedded PE header supplied a
		// size (a stripped or absent PE header): fall back to however
		// much the container actually decompressed to.
		m.ImageSize = uint32(len(m.Image))
	}

	return m, nil
}

// readAll drains an io.ReaderAt from offset zero without needing a
// separate Size/Stat call, by growing a buffer until ReadAt reports
// io.EOF — the only size signal the interface itself provides.
func readAll(r io.ReaderAt) ([]byte, error) {
	var out []byte
	chunk := make([]byte, 64*1024)
	var off int64
	for {
		n, err := r.ReadAt(chunk, off)
		if n > 0 {
			out = append(out, chunk[:n]...)
			off += int64(n)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// MapInto commits [BaseAddress, BaseAddress+ImageSize) as
// execute-read-write in mem and copies the decompressed image into it
// (spec §4.F.3).
func (m *Module) MapInto(mem *arena.Arena) error {
	if len(m.Image) == 0 {
		return fmt.Errorf("%w: no decompressed image to map", ErrLoadResource)
	}

	size := m.ImageSize
	if size == 0 {
		size = uint32(len(m.Image))
	}
	const pageSize = 0x1000
	size = (size + pageSize - 1) &^ (pageSize - 1)

	region := arena.Region{Start: uint64(m.BaseAddress), Size: uint64(size)}
	if err := mem.Commit(region, arena.ExecuteReadWrite); err != nil {
		return fmt.Errorf("%w: commit %#08x+%#x: %v", ErrLoadResource, m.BaseAddress, size, err)
	}

	copySize := len(m.Image)
	if uint32(copySize) > size {
		copySize = int(size)
	}
	copy(mem.Bytes(m.BaseAddress, copySize), m.Image[:copySize])

	return nil
}
