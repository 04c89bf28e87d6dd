package xex

import "fmt"

const fileHeaderSize = 24

// Header is the fixed 24-byte XEX2 file header, already byte-swapped
// from its on-disk big-endian layout.
type Header struct {
	Magic          uint32
	ModuleFlags    uint32
	PEDataOffset   uint32
	Reserved       uint32
	SecurityOffset uint32
	OptHeaderCount uint32
}

// OptHeader is one key/value optional header entry. The low byte of
// Key distinguishes a direct scalar value from an offset pointing at
// a sub-structure elsewhere in the file (spec §4.F.1).
type OptHeader struct {
	Key   uint32
	Value uint32
}

// Recognised optional header keys (spec §4.F.1's "recognised optional
// headers" list).
const (
	headerEntryPoint        = 0x00010100
	headerImageBaseAddress  = 0x00010201
	headerOriginalBaseAddr  = 0x00010001
	headerDefaultStackSize  = 0x00020200
	headerDefaultHeapSize   = 0x00020401
	headerSystemFlags       = 0x00030000
	headerExecutionInfo     = 0x00040006
	headerBaseFileFormat    = 0x000003FF
	headerTLSInfo           = 0x00020104
	headerImportLibraries   = 0x000103FF
)

func parseHeader(data []byte) (Header, error) {
	if len(data) < fileHeaderSize {
		return Header{}, fmt.Errorf("%w: file shorter than the XEX2 header", ErrLoadFormat)
	}

	c := newCursor(data)
	h := Header{}
	h.Magic, _ = c.u32()
	h.ModuleFlags, _ = c.u32()
	h.PEDataOffset, _ = c.u32()
	h.Reserved, _ = c.u32()
	h.SecurityOffset, _ = c.u32()
	h.OptHeaderCount, _ = c.u32()

	if h.Magic != Magic2 && h.Magic != Magic1 {
		return Header{}, fmt.Errorf("%w: bad magic %#08x", ErrLoadFormat, h.Magic)
	}

	return h, nil
}

// FileFormatInfo describes the base-file-format optional header:
// which compression and encryption scheme the payload uses.
type FileFormatInfo struct {
	InfoSize    uint32
	Encryption  EncryptionType
	Compression CompressionType
}

// TLSInfo mirrors the thread-local-storage optional header. xenonjit
// does not implement guest TLS allocation (no title exercised by the
// retrieved pack needs it); the fields are carried through for a
// future executor to consume.
type TLSInfo struct {
	SlotCount      uint32
	RawDataAddress uint32
	DataSize       uint32
	RawDataSize    uint32
}

// ExecutionInfo mirrors the execution-info optional header: title and
// media identification.
type ExecutionInfo struct {
	MediaID        uint32
	Version        uint32
	BaseVersion    uint32
	TitleID        uint32
	Platform       uint8
	ExecutableType uint8
	DiscNumber     uint8
	DiscCount      uint8
	SavegameID     uint32
}

// parseOptionalHeaders walks the opt-header table immediately
// following the fixed header, populating module metadata as it goes
// (spec §4.F.2 step 2). Scalar-valued keys are consumed directly;
// keys whose value is an offset dispatch to the sub-structure's own
// field layout.
func (m *Module) parseOptionalHeaders(data []byte) error {
	c := newCursor(data)
	c.seek(fileHeaderSize)

	for i := uint32(0); i < m.Header.OptHeaderCount; i++ {
		key, ok1 := c.u32()
		value, ok2 := c.u32()
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: truncated optional header table", ErrLoadFormat)
		}
		m.OptHeaders = append(m.OptHeaders, OptHeader{Key: key, Value: value})

		switch key {
		case headerEntryPoint:
			m.EntryPoint = value
		case headerImageBaseAddress:
			m.BaseAddress = value
		case headerDefaultStackSize:
			m.StackSize = value
		case headerDefaultHeapSize:
			m.HeapSize = value
		case headerSystemFlags:
			m.SystemFlags = value
		case headerOriginalBaseAddr:
			// Only meaningful for relocation, which xenonjit does not
			// perform (dev-signed/unencrypted images load at a fixed
			// base per spec Non-goals).
		case headerExecutionInfo:
			m.parseExecutionInfo(data, int(value))
		case headerBaseFileFormat:
			m.parseFileFormatInfo(data, int(value))
		case headerTLSInfo:
			m.parseTLSInfo(data, int(value))
		}
	}

	return nil
}

func (m *Module) parseExecutionInfo(data []byte, offset int) {
	c := newCursor(data)
	c.seek(offset)
	mediaID, ok1 := c.u32()
	version, ok2 := c.u32()
	baseVersion, ok3 := c.u32()
	titleID, ok4 := c.u32()
	flags, ok5 := c.bytes(4)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return
	}
	savegameID, _ := c.u32() // trailing field; absent is non-fatal

	m.Exec = ExecutionInfo{
		MediaID:        mediaID,
		Version:        version,
		BaseVersion:    baseVersion,
		TitleID:        titleID,
		Platform:       flags[0],
		ExecutableType: flags[1],
		DiscNumber:     flags[2],
		DiscCount:      flags[3],
		SavegameID:     savegameID,
	}
	m.TitleID = titleID
}

func (m *Module) parseFileFormatInfo(data []byte, offset int) {
	c := newCursor(data)
	c.seek(offset)
	infoSize, ok1 := c.u32()
	encryption, ok2 := c.u16()
	compression, ok3 := c.u16()
	if !ok1 || !ok2 || !ok3 {
		return
	}
	m.Format = FileFormatInfo{
		InfoSize:    infoSize,
		Encryption:  EncryptionType(encryption),
		Compression: CompressionType(compression),
	}
}

func (m *Module) parseTLSInfo(data []byte, offset int) {
	c := newCursor(data)
	c.seek(offset)
	slotCount, ok1 := c.u32()
	rawDataAddress, ok2 := c.u32()
	dataSize, ok3 := c.u32()
	rawDataSize, ok4 := c.u32()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	m.TLS = TLSInfo{
		SlotCount:      slotCount,
		RawDataAddress: rawDataAddress,
		DataSize:       dataSize,
		RawDataSize:    rawDataSize,
	}
}
