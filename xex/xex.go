package xex

import "errors"

// Errors the loader produces (spec §7). Every parsing failure wraps
// one of these two sentinels so callers can branch on kind without
// string-matching messages; ExecuteInvalidOpcodeError/ExecuteTrap/
// ExecuteHalt are the ppc package's concern, not this one's.
var (
	ErrLoadFormat   = errors.New("xex: malformed container")
	ErrLoadResource = errors.New("xex: resource mapping failed")
)

// Container magic values (spec §4.F.1).
const (
	Magic2 uint32 = 0x58455832 // "XEX2"
	Magic1 uint32 = 0x58455831 // "XEX1" (old devkit format)
)

// CompressionType selects how the payload following pe_data_offset is
// packed (spec §4.F.2 step 5).
type CompressionType uint16

const (
	CompressionNone     CompressionType = 0
	CompressionRaw      CompressionType = 1
	CompressionLZX      CompressionType = 2
	CompressionDeltaLZX CompressionType = 3
)

// EncryptionType selects the XEX2 payload cipher. Only kNone is
// supported — retail decryption is a spec Non-goal.
type EncryptionType uint16

const (
	EncryptionNone   EncryptionType = 0
	EncryptionNormal EncryptionType = 1
)
