// Package xex parses the Xbox 360 XEX2 executable container: fixed
// header, optional-header table, security info, import libraries, and
// the decompressed PE payload (spec §4.F). Byte layout throughout the
// container is big-endian; see pe.go for the one deliberate exception.
package xex

import "encoding/binary"

// cursor reads big-endian fields out of a byte slice at an advancing
// position, the read-side counterpart to flapc's writeU16/writeU32
// closures (pe.go) — reversed from emitting a container to consuming
// one. Every multi-byte field in the XEX2 container outside the
// embedded PE payload is big-endian, so cursor never takes an
// endianness parameter.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) seek(pos int) { c.pos = pos }

func (c *cursor) u16() (uint16, bool) {
	if c.remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, true
}

func (c *cursor) u32() (uint32, bool) {
	if c.remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, true
}

// u32At reads a big-endian uint32 at an absolute offset without
// disturbing pos, for the scattered offset-addressed sub-structures
// (execution info, TLS info, base file format) optional headers point
// at.
func (c *cursor) u32At(pos int) (uint32, bool) {
	if pos < 0 || pos+4 > len(c.data) {
		return 0, false
	}
	return binary.BigEndian.Uint32(c.data[pos:]), true
}

func (c *cursor) bytes(n int) ([]byte, bool) {
	if n < 0 || c.remaining() < n {
		return nil, false
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, true
}
