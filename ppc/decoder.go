package ppc

// Instruction is a decoded PowerPC word. Not every field is meaningful
// for every opcode; Decode fills in whatever the primary/extended
// opcode's operand layout defines. Grounded on Xenia's
// xenia/cpu/frontend/ppc_decoder.h PPCInstruction struct.
type Instruction struct {
	Address uint32
	Code    uint32

	Primary uint8 // bits 0..5 (MSB-0) == bits 26..31 of the LE word
	XO10    uint16
	XO5     uint8
	XO4     uint8

	RD, RS, RA, RB, RC uint8
	SIMM               int16
	UIMM               uint16
	SH, MB, ME         uint8
	// 64-bit rotate forms split SH/MB/ME across two encoding fields;
	// SH64/MB64/ME64 hold the reassembled 6-bit values.
	SH64, MB64, ME64 uint8

	BO, BI       uint8
	BranchOffset int32
	CRFD, CRFS   uint8 // CR field numbers for compare/mcrf forms
	CRBD, CRBA, CRBB uint8 // CR bit numbers for crand/cror/... forms

	// DS-form (opcodes 58, 62: ld/ldu/lwa, std/stdu): a 2-bit sub-opcode
	// in the word's low bits selects the exact form, and the displacement
	// is 14 bits, pre-shifted left 2 (always doubleword- or word-aligned).
	DSXO     uint8
	DSOffset int32

	Link     bool // LK
	Record   bool // Rc
	OE       bool // overflow-enable
	Absolute bool // AA
}

func bits(word uint32, hiMSB0, loMSB0 int) uint32 {
	// MSB-0 bit n corresponds to LE-host bit (31-n). A field spanning
	// MSB-0 bits [hi..lo] (hi <= lo, both inclusive, hi is more
	// significant) becomes host bits [(31-lo)..(31-hi)].
	width := loMSB0 - hiMSB0 + 1
	shift := uint(31 - loMSB0)
	mask := uint32(1)<<uint(width) - 1
	return (word >> shift) & mask
}

// Decode extracts a full Instruction from a 32-bit PPC word as it
// appears after being read from big-endian guest memory and byte-
// swapped into host-native uint32 (spec §4.C).
func Decode(address, word uint32) Instruction {
	ins := Instruction{Address: address, Code: word}

	ins.Primary = uint8(bits(word, 0, 5))
	ins.RD = uint8(bits(word, 6, 10))
	ins.RS = ins.RD
	ins.RA = uint8(bits(word, 11, 15))
	ins.RB = uint8(bits(word, 16, 20))
	ins.RC = uint8(bits(word, 21, 25))
	ins.SIMM = int16(bits(word, 16, 31))
	ins.UIMM = uint16(bits(word, 16, 31))
	ins.SH = uint8(bits(word, 16, 20))
	ins.MB = uint8(bits(word, 21, 25))
	ins.ME = uint8(bits(word, 26, 30))
	ins.Record = bits(word, 31, 31) != 0
	ins.OE = bits(word, 21, 21) != 0

	// md-form (64-bit rotates): sh is split bit 30 | bits[16:20],
	// mb/me split bit 5 (word bit 26 for rldicl-family) | bits[21:25].
	shHi := bits(word, 30, 30)
	ins.SH64 = uint8(shHi<<5) | ins.SH
	mbHi := bits(word, 26, 26)
	ins.MB64 = uint8(mbHi<<5) | ins.MB

	ins.XO10 = uint16(bits(word, 21, 30))
	ins.XO5 = uint8(bits(word, 26, 30))
	ins.XO4 = uint8(bits(word, 26, 29))
	ins.ME64 = ins.MB64 // rldicr's ME reuses the same field position as MB

	// Branch forms (primary 16, 18).
	ins.BO = uint8(bits(word, 6, 10))
	ins.BI = uint8(bits(word, 11, 15))
	bd := int32(bits(word, 16, 29))
	if bd&0x2000 != 0 {
		bd |= ^int32(0x3FFF) // sign-extend 14-bit BD
	}
	ins.BranchOffset = bd << 2
	ins.Absolute = bits(word, 30, 30) != 0
	ins.Link = bits(word, 31, 31) != 0

	// Unconditional branch (primary 18) uses a 24-bit LI field instead.
	if ins.Primary == 18 {
		li := int32(bits(word, 6, 29))
		if li&0x800000 != 0 {
			li |= ^int32(0xFFFFFF)
		}
		ins.BranchOffset = li << 2
	}

	// DS-form (primary 58, 62): 2-bit sub-opcode in bits 30..31, 14-bit
	// signed displacement in bits 16..29, scaled by 4.
	ins.DSXO = uint8(bits(word, 30, 31))
	ds := int32(bits(word, 16, 29))
	if ds&0x2000 != 0 {
		ds |= ^int32(0x3FFF)
	}
	ins.DSOffset = ds << 2

	// Compare forms: crfD/crfS in bits 6..8, with an L bit at bit 10.
	ins.CRFD = uint8(bits(word, 6, 8))
	ins.CRFS = uint8(bits(word, 11, 13))

	// CR logical forms (crand, cror, ...): three 5-bit CR-bit numbers.
	ins.CRBD = ins.RD
	ins.CRBA = ins.RA
	ins.CRBB = ins.RB

	return ins
}

// IsReturn reports whether this is bclr with the "branch always"
// encoding (the PPC `blr` mnemonic): primary 19, XO 16, BO bits 20/21
// (unconditional branch, ignore CTR and CR).
func (i Instruction) IsReturn() bool {
	return i.Primary == 19 && i.XO10 == 16 && i.BO&0x14 == 0x14
}

// IsFunctionCall reports whether this is `bl` or `bla` — an
// unconditional direct branch with the link bit set.
func (i Instruction) IsFunctionCall() bool {
	return i.Primary == 18 && i.Link
}

// IsUnconditionalBranch reports whether this is `b`/`ba`/`bl`/`bla`.
func (i Instruction) IsUnconditionalBranch() bool {
	return i.Primary == 18
}

// IsBranchToCount reports whether this is bcctr (primary 19, XO 528).
func (i Instruction) IsBranchToCount() bool {
	return i.Primary == 19 && i.XO10 == 528
}

// MaskMBME builds the PPC rotate mask for (mb, me) in MSB-0 bit order:
// for mb <= me, bits [mb..me] are set; for mb > me, bits [me+1..mb-1]
// are clear and everything else (wrap-around) is set — spec property 4.
func MaskMBME(mb, me uint8) uint64 {
	var mask uint32
	if mb <= me {
		for b := int(mb); b <= int(me); b++ {
			mask |= 1 << uint(31-b)
		}
	} else {
		for b := 0; b < 32; b++ {
			if b > int(me) && b < int(mb) {
				continue
			}
			mask |= 1 << uint(31-b)
		}
	}
	return uint64(mask)
}

// Mask64MBME is MaskMBME generalized to the 64-bit rotate family
// (rldicl/rldicr/rldic/rldimi), mb/me in [0,63].
func Mask64MBME(mb, me uint8) uint64 {
	var mask uint64
	if mb <= me {
		for b := int(mb); b <= int(me); b++ {
			mask |= 1 << uint(63-b)
		}
	} else {
		for b := 0; b < 64; b++ {
			if b > int(me) && b < int(mb) {
				continue
			}
			mask |= 1 << uint(63-b)
		}
	}
	return mask
}

func rotl32(v uint32, sh uint8) uint32 {
	sh &= 31
	return (v << sh) | (v >> (32 - sh))
}

func rotl64(v uint64, sh uint8) uint64 {
	sh &= 63
	return (v << sh) | (v >> (64 - sh))
}
