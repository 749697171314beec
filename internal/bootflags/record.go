// Package bootflags implements the persistent boot-flags record: its
// wire encoding and the primary/fallback store that reads and writes it
// through a flashdrv.Driver (spec §4.2).
package bootflags

// Magic identifies a valid flags page. A page whose first word does not
// read back as Magic is treated as erased/invalid.
const Magic uint32 = 0xDEAD_CAFE

// Record is the boot-flags payload. The original firmware decoded this
// with a raw pointer cast over the page; here it is an explicit
// word-wise layout so encode/decode has no undefined behavior and can
// be unit tested directly (spec §9 Design Notes).
type Record struct {
	FlashCount      uint32
	UserCodeLegit   bool
	UserCodePresent bool
	UserCodeLength  uint32
}

// recordWords is the number of 32-bit words Encode produces: magic,
// flash count, legit, present, length. Each boolean occupies a whole
// word rather than sharing one with its sibling.
const recordWords = 5

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Encode lays the record out as little-endian words: magic, flash
// count, user code legit, user code present, user code length.
func (r Record) Encode() [recordWords]uint32 {
	return [recordWords]uint32{
		Magic,
		r.FlashCount,
		boolWord(r.UserCodeLegit),
		boolWord(r.UserCodePresent),
		r.UserCodeLength,
	}
}

// Decode reconstructs a Record from words previously produced by
// Encode. It reports false if words does not begin with Magic.
func Decode(words [recordWords]uint32) (Record, bool) {
	if words[0] != Magic {
		return Record{}, false
	}
	return Record{
		FlashCount:      words[1],
		UserCodeLegit:   words[2] != 0,
		UserCodePresent: words[3] != 0,
		UserCodeLength:  words[4],
	}, true
}
