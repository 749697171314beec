package bootflags

import (
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"openenterprise/dfuboot/internal/console"
)

// Primary and fallback page addresses for the boot-flags record, per
// spec §4.2: a 128 KiB part keeps flags in the last page below
// 0x0802_0000; a 64 KiB part has no such page, so the fallback page
// just below 0x0801_0000 is tried instead.
const (
	PrimaryAddr  uint32 = 0x0801_FC00
	FallbackAddr uint32 = 0x0800_FC00
)

// candidateAddrs is searched in order: the primary page always wins
// when both hold a valid record, since it is the one last written to
// by a 128 KiB part.
var candidateAddrs = []uint32{PrimaryAddr, FallbackAddr}

// flashDevice is the subset of flashdrv.Driver the store depends on, so
// it can be swapped for a fake in tests without needing a Regs fake.
type flashDevice interface {
	ErasePage(addr uint32)
	EraseStatus() (protectErr, progErr, endOfOp bool)
	WriteWord(addr, data uint32) error
	ReadWord(addr uint32) uint32
	PageSize() uint16
}

// Store reads and writes the boot-flags record through a flash driver.
type Store struct {
	flash flashDevice
	log   *slog.Logger
}

// NewStore builds a Store over flash.
func NewStore(flash flashDevice, log *slog.Logger) *Store {
	return &Store{flash: flash, log: console.OrDiscard(log)}
}

// Read searches the primary page, then the fallback page, for a record
// beginning with Magic. It reports false if neither page holds one.
func (s *Store) Read() (Record, bool) {
	for _, addr := range candidateAddrs {
		if rec, ok := s.readAt(addr); ok {
			return rec, true
		}
	}
	return Record{}, false
}

func (s *Store) readAt(base uint32) (Record, bool) {
	var words [recordWords]uint32
	for i := range words {
		words[i] = s.flash.ReadWord(base + uint32(i*4))
	}
	return Decode(words)
}

// Write erases the primary page and programs rec into it. If the
// erase reports a write-protection error, a program error, or no
// end-of-operation (any of these is the signature of a 64 KiB part
// that lacks that page), it falls back to the fallback page instead.
// Programming failures on individual words are aggregated and logged
// but, per spec §4.2, never propagated: a boot-flags write is always
// best-effort.
func (s *Store) Write(rec Record) {
	base := PrimaryAddr
	s.flash.ErasePage(base)
	if protectErr, progErr, endOfOp := s.flash.EraseStatus(); protectErr || progErr || !endOfOp {
		s.log.Debug("bootflags: primary page unavailable, using fallback")
		base = FallbackAddr
		s.flash.ErasePage(base)
	}

	var errs *multierror.Error
	words := rec.Encode()
	for i, w := range words {
		if err := s.flash.WriteWord(base+uint32(i*4), w); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs.ErrorOrNil() != nil {
		s.log.Warn("bootflags: write encountered errors", slog.Any("err", errs.ErrorOrNil()))
	}
}
