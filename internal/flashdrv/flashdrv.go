// Package flashdrv implements the flash-programming engine: page erase,
// half-word programming with verification and retry, and the
// write-unlock/lock protocol (spec §4.1).
//
// The retry/verify algorithm itself is hardware-agnostic and lives here
// so it can run under `go test` against a fake Regs; only the Regs
// implementation backing it differs between a real MCU build and a
// test fake, matching the way bindicator's ota package keeps the
// high-level Go API (WriteChunk, EraseSector) separate from the
// register-poking beneath it.
package flashdrv

import (
	"errors"
	"log/slog"

	"openenterprise/dfuboot/internal/console"
)

// ErrVerifyFailed is returned by WriteWord when the programmed word
// still does not match after the maximum number of retries.
var ErrVerifyFailed = errors.New("flashdrv: word write failed verification")

// maxWriteAttempts is the total number of program-then-verify attempts
// WriteWord makes before giving up, per spec §4.1.
const maxWriteAttempts = 3

// Regs is the set of flash-controller register operations the
// programming algorithm is built from. A real implementation talks to
// the MCU's memory-mapped flash interface (see flashdrv_mmio.go); tests
// supply a fake that is never busy and can simulate an erase program
// error and readback mismatches.
type Regs interface {
	// Busy reports whether the flash controller is still completing a
	// previous erase or program operation.
	Busy() bool
	// SetProgramMode toggles the controller's program-enable bit.
	SetProgramMode(on bool)
	// SetEraseMode toggles the controller's page-erase-enable bit.
	SetEraseMode(on bool)
	// SetAddress loads the target address register used by erase.
	SetAddress(addr uint32)
	// Start raises the operation-start bit.
	Start()
	// ClearControl zeroes the control register (used after erase).
	ClearControl()
	// SetLock raises the controller's lock bit.
	SetLock()
	// WriteHalfword performs one 16-bit memory-mapped write.
	WriteHalfword(addr uint32, v uint16)
	// ReadWord performs one 32-bit memory-mapped read, used both for
	// write verification and by the boot-flags reader.
	ReadWord(addr uint32) uint32
	// WriteKey writes one word of the unlock key sequence.
	WriteKey(v uint32)
	// PageSizeKiB reads the flash-size descriptor register and returns
	// the die's total flash size in KiB.
	PageSizeKiB() uint16
	// EraseStatus reports the controller status bits an erase leaves
	// behind: write-protect error, program error, and end-of-operation.
	EraseStatus() (protectErr, progErr, endOfOp bool)
}

// Driver is the flash-programming engine described in spec §4.1.
type Driver struct {
	regs Regs
	log  *slog.Logger
}

// New builds a Driver over regs. A nil logger falls back to a discard
// logger so callers never need to nil-check.
func New(regs Regs, log *slog.Logger) *Driver {
	return &Driver{regs: regs, log: console.OrDiscard(log)}
}

// PageSize reports 1024 or 2048 depending on the die's reported flash
// size, per the decision rule in spec §3.
func (d *Driver) PageSize() uint16 {
	if d.regs.PageSizeKiB() > 128 {
		return 2048
	}
	return 1024
}

// Unlock writes the key sequence that readies the controller for
// program/erase operations.
func (d *Driver) Unlock() {
	d.regs.WriteKey(0x4567_0123)
	d.regs.WriteKey(0xCDEF_89AB)
}

// Lock sets the controller's lock bit. Idempotent.
func (d *Driver) Lock() {
	d.regs.SetLock()
}

// ErasePage erases the page containing addr.
func (d *Driver) ErasePage(addr uint32) {
	d.waitNotBusy()
	d.regs.SetEraseMode(true)
	d.waitNotBusy()
	d.regs.SetAddress(addr)
	d.regs.Start()
	d.waitNotBusy()
	d.regs.SetEraseMode(false)
	d.waitNotBusy()
	d.regs.ClearControl()
}

// EraseStatus exposes the controller status bits left behind by the
// last ErasePage call, used by bootflags.Store to detect a 64 KiB part
// that lacks the primary boot-flags page.
func (d *Driver) EraseStatus() (protectErr, progErr, endOfOp bool) {
	return d.regs.EraseStatus()
}

// ReadWord performs a raw 32-bit flash read, used by bootflags.Store
// when searching for a valid record.
func (d *Driver) ReadWord(addr uint32) uint32 {
	return d.regs.ReadWord(addr)
}

// WriteWord programs one 32-bit word at addr, writing the high
// half-word at addr+2 then the low half-word at addr (matching the
// on-die programming convention), verifying by readback, and making
// up to maxWriteAttempts attempts in total before returning
// ErrVerifyFailed.
func (d *Driver) WriteWord(addr uint32, data uint32) error {
	hi := uint16(data >> 16)
	lo := uint16(data & 0xffff)

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		d.waitNotBusy()
		d.regs.SetProgramMode(true)

		d.regs.WriteHalfword(addr+2, hi)
		d.waitNotBusy()

		d.regs.WriteHalfword(addr, lo)
		d.waitNotBusy()

		if read := d.regs.ReadWord(addr); read == data {
			d.regs.SetProgramMode(false)
			d.waitNotBusy()
			return nil
		}

		d.log.Debug("flashdrv: verify mismatch, retrying",
			slog.Int("attempt", attempt+1),
			slog.Uint64("addr", uint64(addr)),
		)
	}

	d.regs.SetProgramMode(false)
	return ErrVerifyFailed
}

func (d *Driver) waitNotBusy() {
	for d.regs.Busy() {
	}
}
