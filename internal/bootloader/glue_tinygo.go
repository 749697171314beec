//go:build tinygo

package bootloader

import (
	"machine"
	"time"

	"openenterprise/dfuboot/internal/bootflags"
	"openenterprise/dfuboot/internal/dfu"
	"openenterprise/dfuboot/internal/flashdrv"
	"openenterprise/dfuboot/internal/mmio"
)

// Pin assignments, spec §4.4: PC14 is the boot-select pin (pulled low
// on the board, pulled high by a jumper/button to force DFU entry);
// PC13 drives the status LED.
const (
	bootSelectPin = machine.PC14
	statusLEDPin  = machine.PC13
)

// Reset-cause register, RM0008 §8.3.20 (RCC_CSR): bit 28 (SFTRSTF) is
// latched set across a software-triggered reset and must be cleared by
// software (bit 24, RMVF) once read.
const (
	rccBase    uintptr = 0x4002_1000
	regRCCCSR  uintptr = rccBase + 0x24
	bitSFTRSTF uint    = 28
	bitRMVF    uint    = 24
)

// Hardware wires the DFU class driver to the real flash interface and
// GPIO, and runs the bootloader's main loop. It is the TinyGo
// equivalent of cmd/firmware/main.go's testable half: everything that
// touches real memory-mapped registers lives here, everything that
// doesn't lives in policy.go.
type Hardware struct {
	class *dfu.Class
	flash *flashdrv.Driver
}

// NewHardware builds the bootloader's runtime state against the real
// STM32F1 flash interface.
func NewHardware(appBaseAddr uint32) *Hardware {
	flash := flashdrv.New(flashdrv.NewMMIORegs(), nil)
	store := bootflags.NewStore(flash, nil)
	class := dfu.New(flash, store, appBaseAddr, nil)
	return &Hardware{class: class, flash: flash}
}

// ShouldEnterDFU reads the boot-select pin and the reset-cause
// register to decide whether to stay in the bootloader, per the entry
// policy in policy.go.
func (h *Hardware) ShouldEnterDFU() bool {
	bootSelectPin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	pinHigh := bootSelectPin.Get()
	softwareReset := mmio.Bit(regRCCCSR, bitSFTRSTF)
	mmio.Set(regRCCCSR, bitRMVF)
	return ShouldEnterDFU(pinHigh, softwareReset)
}

// FlagsReadable reports whether a valid boot-flags record was found at
// startup, for BlinkCount.
func (h *Hardware) FlagsReadable() bool {
	return h.class.FlagsValid()
}

// TryJumpToApplication calls jumpToUserCode if the boot-flags record
// marks an application present and legitimate. jumpToUserCode has an
// empty body, so this always returns, and the caller falls into DFU
// mode.
func (h *Hardware) TryJumpToApplication() {
	flags := h.class.Flags()
	if !flags.UserCodePresent || !flags.UserCodeLegit {
		return
	}
	jumpToUserCode()
}

// Blink flashes the status LED count times, roughly 7 Hz, so a user
// watching the board can tell whether a valid boot-flags record was
// found (see BlinkCount).
func Blink(count int) {
	statusLEDPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	const period = time.Second / 7
	for i := 0; i < count; i++ {
		statusLEDPin.High()
		time.Sleep(period / 2)
		statusLEDPin.Low()
		time.Sleep(period / 2)
	}
}

// Run drives the bootloader's main loop for as long as the device
// stays in DFU mode. This core is always manifestation tolerant (spec
// §4.3), so it never needs a bus reset to leave the manifest phase: a
// freshly flashed application only takes effect the next time the
// device is power-cycled or reset, which re-enters main and re-runs
// the entry decision. usb adapts whatever USB peripheral driver is
// linked in to the Poller interface; wiring a real one is outside this
// package's scope, since the generic USB device stack is a Non-goal
// here (spec §1) and is supplied by cmd/firmware instead.
func (h *Hardware) Run(usb Poller) {
	for {
		PollCycle(usb, h.class)
	}
}

// jumpToUserCode is the hand-off point to the application. Its body is
// empty: it does not relocate the vector table, reload the stack
// pointer or branch to the application's reset handler, and it returns
// to its caller.
func jumpToUserCode() {
	// Left intentionally minimal: the exact sequence (VTOR relocation,
	// MSP reload, indirect branch) is CPU-core-specific assembly that
	// has no meaningful Go representation beyond a stub entry point
	// for the linker to wire a naked function to.
}
