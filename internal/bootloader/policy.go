// Package bootloader ties the DFU class driver and flash engine
// together into the bootloader's entry decision and main poll loop.
// The decision logic here has no hardware dependency so it can run
// under `go test`; the GPIO/clock/USB wiring that drives it on the
// real MCU lives in glue_tinygo.go.
package bootloader

// ShouldEnterDFU implements the entry condition from spec §4.4: DFU
// mode is entered when the boot-select pin reads high, or when the
// last reset was a software reset (the device rebooted itself, as an
// application requesting a firmware update does). Otherwise the caller is expected to
// try jumping to the application and fall back to DFU only if that
// jump returns.
func ShouldEnterDFU(bootPinHigh bool, softwareReset bool) bool {
	return bootPinHigh || softwareReset
}

// BlinkCount is the number of status-LED blinks the bootloader gives
// on entry, distinguishing a boot where the boot-flags record was
// readable from one where it was not (spec §4.4).
func BlinkCount(flagsReadable bool) int {
	if flagsReadable {
		return 4
	}
	return 2
}

// Poller is polled once per iteration of the main loop for pending USB
// activity; it returns once it has dispatched at most one control
// transfer, matching how the real USB peripheral's interrupt handler
// hands work off to the foreground loop.
type Poller interface {
	Poll()
}

// FlashProcessor performs any flash work latched by the last control
// transfer. See dfu.Class.ProcessFlash.
type FlashProcessor interface {
	ProcessFlash()
}

// PollCycle runs one iteration of the bootloader's main loop: service
// any pending USB transfer, then perform any flash work it latched.
// Flash programming never happens inside the USB interrupt path
// because it is far slower than a control transfer's timeout budget
// allows (spec §4.3).
func PollCycle(p Poller, fp FlashProcessor) {
	p.Poll()
	fp.ProcessFlash()
}
