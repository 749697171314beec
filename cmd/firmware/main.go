//go:build tinygo

// Command firmware is the bootloader image itself: it decides whether
// to enter DFU mode, otherwise calls Hardware.TryJumpToApplication,
// and runs the USB control-transfer loop once that returns. All testable logic lives in
// internal/bootloader and internal/dfu; this file is wiring only, in
// the same spirit as bindicator's root main.go.
package main

import (
	"log/slog"

	"openenterprise/dfuboot/config"
	"openenterprise/dfuboot/internal/bootloader"
	"openenterprise/dfuboot/internal/console"
	"openenterprise/dfuboot/version"
)

// usbStack is the board-specific USB peripheral glue. Dispatching
// control transfers into internal/dfu.Class from the actual hardware
// interrupt/polling path is board bring-up work tracked separately
// from this exercise's scope; Poll is a no-op until that lands.
type usbStack struct{}

func (usbStack) Poll() {}

func main() {
	log := console.Discard()
	log.Info("boot", slog.String("marker", version.BuildMarker),
		slog.String("version", version.Version), slog.String("git_sha", version.GitSHA))

	hw := bootloader.NewHardware(config.AppBaseAddr)

	if !hw.ShouldEnterDFU() {
		hw.TryJumpToApplication()
	}

	bootloader.Blink(bootloader.BlinkCount(hw.FlagsReadable()))
	hw.Run(usbStack{})
}
