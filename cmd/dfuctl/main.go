// Command dfuctl is the host-side companion to the dfuboot bootloader:
// it finds the device over USB, pushes a firmware image through the
// DFU class protocol's DNLOAD sequence, and polls GET_STATUS until
// manifestation completes. It plays the role bindicator's cmd/cli
// played for that project's TCP-based OTA push, adapted to real USB
// control transfers instead of a telnet-authenticated TCP socket.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

type options struct {
	Image   string `short:"f" long:"file" description:"firmware image to flash (.bin, or .bin.xz if compressed)" required:"true"`
	VID     uint16 `long:"vid" description:"USB vendor ID" default:"0x41ca"`
	PID     uint16 `long:"pid" description:"USB product ID" default:"0x2137"`
	Alt     uint8  `long:"alt" description:"DFU alternate setting to target" default:"0"`
	Yes     bool   `short:"y" long:"yes" description:"skip the confirmation prompt"`
	Verbose bool   `short:"v" long:"verbose" description:"print each DNLOAD transfer as it is sent"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "dfuctl:", err)
		os.Exit(1)
	}
}
