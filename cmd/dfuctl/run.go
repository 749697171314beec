package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/progress"
	"golang.org/x/term"

	"openenterprise/dfuboot/internal/dfu"
)

const transferSize = 256 // matches wTransferSize in the functional descriptor

func run(opts options) error {
	image, err := loadImage(opts.Image)
	if err != nil {
		return err
	}

	if !opts.Yes {
		ok, err := confirm(fmt.Sprintf("flash %s (%s) to %04x:%04x alt %d? [y/N] ",
			opts.Image, humanize.Bytes(uint64(len(image))), opts.VID, opts.PID, opts.Alt))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	dev, cleanup, err := openDevice(opts.VID, opts.PID, opts.Alt)
	if err != nil {
		return err
	}
	defer cleanup()

	return push(dev, image, opts.Verbose)
}

// confirm prompts y/N on the controlling terminal. It does not use
// x/term's raw mode, only its IsTerminal check, since a plain line
// read is all a yes/no prompt needs.
func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)
	if !term.IsTerminal(int(0)) {
		return false, fmt.Errorf("stdin is not a terminal, pass -y to confirm non-interactively")
	}
	var reply string
	fmt.Scanln(&reply)
	return reply == "y" || reply == "Y", nil
}

// push drives the DNLOAD/GET_STATUS handshake described in spec §4.3:
// send one transfer-size chunk, poll GET_STATUS until the device
// reports DfuDnloadIdle, and repeat until the whole image is sent, then
// send the zero-length DNLOAD that starts manifestation and poll until
// the device converges back to DfuIdle.
func push(dev *device, image []byte, verbose bool) error {
	pw := progress.NewWriter()
	pw.SetAutoStop(true)
	go pw.Render()
	tracker := &progress.Tracker{Message: "flashing", Total: int64(len(image)), Units: progress.UnitsBytes}
	pw.AppendTracker(tracker)

	for offset := 0; offset < len(image); offset += transferSize {
		end := offset + transferSize
		if end > len(image) {
			end = len(image)
		}
		chunk := image[offset:end]

		if verbose {
			fmt.Printf("dnload: %d bytes at offset %d\n", len(chunk), offset)
		}
		if err := dev.dnload(chunk); err != nil {
			return fmt.Errorf("dnload at offset %d: %w", offset, err)
		}
		if err := waitIdle(dev); err != nil {
			return fmt.Errorf("waiting for page commit at offset %d: %w", offset, err)
		}
		tracker.Increment(int64(len(chunk)))
	}

	if err := dev.dnload(nil); err != nil {
		return fmt.Errorf("sending end-of-firmware marker: %w", err)
	}

	if err := waitState(dev, dfu.StateDfuIdle); err != nil {
		return fmt.Errorf("waiting for manifestation: %w", err)
	}

	tracker.MarkAsDone()
	return nil
}

// waitIdle polls GET_STATUS until the device reports DfuDnloadIdle,
// honoring the bwPollTimeout the device returns while it is busy
// flashing a page.
func waitIdle(dev *device) error {
	for {
		reply, err := dev.getStatus()
		if err != nil {
			return err
		}
		if reply.Status != dfu.StatusOK {
			return fmt.Errorf("device reported status %d in state %d", reply.Status, reply.State)
		}
		if reply.State == dfu.StateDfuDnloadIdle {
			return nil
		}
		time.Sleep(pollDelay(reply.PollTimeout))
	}
}

func waitState(dev *device, want dfu.State) error {
	for {
		reply, err := dev.getStatus()
		if err != nil {
			return err
		}
		if reply.Status != dfu.StatusOK {
			return fmt.Errorf("device reported status %d in state %d", reply.Status, reply.State)
		}
		if reply.State == want {
			return nil
		}
		time.Sleep(pollDelay(reply.PollTimeout))
	}
}

func pollDelay(ms uint32) time.Duration {
	if ms == 0 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}
