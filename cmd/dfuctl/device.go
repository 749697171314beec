package main

import (
	"fmt"

	"github.com/google/gousb"

	"openenterprise/dfuboot/internal/dfu"
)

// dfuRequestType bits, USB DFU 1.1 §3: class request, interface
// recipient, direction set per transfer.
const (
	reqTypeOut = uint8(gousb.ControlOut | gousb.ControlClass | gousb.ControlInterface)
	reqTypeIn  = uint8(gousb.ControlIn | gousb.ControlClass | gousb.ControlInterface)
)

// device wraps the USB handle the bootloader enumerates as, scoped to
// its DFU interface.
type device struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	iface   *gousb.Interface
	ifaceID uint8
}

func openDevice(vid, pid uint16, alt uint8) (*device, func(), error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, nil, fmt.Errorf("opening device %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, nil, fmt.Errorf("device %04x:%04x not found", vid, pid)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, nil, fmt.Errorf("claiming config: %w", err)
	}

	iface, err := cfg.Interface(0, int(alt))
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, nil, fmt.Errorf("claiming DFU interface alt %d: %w", alt, err)
	}

	d := &device{ctx: ctx, dev: dev, iface: iface, ifaceID: 0}
	cleanup := func() {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
	}
	return d, cleanup, nil
}

func (d *device) dnload(data []byte) error {
	_, err := d.dev.Control(reqTypeOut, uint8(dfu.ReqDnload), 0, uint16(d.ifaceID), data)
	return err
}

func (d *device) getStatus() (dfu.StatusReply, error) {
	buf := make([]byte, 6)
	_, err := d.dev.Control(reqTypeIn, uint8(dfu.ReqGetStatus), 0, uint16(d.ifaceID), buf)
	if err != nil {
		return dfu.StatusReply{}, err
	}
	return dfu.StatusReply{
		Status:      dfu.Status(buf[0]),
		PollTimeout: uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16,
		State:       dfu.State(buf[4]),
		StringDesc:  buf[5],
	}, nil
}

func (d *device) clrStatus() error {
	_, err := d.dev.Control(reqTypeOut, uint8(dfu.ReqClrStatus), 0, uint16(d.ifaceID), nil)
	return err
}

func (d *device) abort() error {
	_, err := d.dev.Control(reqTypeOut, uint8(dfu.ReqAbort), 0, uint16(d.ifaceID), nil)
	return err
}
