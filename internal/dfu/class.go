package dfu

import (
	"log/slog"

	"openenterprise/dfuboot/internal/bootflags"
	"openenterprise/dfuboot/internal/console"
)

// InTransfer is the control-IN data stage the class driver writes its
// reply into.
type InTransfer interface {
	Write(data []byte)
}

// OutTransfer is the control-OUT data stage the class driver reads the
// host's payload from.
type OutTransfer interface {
	Read() []byte
}

// flashEngine is the subset of flashdrv.Driver the class driver needs,
// so tests can supply a fake without wiring a Regs fake.
type flashEngine interface {
	Unlock()
	Lock()
	ErasePage(addr uint32)
	WriteWord(addr, data uint32) error
	PageSize() uint16
}

// flagsStore is the subset of bootflags.Store the class driver needs.
type flagsStore interface {
	Read() (bootflags.Record, bool)
	Write(rec bootflags.Record)
}

const maxPageBuffer = 2048

// Class is the DFU class driver: the control-request dispatcher plus
// the deferred flash-programming state described in spec §4.3. Flash
// operations are slow relative to a control transfer, so DNLOAD only
// buffers the host's data and latches a flag; the actual erase/program
// work happens in ProcessFlash, called from the bootloader's main
// poll loop rather than from the USB interrupt context.
type Class struct {
	flash       flashEngine
	store       flagsStore
	log         *slog.Logger
	appBaseAddr uint32

	state  State
	status Status

	pageBuf      [maxPageBuffer]byte
	pageBufLen   int
	pageAddr     uint32
	firmwareSize uint32

	awaitsFlash bool
	manifesting bool
	flagsValid  bool
	flags       bootflags.Record
}

// New builds a Class driver. appBaseAddr is the first address of the
// application flash region DNLOAD writes into.
func New(flash flashEngine, store flagsStore, appBaseAddr uint32, log *slog.Logger) *Class {
	c := &Class{
		flash:       flash,
		store:       store,
		appBaseAddr: appBaseAddr,
		pageAddr:    appBaseAddr,
		state:       StateDfuIdle,
		status:      StatusOK,
		log:         console.OrDiscard(log),
	}
	if rec, ok := store.Read(); ok {
		c.flags = rec
		c.flagsValid = true
	}
	return c
}

// Flags returns the boot-flags record currently held in memory,
// reflecting the latest successful manifestation.
func (c *Class) Flags() bootflags.Record {
	return c.flags
}

// FlagsValid reports whether a valid boot-flags record was found at
// construction time.
func (c *Class) FlagsValid() bool {
	return c.flagsValid
}

// State reports the current DFU state.
func (c *Class) State() State {
	return c.state
}

// ControlIn serves the three class requests with an IN data stage:
// GET_STATUS, GET_STATE, and UPLOAD (always refused; this bootloader
// never implements firmware upload, spec §1 Non-goals).
func (c *Class) ControlIn(req Request, xfer InTransfer) {
	switch req {
	case ReqGetStatus:
		c.advanceForGetStatus()
		reply := StatusReply{
			Status:      c.status,
			State:       c.state,
			PollTimeout: pollTimeoutFor(c.state, c.manifesting),
		}
		encoded := reply.Encode()
		xfer.Write(encoded[:])
	case ReqGetState:
		xfer.Write([]byte{byte(c.state)})
	case ReqUpload:
		// Upload is not supported; the transfer stalls at the USB
		// layer, so there is nothing to write here.
		c.fail(StatusErrFile)
	}
}

// advanceForGetStatus applies the GET_STATUS transition table before
// the reply is built: an outstanding error forces DfuError; otherwise
// the download/manifestation handshake advances one step, so the
// reply a host sees already reflects where that step left the device.
func (c *Class) advanceForGetStatus() {
	if c.status != StatusOK {
		c.state = StateDfuError
		return
	}
	switch c.state {
	case StateDfuDnloadSync:
		if c.awaitsFlash {
			c.state = StateDfuDnloadBusy
		} else {
			c.state = StateDfuDnloadIdle
		}
	case StateDfuDnloadBusy:
		c.state = StateDfuDnloadSync
	case StateDfuManifest:
		if !c.manifesting {
			c.state = StateDfuManifestSync
		}
	case StateDfuManifestSync:
		c.state = StateDfuIdle
	}
}

// pollTimeoutFor is the bwPollTimeout GET_STATUS reports for the state
// it is about to reply with.
func pollTimeoutFor(state State, manifesting bool) uint32 {
	switch state {
	case StateDfuDnloadBusy:
		return 500
	case StateDfuManifest:
		if manifesting {
			return 500
		}
	}
	return 0
}

// ControlOut serves the four class requests with an OUT data stage or
// no data stage at all: DNLOAD, DETACH, CLRSTATUS, ABORT.
func (c *Class) ControlOut(req Request, xfer OutTransfer) {
	switch req {
	case ReqDnload:
		c.handleDnload(xfer)
	case ReqDetach:
		if c.state == StateAppIdle {
			c.state = StateAppDetach
		}
	case ReqClrStatus:
		if c.state == StateDfuError {
			c.state = StateDfuIdle
			c.status = StatusOK
		}
	case ReqAbort:
		c.resetTransfer()
		c.state = StateDfuIdle
	}
}

func (c *Class) handleDnload(xfer OutTransfer) {
	data := xfer.Read()

	if len(data) == 0 {
		// Zero-length DNLOAD signals end of firmware: move to
		// manifestation and latch both the flags-store commit and
		// whatever partial page is still buffered.
		c.awaitsFlash = true
		c.manifesting = true
		c.state = StateDfuManifest
		return
	}

	if c.state != StateDfuIdle && c.state != StateDfuDnloadIdle {
		c.fail(StatusErrNotDone)
		return
	}

	pageSize := int(c.flash.PageSize())
	if pageSize > maxPageBuffer {
		pageSize = maxPageBuffer
	}

	for len(data) > 0 {
		space := pageSize - c.pageBufLen
		n := len(data)
		if n > space {
			n = space
		}
		copy(c.pageBuf[c.pageBufLen:], data[:n])
		c.pageBufLen += n
		c.firmwareSize += uint32(n)
		data = data[n:]

		if c.pageBufLen == pageSize {
			c.awaitsFlash = true
		}
	}

	c.state = StateDfuDnloadSync
}

// ProcessFlash performs the actual erase/program work for a page
// latched by DNLOAD, and the flags-store update at the end of
// manifestation. It is meant to be called from the bootloader's main
// poll loop, never from the control-transfer path, since flash
// operations take far longer than a USB control transfer's timeout
// budget. It never sets state directly: clearing awaitsFlash and
// manifesting is what drives GET_STATUS's own transition table forward
// on the next poll.
func (c *Class) ProcessFlash() {
	switch {
	case c.awaitsFlash:
		c.flash.Unlock()
		c.flash.ErasePage(c.pageAddr)
		ok := true
		for i := 0; i+4 <= c.pageBufLen; i += 4 {
			word := uint32(c.pageBuf[i]) | uint32(c.pageBuf[i+1])<<8 |
				uint32(c.pageBuf[i+2])<<16 | uint32(c.pageBuf[i+3])<<24
			if err := c.flash.WriteWord(c.pageAddr+uint32(i), word); err != nil {
				ok = false
				break
			}
		}
		c.flash.Lock()

		if !ok {
			c.status = StatusErrWrite
			c.pageBufLen = 0
			c.awaitsFlash = false
			return
		}

		c.pageAddr += uint32(c.pageBufLen)
		c.pageBufLen = 0
		c.awaitsFlash = false

	case c.manifesting:
		c.flags.FlashCount++
		c.flags.UserCodePresent = true
		c.flags.UserCodeLegit = true
		c.flags.UserCodeLength = c.firmwareSize
		c.store.Write(c.flags)
		c.manifesting = false
	}
}

func (c *Class) fail(status Status) {
	c.status = status
	c.state = StateDfuError
}

func (c *Class) resetTransfer() {
	c.pageBufLen = 0
	c.pageAddr = c.appBaseAddr
	c.firmwareSize = 0
	c.awaitsFlash = false
	c.manifesting = false
}

// OnBusReset clears in-flight download state, per spec §5
// Cancellation: a bus reset abandons whatever transfer was in
// progress.
func (c *Class) OnBusReset() {
	c.resetTransfer()
	if c.state != StateAppIdle {
		c.state = StateDfuIdle
		c.status = StatusOK
	}
}
