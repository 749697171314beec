// Package dfu implements the USB DFU class control-request state
// machine (spec §4.3, §5) over a small Request/transfer abstraction
// that does not depend on any particular USB device stack, since the
// generic USB peripheral driver is out of scope here.
package dfu

// State is the DFU class state, USB DFU 1.1 §6.1.2, Table 6.2.
type State uint8

const (
	StateAppIdle State = iota
	StateAppDetach
	StateDfuIdle
	StateDfuDnloadSync
	StateDfuDnloadBusy
	StateDfuDnloadIdle
	StateDfuManifestSync
	StateDfuManifest
	StateDfuManifestWaitReset
	StateDfuUploadIdle
	StateDfuError
)

// Status is the bStatus value returned by GET_STATUS, USB DFU 1.1
// §6.1.2, Table 6.2.
type Status uint8

const (
	StatusOK Status = iota
	StatusErrTarget
	StatusErrFile
	StatusErrWrite
	StatusErrErase
	StatusErrCheckErased
	StatusErrProg
	StatusErrVerify
	StatusErrAddress
	StatusErrNotDone
	StatusErrFirmware
	StatusErrVendor
	StatusErrUsbR
	StatusErrPoR
	StatusErrUnknown
	StatusErrStalledPkt
)

// Request is the bRequest value of a DFU class-specific control
// request, USB DFU 1.1 §3.
type Request uint8

const (
	ReqDetach Request = iota
	ReqDnload
	ReqUpload
	ReqGetStatus
	ReqClrStatus
	ReqGetState
	ReqAbort
)

// StatusReply is the 6-byte payload returned by GET_STATUS.
type StatusReply struct {
	Status       Status
	PollTimeout  uint32 // 24-bit, only the low 3 bytes are sent
	State        State
	StringDesc   uint8
}

// Encode packs the reply into the wire format DFU 1.1 §6.1.2 defines:
// bStatus, bwPollTimeout[3], bState, iString.
func (r StatusReply) Encode() [6]byte {
	return [6]byte{
		byte(r.Status),
		byte(r.PollTimeout),
		byte(r.PollTimeout >> 8),
		byte(r.PollTimeout >> 16),
		byte(r.State),
		r.StringDesc,
	}
}
