//go:build tinygo

package flashdrv

import "openenterprise/dfuboot/internal/mmio"

// Memory map of the STM32F1 flash interface peripheral (RM0008 §3.4)
// and the factory-programmed flash-size descriptor (spec §3).
const (
	flashInterfaceBase uintptr = 0x4002_2000
	regKEYR            uintptr = flashInterfaceBase + 0x04
	regSR              uintptr = flashInterfaceBase + 0x0C
	regCR              uintptr = flashInterfaceBase + 0x10
	regAR              uintptr = flashInterfaceBase + 0x14

	bitSRBusy    uint = 0
	bitSRProgErr uint = 2
	bitSRWrpErr  uint = 4
	bitSREOP     uint = 5

	bitCRProgram uint = 0
	bitCREraseP  uint = 1
	bitCRStart   uint = 6
	bitCRLock    uint = 7

	flashSizeRegister uintptr = 0x1FFF_F7E0
)

// mmioRegs implements Regs against the real memory-mapped flash
// interface, for use on the actual microcontroller.
type mmioRegs struct{}

// NewMMIORegs returns the Regs implementation that talks to the MCU's
// flash interface directly. It is only compiled under TinyGo.
func NewMMIORegs() Regs {
	return mmioRegs{}
}

func (mmioRegs) Busy() bool {
	return mmio.Bit(regSR, bitSRBusy)
}

func (mmioRegs) SetProgramMode(on bool) {
	if on {
		mmio.Set(regCR, bitCRProgram)
	} else {
		mmio.Clear(regCR, bitCRProgram)
	}
}

func (mmioRegs) SetEraseMode(on bool) {
	if on {
		mmio.Set(regCR, bitCREraseP)
	} else {
		mmio.Clear(regCR, bitCREraseP)
	}
}

func (mmioRegs) SetAddress(addr uint32) {
	mmio.Write(regAR, addr)
}

func (mmioRegs) Start() {
	mmio.Set(regCR, bitCRStart)
}

func (mmioRegs) ClearControl() {
	mmio.Write(regCR, 0)
}

func (mmioRegs) SetLock() {
	mmio.Set(regCR, bitCRLock)
}

func (mmioRegs) WriteHalfword(addr uint32, v uint16) {
	mmio.WriteHalfword(uintptr(addr), v)
}

func (mmioRegs) ReadWord(addr uint32) uint32 {
	return mmio.Read(uintptr(addr))
}

func (mmioRegs) WriteKey(v uint32) {
	mmio.Write(regKEYR, v)
}

func (mmioRegs) PageSizeKiB() uint16 {
	return uint16(mmio.Read(flashSizeRegister) & 0xffff)
}

func (mmioRegs) EraseStatus() (protectErr, progErr, endOfOp bool) {
	sr := mmio.Read(regSR)
	protectErr = sr&(1<<bitSRWrpErr) != 0
	progErr = sr&(1<<bitSRProgErr) != 0
	endOfOp = sr&(1<<bitSREOP) != 0
	return
}
