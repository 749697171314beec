package flashdrv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRegs is the in-memory flash controller fake the test harness
// supplies, per spec §8. It models a flat word-addressable array plus
// the controller's busy/status/key/mode bits.
type fakeRegs struct {
	mem map[uint32]uint32

	programMode bool
	eraseMode   bool
	addr        uint32
	keys        []uint32
	locked      bool
	pageKiB     uint16

	protectErr bool
	progErr    bool
	endOfOp    bool

	// verifyFailures simulates a readback mismatch for the first N
	// WriteWord attempts targeting writeFailAddr.
	verifyFailures int
	writeFailAddr  uint32
	attempt        int

	// eraseRefusesAddr, when set, makes ErasePage for that address look
	// like a 64 KiB part that lacks the page (simulated pgerr + no EOP).
	eraseRefusesAddr *uint32
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{mem: make(map[uint32]uint32), pageKiB: 128, endOfOp: true}
}

func (f *fakeRegs) Busy() bool            { return false }
func (f *fakeRegs) SetProgramMode(on bool) { f.programMode = on }
func (f *fakeRegs) SetEraseMode(on bool)   { f.eraseMode = on }
func (f *fakeRegs) SetAddress(addr uint32) {
	f.addr = addr
	f.protectErr = false
	f.progErr = false
	f.endOfOp = true
	if f.eraseRefusesAddr != nil && addr == *f.eraseRefusesAddr {
		f.progErr = true
		f.endOfOp = false
	}
}
func (f *fakeRegs) Start()          {}
func (f *fakeRegs) ClearControl()   {}
func (f *fakeRegs) SetLock()        { f.locked = true }
func (f *fakeRegs) WriteKey(v uint32) {
	f.keys = append(f.keys, v)
}
func (f *fakeRegs) PageSizeKiB() uint16 { return f.pageKiB }
func (f *fakeRegs) EraseStatus() (bool, bool, bool) {
	return f.protectErr, f.progErr, f.endOfOp
}

func (f *fakeRegs) WriteHalfword(addr uint32, v uint16) {
	w := f.mem[addr&^3]
	if addr%4 == 0 {
		w = (w &^ 0xffff) | uint32(v)
	} else {
		w = (w & 0xffff) | (uint32(v) << 16)
	}
	f.mem[addr&^3] = w
}

func (f *fakeRegs) ReadWord(addr uint32) uint32 {
	if addr == f.writeFailAddr && f.attempt < f.verifyFailures {
		f.attempt++
		return f.mem[addr] ^ 0xffffffff // deliberately wrong
	}
	return f.mem[addr]
}

func TestPageSizeDecisionRule(t *testing.T) {
	regs := newFakeRegs()
	d := New(regs, nil)

	regs.pageKiB = 128
	require.EqualValues(t, 1024, d.PageSize())

	regs.pageKiB = 64
	require.EqualValues(t, 1024, d.PageSize())

	regs.pageKiB = 129
	require.EqualValues(t, 2048, d.PageSize())
}

func TestUnlockWritesKeySequence(t *testing.T) {
	regs := newFakeRegs()
	d := New(regs, nil)

	d.Unlock()
	require.Equal(t, []uint32{0x4567_0123, 0xCDEF_89AB}, regs.keys)
}

func TestLockSetsLockBit(t *testing.T) {
	regs := newFakeRegs()
	d := New(regs, nil)

	require.False(t, regs.locked)
	d.Lock()
	require.True(t, regs.locked)
}

// TestWriteWordVerifyAndRetry covers testable property 8: a fake flash
// that fails the first two verifies and succeeds the third returns Ok;
// failing all three returns Err.
func TestWriteWordVerifyAndRetry(t *testing.T) {
	t.Run("succeeds on third attempt", func(t *testing.T) {
		regs := newFakeRegs()
		regs.writeFailAddr = 0x0800_4800
		regs.verifyFailures = 2
		d := New(regs, nil)

		err := d.WriteWord(0x0800_4800, 0xCAFEBABE)
		require.NoError(t, err)
		require.Equal(t, uint32(0xCAFEBABE), regs.mem[0x0800_4800])
	})

	t.Run("fails after three attempts", func(t *testing.T) {
		regs := newFakeRegs()
		regs.writeFailAddr = 0x0800_4800
		regs.verifyFailures = 3
		d := New(regs, nil)

		err := d.WriteWord(0x0800_4800, 0xCAFEBABE)
		require.ErrorIs(t, err, ErrVerifyFailed)
	})
}

func TestErasePageReportsProgramError(t *testing.T) {
	regs := newFakeRegs()
	primary := uint32(0x0801_FC00)
	regs.eraseRefusesAddr = &primary
	d := New(regs, nil)

	d.ErasePage(primary)
	protectErr, progErr, endOfOp := d.EraseStatus()
	require.False(t, protectErr)
	require.True(t, progErr)
	require.False(t, endOfOp)

	fallback := uint32(0x0800_FC00)
	d.ErasePage(fallback)
	protectErr, progErr, endOfOp = d.EraseStatus()
	require.False(t, protectErr)
	require.False(t, progErr)
	require.True(t, endOfOp)
}
