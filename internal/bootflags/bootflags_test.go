package bootflags

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
)

// fakeFlash is a minimal flashDevice fake backed by a word map, with an
// optional simulated erase error on one page address.
type fakeFlash struct {
	mem map[uint32]uint32

	refusePage *uint32
	// refuseWithProgErr selects which error bit ErasePage reports for
	// refusePage: a write-protected page (protectErr) or the realistic
	// 64 KiB-part signature of a page that is simply absent (progErr).
	refuseWithProgErr bool
	lastErase         struct {
		protectErr, progErr, endOfOp bool
	}
	writeFailures map[uint32]int // allocated but not consulted: WriteWord always succeeds
}

func newFakeFlash() *fakeFlash {
	return &fakeFlash{mem: make(map[uint32]uint32), writeFailures: make(map[uint32]int)}
}

func (f *fakeFlash) ErasePage(addr uint32) {
	for a := range f.mem {
		if a >= addr && a < addr+2048 {
			delete(f.mem, a)
		}
	}
	if f.refusePage != nil && addr == *f.refusePage {
		f.lastErase.protectErr = !f.refuseWithProgErr
		f.lastErase.progErr = f.refuseWithProgErr
		f.lastErase.endOfOp = false
		return
	}
	f.lastErase.protectErr = false
	f.lastErase.progErr = false
	f.lastErase.endOfOp = true
}

func (f *fakeFlash) EraseStatus() (bool, bool, bool) {
	return f.lastErase.protectErr, f.lastErase.progErr, f.lastErase.endOfOp
}

func (f *fakeFlash) WriteWord(addr, data uint32) error {
	f.mem[addr] = data
	return nil
}

func (f *fakeFlash) ReadWord(addr uint32) uint32 {
	return f.mem[addr]
}

func (f *fakeFlash) PageSize() uint16 { return 2048 }

func TestStoreWriteReadRoundTrip(t *testing.T) {
	flash := newFakeFlash()
	store := NewStore(flash, nil)

	rec := Record{FlashCount: 7, UserCodeLegit: true, UserCodePresent: true, UserCodeLength: 12345}
	store.Write(rec)

	got, ok := store.Read()
	require.True(t, ok)
	require.Equal(t, rec, got)

	wantWords := rec.Encode()
	gotWords := got.Encode()
	require.True(t, slices.Equal(wantWords[:], gotWords[:]))
}

func TestStoreReadReportsAbsentOnErasedPages(t *testing.T) {
	flash := newFakeFlash()
	store := NewStore(flash, nil)

	_, ok := store.Read()
	require.False(t, ok)
}

func TestStoreFallsBackWhenPrimaryPageIsUnavailable(t *testing.T) {
	flash := newFakeFlash()
	primary := PrimaryAddr
	flash.refusePage = &primary
	store := NewStore(flash, nil)

	rec := Record{FlashCount: 1, UserCodePresent: true}
	store.Write(rec)

	// The primary page never received valid words.
	_, primaryOK := store.readAt(PrimaryAddr)
	require.False(t, primaryOK)

	got, ok := store.Read()
	require.True(t, ok)
	require.Equal(t, rec, got)
}

// TestStoreFallsBackOnProgramErrorSignature covers the realistic 64 KiB
// part signature (flashdrv_test.go's eraseRefusesAddr): progErr set,
// protectErr clear, end-of-operation clear. The OR'd fallback condition
// must treat this the same as a write-protection error.
func TestStoreFallsBackOnProgramErrorSignature(t *testing.T) {
	flash := newFakeFlash()
	primary := PrimaryAddr
	flash.refusePage = &primary
	flash.refuseWithProgErr = true
	store := NewStore(flash, nil)

	rec := Record{FlashCount: 1, UserCodePresent: true}
	store.Write(rec)

	_, primaryOK := store.readAt(PrimaryAddr)
	require.False(t, primaryOK)

	got, ok := store.Read()
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestStorePrefersPrimaryOverFallbackWhenBothPresent(t *testing.T) {
	flash := newFakeFlash()
	store := NewStore(flash, nil)

	store.Write(Record{FlashCount: 1})
	// Plant a stale-looking fallback record directly.
	fallbackWords := Record{FlashCount: 99}.Encode()
	for i, w := range fallbackWords {
		flash.mem[FallbackAddr+uint32(i*4)] = w
	}

	got, ok := store.Read()
	require.True(t, ok)
	require.EqualValues(t, 1, got.FlashCount)
}
