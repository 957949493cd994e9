package flash

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{
	Base:        0x08080000,
	SectorSize:  0x1000,
	FirstSector: 8,
	Sectors:     2,
}

// faultyMedium wraps Memory and injects controller failures.
type faultyMedium struct {
	*Memory
	sectorError uint32 // reported instead of NoSectorError when set
	failErase   bool
	failAt      uint32 // program address that fails
	failProgram bool
	programmed  int
}

func (f *faultyMedium) EraseSector(sector uint32) (uint32, error) {
	if f.failErase {
		return sector, errors.New("erase timeout")
	}
	if f.sectorError != NoSectorError {
		return f.sectorError, nil
	}
	return f.Memory.EraseSector(sector)
}

func (f *faultyMedium) ProgramWord(addr uint32, word uint32) error {
	if f.failProgram && addr == f.failAt {
		return errors.New("programming sequence error")
	}
	f.programmed++
	return f.Memory.ProgramWord(addr, word)
}

func newFaulty() *faultyMedium {
	return &faultyMedium{Memory: NewMemory(testGeometry), sectorError: NoSectorError}
}

func TestMemory_StartsErased(t *testing.T) {
	m := NewMemory(testGeometry)
	buf := make([]byte, 16)
	n, err := m.ReadAt(buf, testGeometry.Base)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	for _, b := range buf {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestMemory_ProgramRequiresErased(t *testing.T) {
	m := NewMemory(testGeometry)
	require.NoError(t, m.ProgramWord(testGeometry.Base, 0x12345678))
	err := m.ProgramWord(testGeometry.Base, 0x12345678)
	assert.ErrorIs(t, err, ErrNotErased)

	_, err = m.EraseSector(8)
	require.NoError(t, err)
	assert.NoError(t, m.ProgramWord(testGeometry.Base, 0x12345678))
}

func TestGeometry_SectorAddr(t *testing.T) {
	addr, ok := testGeometry.SectorAddr(9)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x08081000), addr)

	_, ok = testGeometry.SectorAddr(7)
	assert.False(t, ok)
	_, ok = testGeometry.SectorAddr(10)
	assert.False(t, ok)
}

func TestAccessor_ProgramAndRead(t *testing.T) {
	acc := NewAccessor(NewMemory(testGeometry), testGeometry)

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, acc.Program(testGeometry.Base+0x200, src))

	got := make([]byte, len(src))
	require.NoError(t, acc.Read(testGeometry.Base+0x200, got))
	assert.Equal(t, src, got)
}

func TestAccessor_ProgramMisaligned(t *testing.T) {
	tests := []struct {
		name string
		dst  uint32
		src  []byte
	}{
		{"unaligned address", testGeometry.Base + 2, make([]byte, 8)},
		{"unaligned length", testGeometry.Base, make([]byte, 6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newFaulty()
			acc := NewAccessor(mem, testGeometry)

			err := acc.Program(tt.dst, tt.src)
			assert.ErrorIs(t, err, ErrMisalignedAccess)
			assert.Zero(t, mem.programmed, "no word may be written")
		})
	}
}

func TestAccessor_ProgramOutOfRange(t *testing.T) {
	acc := NewAccessor(NewMemory(testGeometry), testGeometry)
	err := acc.Program(testGeometry.Base+testGeometry.Size()-4, make([]byte, 8))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestAccessor_ProgramWordFailureAborts(t *testing.T) {
	mem := newFaulty()
	mem.failProgram = true
	mem.failAt = testGeometry.Base + 8
	acc := NewAccessor(mem, testGeometry)

	err := acc.Program(testGeometry.Base, make([]byte, 16))
	require.ErrorIs(t, err, ErrWriteFailed)

	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, testGeometry.Base+8, ferr.Addr)
	assert.Equal(t, 2, mem.programmed, "words before the failure stay programmed")
}

func TestAccessor_Erase(t *testing.T) {
	tests := []struct {
		name        string
		sectorError uint32
		failErase   bool
		wantErr     bool
	}{
		{"success", NoSectorError, false, false},
		{"sector error index zero", 0, false, true},
		{"sector error index eight", 8, false, true},
		{"controller error", NoSectorError, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newFaulty()
			mem.sectorError = tt.sectorError
			mem.failErase = tt.failErase
			acc := NewAccessor(mem, testGeometry)

			err := acc.Erase(8)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEraseFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccessor_EraseUnknownSector(t *testing.T) {
	acc := NewAccessor(NewMemory(testGeometry), testGeometry)
	assert.ErrorIs(t, acc.Erase(3), ErrOutOfRange)
}

func TestAccessor_EraseClearsOnlyOneSector(t *testing.T) {
	acc := NewAccessor(NewMemory(testGeometry), testGeometry)
	second := testGeometry.Base + testGeometry.SectorSize

	require.NoError(t, acc.Program(testGeometry.Base, []byte{0, 0, 0, 0}))
	require.NoError(t, acc.Program(second, []byte{0, 0, 0, 0}))
	require.NoError(t, acc.Erase(8))

	buf := make([]byte, 4)
	require.NoError(t, acc.Read(testGeometry.Base, buf))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
	require.NoError(t, acc.Read(second, buf))
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
}

func TestAccessor_ReadMisaligned(t *testing.T) {
	acc := NewAccessor(NewMemory(testGeometry), testGeometry)
	assert.ErrorIs(t, acc.Read(testGeometry.Base+1, make([]byte, 4)), ErrMisalignedAccess)
}

func TestLoadMemory_PersistsImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")

	mem, err := LoadMemory(path, testGeometry)
	require.NoError(t, err)
	acc := NewAccessor(mem, testGeometry)
	require.NoError(t, acc.Program(testGeometry.Base+4, []byte{0xDE, 0xAD, 0xBE, 0xEF}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(testGeometry.Size()), info.Size())

	reloaded, err := LoadMemory(path, testGeometry)
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = reloaded.ReadAt(buf, testGeometry.Base+4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf)
}

func TestLoadMemory_WrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	_, err := LoadMemory(path, testGeometry)
	assert.Error(t, err)
}
