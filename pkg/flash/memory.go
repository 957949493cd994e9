package flash

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

const (
	// WordSize is the programming granularity in bytes.
	WordSize = 4
	// Erased is the value of an erased word.
	Erased uint32 = 0xFFFFFFFF
	// NoSectorError is the sector error value reported by a successful erase.
	NoSectorError uint32 = 0xFFFFFFFF
)

// Medium is the low-level flash controller the Accessor drives.
type Medium interface {
	// EraseSector erases one sector. sectorError is NoSectorError on success,
	// otherwise the index of the failing sector.
	EraseSector(sector uint32) (sectorError uint32, err error)
	// ProgramWord writes one little-endian word at addr.
	ProgramWord(addr uint32, word uint32) error
	// ReadAt copies flash contents starting at addr into p.
	ReadAt(p []byte, addr uint32) (int, error)
}

// Syncer is implemented by media that mirror their contents elsewhere.
type Syncer interface {
	Sync() error
}

// Geometry describes a contiguous range of uniformly sized sectors.
type Geometry struct {
	Base        uint32 // Address of the first byte of FirstSector
	SectorSize  uint32 // Size of every sector in bytes
	FirstSector uint32 // Hardware index of the first sector
	Sectors     uint32 // Number of sectors in the range
}

// Size returns the total size of the range in bytes.
func (g Geometry) Size() uint32 {
	return g.SectorSize * g.Sectors
}

// Contains reports whether [addr, addr+n) lies inside the range.
func (g Geometry) Contains(addr uint32, n int) bool {
	if addr < g.Base || n < 0 {
		return false
	}
	off := uint64(addr - g.Base)
	return off+uint64(n) <= uint64(g.Size())
}

// SectorAddr returns the start address of a hardware sector.
func (g Geometry) SectorAddr(sector uint32) (uint32, bool) {
	if sector < g.FirstSector || sector >= g.FirstSector+g.Sectors {
		return 0, false
	}
	return g.Base + (sector-g.FirstSector)*g.SectorSize, true
}

// Memory simulates on-chip flash: erased bytes read 0xFF, sectors erase as a
// whole and words can only be programmed onto erased cells.
type Memory struct {
	geom Geometry
	path string

	mu   sync.RWMutex
	data []byte
}

var _ Medium = (*Memory)(nil)

// NewMemory returns a fully erased in-memory flash.
func NewMemory(geom Geometry) *Memory {
	data := make([]byte, geom.Size())
	for i := range data {
		data[i] = 0xFF
	}
	return &Memory{geom: geom, data: data}
}

// LoadMemory returns a flash backed by an image file. A missing file yields
// an erased flash; the file is written on Sync.
func LoadMemory(path string, geom Geometry) (*Memory, error) {
	m := NewMemory(geom)
	m.path = path

	img, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read flash image: %w", err)
	}
	if len(img) != len(m.data) {
		return nil, fmt.Errorf("flash image %s has %d bytes, expected %d", path, len(img), len(m.data))
	}
	copy(m.data, img)
	return m, nil
}

// EraseSector implements Medium.
func (m *Memory) EraseSector(sector uint32) (uint32, error) {
	addr, ok := m.geom.SectorAddr(sector)
	if !ok {
		return sector, fmt.Errorf("no sector %d", sector)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := addr - m.geom.Base
	for i := off; i < off+m.geom.SectorSize; i++ {
		m.data[i] = 0xFF
	}
	return NoSectorError, nil
}

// ProgramWord implements Medium.
func (m *Memory) ProgramWord(addr uint32, word uint32) error {
	if addr%WordSize != 0 {
		return ErrMisalignedAccess
	}
	if !m.geom.Contains(addr, WordSize) {
		return ErrOutOfRange
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := addr - m.geom.Base
	if binary.LittleEndian.Uint32(m.data[off:]) != Erased {
		return ErrNotErased
	}
	binary.LittleEndian.PutUint32(m.data[off:], word)
	return nil
}

// ReadAt implements Medium.
func (m *Memory) ReadAt(p []byte, addr uint32) (int, error) {
	if !m.geom.Contains(addr, len(p)) {
		return 0, ErrOutOfRange
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	off := addr - m.geom.Base
	return copy(p, m.data[off:]), nil
}

// Sync writes the image file if the memory is file backed.
func (m *Memory) Sync() error {
	if m.path == "" {
		return nil
	}

	m.mu.RLock()
	img := make([]byte, len(m.data))
	copy(img, m.data)
	m.mu.RUnlock()

	if err := os.WriteFile(m.path, img, 0644); err != nil {
		return fmt.Errorf("failed to write flash image: %w", err)
	}
	return nil
}
