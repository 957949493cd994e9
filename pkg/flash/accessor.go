package flash

import (
	"encoding/binary"
	"log"
	"sync"
)

// Accessor provides erase and program primitives over a fixed flash range.
// The flash controller is a device-wide resource: every operation holds the
// accessor lock for its whole duration, so an erase and a program never interleave.
type Accessor struct {
	medium Medium
	geom   Geometry

	mu sync.Mutex
}

// NewAccessor creates an accessor for the given range of medium.
func NewAccessor(medium Medium, geom Geometry) *Accessor {
	return &Accessor{
		medium: medium,
		geom:   geom,
	}
}

// Geometry returns the accessible range.
func (a *Accessor) Geometry() Geometry {
	return a.geom
}

// Erase erases one physical sector. Any sector error index reported by the
// medium other than NoSectorError is a failure, including index 0.
func (a *Accessor) Erase(sector uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	addr, ok := a.geom.SectorAddr(sector)
	if !ok {
		return &Error{Op: "erase", Sector: sector, Err: ErrOutOfRange}
	}

	sectorErr, err := a.medium.EraseSector(sector)
	if err != nil || sectorErr != NoSectorError {
		return &Error{Op: "erase", Addr: addr, Sector: sector, Err: ErrEraseFailed, Cause: err}
	}

	a.sync()
	return nil
}

// Program writes src word by word starting at dst. Both dst and len(src) must
// be multiples of WordSize; this is checked before anything is written. A word
// failure aborts immediately and leaves the preceding words programmed.
func (a *Accessor) Program(dst uint32, src []byte) error {
	if dst%WordSize != 0 || len(src)%WordSize != 0 {
		return &Error{Op: "program", Addr: dst, Err: ErrMisalignedAccess}
	}
	if !a.geom.Contains(dst, len(src)) {
		return &Error{Op: "program", Addr: dst, Err: ErrOutOfRange}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.sync()

	for i := 0; i < len(src); i += WordSize {
		word := binary.LittleEndian.Uint32(src[i:])
		addr := dst + uint32(i)
		if err := a.medium.ProgramWord(addr, word); err != nil {
			return &Error{Op: "program", Addr: addr, Err: ErrWriteFailed, Cause: err}
		}
	}
	return nil
}

// Read copies len(p) bytes starting at the word aligned address src.
func (a *Accessor) Read(src uint32, p []byte) error {
	if src%WordSize != 0 {
		return &Error{Op: "read", Addr: src, Err: ErrMisalignedAccess}
	}
	if !a.geom.Contains(src, len(p)) {
		return &Error{Op: "read", Addr: src, Err: ErrOutOfRange}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.medium.ReadAt(p, src)
	if err != nil {
		return &Error{Op: "read", Addr: src, Err: ErrOutOfRange, Cause: err}
	}
	for i := n; i < len(p); i++ {
		p[i] = 0xFF
	}
	return nil
}

func (a *Accessor) sync() {
	s, ok := a.medium.(Syncer)
	if !ok {
		return
	}
	if err := s.Sync(); err != nil {
		log.Printf("Failed to sync flash image: %v", err)
	}
}
