package curve

import (
	"fmt"

	"github.com/itohio/goadjuster/pkg/flash"
)

// Default layout of the user variable sector on the STM32F405.
const (
	UserVarAddr   uint32 = 0x08080000 // Start of the user variable sector
	UserVarSector uint32 = 8          // Sector holding UserVarAddr
	UserVarSize   uint32 = 0x00020000 // 128K
	ControlAddr   uint32 = 0x08080200 // Curve blob
	ControlOffset        = ControlAddr - UserVarAddr
	StagingSize   uint32 = 0x800 // Bytes of the sector preserved across an erase
)

// The staging buffer must hold everything up to the end of the curve blob.
var _ [StagingSize - (ControlOffset + BlobSize)]struct{}

// Layout places the curve blob inside a flash sector.
type Layout struct {
	Sector      uint32 // Hardware sector erased on update
	SectorAddr  uint32 // First byte of Sector
	ControlAddr uint32 // First byte of the curve blob
	StagingSize uint32 // Bytes staged from SectorAddr across the erase
}

// DefaultLayout returns the layout used by the device.
func DefaultLayout() Layout {
	return Layout{
		Sector:      UserVarSector,
		SectorAddr:  UserVarAddr,
		ControlAddr: ControlAddr,
		StagingSize: StagingSize,
	}
}

// DefaultGeometry returns the flash range holding DefaultLayout.
func DefaultGeometry() flash.Geometry {
	return flash.Geometry{
		Base:        UserVarAddr,
		SectorSize:  UserVarSize,
		FirstSector: UserVarSector,
		Sectors:     1,
	}
}

// Offset returns the offset of the curve blob inside the staged sector.
func (l Layout) Offset() uint32 {
	return l.ControlAddr - l.SectorAddr
}

// Validate checks alignment and that the layout lies inside geom.
func (l Layout) Validate(geom flash.Geometry) error {
	if l.SectorAddr%flash.WordSize != 0 || l.ControlAddr%flash.WordSize != 0 {
		return fmt.Errorf("curve layout: %w", flash.ErrMisalignedAccess)
	}
	if l.StagingSize%flash.WordSize != 0 {
		return fmt.Errorf("curve layout: staging size %d: %w", l.StagingSize, flash.ErrMisalignedAccess)
	}
	if addr, ok := geom.SectorAddr(l.Sector); !ok || addr != l.SectorAddr {
		return fmt.Errorf("curve layout: sector %d does not start at 0x%08X", l.Sector, l.SectorAddr)
	}
	if l.ControlAddr < l.SectorAddr {
		return fmt.Errorf("curve layout: control address 0x%08X before sector", l.ControlAddr)
	}
	if l.StagingSize > geom.SectorSize {
		return fmt.Errorf("curve layout: staging size %d exceeds sector size %d", l.StagingSize, geom.SectorSize)
	}
	if !geom.Contains(l.ControlAddr, BlobSize) {
		return fmt.Errorf("curve layout: blob at 0x%08X: %w", l.ControlAddr, flash.ErrOutOfRange)
	}
	return nil
}
