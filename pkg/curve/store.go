package curve

import (
	"fmt"
	"log"
	"sync"

	"github.com/itohio/goadjuster/pkg/flash"
)

// Option configures a Store.
type Option func(*Store)

// WithProgramRetries sets how many times a failed programming step is retried
// with a fresh erase. Zero disables retries.
func WithProgramRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// Store is the RAM working copy of the curve table, mirrored to a flash sector.
// Every method is serialized; one update is fully persisted before the next
// command can observe or modify the table.
type Store struct {
	acc     *flash.Accessor
	layout  Layout
	retries int

	mu    sync.Mutex
	table Table
}

// NewStore creates a store holding the compiled-in defaults. Call Load to
// pick up the persisted table.
func NewStore(acc *flash.Accessor, layout Layout, opts ...Option) (*Store, error) {
	if err := layout.Validate(acc.Geometry()); err != nil {
		return nil, err
	}

	s := &Store{
		acc:     acc,
		layout:  layout,
		retries: 1,
		table:   Defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load replaces the working copy with the persisted table. A blank or
// invalid blob keeps the defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.readBlob()
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("No valid curves at 0x%08X, using defaults", s.layout.ControlAddr)
		return nil
	}
	s.table = t
	return nil
}

// ReadAll copies the persisted blob into the working copy and returns it. If
// flash holds no valid blob (e.g. after an interrupted update) the working copy
// is returned unchanged.
func (s *Store) ReadAll() (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.readBlob()
	if err != nil {
		return Table{}, err
	}
	if ok {
		s.table = t
	}
	return s.table, nil
}

// Table returns the working copy without touching flash.
func (s *Store) Table() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// UpdateCurve validates values, then rewrites the curve sector with the
// updated table. The working copy changes only if the sector was rewritten.
func (s *Store) UpdateCurve(id ID, values []float32) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCurve, id)
	}
	for i, v := range values {
		if !inRange(v) {
			return &ValueOutOfRangeError{Index: i, Value: v}
		}
	}
	if len(values) != NumPoints {
		return &PointCountMismatchError{Expected: NumPoints, Actual: len(values)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.table
	copy(next[id][:], values)

	if err := s.persist(next); err != nil {
		return err
	}
	s.table = next
	return nil
}

// persist stages the sector, erases it, splices the table into the staged
// copy and programs the staged copy back.
func (s *Store) persist(t Table) error {
	off := s.layout.Offset()
	if uint64(off)+BlobSize > uint64(s.layout.StagingSize) {
		return fmt.Errorf("%w: blob ends at %d, staging holds %d", ErrStagingOverflow, uint64(off)+BlobSize, s.layout.StagingSize)
	}

	stage := make([]byte, s.layout.StagingSize)
	if err := s.acc.Read(s.layout.SectorAddr, stage); err != nil {
		return fmt.Errorf("failed to stage sector: %w", err)
	}
	t.put(stage[off : off+BlobSize])

	for attempt := 0; ; attempt++ {
		if err := s.acc.Erase(s.layout.Sector); err != nil {
			stg := StageErase
			if attempt > 0 {
				stg = StageProgram
			}
			return &PersistError{Stage: stg, Err: err}
		}

		err := s.acc.Program(s.layout.SectorAddr, stage)
		if err == nil {
			return nil
		}
		if attempt >= s.retries {
			return &PersistError{Stage: StageProgram, Err: err}
		}
		log.Printf("Failed to program curve sector, retrying (%d/%d): %v", attempt+1, s.retries, err)
	}
}

// readBlob reads and decodes the persisted table. ok is false for blank or
// invalid contents.
func (s *Store) readBlob() (t Table, ok bool, err error) {
	buf := make([]byte, BlobSize)
	if err := s.acc.Read(s.layout.ControlAddr, buf); err != nil {
		return Table{}, false, fmt.Errorf("failed to read curves: %w", err)
	}
	if blank(buf) {
		return Table{}, false, nil
	}
	if err := t.UnmarshalBinary(buf); err != nil {
		return Table{}, false, err
	}
	if !t.Valid() {
		return Table{}, false, nil
	}
	return t, true, nil
}
