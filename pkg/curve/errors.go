package curve

import (
	"errors"
	"fmt"
)

// ErrStagingOverflow is returned when the curve blob does not fit the staging buffer.
var ErrStagingOverflow = errors.New("staging buffer overflow")

// ErrUnknownCurve is returned for an ID outside the known set.
var ErrUnknownCurve = errors.New("unknown curve")

// ValueOutOfRangeError reports the first control value outside [MinValue, MaxValue].
type ValueOutOfRangeError struct {
	Index int
	Value float32
}

func (e *ValueOutOfRangeError) Error() string {
	return fmt.Sprintf("value %f at index %d is out of range [%g, %g]", e.Value, e.Index, MinValue, MaxValue)
}

// PointCountMismatchError reports a curve update with the wrong number of values.
type PointCountMismatchError struct {
	Expected int
	Actual   int
}

func (e *PointCountMismatchError) Error() string {
	return fmt.Sprintf("expected %d points, got %d", e.Expected, e.Actual)
}

// Stage names the step of the erase/program cycle that failed.
type Stage int

const (
	// StageErase means the sector could not be erased; flash still holds the previous curves.
	StageErase Stage = iota
	// StageProgram means the sector was erased but not fully rewritten.
	StageProgram
)

func (s Stage) String() string {
	switch s {
	case StageErase:
		return "erase"
	case StageProgram:
		return "program"
	default:
		return "unknown"
	}
}

// PersistError wraps a flash failure during UpdateCurve.
type PersistError struct {
	Stage Stage
	Err   error
}

func (e *PersistError) Error() string {
	if e.Stage == StageProgram {
		return fmt.Sprintf("persist curves: sector erased but not rewritten: %v", e.Err)
	}
	return fmt.Sprintf("persist curves: %s: %v", e.Stage, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
