package dispatch

import (
	"errors"
	"fmt"

	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/flash"
)

// ErrMissingSeparator is wrapped by the ParseError of an update whose curve
// name is not followed by ':' or '/'.
var ErrMissingSeparator = errors.New("expected ':' or '/' after curve name")

// ParseError reports a malformed numeric token in an update command.
type ParseError struct {
	Index int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid number %q at index %d: %v", e.Token, e.Index, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// describe renders an update failure as the reply sent to the host.
func describe(w *replyWriter, err error) {
	var (
		parseErr   *ParseError
		rangeErr   *curve.ValueOutOfRangeError
		countErr   *curve.PointCountMismatchError
		persistErr *curve.PersistError
	)

	switch {
	case errors.As(err, &parseErr):
		w.Printf("Invalid number: %s at index: %d", parseErr.Token, parseErr.Index)
	case errors.As(err, &rangeErr):
		w.Printf("Invalid value: %f at index: %d", rangeErr.Value, rangeErr.Index)
	case errors.As(err, &countErr):
		w.Printf("Expected %d points, got %d", countErr.Expected, countErr.Actual)
	case errors.Is(err, curve.ErrStagingOverflow):
		w.WriteString(ReplyStagingOverflow)
	case errors.As(err, &persistErr) && persistErr.Stage == curve.StageProgram:
		w.WriteString(ReplySectorErased)
	case errors.Is(err, flash.ErrMisalignedAccess):
		w.WriteString(ReplyMisaligned)
	case errors.Is(err, flash.ErrEraseFailed):
		w.WriteString(ReplyEraseFailed)
	case errors.Is(err, flash.ErrWriteFailed):
		w.WriteString(ReplyWriteFailed)
	default:
		w.WriteString(ReplyUpdateFailed)
	}
}

// isValidation reports whether err was caused by the command rather than the flash.
func isValidation(err error) bool {
	var (
		parseErr *ParseError
		rangeErr *curve.ValueOutOfRangeError
		countErr *curve.PointCountMismatchError
	)
	return errors.As(err, &parseErr) || errors.As(err, &rangeErr) || errors.As(err, &countErr)
}
