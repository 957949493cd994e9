package curve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

const (
	// NumCurves is the number of curves held by the device.
	NumCurves = 4
	// NumPoints is the number of control values of every curve.
	NumPoints = 10
	// MinValue and MaxValue bound every control value.
	MinValue float32 = 0.0
	MaxValue float32 = 100.0
)

// ID identifies one of the curves known to the device.
type ID uint8

const (
	FrontBack   ID = iota // F-H
	LeftRight             // L-R
	Thumbwheel1           // ZBL1
	Thumbwheel2           // ZBL2
)

var names = [NumCurves]string{
	FrontBack:   "F-H",
	LeftRight:   "L-R",
	Thumbwheel1: "ZBL1",
	Thumbwheel2: "ZBL2",
}

// IDs returns every curve in wire order.
func IDs() []ID {
	return []ID{FrontBack, LeftRight, Thumbwheel1, Thumbwheel2}
}

// Names returns every curve name in wire order.
func Names() []string {
	return names[:]
}

// String returns the wire name of the curve.
func (id ID) String() string {
	if !id.Valid() {
		return "unknown"
	}
	return names[id]
}

// Valid reports whether id is one of the known curves.
func (id ID) Valid() bool {
	return int(id) < NumCurves
}

// Lookup resolves the curve whose name prefixes s. Matching is case sensitive
// and requires every byte of a registered name, so "F-H:1,2" resolves to
// FrontBack while "F-" or "f-h" resolve to nothing.
func Lookup(s string) (ID, bool) {
	for i, name := range names {
		if strings.HasPrefix(s, name) {
			return ID(i), true
		}
	}
	return 0, false
}

// Points holds the control values of one curve. Hosts read them as five
// (x, y) pairs.
type Points [NumPoints]float32

// Pair is one control point of a curve.
type Pair struct {
	X, Y float32
}

// Pairs returns the (x, y) view of the control values.
func (p Points) Pairs() [NumPoints / 2]Pair {
	var pairs [NumPoints / 2]Pair
	for i := range pairs {
		pairs[i] = Pair{X: p[2*i], Y: p[2*i+1]}
	}
	return pairs
}

// ParsePoints parses exactly NumPoints decimal values. Range is not checked.
func ParsePoints(fields []string) (Points, error) {
	var p Points
	if len(fields) != NumPoints {
		return p, fmt.Errorf("expected %d points, got %d", NumPoints, len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return p, fmt.Errorf("invalid point %d: %w", i, err)
		}
		p[i] = float32(v)
	}
	return p, nil
}

// Valid reports whether every value lies within [MinValue, MaxValue].
func (p Points) Valid() bool {
	for _, v := range p {
		if !inRange(v) {
			return false
		}
	}
	return true
}

// Table is the complete set of curves.
type Table [NumCurves]Points

// Valid reports whether every curve of the table is valid.
func (t Table) Valid() bool {
	for _, p := range t {
		if !p.Valid() {
			return false
		}
	}
	return true
}

// Defaults returns the compiled-in curve table.
func Defaults() Table {
	return Table{
		FrontBack:   {0, 0, 25, 25, 50, 50, 75, 75, 100, 100},
		LeftRight:   {100, 100, 75, 75, 50, 50, 25, 25, 0, 0},
		Thumbwheel1: {0, 50, 25, 50, 50, 50, 75, 50, 100, 50},
		Thumbwheel2: {50, 0, 50, 25, 50, 50, 50, 75, 50, 100},
	}
}

func inRange(v float32) bool {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return false
	}
	return v >= MinValue && v <= MaxValue
}
