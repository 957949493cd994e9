package sample

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoData is returned when a recording holds no readings.
var ErrNoData = errors.New("no readings recorded")

// Result is the outcome of a recording for one sensor.
type Result struct {
	Sensor  int // 1 based, CH1..CH4
	Initial float64
	Final   float64
	Delta   float64 // Final - Initial
	Pass    bool
}

// Recording keeps every reading of a timed leak check and judges the drift
// between the first and the last one.
type Recording struct {
	deviation *Deviation
	history   []Pressure
}

// NewRecording creates a recording that fails sensors drifting by more than
// threshold MPa.
func NewRecording(threshold float64) *Recording {
	return &Recording{deviation: NewDeviation(threshold)}
}

// Add appends a reading.
func (r *Recording) Add(p Pressure) {
	r.history = append(r.history, p)
}

// Len returns the number of recorded readings.
func (r *Recording) Len() int {
	return len(r.history)
}

// Results compares the last reading with the first one.
func (r *Recording) Results() ([Sensors]Result, error) {
	var results [Sensors]Result
	if len(r.history) == 0 {
		return results, ErrNoData
	}

	r.deviation.Reset()
	r.deviation.Check(r.history[0])
	final := r.history[len(r.history)-1]
	_, exceeded := r.deviation.Check(final)
	initial, _ := r.deviation.Baseline()

	for i := range results {
		results[i] = Result{
			Sensor:  i + 1,
			Initial: initial.Values[i],
			Final:   final.Values[i],
			Delta:   final.Values[i] - initial.Values[i],
			Pass:    !exceeded[i],
		}
	}
	return results, nil
}

// WriteHistory writes the readings as tab separated columns: seconds since
// the first reading followed by one column per sensor.
func (r *Recording) WriteHistory(w io.Writer) error {
	var b strings.Builder
	b.WriteString("Time(s)")
	for i := 1; i <= Sensors; i++ {
		fmt.Fprintf(&b, "\tChannel %d", i)
	}
	b.WriteString("\n")

	for _, p := range r.history {
		fmt.Fprintf(&b, "%.3f", p.Timestamp.Sub(r.history[0].Timestamp).Seconds())
		for _, v := range p.Values {
			fmt.Fprintf(&b, "\t%.3f", v)
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Save writes the history to filename.
func (r *Recording) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	defer f.Close()

	if err := r.WriteHistory(f); err != nil {
		return err
	}
	return f.Close()
}

// LogFileName returns the run log path kept next to a history file.
func LogFileName(historyFile string) string {
	return strings.TrimSuffix(historyFile, filepath.Ext(historyFile)) + ".log"
}

// OpenLog creates the run log of a recording saved to historyFile.
func OpenLog(historyFile string) (*log.Logger, io.Closer, error) {
	f, err := os.Create(LogFileName(historyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run log: %w", err)
	}
	return log.New(f, "", log.LstdFlags), f, nil
}
