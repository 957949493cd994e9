package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/itohio/goadjuster/pkg/sample"
)

// check records the readings of one timed detection run into its own folder
// under the record directory.
type check struct {
	history  string // Tab separated readings; the run log sits next to it
	deadline time.Time

	rec    *sample.Recording
	runLog *log.Logger
	closer io.Closer
}

// recordStamp names a run folder with millisecond resolution, e.g.
// 20240102_150405123.
func recordStamp(now time.Time) string {
	return fmt.Sprintf("%s%03d", now.Format("20060102_150405"), now.Nanosecond()/int(time.Millisecond))
}

// startCheck creates dir/<stamp>/ and opens the run log. The run ends with the
// first reading taken at or after now+duration.
func startCheck(dir string, threshold float64, duration time.Duration, now time.Time) (*check, error) {
	stamp := recordStamp(now)
	folder := filepath.Join(dir, stamp)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record folder: %w", err)
	}

	history := filepath.Join(folder, stamp+".txt")
	runLog, closer, err := sample.OpenLog(history)
	if err != nil {
		return nil, err
	}
	runLog.Printf("Check started for %v, threshold %.3f MPa", duration, threshold)

	return &check{
		history:  history,
		deadline: now.Add(duration),
		rec:      sample.NewRecording(threshold),
		runLog:   runLog,
		closer:   closer,
	}, nil
}

// add records p and reports whether the run is over.
func (c *check) add(p sample.Pressure) bool {
	c.rec.Add(p)
	return !p.Timestamp.Before(c.deadline)
}

// finish judges the run, saves the history and closes the run log.
func (c *check) finish() ([sample.Sensors]sample.Result, error) {
	defer c.closer.Close()

	results, err := c.rec.Results()
	if err != nil {
		c.runLog.Printf("Check failed: %v", err)
		return results, err
	}
	if err := c.rec.Save(c.history); err != nil {
		c.runLog.Printf("Failed to save history: %v", err)
		return results, err
	}

	c.runLog.Printf("Check finished with %d readings, history saved to %s", c.rec.Len(), c.history)
	for _, r := range results {
		c.runLog.Printf("CH%d initial %.3f final %.3f delta %+.3f %s", r.Sensor, r.Initial, r.Final, r.Delta, status(r.Pass))
	}
	return results, nil
}

// abort closes the run log of a run that never finished.
func (c *check) abort(reason string) {
	c.runLog.Printf("Check aborted: %s", reason)
	c.closer.Close()
}

func status(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

// resultCells lays out the results table, header row first.
func resultCells(results [sample.Sensors]sample.Result) [][]string {
	cells := [][]string{{"Channel", "Initial", "Final", "Delta", "Status"}}
	for _, r := range results {
		cells = append(cells, []string{
			fmt.Sprintf("CH%d", r.Sensor),
			fmt.Sprintf("%.3f", r.Initial),
			fmt.Sprintf("%.3f", r.Final),
			fmt.Sprintf("%+.3f", r.Delta),
			status(r.Pass),
		})
	}
	return cells
}

// appendHistory appends p and keeps at most limit of the latest readings.
func appendHistory(history []sample.Pressure, p sample.Pressure, limit int) []sample.Pressure {
	if len(history) >= limit {
		n := copy(history, history[len(history)-limit+1:])
		history = history[:n]
	}
	return append(history, p)
}
