package session

import (
	"strings"
	"time"
)

// Record is the outcome of one catalog row. Err is set only for failure
// markers written when a run keeps going after a failed row.
type Record struct {
	Model            string
	Text             string
	ResponseID       string
	Created          int64
	ServiceModel     string
	PromptTokens     int
	CompletionTokens int
	Err              string
}

func (r Record) Failed() bool {
	return strings.TrimSpace(r.Err) != ""
}

type Table []Record

func (t Table) Failures() int {
	n := 0
	for _, r := range t {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Accumulator holds the result table of the last completed run together with
// the name of the file it was generated for. It is owned by the caller and
// not safe for concurrent use.
type Accumulator struct {
	Key         string
	FileName    string
	Generated   bool
	RunID       string
	CompletedAt time.Time
	table       Table
}

func NewAccumulator(key string) *Accumulator {
	return &Accumulator{Key: key}
}

// Observe records a loaded input file. A different file name clears the
// generated flag; the held table stays until the next Publish.
func (a *Accumulator) Observe(fileName string) bool {
	if fileName == a.FileName {
		return false
	}
	a.FileName = fileName
	a.Generated = false
	return true
}

// Publish replaces the held table with the table of a completed run.
func (a *Accumulator) Publish(runID string, t Table, at time.Time) {
	a.table = append(Table(nil), t...)
	a.RunID = runID
	a.CompletedAt = at
	a.Generated = true
}

// Exportable returns the held table if a run completed for the current file.
func (a *Accumulator) Exportable() (Table, bool) {
	if !a.Generated {
		return nil, false
	}
	return a.Retained(), true
}

// Retained returns a copy of the held table regardless of the generated flag.
func (a *Accumulator) Retained() Table {
	return append(Table(nil), a.table...)
}
