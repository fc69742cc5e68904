package schemas

import "time"

// Error is a single anomalous log line flagged by the detection engine,
// together with the context lines surrounding it. Pos is the byte offset of
// the line inside its source file; it is unique per source file but not
// globally, and serves as the secondary sort key.
type Error struct {
	Before    []string   `json:"before"`
	Line      string     `json:"line"`
	Pos       int        `json:"pos"`
	After     []string   `json:"after"`
	Timestamp *time.Time `json:"timestamp"`
}

// LogFile groups the errors found in one source log of a build. Source is the
// human readable relative path, unique within a Report.
type LogFile struct {
	Source string  `json:"source"`
	Errors []Error `json:"errors"`
}

// Report is the full set of log files for one build target. Once constructed
// it is treated as immutable and may be shared across concurrent readers.
//
// After sorting, LogFiles is ordered by (first error timestamp, source) and
// every Errors slice by (timestamp, pos), with a missing timestamp comparing
// greater than any present one.
type Report struct {
	Target   string    `json:"target"`
	LogFiles []LogFile `json:"logfiles"`
}
