// Package report pre-processes the raw anomaly report produced by the
// logjuicer engine into the typed, causally ordered form the analysis
// pipeline consumes.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Raw reports can reach tens of megabytes; jsoniter keeps decoding cheap
// while staying wire-compatible with encoding/json.
var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// rawReport mirrors the logjuicer errors-report wire shape. Target and the
// per-logfile sources are tagged structures resolved by the union types
// below.
type rawReport struct {
	Target     json.RawMessage `json:"target"`
	LogReports []rawLogReport  `json:"log_reports"`
}

type rawLogReport struct {
	Source    json.RawMessage `json:"source"`
	Anomalies []rawAnomaly    `json:"anomalies"`
}

type rawAnomaly struct {
	Before  []string `json:"before"`
	Anomaly struct {
		Line      string     `json:"line"`
		Pos       int        `json:"pos"`
		Timestamp *time.Time `json:"timestamp"`
	} `json:"anomaly"`
	After []string `json:"after"`
}

// Normalize converts the raw JSON document of an anomaly report into a typed
// Report. Individual malformed records degrade to placeholder values and
// never fail the whole report; only a document missing the top-level target
// or log_reports keys is rejected, as that is a caller contract violation
// rather than a data-quality issue.
//
// Normalize does not order the result; see Sort.
func Normalize(data []byte) (schemas.Report, error) {
	var raw rawReport
	if err := jsonIter.Unmarshal(data, &raw); err != nil {
		return schemas.Report{}, fmt.Errorf("undecodable anomaly report: %w", err)
	}
	if raw.Target == nil {
		return schemas.Report{}, fmt.Errorf("anomaly report is missing the target key")
	}
	if raw.LogReports == nil {
		return schemas.Report{}, fmt.Errorf("anomaly report is missing the log_reports key")
	}

	logfiles := make([]schemas.LogFile, 0, len(raw.LogReports))
	for _, lr := range raw.LogReports {
		logfiles = append(logfiles, normalizeLogFile(lr))
	}
	return schemas.Report{
		Target:   ResolveTarget(raw.Target),
		LogFiles: logfiles,
	}, nil
}

func normalizeLogFile(lr rawLogReport) schemas.LogFile {
	errs := make([]schemas.Error, 0, len(lr.Anomalies))
	for _, a := range lr.Anomalies {
		errs = append(errs, schemas.Error{
			Before:    a.Before,
			Line:      a.Anomaly.Line,
			Pos:       a.Anomaly.Pos,
			After:     a.After,
			Timestamp: a.Anomaly.Timestamp,
		})
	}
	return schemas.LogFile{
		Source: ResolveSource(lr.Source),
		Errors: errs,
	}
}
