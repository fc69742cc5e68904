package report

import (
	"sort"
	"time"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Sort orders the report chronologically in place: errors within a logfile by
// (timestamp, pos) and logfiles by (first error timestamp, source), with a
// missing timestamp comparing greater than any present one. The downstream
// analysis strategy reads the symptom log first and walks backward through
// earlier logs, so the order must be total, stable and reproducible across
// runs on identical input.
func Sort(r *schemas.Report) {
	for i := range r.LogFiles {
		errs := r.LogFiles[i].Errors
		sort.SliceStable(errs, func(a, b int) bool {
			return errorLess(errs[a], errs[b])
		})
	}
	sort.SliceStable(r.LogFiles, func(a, b int) bool {
		return logFileLess(r.LogFiles[a], r.LogFiles[b])
	})
}

// errorLess compares by (timestamp or +inf, pos).
func errorLess(a, b schemas.Error) bool {
	switch {
	case a.Timestamp == nil && b.Timestamp == nil:
		return a.Pos < b.Pos
	case a.Timestamp == nil:
		return false
	case b.Timestamp == nil:
		return true
	case a.Timestamp.Equal(*b.Timestamp):
		return a.Pos < b.Pos
	default:
		return a.Timestamp.Before(*b.Timestamp)
	}
}

// logFileLess compares by (first error timestamp or +inf, source). A logfile
// without errors, or whose first error carries no timestamp, sorts after
// every timestamped logfile, tie-broken by source.
func logFileLess(a, b schemas.LogFile) bool {
	ta, tb := firstTimestamp(a), firstTimestamp(b)
	switch {
	case ta == nil && tb == nil:
		return a.Source < b.Source
	case ta == nil:
		return false
	case tb == nil:
		return true
	case ta.Equal(*tb):
		return a.Source < b.Source
	default:
		return ta.Before(*tb)
	}
}

func firstTimestamp(lf schemas.LogFile) *time.Time {
	if len(lf.Errors) == 0 {
		return nil
	}
	return lf.Errors[0].Timestamp
}
