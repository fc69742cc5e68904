package report

import (
	"regexp"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Index exposes pure, on-demand lookups over an immutable report, keyed by
// source. It holds no mutable state, so one report instance can back several
// concurrent analysis attempts.
type Index struct {
	report   schemas.Report
	bySource map[string]int
}

// NewIndex builds the lookup index for a report.
func NewIndex(r schemas.Report) *Index {
	bySource := make(map[string]int, len(r.LogFiles))
	for i, lf := range r.LogFiles {
		bySource[lf.Source] = i
	}
	return &Index{report: r, bySource: bySource}
}

// Errors returns the errors of the named source, including their context
// lines, or nil when the source is not part of the report.
func (ix *Index) Errors(source string) []schemas.Error {
	i, ok := ix.bySource[source]
	if !ok {
		return nil
	}
	return ix.report.LogFiles[i].Errors
}

// Sources lists the source names in report order.
func (ix *Index) Sources() []string {
	out := make([]string, len(ix.report.LogFiles))
	for i, lf := range ix.report.LogFiles {
		out[i] = lf.Source
	}
	return out
}

// Counts maps every source to its error count.
func (ix *Index) Counts() map[string]int {
	out := make(map[string]int, len(ix.report.LogFiles))
	for _, lf := range ix.report.LogFiles {
		out[lf.Source] = len(lf.Errors)
	}
	return out
}

// Search returns the logfiles containing at least one error line matching the
// case-insensitive expression.
func (ix *Index) Search(expr string) ([]schemas.LogFile, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, err
	}
	var out []schemas.LogFile
	for _, lf := range ix.report.LogFiles {
		for _, e := range lf.Errors {
			if re.MatchString(e.Line) {
				out = append(out, lf)
				break
			}
		}
	}
	return out, nil
}
