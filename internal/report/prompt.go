package report

import (
	"strings"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Prompt renders a report into the flat textual prompt given to the model:
// a "\n## <source>" header per logfile followed by every error's context
// lines, anomalous line and trailing context, one per line. A logfile without
// errors still contributes its header.
//
// The rendering discards timestamps, positions and the logfile structure;
// it is not invertible and downstream code must not assume recoverability.
func Prompt(r schemas.Report) string {
	var lines []string
	for _, lf := range r.LogFiles {
		lines = append(lines, "\n## "+lf.Source)
		for _, e := range lf.Errors {
			lines = append(lines, e.Before...)
			lines = append(lines, e.Line)
			lines = append(lines, e.After...)
		}
	}
	return strings.Join(lines, "\n")
}
