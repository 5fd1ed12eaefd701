// Package render builds the markdown fragments shown in check summaries and
// the PR bot comment. GitHub renders check output as markdown with inline
// HTML allowed, which is what the table below relies on.
package render

import (
	"fmt"
	"strings"

	"prgate/internal/engine"
)

// AffectedModelsTable renders the models touched by the pull request as an
// HTML table, one row per model with its change type and loaded date ranges.
func AffectedModelsTable(models []engine.AffectedModel) string {
	if len(models) == 0 {
		return "No models were modified in this PR.\n"
	}
	var b strings.Builder
	b.WriteString("<table>\n")
	b.WriteString("  <tr>\n")
	b.WriteString("    <th colspan=\"3\">PR Environment Summary</th>\n")
	b.WriteString("  </tr>\n")
	b.WriteString("  <tr>\n")
	b.WriteString("    <th>Model</th>\n")
	b.WriteString("    <th>Change Type</th>\n")
	b.WriteString("    <th>Dates Loaded</th>\n")
	b.WriteString("  </tr>\n")
	for _, m := range models {
		b.WriteString("  <tr>\n")
		fmt.Fprintf(&b, "    <td>%s</td>\n", m.Name)
		fmt.Fprintf(&b, "    <td>%s</td>\n", m.ChangeType)
		if len(m.Intervals) > 0 {
			fmt.Fprintf(&b, "    <td>%s</td>\n", Intervals(m.Intervals))
		}
		b.WriteString("  </tr>\n")
	}
	b.WriteString("</table>\n")
	return b.String()
}

// Intervals formats loaded date ranges as "(start - end), (start - end)".
func Intervals(intervals []engine.Interval) string {
	parts := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		parts = append(parts, fmt.Sprintf("(%s - %s)", iv.Start, iv.End))
	}
	return strings.Join(parts, ", ")
}

// Details wraps body in a collapsed details block with the given summary
// line.
func Details(summary, body string) string {
	return fmt.Sprintf("<details>\n  <summary>%s</summary>\n\n%s\n</details>\n", summary, body)
}
