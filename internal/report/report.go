package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/verte-zerg/tuimeta/internal/lang"
	"github.com/verte-zerg/tuimeta/internal/model"
	"github.com/verte-zerg/tuimeta/internal/present"
)

// TablePreviewWidth bounds the text column of history tables.
const TablePreviewWidth = 48

// ResultLines renders a classification result as labelled lines.
func ResultLines(res present.Result) []string {
	lines := []string{
		"Language:       " + res.Language,
		"Classification: " + res.Category.Badge(),
		"Confidence:     " + res.Confidence,
		"",
		"Input Text:",
		"  " + res.Text,
	}
	if res.HasTranslation {
		lines = append(lines, "", "English Translation:", "  "+res.Translation)
	}
	if res.HasExplanation {
		lines = append(lines, "", "Metaphor Explanation:", "  "+res.Explanation)
	}
	return lines
}

// HistoryTable renders items in the order given. Items with unknown labels
// fail the whole table.
func HistoryTable(items []model.HistoryItem, loc *time.Location) ([]string, error) {
	if len(items) == 0 {
		return []string{"No predictions in history yet"}, nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row, err := present.HistoryRow(item, loc)
		if err != nil {
			return nil, fmt.Errorf("history item %s: %w", item.ID, err)
		}
		rows = append(rows, []string{
			row.ID,
			row.Date,
			row.Language,
			row.Category.String(),
			row.Confidence,
			present.Preview(row.Text, TablePreviewWidth),
		})
	}
	headers := []string{"ID", "Date", "Language", "Type", "Confidence", "Text"}
	return formatTable(headers, rows, map[int]bool{4: true}), nil
}

// StatisticsTable renders the aggregate counts.
func StatisticsTable(s model.Statistics) []string {
	pairs := present.StatisticsLines(s)
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return formatTable(nil, rows, map[int]bool{1: true})
}

// LanguagesTable lists the supported languages.
func LanguagesTable() []string {
	all := lang.All()
	rows := make([][]string, len(all))
	for i, l := range all {
		rows[i] = []string{l.Name, l.SpeechTag, l.Script, l.Native}
	}
	return formatTable([]string{"Language", "Speech", "Script", "Native"}, rows, nil)
}

// CachedHeader labels output that comes from the local snapshot.
func CachedHeader(fetchedAt time.Time, loc *time.Location) string {
	return "Cached snapshot from " + present.FormatDate(fetchedAt, loc) + " (offline)"
}

// FilterLine describes the active history filter.
func FilterLine(f model.FilterCriteria) string {
	language := "all"
	if f.Language != "" {
		language = f.Language
	}
	label := "all"
	if f.Label != "" {
		label = string(f.Label)
	}
	return fmt.Sprintf("Filters: language=%s  type=%s", language, label)
}

// Write prints lines to w.
func Write(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
