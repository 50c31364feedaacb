// Package present projects prediction results and history items onto display fields.
package present

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/model"
)

const (
	// PreviewWidth is the display width of history text previews.
	PreviewWidth = 80

	dateLayout = "02 Jan 2006, 15:04"
)

// Category is the visual category of a label.
type Category int

const (
	CategoryMetaphor Category = iota + 1
	CategoryNormal
)

func (c Category) String() string {
	switch c {
	case CategoryMetaphor:
		return "metaphor"
	case CategoryNormal:
		return "normal"
	default:
		return ""
	}
}

// Badge is the short heading for the category.
func (c Category) Badge() string {
	switch c {
	case CategoryMetaphor:
		return "🎭 Metaphor"
	case CategoryNormal:
		return "✅ Normal"
	default:
		return ""
	}
}

// CategoryOf maps a label to its category. Unknown labels are a contract error.
func CategoryOf(label model.Label) (Category, error) {
	switch label {
	case model.LabelMetaphor:
		return CategoryMetaphor, nil
	case model.LabelNormal:
		return CategoryNormal, nil
	default:
		return 0, apperrors.Contract("", fmt.Errorf("unknown label %q", label))
	}
}

// Result is the display state of one prediction.
type Result struct {
	Text        string
	Language    string
	Category    Category
	Confidence  string
	Translation string
	Explanation string
	// HasTranslation and HasExplanation gate the optional blocks.
	HasTranslation bool
	HasExplanation bool
}

// Present is a pure projection of r.
func Present(r model.PredictionResult) (Result, error) {
	category, err := CategoryOf(r.Label)
	if err != nil {
		return Result{}, err
	}
	out := Result{
		Text:       r.Text,
		Language:   strings.ToUpper(r.Language),
		Category:   category,
		Confidence: fmt.Sprintf("%.2f%%", r.Confidence*100),
	}
	if t := strings.TrimSpace(r.Translation); t != "" {
		out.Translation = r.Translation
		out.HasTranslation = true
	}
	if r.Explanation != nil && strings.TrimSpace(*r.Explanation) != "" {
		out.Explanation = *r.Explanation
		out.HasExplanation = true
	}
	return out, nil
}

// Row is the display state of one history item.
type Row struct {
	ID          string
	Preview     string
	Text        string
	Language    string
	Category    Category
	Confidence  string
	Date        string
	Translation string
	Explanation string
}

// HistoryRow projects one history item. Unknown labels are a contract error.
func HistoryRow(item model.HistoryItem, loc *time.Location) (Row, error) {
	category, err := CategoryOf(item.Label)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:          item.ID,
		Preview:     Preview(item.Text, PreviewWidth),
		Text:        item.Text,
		Language:    strings.ToUpper(item.Language),
		Category:    category,
		Confidence:  fmt.Sprintf("%.1f%%", item.Confidence*100),
		Date:        FormatDate(item.Timestamp.Time, loc),
		Translation: strings.TrimSpace(item.Translation),
		Explanation: strings.TrimSpace(item.Explanation),
	}, nil
}

// Preview shortens text to width display cells and appends "..." when cut.
// Newlines collapse to spaces.
func Preview(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "") + "..."
}

// FormatDate renders t in loc, or "-" for the zero time.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}

// StatisticsLines returns the labelled statistics values in display order.
func StatisticsLines(s model.Statistics) [][2]string {
	return [][2]string{
		{"Total Predictions", fmt.Sprintf("%d", s.TotalPredictions)},
		{"Metaphors", fmt.Sprintf("%d", s.MetaphorCount)},
		{"Normal", fmt.Sprintf("%d", s.NormalCount)},
	}
}
