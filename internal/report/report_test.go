package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/model"
	"github.com/verte-zerg/tuimeta/internal/present"
)

func TestHistoryTable(t *testing.T) {
	ts := model.Timestamp{Time: time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)}
	items := []model.HistoryItem{
		{ID: "7", Text: "அவன் ஒரு சிங்கம்", Language: "tamil", Label: model.LabelMetaphor, Confidence: 0.912, Timestamp: ts},
		{ID: "6", Text: "plain", Language: "hindi", Label: model.LabelNormal, Confidence: 0.5, Timestamp: ts},
	}
	lines, err := HistoryTable(items, time.UTC)
	if err != nil {
		t.Fatalf("HistoryTable: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.HasSuffix(lines[0], "Text") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	for _, want := range []string{"7", "05 Mar 2024, 14:07", "TAMIL", "metaphor", "91.2%", "அவன் ஒரு சிங்கம்"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("row missing %q: %q", want, lines[1])
		}
	}
	if !strings.Contains(lines[2], "50.0%") {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
}

func TestHistoryTableEmpty(t *testing.T) {
	lines, err := HistoryTable(nil, time.UTC)
	if err != nil || len(lines) != 1 || lines[0] != "No predictions in history yet" {
		t.Fatalf("unexpected empty table: %q, %v", lines, err)
	}
}

func TestHistoryTableUnknownLabel(t *testing.T) {
	_, err := HistoryTable([]model.HistoryItem{{ID: "1", Label: "simile"}}, time.UTC)
	if kind, _ := apperrors.KindOf(err); kind != apperrors.KindContract {
		t.Fatalf("expected contract error, got %v", err)
	}
}

func TestStatisticsTable(t *testing.T) {
	lines := StatisticsTable(model.Statistics{TotalPredictions: 12, MetaphorCount: 5, NormalCount: 7})
	want := []string{
		"Total Predictions  12",
		"Metaphors           5",
		"Normal              7",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected table:\n%s", strings.Join(lines, "\n"))
	}
}

func TestResultLinesOmitEmptySections(t *testing.T) {
	res := present.Result{Text: "x", Language: "HINDI", Category: present.CategoryNormal, Confidence: "90.00%"}
	out := strings.Join(ResultLines(res), "\n")
	if strings.Contains(out, "Translation") || strings.Contains(out, "Explanation") {
		t.Fatalf("unexpected optional sections:\n%s", out)
	}
	res.Explanation, res.HasExplanation = "lion means brave", true
	out = strings.Join(ResultLines(res), "\n")
	if !strings.Contains(out, "Metaphor Explanation:\n  lion means brave") {
		t.Fatalf("missing explanation:\n%s", out)
	}
}

func TestLanguagesTable(t *testing.T) {
	lines := LanguagesTable()
	if len(lines) != 5 || !strings.HasPrefix(lines[1], "hindi") || !strings.Contains(lines[4], "kn-IN") {
		t.Fatalf("unexpected languages:\n%s", strings.Join(lines, "\n"))
	}
}

func TestFilterLine(t *testing.T) {
	if got := FilterLine(model.FilterCriteria{Label: model.LabelNormal}); got != "Filters: language=all  type=normal" {
		t.Fatalf("FilterLine() = %q", got)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []string{"a", "b"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "a\nb\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
