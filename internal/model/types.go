// Package model defines shared data structures.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Label is a classification produced by the remote model.
type Label string

// Known labels. There is no third category.
const (
	LabelMetaphor Label = "metaphor"
	LabelNormal   Label = "normal"
)

// Labels lists the known labels in display order.
var Labels = []Label{LabelMetaphor, LabelNormal}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	return l == LabelMetaphor || l == LabelNormal
}

// ParseLabel validates a user-supplied label. Empty input is allowed and means "any".
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if l == "" || l.Valid() {
		return l, nil
	}
	return "", fmt.Errorf("unknown label %q (use metaphor or normal)", s)
}

// PredictionRequest is the body of a prediction call.
type PredictionRequest struct {
	Text string `json:"text"`
}

// PredictionResult is the response of a prediction call.
type PredictionResult struct {
	Text        string  `json:"text"`
	Language    string  `json:"language"`
	Label       Label   `json:"label"`
	Confidence  float64 `json:"confidence"`
	Translation string  `json:"translation"`
	Explanation *string `json:"explanation,omitempty"`
}

// HistoryItem is a persisted record of one past prediction.
type HistoryItem struct {
	ID          string
	Text        string
	Language    string
	Label       Label
	Confidence  float64
	Translation string
	Explanation string
	Timestamp   Timestamp
}

type historyItemWire struct {
	ID          json.RawMessage `json:"id"`
	MongoID     json.RawMessage `json:"_id"`
	Text        string          `json:"text"`
	Language    string          `json:"language"`
	Label       Label           `json:"label"`
	Confidence  float64         `json:"confidence"`
	Translation *string         `json:"translation"`
	Explanation *string         `json:"explanation"`
	Timestamp   Timestamp       `json:"timestamp"`
}

// UnmarshalJSON accepts either "id" or "_id", as a string or a number.
func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	var w historyItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw := w.ID
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		raw = w.MongoID
	}
	id, err := rawID(raw)
	if err != nil {
		return err
	}
	*h = HistoryItem{
		ID:         id,
		Text:       w.Text,
		Language:   w.Language,
		Label:      w.Label,
		Confidence: w.Confidence,
		Timestamp:  w.Timestamp,
	}
	if w.Translation != nil {
		h.Translation = *w.Translation
	}
	if w.Explanation != nil {
		h.Explanation = *w.Explanation
	}
	return nil
}

// MarshalJSON writes the item in the service's wire shape.
func (h HistoryItem) MarshalJSON() ([]byte, error) {
	type out struct {
		ID          string    `json:"id"`
		Text        string    `json:"text"`
		Language    string    `json:"language"`
		Label       Label     `json:"label"`
		Confidence  float64   `json:"confidence"`
		Translation string    `json:"translation,omitempty"`
		Explanation string    `json:"explanation,omitempty"`
		Timestamp   Timestamp `json:"timestamp"`
	}
	return json.Marshal(out{
		ID:          h.ID,
		Text:        h.Text,
		Language:    h.Language,
		Label:       h.Label,
		Confidence:  h.Confidence,
		Translation: h.Translation,
		Explanation: h.Explanation,
		Timestamp:   h.Timestamp,
	})
}

func rawID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("history item has no id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", fmt.Errorf("invalid history item id %s", raw)
	}
	return string(raw), nil
}

// Timestamp is a server time that tolerates naive ISO forms.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON parses RFC3339 or naive ISO timestamps (naive values are UTC).
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON writes RFC3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Statistics is a server-computed aggregate over the full history.
type Statistics struct {
	TotalPredictions int `json:"total_predictions"`
	MetaphorCount    int `json:"metaphor_count"`
	NormalCount      int `json:"normal_count"`
}

// FilterCriteria narrows which history items are fetched. Empty fields mean no constraint.
type FilterCriteria struct {
	Language string
	Label    Label
}

// IsZero reports whether no dimension is constrained.
func (f FilterCriteria) IsZero() bool {
	return f.Language == "" && f.Label == ""
}

// Key is a stable identifier for the criteria, used by the snapshot cache.
func (f FilterCriteria) Key() string {
	return f.Language + "|" + string(f.Label)
}

// Config defines analyzer settings resolved from flags and the config file.
type Config struct {
	ServiceURL    string
	Timeout       time.Duration
	SpeechCommand string
	SpeechTag     string
	KeyboardLang  string
	HistoryFilter FilterCriteria
	LogDir        string
	LogLevel      string
	CacheDBPath   string
}
