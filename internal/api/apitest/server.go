// Package apitest provides an in-memory classification service for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/tuimeta/internal/lang"
	"github.com/verte-zerg/tuimeta/internal/model"
)

// Server is a fake service backed by an in-memory history.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	items    []model.HistoryItem
	nextID   int
	calls    map[string]int
	texts    []string
	failures map[string]failure
	classify func(text string) model.PredictionResult
}

type failure struct {
	status int
	body   string
}

// NewServer starts a fake service. Items are stored oldest-first and served newest-first.
func NewServer(items ...model.HistoryItem) *Server {
	s := &Server{
		items:    append([]model.HistoryItem(nil), items...),
		nextID:   len(items) + 1,
		calls:    map[string]int{},
		failures: map[string]failure{},
		classify: defaultClassify,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/history/", s.handleHistoryItem)
	mux.HandleFunc("/statistics", s.handleStatistics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.Server = httptest.NewServer(mux)
	return s
}

// SetClassifier overrides how /predict labels text.
func (s *Server) SetClassifier(fn func(text string) model.PredictionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classify = fn
}

// FailNext makes the next request to "METHOD /path" return status with body.
func (s *Server) FailNext(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body}
}

// Calls returns how many requests hit "METHOD /path" (item paths collapse to /history/{id}).
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// PredictedTexts returns the texts received by /predict in order.
func (s *Server) PredictedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// Items returns a copy of the stored history, oldest first.
func (s *Server) Items() []model.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.HistoryItem(nil), s.items...)
}

func routeKey(r *http.Request) string {
	path := r.URL.Path
	if strings.HasPrefix(path, "/history/") {
		path = "/history/{id}"
	}
	return r.Method + " " + path
}

func (s *Server) record(r *http.Request) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(r)
	s.calls[key]++
	f, ok := s.failures[key]
	if ok {
		delete(s.failures, key)
	}
	return f, ok
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.record(r); ok {
		writeRaw(w, f)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
		return
	}
	var req model.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "invalid body"}}})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Input text cannot be empty"})
		return
	}
	s.mu.Lock()
	s.texts = append(s.texts, req.Text)
	result := s.classify(text)
	item := model.HistoryItem{
		ID:          strconv.Itoa(s.nextID),
		Text:        result.Text,
		Language:    result.Language,
		Label:       result.Label,
		Confidence:  result.Confidence,
		Translation: result.Translation,
		Timestamp:   model.Timestamp{Time: time.Now().UTC()},
	}
	if result.Explanation != nil {
		item.Explanation = *result.Explanation
	}
	s.nextID++
	s.items = append(s.items, item)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.record(r); ok {
		writeRaw(w, f)
		return
	}
	switch r.Method {
	case http.MethodGet:
		language := r.URL.Query().Get("language")
		label := r.URL.Query().Get("label")
		s.mu.Lock()
		out := make([]model.HistoryItem, 0, len(s.items))
		for i := len(s.items) - 1; i >= 0; i-- {
			item := s.items[i]
			if language != "" && item.Language != language {
				continue
			}
			if label != "" && string(item.Label) != label {
				continue
			}
			out = append(out, item)
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(out), "history": out})
	case http.MethodDelete:
		s.mu.Lock()
		count := len(s.items)
		s.items = nil
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted_count": count})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	}
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.record(r); ok {
		writeRaw(w, f)
		return
	}
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/history/")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Prediction deleted successfully"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Prediction not found or already deleted"})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.record(r); ok {
		writeRaw(w, f)
		return
	}
	s.mu.Lock()
	stats := model.Statistics{TotalPredictions: len(s.items)}
	for _, item := range s.items {
		switch item.Label {
		case model.LabelMetaphor:
			stats.MetaphorCount++
		case model.LabelNormal:
			stats.NormalCount++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "statistics": stats})
}

func defaultClassify(text string) model.PredictionResult {
	language := "hindi"
	if l, ok := lang.Detect(text); ok {
		language = l.Name
	}
	return model.PredictionResult{
		Text:        text,
		Language:    language,
		Label:       model.LabelNormal,
		Confidence:  0.9,
		Translation: "[translation] " + text,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, f failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.body))
}
