package history

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/tuimeta/internal/api"
	"github.com/verte-zerg/tuimeta/internal/api/apitest"
	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/model"
)

func seedItems() []model.HistoryItem {
	return []model.HistoryItem{
		{ID: "1", Text: "वह शेर है", Label: model.LabelMetaphor, Language: "hindi", Confidence: 0.9},
		{ID: "2", Text: "அவன் வீட்டிற்கு சென்றான்", Label: model.LabelNormal, Language: "tamil", Confidence: 0.8},
	}
}

func newTestStore(t *testing.T, snap Snapshotter) (*Store, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(seedItems()...)
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return NewStore(client, snap), srv
}

func ids(items []model.HistoryItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestListFilters(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()
	cases := []struct {
		filter model.FilterCriteria
		want   []string
	}{
		{model.FilterCriteria{Language: "hindi"}, []string{"1"}},
		{model.FilterCriteria{Label: model.LabelNormal}, []string{"2"}},
		{model.FilterCriteria{}, []string{"2", "1"}},
	}
	for _, tc := range cases {
		items, err := s.List(ctx, tc.filter)
		if err != nil {
			t.Fatalf("list %+v: %v", tc.filter, err)
		}
		got := ids(items)
		if len(got) != len(tc.want) {
			t.Fatalf("list %+v = %v, want %v", tc.filter, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("list %+v = %v, want %v", tc.filter, got, tc.want)
			}
		}
	}
}

func TestDeleteOneRefreshes(t *testing.T) {
	s, srv := newTestStore(t, nil)
	ctx := context.Background()
	before, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}

	snap, err := s.DeleteOne(ctx, "1", model.FilterCriteria{})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, id := range ids(snap.Items) {
		if id == "1" {
			t.Fatalf("deleted item still listed")
		}
	}
	if snap.Stats.TotalPredictions != before.TotalPredictions-1 {
		t.Fatalf("total = %d, want %d", snap.Stats.TotalPredictions, before.TotalPredictions-1)
	}
	if srv.Calls("GET /history") != 1 || srv.Calls("GET /statistics") != 2 {
		t.Fatalf("expected refresh after delete, got list=%d stats=%d", srv.Calls("GET /history"), srv.Calls("GET /statistics"))
	}
}

func TestDeleteAllIgnoresFilter(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	snap, err := s.DeleteAll(ctx, model.FilterCriteria{Language: "hindi"})
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty list, got %v", ids(snap.Items))
	}
	if snap.Stats != (model.Statistics{}) {
		t.Fatalf("expected zero stats, got %+v", snap.Stats)
	}
	items, err := s.List(ctx, model.FilterCriteria{Label: model.LabelNormal})
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty list for any filter, got %v %v", ids(items), err)
	}
}

func TestDeleteFailureKeepsCache(t *testing.T) {
	s, srv := newTestStore(t, nil)
	ctx := context.Background()
	if _, err := s.List(ctx, model.FilterCriteria{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	srv.FailNext("DELETE /history/{id}", http.StatusInternalServerError, `{}`)

	snap, err := s.DeleteOne(ctx, "1", model.FilterCriteria{})
	if apperrors.PublicMessage(err) != "Failed to delete prediction" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("expected cached list intact, got %v", ids(snap.Items))
	}
	if srv.Calls("GET /history") != 1 {
		t.Fatalf("expected no refresh after failed delete")
	}
}

type recordingSnapshotter struct {
	histories int
	stats     int
	clears    int
}

func (r *recordingSnapshotter) SaveHistory(context.Context, model.FilterCriteria, []model.HistoryItem, time.Time) error {
	r.histories++
	return nil
}

func (r *recordingSnapshotter) SaveStatistics(context.Context, model.Statistics, time.Time) error {
	r.stats++
	return nil
}

func (r *recordingSnapshotter) Clear(context.Context) error {
	r.clears++
	return errors.New("disk full")
}

func TestSnapshotsOnlyAfterSuccess(t *testing.T) {
	rec := &recordingSnapshotter{}
	s, srv := newTestStore(t, rec)
	ctx := context.Background()

	srv.FailNext("GET /history", http.StatusServiceUnavailable, `{"detail":"Database not connected"}`)
	if _, err := s.List(ctx, model.FilterCriteria{}); err == nil {
		t.Fatalf("expected list error")
	}
	if rec.histories != 0 {
		t.Fatalf("snapshot written after failed fetch")
	}
	if _, err := s.DeleteOne(ctx, "2", model.FilterCriteria{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.clears != 1 || rec.histories != 1 || rec.stats != 1 {
		t.Fatalf("unexpected snapshot calls: %+v", rec)
	}
}

func TestControllerFilterTriggersOneList(t *testing.T) {
	s, srv := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{})
	ctx := context.Background()

	c.Apply(Execute(ctx, s, c.Open()))
	base := srv.Calls("GET /history")

	req, ok, err := c.SetLanguage("hindi")
	if err != nil || !ok {
		t.Fatalf("set language: ok=%v err=%v", ok, err)
	}
	c.Apply(Execute(ctx, s, req))
	if got := srv.Calls("GET /history") - base; got != 1 {
		t.Fatalf("expected exactly one list call, got %d", got)
	}
	if got := ids(c.Items()); len(got) != 1 || got[0] != "1" {
		t.Fatalf("items = %v", got)
	}

	if _, ok, _ := c.SetLanguage("hindi"); ok {
		t.Fatalf("expected unchanged filter to issue nothing")
	}
	if _, _, err := c.SetLanguage("french"); err == nil {
		t.Fatalf("expected unknown language error")
	}
	if _, _, err := c.SetLabel("simile"); err == nil {
		t.Fatalf("expected unknown label error")
	}
}

func TestControllerToggle(t *testing.T) {
	c := NewController(model.FilterCriteria{})
	c.Toggle("A")
	c.Toggle("A")
	if c.Expanded() != "" {
		t.Fatalf("expected collapse on second toggle")
	}
	c.Toggle("A")
	c.Toggle("B")
	if c.Expanded() != "B" {
		t.Fatalf("expected only B expanded, got %q", c.Expanded())
	}
}

func TestControllerConfirmFlow(t *testing.T) {
	s, srv := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{})
	ctx := context.Background()
	c.Apply(Execute(ctx, s, c.Open()))

	if !c.RequestDelete("1") {
		t.Fatalf("expected pending confirmation")
	}
	if srv.Calls("DELETE /history/{id}") != 0 {
		t.Fatalf("delete issued before confirmation")
	}
	c.Cancel()
	if _, ok := c.Confirm(); ok {
		t.Fatalf("expected nothing to confirm after cancel")
	}

	c.RequestDelete("1")
	req, ok := c.Confirm()
	if !ok || req.Op != OpDeleteOne || req.ID != "1" {
		t.Fatalf("unexpected request %+v", req)
	}
	if applied, _ := c.Apply(Execute(ctx, s, req)); !applied {
		t.Fatalf("expected response applied")
	}
	stats, _ := c.Statistics()
	if len(c.Items()) != 1 || stats.TotalPredictions != 1 {
		t.Fatalf("unexpected state items=%v stats=%+v", ids(c.Items()), stats)
	}

	if !c.RequestClearAll() {
		t.Fatalf("expected clear-all confirmation")
	}
	req, _ = c.Confirm()
	c.Apply(Execute(ctx, s, req))
	if len(c.Items()) != 0 || c.RequestClearAll() {
		t.Fatalf("expected empty list and no clear-all prompt")
	}
}

func TestControllerDeleteFailureKeepsList(t *testing.T) {
	s, srv := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{})
	ctx := context.Background()
	c.Apply(Execute(ctx, s, c.Open()))

	srv.FailNext("DELETE /history", http.StatusInternalServerError, `{"detail":"Database not connected"}`)
	c.RequestClearAll()
	req, _ := c.Confirm()
	c.Apply(Execute(ctx, s, req))
	if c.Err() == nil || apperrors.PublicMessage(c.Err()) != "Database not connected" {
		t.Fatalf("unexpected error %v", c.Err())
	}
	if len(c.Items()) != 2 || c.Phase() != PhaseReady {
		t.Fatalf("expected prior list intact, got %v", ids(c.Items()))
	}
}

func TestControllerFetchFailure(t *testing.T) {
	s, srv := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{})
	srv.FailNext("GET /history", http.StatusInternalServerError, ``)
	c.Apply(Execute(context.Background(), s, c.Open()))
	if c.Phase() != PhaseFailed || c.Err() == nil || len(c.Items()) != 0 {
		t.Fatalf("expected explicit error state, got phase=%v err=%v", c.Phase(), c.Err())
	}
	if _, ok := c.Statistics(); !ok {
		t.Fatalf("expected statistics despite list failure")
	}
}

func TestControllerDropsStaleAndClosed(t *testing.T) {
	s, _ := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{})
	ctx := context.Background()

	first := c.Open()
	second, _, _ := c.SetLabel(model.LabelMetaphor)
	if applied, _ := c.Apply(Execute(ctx, s, first)); applied {
		t.Fatalf("expected stale response dropped")
	}
	if applied, _ := c.Apply(Execute(ctx, s, second)); !applied {
		t.Fatalf("expected latest response applied")
	}
	if got := ids(c.Items()); len(got) != 1 || got[0] != "1" {
		t.Fatalf("items = %v", got)
	}

	req := c.Refresh()
	c.Close()
	if applied, _ := c.Apply(Execute(ctx, s, req)); applied {
		t.Fatalf("expected response after close dropped")
	}
}

func TestControllerStaleMutationRefetches(t *testing.T) {
	s, _ := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{})
	ctx := context.Background()
	c.Apply(Execute(ctx, s, c.Open()))

	c.RequestDelete("2")
	del, _ := c.Confirm()
	filterReq := c.CycleLabel()
	filterResp := Execute(ctx, s, filterReq)
	delResp := Execute(ctx, s, del)

	applied, refetch := c.Apply(delResp)
	if applied || refetch == nil {
		t.Fatalf("expected stale mutation to request a refetch")
	}
	if applied, _ := c.Apply(filterResp); applied {
		t.Fatalf("expected superseded filter response dropped")
	}
	if applied, _ := c.Apply(Execute(ctx, s, *refetch)); !applied {
		t.Fatalf("expected refetch applied")
	}
	if c.Filter().Label != model.LabelMetaphor {
		t.Fatalf("unexpected filter %+v", c.Filter())
	}
}

// gatedRemote is an in-memory Remote whose next list or statistics call can be held.
type gatedRemote struct {
	mu        sync.Mutex
	items     []model.HistoryItem
	listGate  chan struct{}
	statsGate chan struct{}
	entered   chan struct{}
}

func newGatedRemote(items []model.HistoryItem) *gatedRemote {
	return &gatedRemote{items: items, entered: make(chan struct{}, 1)}
}

func (r *gatedRemote) holdNextList() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listGate = make(chan struct{})
	return r.listGate
}

func (r *gatedRemote) holdNextStatistics() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsGate = make(chan struct{})
	return r.statsGate
}

func (r *gatedRemote) wait(gate *chan struct{}) {
	r.mu.Lock()
	g := *gate
	*gate = nil
	r.mu.Unlock()
	if g != nil {
		r.entered <- struct{}{}
		<-g
	}
}

func (r *gatedRemote) ListHistory(_ context.Context, filter model.FilterCriteria) ([]model.HistoryItem, error) {
	r.mu.Lock()
	out := []model.HistoryItem{}
	for _, item := range r.items {
		if filter.Language != "" && item.Language != filter.Language {
			continue
		}
		if filter.Label != "" && item.Label != filter.Label {
			continue
		}
		out = append(out, item)
	}
	r.mu.Unlock()
	r.wait(&r.listGate)
	return out, nil
}

func (r *gatedRemote) Statistics(context.Context) (model.Statistics, error) {
	r.wait(&r.statsGate)
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := model.Statistics{TotalPredictions: len(r.items)}
	for _, item := range r.items {
		if item.Label == model.LabelMetaphor {
			stats.MetaphorCount++
		} else {
			stats.NormalCount++
		}
	}
	return stats, nil
}

func (r *gatedRemote) DeleteHistoryItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return apperrors.Network("Prediction not found or already deleted", nil)
}

func (r *gatedRemote) ClearHistory(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	return nil
}

func TestOverlappingRefreshesKeepTheirOwnItems(t *testing.T) {
	remote := newGatedRemote(seedItems())
	s := NewStore(remote, nil)
	c := NewController(model.FilterCriteria{})
	ctx := context.Background()

	hindiReq, _, _ := c.SetLanguage("hindi")
	tamilReq, _, _ := c.SetLanguage("tamil")

	gate := remote.holdNextStatistics()
	done := make(chan Response)
	go func() {
		done <- Execute(ctx, s, tamilReq)
	}()
	<-remote.entered
	hindiResp := Execute(ctx, s, hindiReq)
	close(gate)
	tamilResp := <-done

	c.Apply(hindiResp)
	if applied, _ := c.Apply(tamilResp); !applied {
		t.Fatalf("expected latest response applied")
	}
	got := c.Items()
	if len(got) != 1 || got[0].ID != "2" || got[0].Language != "tamil" {
		t.Fatalf("filter %+v shows %+v", c.Filter(), got)
	}
}

type savedHistory struct {
	filter model.FilterCriteria
	ids    []string
}

type capturingSnapshotter struct {
	mu    sync.Mutex
	saved []savedHistory
}

func (c *capturingSnapshotter) SaveHistory(_ context.Context, filter model.FilterCriteria, items []model.HistoryItem, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, savedHistory{filter: filter, ids: ids(items)})
	return nil
}

func (c *capturingSnapshotter) SaveStatistics(context.Context, model.Statistics, time.Time) error {
	return nil
}

func (c *capturingSnapshotter) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = nil
	return nil
}

func TestListStartedBeforeDeleteIsNotCached(t *testing.T) {
	remote := newGatedRemote(seedItems())
	rec := &capturingSnapshotter{}
	s := NewStore(remote, rec)
	ctx := context.Background()

	gate := remote.holdNextList()
	done := make(chan []model.HistoryItem)
	go func() {
		items, _ := s.List(ctx, model.FilterCriteria{})
		done <- items
	}()
	<-remote.entered
	if _, err := s.DeleteOne(ctx, "1", model.FilterCriteria{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	close(gate)
	if stale := <-done; len(stale) != 2 {
		t.Fatalf("expected the held list to return its own items, got %v", ids(stale))
	}

	for _, saved := range rec.saved {
		for _, id := range saved.ids {
			if id == "1" {
				t.Fatalf("deleted item written to snapshot: %+v", rec.saved)
			}
		}
	}
	if got := ids(s.Cached().Items); len(got) != 1 || got[0] != "2" {
		t.Fatalf("cached items = %v", got)
	}
}

func TestClearAllAllowedWhenFilterHidesItems(t *testing.T) {
	s, _ := newTestStore(t, nil)
	c := NewController(model.FilterCriteria{Language: "kannada"})
	c.Apply(Execute(context.Background(), s, c.Open()))

	if len(c.Items()) != 0 {
		t.Fatalf("expected empty filtered list, got %v", ids(c.Items()))
	}
	if !c.RequestClearAll() {
		t.Fatalf("expected clear-all while other items exist")
	}
}
