package history

import (
	"context"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/lang"
	"github.com/verte-zerg/tuimeta/internal/model"
)

// Op is a history operation issued by the controller.
type Op int

const (
	OpRefresh Op = iota
	OpDeleteOne
	OpDeleteAll
)

// Request describes one round trip. Execute runs it off the UI loop.
type Request struct {
	Seq    uint64
	Op     Op
	Filter model.FilterCriteria
	ID     string
}

// Response is the outcome of a Request.
type Response struct {
	Seq      uint64
	Op       Op
	Snapshot Snapshot
	// Err is the mutation failure for delete operations.
	Err error
}

// Execute performs req against s.
func Execute(ctx context.Context, s *Store, req Request) Response {
	resp := Response{Seq: req.Seq, Op: req.Op}
	switch req.Op {
	case OpDeleteOne:
		resp.Snapshot, resp.Err = s.DeleteOne(ctx, req.ID, req.Filter)
	case OpDeleteAll:
		resp.Snapshot, resp.Err = s.DeleteAll(ctx, req.Filter)
	default:
		resp.Snapshot = s.Refresh(ctx, req.Filter)
	}
	return resp
}

// Phase is the list pane state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseFailed
)

// Confirmation is a destructive action awaiting the user's answer.
type Confirmation struct {
	Op     Op
	ID     string
	Prompt string
}

const (
	promptDeleteOne = "Are you sure you want to delete this prediction?"
	promptDeleteAll = "Are you sure you want to clear all history? This cannot be undone."
)

// Controller owns the filter criteria and the rendered history state.
// It runs on the UI loop; only the newest request's response is applied.
type Controller struct {
	filter   model.FilterCriteria
	seq      uint64
	inFlight bool
	closed   bool

	phase    Phase
	items    []model.HistoryItem
	stats    model.Statistics
	hasStats bool
	err      error
	expanded string
	pending  *Confirmation
}

// NewController starts with filter and no data.
func NewController(filter model.FilterCriteria) *Controller {
	return &Controller{filter: filter, phase: PhaseLoading}
}

func (c *Controller) Filter() model.FilterCriteria {
	return c.filter
}

func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) Items() []model.HistoryItem {
	return c.items
}

func (c *Controller) Err() error {
	return c.err
}

func (c *Controller) Expanded() string {
	return c.expanded
}

func (c *Controller) Pending() *Confirmation {
	return c.pending
}

func (c *Controller) Busy() bool {
	return c.inFlight
}

func (c *Controller) Statistics() (model.Statistics, bool) {
	return c.stats, c.hasStats
}

func (c *Controller) next(op Op, id string) Request {
	c.seq++
	c.inFlight = true
	c.err = nil
	if op == OpRefresh {
		c.phase = PhaseLoading
	}
	return Request{Seq: c.seq, Op: op, Filter: c.filter, ID: id}
}

// Open reopens the view and issues the initial fetch.
func (c *Controller) Open() Request {
	c.closed = false
	c.pending = nil
	return c.next(OpRefresh, "")
}

// Close marks the view closed. Later responses are ignored.
func (c *Controller) Close() {
	c.closed = true
	c.inFlight = false
	c.pending = nil
}

// Refresh re-fetches with the current filter.
func (c *Controller) Refresh() Request {
	return c.next(OpRefresh, "")
}

// SetLanguage changes the language filter. ok is false when nothing changed.
func (c *Controller) SetLanguage(language string) (req Request, ok bool, err error) {
	if language != "" {
		l, found := lang.ByName(language)
		if !found {
			return Request{}, false, apperrors.Validation("unknown language " + language)
		}
		language = l.Name
	}
	if language == c.filter.Language {
		return Request{}, false, nil
	}
	c.filter.Language = language
	return c.next(OpRefresh, ""), true, nil
}

// SetLabel changes the label filter. ok is false when nothing changed.
func (c *Controller) SetLabel(label model.Label) (req Request, ok bool, err error) {
	if label != "" && !label.Valid() {
		return Request{}, false, apperrors.Validation("unknown label " + string(label))
	}
	if label == c.filter.Label {
		return Request{}, false, nil
	}
	c.filter.Label = label
	return c.next(OpRefresh, ""), true, nil
}

// CycleLanguage steps through all languages then "any".
func (c *Controller) CycleLanguage() Request {
	names := append([]string{""}, lang.Names()...)
	next := names[(indexOf(names, c.filter.Language)+1)%len(names)]
	req, _, _ := c.SetLanguage(next)
	return req
}

// CycleLabel steps through the labels then "any".
func (c *Controller) CycleLabel() Request {
	labels := []string{""}
	for _, l := range model.Labels {
		labels = append(labels, string(l))
	}
	next := labels[(indexOf(labels, string(c.filter.Label))+1)%len(labels)]
	req, _, _ := c.SetLabel(model.Label(next))
	return req
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return 0
}

// Toggle expands id, or collapses it when already expanded. At most one item is expanded.
func (c *Controller) Toggle(id string) {
	if c.expanded == id {
		c.expanded = ""
		return
	}
	c.expanded = id
}

// RequestDelete asks for confirmation before deleting id.
func (c *Controller) RequestDelete(id string) bool {
	if id == "" || c.inFlight {
		return false
	}
	c.pending = &Confirmation{Op: OpDeleteOne, ID: id, Prompt: promptDeleteOne}
	return true
}

// RequestClearAll asks for confirmation before clearing. Clearing ignores the
// filter, so it is offered while any item exists, shown or not.
func (c *Controller) RequestClearAll() bool {
	if c.inFlight {
		return false
	}
	if len(c.items) == 0 && (!c.hasStats || c.stats.TotalPredictions == 0) {
		return false
	}
	c.pending = &Confirmation{Op: OpDeleteAll, Prompt: promptDeleteAll}
	return true
}

// Cancel drops the pending confirmation.
func (c *Controller) Cancel() {
	c.pending = nil
}

// Confirm turns the pending confirmation into a request.
func (c *Controller) Confirm() (Request, bool) {
	if c.pending == nil {
		return Request{}, false
	}
	p := c.pending
	c.pending = nil
	return c.next(p.Op, p.ID), true
}

// Apply renders resp. Stale responses and responses after Close are dropped;
// a dropped mutation that succeeded asks for a fresh fetch via refetch.
func (c *Controller) Apply(resp Response) (applied bool, refetch *Request) {
	if c.closed {
		return false, nil
	}
	if resp.Seq != c.seq {
		if resp.Op != OpRefresh && resp.Err == nil {
			req := c.next(OpRefresh, "")
			return false, &req
		}
		return false, nil
	}
	c.inFlight = false

	if resp.Err != nil {
		// Mutation failed: prior list and statistics stay as rendered.
		c.err = resp.Err
		if c.phase == PhaseLoading {
			c.phase = PhaseReady
		}
		return true, nil
	}

	snap := resp.Snapshot
	if snap.HasStats && snap.StatsErr == nil {
		c.stats = snap.Stats
		c.hasStats = true
	}
	if snap.ListErr != nil {
		c.err = snap.ListErr
		c.items = nil
		c.phase = PhaseFailed
		c.expanded = ""
		return true, nil
	}
	c.items = snap.Items
	c.phase = PhaseReady
	if resp.Op != OpRefresh || !c.contains(c.expanded) {
		c.expanded = ""
	}
	return true, nil
}

func (c *Controller) contains(id string) bool {
	if id == "" {
		return false
	}
	for _, item := range c.items {
		if item.ID == id {
			return true
		}
	}
	return false
}
