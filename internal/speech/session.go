package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/logging"
)

// State is the capture session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Buffer receives committed transcripts.
type Buffer interface {
	SetText(text string)
}

// Event is the outcome of one capture.
type Event struct {
	Seq        uint64
	Transcript string
	Err        error
}

// Capture is one recording attempt started by Session.Request.
type Capture struct {
	seq uint64
	tag string
	rec Recognizer
	ctx context.Context
}

// Seq identifies the capture.
func (c *Capture) Seq() uint64 {
	return c.seq
}

// Await blocks until the recognizer finishes or the capture is cancelled.
// It does not touch session state and may run off the UI loop.
func (c *Capture) Await() Event {
	text, err := c.rec.Recognize(c.ctx, c.tag)
	return Event{Seq: c.seq, Transcript: text, Err: err}
}

// Session is the speech state machine. Only one capture listens at a time.
// All methods run on the UI loop.
type Session struct {
	rec    Recognizer
	tag    string
	state  State
	seq    uint64
	cancel context.CancelFunc
}

// NewSession builds a session. A nil recognizer means no speech capability.
func NewSession(rec Recognizer, tag string) *Session {
	return &Session{rec: rec, tag: tag}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Listening() bool {
	return s.state == StateListening
}

// Available reports whether a recognizer is configured.
func (s *Session) Available() bool {
	return s.rec != nil
}

// Tag returns the speech tag used for new captures.
func (s *Session) Tag() string {
	return s.tag
}

// SetTag changes the speech tag for the next capture.
func (s *Session) SetTag(tag string) {
	s.tag = tag
}

// Request toggles capture. From idle it starts a capture; while listening it
// cancels the active one and returns nil with no error.
func (s *Session) Request(ctx context.Context) (*Capture, error) {
	if s.state == StateListening {
		s.stop()
		logging.SpeechEvent("cancelled", s.tag, s.seq)
		return nil, nil
	}
	if s.rec == nil {
		return nil, apperrors.CapabilityUnavailable(errors.New("no speech recognizer configured"))
	}
	s.seq++
	captureCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateListening
	logging.SpeechEvent("listening", s.tag, s.seq)
	return &Capture{seq: s.seq, tag: s.tag, rec: s.rec, ctx: captureCtx}, nil
}

// Cancel stops an active capture without committing.
func (s *Session) Cancel() {
	if s.state == StateListening {
		s.stop()
	}
}

func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	// Invalidate the outstanding capture.
	s.seq++
	s.state = StateIdle
}

// Resolve applies a capture outcome. Events from cancelled or superseded
// captures are ignored and report applied=false. A transcript replaces buf;
// a failure leaves buf unchanged and returns the classified error.
func (s *Session) Resolve(ev Event, buf Buffer) (applied bool, err error) {
	if s.state != StateListening || ev.Seq != s.seq {
		return false, nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if ev.Err != nil {
		s.state = StateFailed
		err = classify(ev.Err)
		logging.SpeechEvent("failed", s.tag, ev.Seq)
		s.state = StateIdle
		return true, err
	}
	s.state = StateCommitted
	buf.SetText(ev.Transcript)
	logging.SpeechEvent("committed", s.tag, ev.Seq)
	s.state = StateIdle
	return true, nil
}

func classify(err error) error {
	if kind, ok := apperrors.KindOf(err); ok && (kind == apperrors.KindRecognition || kind == apperrors.KindCapabilityUnavailable) {
		return err
	}
	return apperrors.Recognition(apperrors.RecognitionOther, err)
}
