// Package app coordinates the analyzer: input channels, submission, results and modal state.
package app

import (
	"context"
	"strings"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/input"
	"github.com/verte-zerg/tuimeta/internal/keyboard"
	"github.com/verte-zerg/tuimeta/internal/lang"
	"github.com/verte-zerg/tuimeta/internal/logging"
	"github.com/verte-zerg/tuimeta/internal/model"
	"github.com/verte-zerg/tuimeta/internal/present"
	"github.com/verte-zerg/tuimeta/internal/speech"
)

// Predictor classifies text. api.Client satisfies it.
type Predictor interface {
	Predict(ctx context.Context, text string) (model.PredictionResult, error)
}

// Submission is one in-flight prediction.
type Submission struct {
	Seq  uint64
	Text string
}

// Outcome is the completed prediction for a Submission.
type Outcome struct {
	Seq    uint64
	Result model.PredictionResult
	Err    error
}

// Controller owns loading, error, result and modal visibility state.
// It runs on the UI loop; Run is the only method safe to call elsewhere.
type Controller struct {
	Input  *input.Manager
	Speech *speech.Session

	predictor Predictor
	seq       uint64
	loading   bool
	result    *present.Result
	err       error

	keyboardOpen bool
	keyboardLang lang.Language
	historyOpen  bool
}

// New builds a controller. onFocus runs after every buffer mutation.
func New(predictor Predictor, session *speech.Session, keyboardLang lang.Language, onFocus func()) *Controller {
	if session == nil {
		session = speech.NewSession(nil, "")
	}
	return &Controller{
		Input:        input.New(onFocus),
		Speech:       session,
		predictor:    predictor,
		keyboardLang: keyboardLang,
	}
}

func (c *Controller) Loading() bool {
	return c.loading
}

// Result returns the displayed result, or nil.
func (c *Controller) Result() *present.Result {
	return c.result
}

// Err returns the error shown to the user, or nil.
func (c *Controller) Err() error {
	return c.err
}

// ErrMessage is the user-facing text of Err.
func (c *Controller) ErrMessage() string {
	return apperrors.PublicMessage(c.err)
}

// Submit starts a prediction for the current buffer. Empty input is rejected
// locally, and nothing starts while a prediction is in flight.
func (c *Controller) Submit() (Submission, bool) {
	if c.loading {
		return Submission{}, false
	}
	text := c.Input.Text()
	if strings.TrimSpace(text) == "" {
		c.err = apperrors.Validation("")
		return Submission{}, false
	}
	c.seq++
	c.loading = true
	c.err = nil
	c.result = nil
	return Submission{Seq: c.seq, Text: text}, true
}

// Run performs the network call for sub.
func (c *Controller) Run(ctx context.Context, sub Submission) Outcome {
	res, err := c.predictor.Predict(ctx, sub.Text)
	return Outcome{Seq: sub.Seq, Result: res, Err: err}
}

// Resolve applies o unless a newer submission or a reset superseded it.
// A failure keeps the buffer and leaves no result.
func (c *Controller) Resolve(o Outcome) bool {
	if o.Seq != c.seq || !c.loading {
		return false
	}
	c.loading = false
	if o.Err != nil {
		logging.Warnf("prediction failed: %v", o.Err)
		c.err = o.Err
		c.result = nil
		return true
	}
	view, err := present.Present(o.Result)
	if err != nil {
		logging.Errorf("invalid prediction: %v", err)
		c.err = err
		c.result = nil
		return true
	}
	c.result = &view
	return true
}

// Reset clears the buffer, the result and the error. An in-flight prediction is discarded.
func (c *Controller) Reset() {
	c.Input.Clear()
	c.result = nil
	c.err = nil
	if c.loading {
		c.loading = false
		c.seq++
	}
}

// SetText replaces the buffer from direct typing. A change clears the shown error.
func (c *Controller) SetText(text string) {
	if text == c.Input.Text() {
		return
	}
	c.Input.SetText(text)
	c.err = nil
}

// ToggleSpeech starts a capture, or stops the active one. The returned capture must be awaited off the loop.
func (c *Controller) ToggleSpeech(ctx context.Context) *speech.Capture {
	capture, err := c.Speech.Request(ctx)
	if err != nil {
		c.err = err
		return nil
	}
	if capture != nil {
		c.err = nil
	}
	return capture
}

// ResolveSpeech applies a capture outcome.
func (c *Controller) ResolveSpeech(ev speech.Event) {
	applied, err := c.Speech.Resolve(ev, c.Input)
	if applied && err != nil {
		c.err = err
	}
}

// SetSpeechLanguage changes the tag for the next capture.
func (c *Controller) SetSpeechLanguage(l lang.Language) {
	c.Speech.SetTag(l.SpeechTag)
}

// KeyboardOpen reports whether the virtual keyboard is shown, and for which language.
func (c *Controller) KeyboardOpen() (lang.Language, bool) {
	return c.keyboardLang, c.keyboardOpen
}

// ToggleKeyboard opens the keyboard for l, closes it when already open for l,
// and switches layouts otherwise.
func (c *Controller) ToggleKeyboard(l lang.Language) {
	if c.keyboardOpen && c.keyboardLang.Name == l.Name {
		c.keyboardOpen = false
		return
	}
	c.keyboardLang = l
	c.keyboardOpen = true
}

// SetKeyboardLanguage switches the layout without changing visibility.
func (c *Controller) SetKeyboardLanguage(l lang.Language) {
	c.keyboardLang = l
}

// CloseKeyboard hides the virtual keyboard.
func (c *Controller) CloseKeyboard() {
	c.keyboardOpen = false
}

// PressKey forwards a virtual key to the buffer.
func (c *Controller) PressKey(k keyboard.Key) {
	if k.Backspace {
		c.Input.Backspace()
		return
	}
	c.Input.AppendChar(k.Rune)
}

func (c *Controller) HistoryOpen() bool {
	return c.historyOpen
}

func (c *Controller) OpenHistory() {
	c.historyOpen = true
}

func (c *Controller) CloseHistory() {
	c.historyOpen = false
}
