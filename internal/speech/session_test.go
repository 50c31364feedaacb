package speech

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/input"
)

func TestRequestWithoutRecognizer(t *testing.T) {
	s := NewSession(nil, "hi-IN")
	capture, err := s.Request(context.Background())
	if capture != nil {
		t.Fatalf("expected no capture")
	}
	if kind, _ := apperrors.KindOf(err); kind != apperrors.KindCapabilityUnavailable {
		t.Fatalf("expected capability error, got %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestCommitReplacesBuffer(t *testing.T) {
	fake := NewFake("नया पाठ", nil)
	s := NewSession(fake, "hi-IN")
	buf := input.New(nil)
	buf.SetText("old text")

	capture, err := s.Request(context.Background())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !s.Listening() {
		t.Fatalf("expected listening")
	}
	applied, err := s.Resolve(capture.Await(), buf)
	if err != nil || !applied {
		t.Fatalf("resolve: applied=%v err=%v", applied, err)
	}
	if buf.Text() != "नया पाठ" {
		t.Fatalf("expected transcript to replace buffer, got %q", buf.Text())
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
	if tags := fake.Tags(); len(tags) != 1 || tags[0] != "hi-IN" {
		t.Fatalf("unexpected tags %v", tags)
	}
}

func TestPermissionDeniedLeavesBuffer(t *testing.T) {
	fake := NewFake("", apperrors.Recognition(apperrors.RecognitionPermissionDenied, nil))
	s := NewSession(fake, "ta-IN")
	buf := input.New(nil)
	buf.SetText("keep me")

	capture, err := s.Request(context.Background())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err = s.Resolve(capture.Await(), buf)
	if kind, ok := apperrors.RecognitionKindOf(err); !ok || kind != apperrors.RecognitionPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if buf.Text() != "keep me" {
		t.Fatalf("buffer changed to %q", buf.Text())
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestUnclassifiedErrorIsOther(t *testing.T) {
	s := NewSession(NewFake("", errors.New("device busy")), "te-IN")
	capture, _ := s.Request(context.Background())
	_, err := s.Resolve(capture.Await(), input.New(nil))
	if kind, ok := apperrors.RecognitionKindOf(err); !ok || kind != apperrors.RecognitionOther {
		t.Fatalf("expected other recognition error, got %v", err)
	}
}

func TestSecondRequestCancels(t *testing.T) {
	fake := NewFake("late", nil)
	fake.Hold = true
	s := NewSession(fake, "kn-IN")
	buf := input.New(nil)
	buf.SetText("typed")

	capture, err := s.Request(context.Background())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	done := make(chan Event, 1)
	go func() { done <- capture.Await() }()

	again, err := s.Request(context.Background())
	if again != nil || err != nil {
		t.Fatalf("expected stop, got capture=%v err=%v", again, err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %s", s.State())
	}
	ev := <-done
	if !errors.Is(ev.Err, context.Canceled) {
		t.Fatalf("expected cancelled capture, got %v", ev.Err)
	}
	applied, err := s.Resolve(ev, buf)
	if applied || err != nil {
		t.Fatalf("expected cancelled event to be ignored")
	}
	if buf.Text() != "typed" {
		t.Fatalf("buffer changed to %q", buf.Text())
	}
}

func TestStaleEventIgnored(t *testing.T) {
	s := NewSession(NewFake("first", nil), "hi-IN")
	buf := input.New(nil)

	first, _ := s.Request(context.Background())
	s.Cancel()
	second, _ := s.Request(context.Background())
	if second.Seq() == first.Seq() {
		t.Fatalf("expected new sequence number")
	}
	if applied, _ := s.Resolve(Event{Seq: first.Seq(), Transcript: "stale"}, buf); applied {
		t.Fatalf("expected stale event ignored")
	}
	if applied, _ := s.Resolve(Event{Seq: second.Seq(), Transcript: "fresh"}, buf); !applied {
		t.Fatalf("expected current event applied")
	}
	if buf.Text() != "fresh" {
		t.Fatalf("unexpected buffer %q", buf.Text())
	}
}

func TestClassifyStderr(t *testing.T) {
	cases := map[string]apperrors.RecognitionKind{
		"error: no-speech":              apperrors.RecognitionNoSpeech,
		"not-allowed":                   apperrors.RecognitionPermissionDenied,
		"Permission denied for /dev/dsp": apperrors.RecognitionPermissionDenied,
		"network":                       apperrors.RecognitionOther,
	}
	for in, want := range cases {
		if got := ClassifyStderr(in); got != want {
			t.Fatalf("ClassifyStderr(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestExecRecognizer(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	rec, err := NewExecRecognizer(`sh -c 'printf "{\"text\": \" hello \"}"'`)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	text, err := rec.Recognize(context.Background(), "hi-IN")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if text != " hello " {
		t.Fatalf("text = %q", text)
	}

	rec, err = NewExecRecognizer(`sh -c 'echo not-allowed >&2; exit 1'`)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = rec.Recognize(context.Background(), "hi-IN")
	if kind, ok := apperrors.RecognitionKindOf(err); !ok || kind != apperrors.RecognitionPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestExecRecognizerEmptyCommand(t *testing.T) {
	rec, err := NewExecRecognizer("  ")
	if err != nil || rec != nil {
		t.Fatalf("expected no recognizer, got %v %v", rec, err)
	}
}

func TestParseTranscriptKeepsText(t *testing.T) {
	cases := []struct {
		out  string
		want string
	}{
		{"  வணக்கம்\n", "  வணக்கம்"},
		{"नमस्ते  दुनिया\r\n", "नमस्ते  दुनिया"},
		{"no newline ", "no newline "},
		{`{"text": " ಕನ್ನಡ "}` + "\n", " ಕನ್ನಡ "},
	}
	for _, tc := range cases {
		text, err := parseTranscript([]byte(tc.out))
		if err != nil || text != tc.want {
			t.Fatalf("parseTranscript(%q) = %q, %v; want %q", tc.out, text, err, tc.want)
		}
	}
}

func TestFakeLiteralHoldAndRelease(t *testing.T) {
	idle := &Fake{}
	idle.Release()

	f := &Fake{Text: "held", Hold: true}
	done := make(chan string, 1)
	go func() {
		text, _ := f.Recognize(context.Background(), "te-IN")
		done <- text
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(f.Tags()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("recognize never started")
		}
		time.Sleep(time.Millisecond)
	}
	f.Release()
	select {
	case text := <-done:
		if text != "held" {
			t.Fatalf("text = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("release did not unblock the capture")
	}
}
