package speech

import (
	"context"
	"sync"
)

// Fake is a Recognizer returning a fixed transcript or error.
// When Hold is set, Recognize blocks until Release or cancellation.
type Fake struct {
	Text string
	Err  error
	Hold bool

	mu      sync.Mutex
	tags    []string
	release chan struct{}
}

// NewFake returns a fake recognizer.
func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Recognize(ctx context.Context, tag string) (string, error) {
	f.mu.Lock()
	f.tags = append(f.tags, tag)
	if f.release == nil {
		f.release = make(chan struct{})
	}
	release := f.release
	f.mu.Unlock()

	if f.Hold {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// Release unblocks held captures.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.release != nil {
		close(f.release)
	}
	f.release = make(chan struct{})
}

// Tags returns the speech tags requested so far.
func (f *Fake) Tags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags...)
}
