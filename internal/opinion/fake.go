package opinion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FakeProvider returns a canned payload, for tests and offline runs.
type FakeProvider struct {
	Response string
	Err      error
	Delay    time.Duration

	calls atomic.Int64
	mu    sync.Mutex
	last  string
}

// NewFake creates a provider that always answers response.
func NewFake(response string) *FakeProvider {
	return &FakeProvider{Response: response}
}

func (f *FakeProvider) Name() string { return "fake" }

// Calls returns how many completions were requested.
func (f *FakeProvider) Calls() int64 { return f.calls.Load() }

// LastPrompt returns the most recent user prompt.
func (f *FakeProvider) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeProvider) Complete(ctx context.Context, _, user string) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = user
	f.mu.Unlock()
	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return []byte(f.Response), nil
}
