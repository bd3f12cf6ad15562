package llm

import (
	"context"
	"sync"
)

// FakeClient returns a fixed reply (or error) for every request and records
// what it was asked. Used for offline runs and tests.
type FakeClient struct {
	Reply string
	Err   error
	// Respond, when set, overrides Reply and Err.
	Respond func(call int, req Request) (string, error)

	mu       sync.Mutex
	requests []Request
}

// NewFakeClient returns a FakeClient that always answers reply.
func NewFakeClient(reply string) *FakeClient {
	return &FakeClient{Reply: reply}
}

func (f *FakeClient) Name() string { return "FakeLLM" }

func (f *FakeClient) Generate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	respond := f.Respond
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(call, req)
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// Calls returns the number of Generate invocations so far.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the recorded requests.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}
