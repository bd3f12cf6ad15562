package session

import (
	"context"
	"sync"

	"github.com/Someblueman/codecomment/internal/commenter"
)

// Batch is the pending outcome of one Process call.
type Batch struct {
	once   sync.Once
	done   chan struct{}
	result commenter.Result
	err    error
}

func newBatch() *Batch {
	return &Batch{done: make(chan struct{})}
}

// Done is closed once the batch has finished and the view was updated.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch finishes or ctx is done.
func (b *Batch) Wait(ctx context.Context) (commenter.Result, error) {
	select {
	case <-b.done:
		return b.result, b.err
	case <-ctx.Done():
		return commenter.Result{}, ctx.Err()
	}
}

func (b *Batch) resolve(res commenter.Result, err error) {
	b.once.Do(func() {
		b.result, b.err = res, err
		close(b.done)
	})
}
