package terminal

import (
	"context"
	"sync"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// Cursor is a terminal node read concurrently with query execution.
// The query runs in its own goroutine and Put hands rows to the reader
// through a bounded channel. Closing the cursor or cancelling its context
// makes Put return false, which stops the producer.
type Cursor struct {
	ctx    context.Context
	rows   chan sample.Sample
	closed chan struct{}

	finishOnce sync.Once
	closeOnce  sync.Once
	wg         sync.WaitGroup

	status status.Status
	// refused is set once Put turned a row away because the reader left.
	// Only the producer goroutine touches it.
	refused bool
}

// NewCursor creates a cursor buffering up to size rows
func NewCursor(ctx context.Context, size int) *Cursor {
	if size <= 0 {
		size = 1
	}
	return &Cursor{
		ctx:    ctx,
		rows:   make(chan sample.Sample, size),
		closed: make(chan struct{}),
	}
}

// Go runs fn in the producer goroutine. If fn returns without completing
// the cursor, the cursor is finished with an internal error.
func (c *Cursor) Go(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.finish(status.Internal)
		fn()
	}()
}

func (c *Cursor) Put(s sample.Sample) bool {
	if !s.IsData() {
		return true
	}
	select {
	case c.rows <- s:
		return true
	case <-c.closed:
		c.refused = true
		return false
	case <-c.ctx.Done():
		c.refused = true
		return false
	}
}

// Complete ends the stream. A stream the reader abandoned ends Closed,
// not Success, even though the producer shut down cleanly.
func (c *Cursor) Complete() {
	if c.refused {
		c.finish(status.Closed)
		return
	}
	c.finish(status.Success)
}

func (c *Cursor) SetError(st status.Status) {
	c.finish(st)
}

func (c *Cursor) Requirements() qp.Requirements {
	return qp.RequireTerminal | qp.RequireGroupBy
}

func (c *Cursor) finish(st status.Status) {
	c.finishOnce.Do(func() {
		c.status = st
		close(c.rows)
	})
}

// Read returns the next row. ok is false once the stream is exhausted;
// Err then tells whether it ended with an error.
func (c *Cursor) Read(ctx context.Context) (s sample.Sample, ok bool, err error) {
	select {
	case s, ok = <-c.rows:
		if !ok {
			return sample.Sample{}, false, c.Err()
		}
		return s, true, nil
	case <-ctx.Done():
		return sample.Sample{}, false, ctx.Err()
	}
}

// Err returns the final status as an error, nil on success. Only valid
// after Read reported the end of the stream.
func (c *Cursor) Err() error {
	if c.status == status.Success {
		return nil
	}
	return c.status
}

// Close stops the producer and waits for it to exit
func (c *Cursor) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.wg.Wait()
}
