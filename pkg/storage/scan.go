package storage

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// errHalted means the processor asked the scan to stop
var errHalted = errors.New("scan halted by processor")

// Scan is the producer loop shared by all backends. It calls Start, then
// Put once per sample in scan order with a periodic empty flush sample,
// then Stop. If Put returns false the loop ends without calling Stop. Any
// other failure is reported through SetError and returned.
func Scan(ctx context.Context, src Source, req ScanRequest, proc qp.StreamProcessor) error {
	if !proc.Start() {
		return nil
	}

	d := &driver{
		ctx:        ctx,
		proc:       proc,
		flushEvery: req.FlushEvery,
	}
	if d.flushEvery <= 0 {
		d.flushEvery = config.DefaultFlushEvery
	}

	var err error
	switch req.OrderBy {
	case qp.OrderByTime:
		err = d.scanByTime(src, req)
	default:
		err = d.scanBySeries(src, req)
	}

	if errors.Is(err, errHalted) {
		return nil
	}
	if err != nil {
		proc.SetError(status.FromError(err))
		return err
	}
	proc.Stop()
	return nil
}

// Drive feeds a prepared list of samples to proc with the same protocol as
// Scan. Metadata listings use it.
func Drive(ctx context.Context, samples []sample.Sample, proc qp.StreamProcessor) error {
	if !proc.Start() {
		return nil
	}

	d := &driver{ctx: ctx, proc: proc, flushEvery: config.DefaultFlushEvery}
	for _, s := range samples {
		if err := d.put(s); err != nil {
			if errors.Is(err, errHalted) {
				return nil
			}
			proc.SetError(status.FromError(err))
			return err
		}
	}
	proc.Stop()
	return nil
}

type driver struct {
	ctx        context.Context
	proc       qp.StreamProcessor
	flushEvery int
	count      int
}

func (d *driver) put(s sample.Sample) error {
	d.count++
	// Check for context cancellation every 1000 samples
	if d.count%config.ScanContextCheckInterval == 0 {
		if err := d.ctx.Err(); err != nil {
			return err
		}
	}
	if !d.proc.Put(s) {
		return errHalted
	}
	if d.count%d.flushEvery == 0 {
		if !d.proc.Put(sample.NoData()) {
			return errHalted
		}
	}
	return nil
}

func accepted(req ScanRequest, id uint64) bool {
	return req.Filter == nil || req.Filter.Apply(id) == qp.Process
}

func (d *driver) scanBySeries(src Source, req ScanRequest) error {
	for _, id := range req.IDs {
		if !accepted(req, id) {
			continue
		}
		if err := d.ctx.Err(); err != nil {
			return err
		}

		it, err := src.Series(d.ctx, id, req.Range)
		if err != nil {
			return fmt.Errorf("open series %d: %w", id, err)
		}
		err = d.drain(it)
		it.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *driver) drain(it Iterator) error {
	for {
		s, ok := it.Next()
		if !ok {
			return it.Err()
		}
		if err := d.put(s); err != nil {
			return err
		}
	}
}

// scanByTime merges the per-series streams in timestamp order
func (d *driver) scanByTime(src Source, req ScanRequest) error {
	h := &mergeHeap{backward: req.Range.Direction() == qp.Backward}
	defer func() {
		for _, c := range h.items {
			c.it.Close()
		}
	}()

	for i, id := range req.IDs {
		if !accepted(req, id) {
			continue
		}
		it, err := src.Series(d.ctx, id, req.Range)
		if err != nil {
			return fmt.Errorf("open series %d: %w", id, err)
		}
		s, ok := it.Next()
		if !ok {
			err := it.Err()
			it.Close()
			if err != nil {
				return err
			}
			continue
		}
		h.items = append(h.items, &mergeCursor{it: it, head: s, rank: i})
	}
	heap.Init(h)

	for h.Len() > 0 {
		c := h.items[0]
		if err := d.put(c.head); err != nil {
			return err
		}
		if s, ok := c.it.Next(); ok {
			c.head = s
			heap.Fix(h, 0)
			continue
		}
		if err := c.it.Err(); err != nil {
			return err
		}
		c.it.Close()
		heap.Pop(h)
	}
	return nil
}

type mergeCursor struct {
	it   Iterator
	head sample.Sample
	rank int
}

// mergeHeap orders cursors by head timestamp in scan direction, ties
// broken by selection order
type mergeHeap struct {
	items    []*mergeCursor
	backward bool
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.head.Timestamp != b.head.Timestamp {
		if h.backward {
			return a.head.Timestamp > b.head.Timestamp
		}
		return a.head.Timestamp < b.head.Timestamp
	}
	return a.rank < b.rank
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x interface{}) { h.items = append(h.items, x.(*mergeCursor)) }

func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
