// Package terminal holds the sinks that end a node chain.
package terminal

import (
	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// Collector buffers output samples in memory
type Collector struct {
	// KeepMarkers retains boundary and flush markers in the output
	KeepMarkers bool
	// MaxRows stops the producer once reached (0 = unlimited)
	MaxRows int

	samples   []sample.Sample
	completed int
	truncated bool
	status    status.Status
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Put(s sample.Sample) bool {
	if !s.IsData() && !c.KeepMarkers {
		return true
	}
	c.samples = append(c.samples, s)
	if c.MaxRows > 0 && len(c.samples) >= c.MaxRows {
		c.truncated = true
		return false
	}
	return true
}

func (c *Collector) Complete() {
	c.completed++
}

func (c *Collector) SetError(st status.Status) {
	c.status = st
	c.samples = nil
}

func (c *Collector) Requirements() qp.Requirements {
	return qp.RequireTerminal | qp.RequireGroupBy
}

// Samples returns collected output
func (c *Collector) Samples() []sample.Sample {
	return c.samples
}

// Completed returns how many times Complete was called
func (c *Collector) Completed() int {
	return c.completed
}

// Truncated reports whether MaxRows cut the output short
func (c *Collector) Truncated() bool {
	return c.truncated
}

// Status returns the error status, Success if none was reported
func (c *Collector) Status() status.Status {
	return c.status
}
