package qp

import (
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// StreamProcessor is driven by the storage scan, the only producer of samples.
//
// Start is called before the scan. If it returns false the result is
// already available and Stop must not be called. Put returns false to ask
// the producer to stop; after that the producer calls neither Put nor Stop,
// but may call SetError if it stopped because of a failure. Stop is called
// when production finished without errors, SetError when it failed.
type StreamProcessor interface {
	Start() bool
	Put(s sample.Sample) bool
	Stop()
	SetError(st status.Status)
}

// State of a stream processor
type State int

const (
	Created State = iota
	Started
	Finished
	Errored
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Finished:
		return "finished"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Counters of a single execution
type Counters struct {
	Received int64
	Skipped  int64
}

// lifecycle is the state machine shared by the concrete processors
type lifecycle struct {
	root     Node
	state    State
	counters Counters
}

func (l *lifecycle) start(ready bool) bool {
	if l.state != Created {
		return false
	}
	if !ready {
		// nothing to scan, close the output right away
		l.state = Finished
		l.root.Complete()
		return false
	}
	l.state = Started
	return true
}

func (l *lifecycle) stop() {
	if l.state != Started {
		return
	}
	l.state = Finished
	l.root.Complete()
}

// Close is called by the owner of the processor after the producer
// returned. If the producer stopped early because Put returned false,
// neither Stop nor SetError was called, so the chain is completed here.
// Otherwise Close does nothing.
func (l *lifecycle) Close() {
	l.stop()
}

func (l *lifecycle) setError(st status.Status) {
	if l.state == Finished || l.state == Errored {
		return
	}
	l.state = Errored
	l.root.SetError(st)
}

// State returns the current processor state
func (l *lifecycle) State() State {
	return l.state
}

// Counters returns sample counters collected so far
func (l *lifecycle) Counters() Counters {
	return l.counters
}
