package sample

import (
	"fmt"
	"math"
)

// PayloadType identifies what a sample carries
type PayloadType uint8

const (
	// Float is a real measurement
	Float PayloadType = iota
	// Empty is a pure flush signal, carries no data
	Empty
	// LoMargin marks a window boundary crossed while scanning backward
	LoMargin
	// HiMargin marks a window boundary crossed while scanning forward
	HiMargin
)

func (t PayloadType) String() string {
	switch t {
	case Float:
		return "float"
	case Empty:
		return "empty"
	case LoMargin:
		return "lo-margin"
	case HiMargin:
		return "hi-margin"
	default:
		return fmt.Sprintf("payload(%d)", uint8(t))
	}
}

// Payload is a measurement or a marker. Value is meaningless for markers.
type Payload struct {
	Type  PayloadType
	Value float64
}

// Sample is the unit flowing through the pipeline
type Sample struct {
	Timestamp int64
	ParamID   uint64
	Payload   Payload
}

// New creates a data sample
func New(ts int64, id uint64, value float64) Sample {
	return Sample{
		Timestamp: ts,
		ParamID:   id,
		Payload:   Payload{Type: Float, Value: value},
	}
}

// NoData returns the flush sample. Producers send it periodically so
// buffering nodes get a chance to emit output even when no data arrives.
func NoData() Sample {
	return Sample{Payload: Payload{Type: Empty}}
}

// Margin creates a window boundary marker stamped with ts
func Margin(t PayloadType, ts int64) Sample {
	return Sample{
		Timestamp: ts,
		Payload:   Payload{Type: t, Value: math.NaN()},
	}
}

// IsData reports whether s carries a real measurement
func (s Sample) IsData() bool {
	return s.Payload.Type == Float
}

// IsMarker reports whether s is a window boundary marker
func (s Sample) IsMarker() bool {
	return s.Payload.Type == LoMargin || s.Payload.Type == HiMargin
}

// IsEmpty reports whether s is a flush signal
func (s Sample) IsEmpty() bool {
	return s.Payload.Type == Empty
}

func (s Sample) String() string {
	if s.IsData() {
		return fmt.Sprintf("%d@%d=%g", s.ParamID, s.Timestamp, s.Payload.Value)
	}
	return fmt.Sprintf("%s@%d", s.Payload.Type, s.Timestamp)
}
