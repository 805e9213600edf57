package qp

import (
	"fmt"
)

// Selection is the set of series and the time span a query covers.
// Begin > End encodes a backward scan.
type Selection struct {
	IDs   []uint64
	Begin int64
	End   int64
}

// GroupBy maps persistent series ids to transient group ids
type GroupBy struct {
	Enabled      bool
	TransientMap map[uint64]uint64
}

// OrderBy defines output order
type OrderBy int

const (
	// OrderBySeries emits all samples of one id before moving to the next
	OrderBySeries OrderBy = iota
	// OrderByTime interleaves ids in timestamp order
	OrderByTime
)

func (o OrderBy) String() string {
	if o == OrderByTime {
		return "time"
	}
	return "series"
}

// ReshapeRequest defines what should be sent to the query processor
type ReshapeRequest struct {
	Select  Selection
	GroupBy GroupBy
	OrderBy OrderBy
}

// Validate checks the request invariants
func (r *ReshapeRequest) Validate() error {
	if r.OrderBy != OrderBySeries && r.OrderBy != OrderByTime {
		return fmt.Errorf("%w: unknown order %d", ErrInvalidRequest, r.OrderBy)
	}
	if !r.GroupBy.Enabled {
		return nil
	}

	selected := make(map[uint64]struct{}, len(r.Select.IDs))
	for _, id := range r.Select.IDs {
		selected[id] = struct{}{}
	}
	for id := range r.GroupBy.TransientMap {
		if _, ok := selected[id]; !ok {
			return fmt.Errorf("%w: grouped id %d is not selected", ErrInvalidRequest, id)
		}
	}
	return nil
}

// Range returns the scan range of the selection
func (r *ReshapeRequest) Range() QueryRange {
	return QueryRange{Begin: r.Select.Begin, End: r.Select.End}
}

// Direction of a scan
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// QueryRange is a half-open range in scan order: [Begin, End) when scanning
// forward, (End, Begin] when scanning backward.
type QueryRange struct {
	Begin int64
	End   int64
}

// Direction returns the scan direction
func (q QueryRange) Direction() Direction {
	if q.Begin > q.End {
		return Backward
	}
	return Forward
}

// Contains reports whether ts falls inside the range
func (q QueryRange) Contains(ts int64) bool {
	if q.Direction() == Backward {
		return ts <= q.Begin && ts > q.End
	}
	return ts >= q.Begin && ts < q.End
}

// Lower returns the smallest timestamp the range can contain
func (q QueryRange) Lower() int64 {
	if q.Direction() == Backward {
		return q.End + 1
	}
	return q.Begin
}

// Upper returns the largest timestamp the range can contain
func (q QueryRange) Upper() int64 {
	if q.Direction() == Backward {
		return q.Begin
	}
	return q.End - 1
}
