package core

import (
	"fmt"

	"github.com/leapstack-labs/gridview/pkg/rangeset"
)

// DeltaEvent describes rows added, removed or updated since the last event.
// Indices are in the subscription's row index space.
type DeltaEvent struct {
	Added   rangeset.RangeSet
	Removed rangeset.RangeSet
	Updated rangeset.RangeSet

	// Rows carries accessors for added and updated rows, keyed by row index.
	Rows map[int64]RowAccessor
}

// IsEmpty reports whether the event carries no changes.
func (e DeltaEvent) IsEmpty() bool {
	return e.Added.IsEmpty() && e.Removed.IsEmpty() && e.Updated.IsEmpty()
}

// Validate checks that no row appears in more than one of the three sets.
func (e DeltaEvent) Validate() error {
	if s := e.Added.Intersect(e.Removed); !s.IsEmpty() {
		return fmt.Errorf("rows %s are both added and removed", s)
	}
	if s := e.Added.Intersect(e.Updated); !s.IsEmpty() {
		return fmt.Errorf("rows %s are both added and updated", s)
	}
	if s := e.Removed.Intersect(e.Updated); !s.IsEmpty() {
		return fmt.Errorf("rows %s are both removed and updated", s)
	}
	return nil
}
