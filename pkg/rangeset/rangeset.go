// Package rangeset provides an immutable, compact set of int64 row indices
// stored as sorted, disjoint, closed intervals.
//
// A RangeSet is a value: every operation returns a new set and never touches
// its receiver, so sets can be shared between goroutines without locking.
package rangeset

import (
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
)

// Range is a closed interval [Start, End].
type Range struct {
	Start int64
	End   int64
}

// Size returns the number of indices covered by the range.
func (r Range) Size() int64 { return r.End - r.Start + 1 }

// InvalidRangeError is returned when a range is constructed with End < Start.
type InvalidRangeError struct {
	Start int64
	End   int64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range [%d, %d]: end is before start", e.Start, e.End)
}

// RangeSet is an ordered set of non-overlapping, non-adjacent closed ranges.
// The zero value is the empty set.
type RangeSet struct {
	ranges []Range
}

// Empty returns the empty set.
func Empty() RangeSet { return RangeSet{} }

// OfRange returns a set holding the single interval [lo, hi].
func OfRange(lo, hi int64) (RangeSet, error) {
	if hi < lo {
		return RangeSet{}, &InvalidRangeError{Start: lo, End: hi}
	}
	return RangeSet{ranges: []Range{{Start: lo, End: hi}}}, nil
}

// MustOfRange is like OfRange but panics on an invalid range.
// Intended for literals in tests and constants.
func MustOfRange(lo, hi int64) RangeSet {
	s, err := OfRange(lo, hi)
	if err != nil {
		panic(err)
	}
	return s
}

// OfItems returns a set holding the given indices.
func OfItems(items ...int64) RangeSet {
	if len(items) == 0 {
		return RangeSet{}
	}
	ranges := make([]Range, len(items))
	for i, item := range items {
		ranges[i] = Range{Start: item, End: item}
	}
	return RangeSet{ranges: normalize(ranges)}
}

// FromRanges builds a normalized set from arbitrary, possibly overlapping ranges.
func FromRanges(ranges ...Range) (RangeSet, error) {
	if len(ranges) == 0 {
		return RangeSet{}, nil
	}
	cp := make([]Range, len(ranges))
	for i, r := range ranges {
		if r.End < r.Start {
			return RangeSet{}, &InvalidRangeError{Start: r.Start, End: r.End}
		}
		cp[i] = r
	}
	return RangeSet{ranges: normalize(cp)}, nil
}

// OfRanges returns the union of all given sets.
func OfRanges(sets ...RangeSet) RangeSet {
	var result RangeSet
	for _, s := range sets {
		result = result.Union(s)
	}
	return result
}

// normalize sorts ranges in place and merges overlapping or adjacent ones.
func normalize(ranges []Range) []Range {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})
	out := ranges[:0]
	for _, r := range ranges {
		if n := len(out); n > 0 && r.Start <= out[n-1].End+1 {
			if r.End > out[n-1].End {
				out[n-1].End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// IsEmpty reports whether the set holds no indices.
func (s RangeSet) IsEmpty() bool { return len(s.ranges) == 0 }

// Size returns the number of indices in the set. It is linear in the number
// of intervals, not in the number of indices.
func (s RangeSet) Size() int64 {
	var n int64
	for _, r := range s.ranges {
		n += r.Size()
	}
	return n
}

// RangeCount returns the number of disjoint intervals.
func (s RangeSet) RangeCount() int { return len(s.ranges) }

// Ranges returns a copy of the intervals in ascending order.
func (s RangeSet) Ranges() []Range {
	if len(s.ranges) == 0 {
		return nil
	}
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// First returns the smallest index. ok is false for the empty set.
func (s RangeSet) First() (int64, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[0].Start, true
}

// Last returns the largest index. ok is false for the empty set.
func (s RangeSet) Last() (int64, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[len(s.ranges)-1].End, true
}

// Contains reports whether i is in the set.
func (s RangeSet) Contains(i int64) bool {
	idx := sort.Search(len(s.ranges), func(k int) bool {
		return s.ranges[k].End >= i
	})
	return idx < len(s.ranges) && s.ranges[idx].Start <= i
}

// All returns an ascending sequence over every index in the set.
// The sequence is lazy and may be stopped early; ranging over it again
// starts from the beginning.
func (s RangeSet) All() iter.Seq[int64] {
	ranges := s.ranges
	return func(yield func(int64) bool) {
		for _, r := range ranges {
			for i := r.Start; i <= r.End; i++ {
				if !yield(i) {
					return
				}
			}
		}
	}
}

// Union returns the indices present in either set.
func (s RangeSet) Union(other RangeSet) RangeSet {
	if len(other.ranges) == 0 {
		return s
	}
	if len(s.ranges) == 0 {
		return other
	}

	out := make([]Range, 0, len(s.ranges)+len(other.ranges))
	push := func(r Range) {
		if n := len(out); n > 0 && r.Start <= out[n-1].End+1 {
			if r.End > out[n-1].End {
				out[n-1].End = r.End
			}
			return
		}
		out = append(out, r)
	}

	a, b := s.ranges, other.ranges
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Start <= b[j].Start {
			push(a[i])
			i++
		} else {
			push(b[j])
			j++
		}
	}
	for ; i < len(a); i++ {
		push(a[i])
	}
	for ; j < len(b); j++ {
		push(b[j])
	}
	return RangeSet{ranges: out}
}

// Subtract returns the indices of s that are not in other.
func (s RangeSet) Subtract(other RangeSet) RangeSet {
	if len(s.ranges) == 0 || len(other.ranges) == 0 {
		return s
	}

	var out []Range
	b := other.ranges
	j := 0
	for _, r := range s.ranges {
		cur := r
		// skip removals entirely before this range
		for j < len(b) && b[j].End < cur.Start {
			j++
		}
		k := j
		keep := true
		for k < len(b) && b[k].Start <= cur.End {
			if b[k].Start > cur.Start {
				out = append(out, Range{Start: cur.Start, End: b[k].Start - 1})
			}
			if b[k].End >= cur.End {
				keep = false
				break
			}
			cur.Start = b[k].End + 1
			k++
		}
		if keep {
			out = append(out, cur)
		}
	}
	return RangeSet{ranges: out}
}

// Intersect returns the indices present in both sets.
func (s RangeSet) Intersect(other RangeSet) RangeSet {
	if len(s.ranges) == 0 || len(other.ranges) == 0 {
		return RangeSet{}
	}

	var out []Range
	a, b := s.ranges, other.ranges
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].Start, b[j].Start)
		hi := min(a[i].End, b[j].End)
		if lo <= hi {
			out = append(out, Range{Start: lo, End: hi})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return RangeSet{ranges: out}
}

// Equal reports whether both sets hold exactly the same indices.
func (s RangeSet) Equal(other RangeSet) bool {
	if len(s.ranges) != len(other.ranges) {
		return false
	}
	for i := range s.ranges {
		if s.ranges[i] != other.ranges[i] {
			return false
		}
	}
	return true
}

// String renders the set as "[0-9,12,20-25]".
func (s RangeSet) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, r := range s.ranges {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(r.Start, 10))
		if r.End != r.Start {
			b.WriteByte('-')
			b.WriteString(strconv.FormatInt(r.End, 10))
		}
	}
	b.WriteByte(']')
	return b.String()
}

// MarshalJSON encodes the set as a list of [start, end] pairs.
func (s RangeSet) MarshalJSON() ([]byte, error) {
	pairs := make([][2]int64, len(s.ranges))
	for i, r := range s.ranges {
		pairs[i] = [2]int64{r.Start, r.End}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes a list of [start, end] pairs, normalizing the result.
func (s *RangeSet) UnmarshalJSON(data []byte) error {
	var pairs [][2]int64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	ranges := make([]Range, len(pairs))
	for i, p := range pairs {
		ranges[i] = Range{Start: p[0], End: p[1]}
	}
	set, err := FromRanges(ranges...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
