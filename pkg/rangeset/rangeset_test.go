package rangeset

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfRange(t *testing.T) {
	tests := []struct {
		name    string
		lo, hi  int64
		wantErr bool
		size    int64
	}{
		{name: "single index", lo: 5, hi: 5, size: 1},
		{name: "span", lo: 0, hi: 99, size: 100},
		{name: "reversed", lo: 10, hi: 9, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OfRange(tt.lo, tt.hi)
			if tt.wantErr {
				var rangeErr *InvalidRangeError
				require.ErrorAs(t, err, &rangeErr)
				assert.Equal(t, tt.lo, rangeErr.Start)
				assert.True(t, s.IsEmpty())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, s.Size())
			assert.Equal(t, 1, s.RangeCount())
		})
	}
}

func TestOfRanges_Normalizes(t *testing.T) {
	tests := []struct {
		name string
		in   []RangeSet
		want string
	}{
		{name: "no input", in: nil, want: "[]"},
		{name: "overlapping", in: []RangeSet{MustOfRange(0, 5), MustOfRange(3, 9)}, want: "[0-9]"},
		{name: "adjacent", in: []RangeSet{MustOfRange(0, 4), MustOfRange(5, 9)}, want: "[0-9]"},
		{name: "disjoint unsorted", in: []RangeSet{MustOfRange(20, 25), MustOfRange(0, 2)}, want: "[0-2,20-25]"},
		{name: "contained", in: []RangeSet{MustOfRange(0, 100), MustOfRange(10, 20)}, want: "[0-100]"},
		{name: "bridging", in: []RangeSet{MustOfRange(0, 2), MustOfRange(6, 8), MustOfRange(3, 5)}, want: "[0-8]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OfRanges(tt.in...).String())
		})
	}
}

func TestFromRanges(t *testing.T) {
	s, err := FromRanges(Range{10, 12}, Range{0, 1}, Range{2, 3}, Range{11, 20})
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 3}, {10, 20}}, s.Ranges())

	_, err = FromRanges(Range{3, 1})
	var rangeErr *InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestOfItems(t *testing.T) {
	s := OfItems(7, 1, 2, 3, 7, 9)
	assert.Equal(t, "[1-3,7,9]", s.String())
	assert.Equal(t, int64(5), s.Size())
	assert.True(t, OfItems().IsEmpty())
}

func TestContains(t *testing.T) {
	s := OfRanges(MustOfRange(0, 4), MustOfRange(10, 10), MustOfRange(20, 30))

	for _, i := range []int64{0, 4, 10, 20, 25, 30} {
		assert.True(t, s.Contains(i), "should contain %d", i)
	}
	for _, i := range []int64{-1, 5, 9, 11, 19, 31} {
		assert.False(t, s.Contains(i), "should not contain %d", i)
	}
	assert.False(t, Empty().Contains(0))
}

func TestAll_IsLazyAndRestartable(t *testing.T) {
	s := OfRanges(MustOfRange(0, 2), MustOfRange(5, 6))

	assert.Equal(t, []int64{0, 1, 2, 5, 6}, slices.Collect(s.All()))

	var firstTwo []int64
	for i := range s.All() {
		firstTwo = append(firstTwo, i)
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []int64{0, 1}, firstTwo)

	// A fresh range starts over.
	assert.Equal(t, []int64{0, 1, 2, 5, 6}, slices.Collect(s.All()))
}

func TestAll_HugeSetStopsEarly(t *testing.T) {
	s := MustOfRange(0, 1<<40)
	count := 0
	for range s.All() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(1<<40+1), s.Size())
}

func TestSetOperations(t *testing.T) {
	a := OfRanges(MustOfRange(0, 10), MustOfRange(20, 30))
	b := OfRanges(MustOfRange(5, 22), MustOfRange(29, 40))

	assert.Equal(t, "[0-40]", a.Union(b).String())
	assert.Equal(t, "[0-4,23-28]", a.Subtract(b).String())
	assert.Equal(t, "[5-10,20-22,29-30]", a.Intersect(b).String())
	assert.Equal(t, "[11-19,31-40]", b.Subtract(a).String())
}

func TestSubtract_Splits(t *testing.T) {
	a := MustOfRange(0, 10)
	b := OfItems(2, 3, 5)
	assert.Equal(t, "[0-1,4,6-10]", a.Subtract(b).String())
	assert.Equal(t, "[0-10]", a.String(), "receiver must not change")
}

func TestLaws(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for n := 0; n < 200; n++ {
		a := randomSet(r)
		b := randomSet(r)

		assert.True(t, a.Union(a).Equal(a), "A ∪ A == A")
		assert.True(t, a.Subtract(a).IsEmpty(), "A − A == ∅")
		assert.True(t, a.Union(b).Subtract(b).Subtract(a).IsEmpty(), "(A ∪ B) − B ⊆ A")
		assert.True(t, a.Intersect(b).Equal(b.Intersect(a)), "∩ commutes")
		assert.Equal(t, a.Size(), a.Subtract(b).Size()+a.Intersect(b).Size())

		assertNormalized(t, a.Union(b))
		assertNormalized(t, a.Subtract(b))
		assertNormalized(t, a.Intersect(b))

		// Compare with a brute-force model.
		want := toMap(a)
		for i := range b.All() {
			delete(want, i)
		}
		assert.Equal(t, want, toMap(a.Subtract(b)))
	}
}

func TestSize_IsSumOfIntervals(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for n := 0; n < 100; n++ {
		s := randomSet(r)
		var sum int64
		for _, rg := range s.Ranges() {
			sum += rg.End - rg.Start + 1
		}
		assert.Equal(t, sum, s.Size())
		assert.Equal(t, int64(len(toMap(s))), s.Size())
	}
}

func TestFirstLast(t *testing.T) {
	_, ok := Empty().First()
	assert.False(t, ok)

	s := OfRanges(MustOfRange(3, 4), MustOfRange(9, 12))
	first, ok := s.First()
	require.True(t, ok)
	last, _ := s.Last()
	assert.Equal(t, int64(3), first)
	assert.Equal(t, int64(12), last)
}

func TestJSON(t *testing.T) {
	s := OfRanges(MustOfRange(0, 3), MustOfRange(8, 8))
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[[0,3],[8,8]]`, string(data))

	var back RangeSet
	require.NoError(t, json.Unmarshal([]byte(`[[8,8],[0,3],[4,5]]`), &back))
	assert.Equal(t, "[0-5,8]", back.String())

	assert.Error(t, json.Unmarshal([]byte(`[[5,1]]`), &back))
}

func randomSet(r *rand.Rand) RangeSet {
	var sets []RangeSet
	for k := r.IntN(6); k > 0; k-- {
		lo := r.Int64N(200)
		sets = append(sets, MustOfRange(lo, lo+r.Int64N(15)))
	}
	return OfRanges(sets...)
}

func toMap(s RangeSet) map[int64]struct{} {
	m := make(map[int64]struct{})
	for i := range s.All() {
		m[i] = struct{}{}
	}
	return m
}

func assertNormalized(t *testing.T, s RangeSet) {
	t.Helper()
	ranges := s.Ranges()
	for i, r := range ranges {
		assert.LessOrEqual(t, r.Start, r.End)
		if i > 0 {
			assert.Greater(t, r.Start, ranges[i-1].End+1, "ranges must be sorted and non-adjacent")
		}
	}
}
