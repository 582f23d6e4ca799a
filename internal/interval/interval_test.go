package interval

import (
	"reflect"
	"testing"
)

func TestMergeCoalescesAndSorts(t *testing.T) {
	in := []Interval{{50, 60}, {10, 20}, {15, 30}, {30, 40}, {70, 70}, {90, 80}}
	got := Merge(in)
	want := []Interval{{10, 40}, {50, 60}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %v, want %v", got, want)
	}

	// Output must be strictly ordered and non-overlapping.
	for i := 1; i < len(got); i++ {
		if got[i-1].End >= got[i].Start {
			t.Errorf("intervals %d and %d overlap or touch: %v", i-1, i, got)
		}
	}
	for _, iv := range got {
		if iv.Start >= iv.End {
			t.Errorf("degenerate interval %v", iv)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	in := []Interval{{0, 5}, {3, 10}, {20, 30}, {25, 40}}
	once := Merge(in)
	twice := Merge(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Merge not idempotent: %v vs %v", once, twice)
	}
	if Sum(once) != Sum(twice) {
		t.Fatalf("Sum changed across merges: %d vs %d", Sum(once), Sum(twice))
	}
}

func TestOverlapSymmetricAndBounded(t *testing.T) {
	a := Merge([]Interval{{0, 10}, {20, 30}})
	b := Merge([]Interval{{5, 25}})

	ab := Overlap(a, b)
	ba := Overlap(b, a)
	if ab != ba {
		t.Fatalf("Overlap not symmetric: %d vs %d", ab, ba)
	}
	if want := int64(10); ab != want {
		t.Fatalf("Overlap = %d, want %d", ab, want)
	}
	if ab > Sum(a) || ab > Sum(b) {
		t.Fatalf("Overlap %d exceeds min(sum(a)=%d, sum(b)=%d)", ab, Sum(a), Sum(b))
	}
}

func TestOverlapDisjoint(t *testing.T) {
	a := []Interval{{0, 10}}
	b := []Interval{{10, 20}}
	if got := Overlap(a, b); got != 0 {
		t.Fatalf("Overlap of touching intervals = %d, want 0", got)
	}
}

func TestClip(t *testing.T) {
	bounds := Interval{10, 20}

	if iv, ok := Clip(Interval{5, 15}, bounds); !ok || iv != (Interval{10, 15}) {
		t.Errorf("Clip left overhang = %v, %v", iv, ok)
	}
	if iv, ok := Clip(Interval{15, 30}, bounds); !ok || iv != (Interval{15, 20}) {
		t.Errorf("Clip right overhang = %v, %v", iv, ok)
	}
	if _, ok := Clip(Interval{0, 10}, bounds); ok {
		t.Error("Clip of disjoint interval should report no width")
	}
	if _, ok := Clip(Interval{25, 30}, bounds); ok {
		t.Error("Clip past bounds should report no width")
	}
}

func TestBuildUnknownGapBetweenChecks(t *testing.T) {
	// Checks at t=0 and t=240 with a 60s interval: coverage is
	// [0,120) and [240,360), so [120,240) is unknown.
	checks := []Check{{At: 0}, {At: 240}}
	got := BuildUnknown(0, 86400, 60, checks)

	if len(got) < 1 {
		t.Fatalf("BuildUnknown returned nothing")
	}
	if got[0] != (Interval{120, 240}) {
		t.Fatalf("first unknown interval = %v, want [120,240)", got[0])
	}
	if Sum(got) < 120 {
		t.Fatalf("unknown sum = %d, want >= 120", Sum(got))
	}
	// Tail after the last check's coverage is unknown too.
	last := got[len(got)-1]
	if last != (Interval{360, 86400}) {
		t.Fatalf("tail unknown interval = %v, want [360,86400)", last)
	}
}

func TestBuildUnknownNoChecks(t *testing.T) {
	got := BuildUnknown(100, 200, 60, nil)
	want := []Interval{{100, 200}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildUnknown = %v, want %v", got, want)
	}
}

func TestBuildUnknownPreRangeCoverage(t *testing.T) {
	// A check before the range start extends its coverage into the
	// range.
	checks := []Check{{At: 90}}
	got := BuildUnknown(100, 400, 60, checks)
	want := []Interval{{210, 400}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildUnknown = %v, want %v", got, want)
	}
}

func TestBuildUnknownStatusUnknownDoesNotCover(t *testing.T) {
	checks := []Check{{At: 0, Unknown: true}}
	got := BuildUnknown(0, 120, 60, checks)
	want := []Interval{{0, 120}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildUnknown = %v, want %v", got, want)
	}
}

func TestBuildUnknownFullCoverage(t *testing.T) {
	checks := []Check{{At: 0}, {At: 60}, {At: 120}}
	if got := BuildUnknown(0, 240, 60, checks); got != nil {
		t.Fatalf("BuildUnknown = %v, want none", got)
	}
}
