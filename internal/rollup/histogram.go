package rollup

import (
	"fmt"
	"math"
	"sort"
)

// Buckets is the frozen latency bucket boundary set, in milliseconds.
// Changing it would make historical rollup rows incomparable, so it
// never changes. A histogram has len(Buckets)+1 counters; the last one
// is the overflow bucket.
var Buckets = []int64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// NewHistogram returns an empty histogram.
func NewHistogram() []int64 {
	return make([]int64, len(Buckets)+1)
}

// Observe records one latency sample. Sample v lands in the first
// bucket whose boundary exceeds it.
func Observe(hist []int64, v int64) {
	for i, b := range Buckets {
		if v < b {
			hist[i]++
			return
		}
	}
	hist[len(Buckets)]++
}

// MergeHistograms sums two histograms element-wise. Both must have the
// canonical length.
func MergeHistograms(dst, src []int64) error {
	if len(dst) != len(Buckets)+1 || len(src) != len(Buckets)+1 {
		return fmt.Errorf("histogram length %d/%d, want %d", len(dst), len(src), len(Buckets)+1)
	}
	for i := range src {
		dst[i] += src[i]
	}
	return nil
}

// Percentile computes a nearest-rank percentile over raw samples. The
// input is sorted in place. Returns nil for an empty sample.
func Percentile(samples []int64, p float64) *int64 {
	if len(samples) == 0 {
		return nil
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	rank := int(math.Ceil(float64(len(samples)) * p))
	if rank < 1 {
		rank = 1
	}
	if rank > len(samples) {
		rank = len(samples)
	}
	v := samples[rank-1]
	return &v
}

// PercentileFromHistogram estimates a percentile from bucket counts by
// returning the upper boundary of the bucket containing the target
// rank. Overflow samples report the last boundary.
func PercentileFromHistogram(hist []int64, p float64) *int64 {
	var total int64
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return nil
	}
	rank := int64(math.Ceil(float64(total) * p))
	if rank < 1 {
		rank = 1
	}

	var cum int64
	for i, c := range hist {
		cum += c
		if cum >= rank {
			v := Buckets[len(Buckets)-1]
			if i < len(Buckets) {
				v = Buckets[i]
			}
			return &v
		}
	}
	v := Buckets[len(Buckets)-1]
	return &v
}
