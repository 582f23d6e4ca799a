package timeutil

import "testing"

func TestFloorMinute(t *testing.T) {
	for _, tc := range []struct{ in, want int64 }{
		{0, 0},
		{59, 0},
		{60, 60},
		{1736937625, 1736937600},
	} {
		if got := FloorMinute(tc.in); got != tc.want {
			t.Errorf("FloorMinute(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDayBoundaries(t *testing.T) {
	// 2025-01-15T10:00:25Z
	ts := int64(1736935225)
	dayStart := int64(1736899200) // 2025-01-15T00:00:00Z

	if got := DayStart(ts); got != dayStart {
		t.Errorf("DayStart = %d, want %d", got, dayStart)
	}
	if got := PrevDayStart(ts); got != dayStart-Day {
		t.Errorf("PrevDayStart = %d, want %d", got, dayStart-Day)
	}
	if got := DayStart(dayStart); got != dayStart {
		t.Errorf("DayStart of a midnight = %d, want %d", got, dayStart)
	}
}

func TestRangeSeconds(t *testing.T) {
	for _, tc := range []struct {
		token string
		want  int64
	}{
		{"24h", 24 * Hour},
		{"7d", 7 * Day},
		{"30d", 30 * Day},
		{"90d", 90 * Day},
	} {
		got, err := RangeSeconds(tc.token)
		if err != nil || got != tc.want {
			t.Errorf("RangeSeconds(%q) = %d, %v, want %d", tc.token, got, err, tc.want)
		}
	}

	if _, err := RangeSeconds("1h"); err == nil {
		t.Error("RangeSeconds accepted an invalid token")
	}
}
