package uihelpers

import (
	"testing"
)

func TestComputeChartDimensions(t *testing.T) {
	cases := []struct {
		in    int
		wantW int
	}{
		{100, 800},
		{799, 800},
		{800, 800},
		{1600, 1600},
	}
	for _, c := range cases {
		w, h := ComputeChartDimensions(c.in)
		if w != c.wantW {
			t.Fatalf("input %d => width %d want %d", c.in, w, c.wantW)
		}
		if h < 280 || h > 520 {
			t.Fatalf("height clamp violated for input %d => h=%d", c.in, h)
		}
	}
}

func TestNiceBoundsContainData(t *testing.T) {
	cases := [][2]float64{
		{-10.36, -10.1},
		{0, 1},
		{0.001, 0.002},
		{5, 5}, // degenerate span
	}
	for _, c := range cases {
		lo, hi := NiceBounds(c[0], c[1])
		if lo > c[0] || hi < c[1] {
			t.Fatalf("bounds [%v,%v] clip data [%v,%v]", lo, hi, c[0], c[1])
		}
		if hi <= lo {
			t.Fatalf("empty range for input %v: [%v,%v]", c, lo, hi)
		}
	}
}

func TestBuildNumericTicksSpanRange(t *testing.T) {
	ticks := BuildNumericTicks(-10.4, -10.0, 6)
	if len(ticks) < 2 {
		t.Fatalf("too few ticks: %v", ticks)
	}
	if ticks[0] > -10.4 || ticks[len(ticks)-1] < -10.0 {
		t.Fatalf("ticks %v do not span [-10.4,-10.0]", ticks)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] <= ticks[i-1] {
			t.Fatalf("ticks not increasing: %v", ticks)
		}
	}
}

func TestBuildStepTicks(t *testing.T) {
	short := BuildStepTicks(4, 10)
	want := []float64{0, 1, 2, 3, 4}
	if len(short) != len(want) {
		t.Fatalf("got %v want %v", short, want)
	}
	for i := range want {
		if short[i] != want[i] {
			t.Fatalf("got %v want %v", short, want)
		}
	}

	long := BuildStepTicks(200, 12)
	if len(long) > 14 {
		t.Fatalf("long run not thinned: %d ticks", len(long))
	}
	if long[0] != 0 || long[len(long)-1] != 200 {
		t.Fatalf("thinned ticks must keep endpoints: %v", long)
	}

	single := BuildStepTicks(0, 8)
	if len(single) < 2 {
		t.Fatalf("single step needs a padded axis: %v", single)
	}
}

func TestFormatNumericTick(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1234, "1234"},
		{12.34, "12.3"},
		{1.234, "1.23"},
		{0.1234, "0.123"},
		{0.00123, "0.0012"},
	}
	for _, c := range cases {
		if got := FormatNumericTick(c.in); got != c.want {
			t.Fatalf("FormatNumericTick(%v)=%q want %q", c.in, got, c.want)
		}
	}
}
