package stats

import (
	"math"
	"testing"
)

func TestAverage(t *testing.T) {
	var s Average
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(x)
	}
	if s.Count != 8 {
		t.Error("count: got", s.Count)
	}
	if s.Mean != 5 {
		t.Error("mean: got", s.Mean)
	}
	// sample stddev of the series is sqrt(32/7)
	if math.Abs(s.StdDev-math.Sqrt(32.0/7.0)) > 1e-12 {
		t.Error("stddev: got", s.StdDev)
	}
}

func TestAverageSingleValue(t *testing.T) {
	var s Average
	s.Add(3.5)
	if s.Mean != 3.5 || s.StdDev != 0 {
		t.Error("got", s.Mean, s.StdDev)
	}
}
