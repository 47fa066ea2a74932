package monitor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
)

// RangeStats summarises the returns of one scan.
type RangeStats struct {
	Slots   int     `json:"slots"`
	Returns int     `json:"returns"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Median  float64 `json:"median"`
	P95     float64 `json:"p95"`
}

// ComputeRangeStats summarises the slots of ranges that hold a return under
// policy. The zero RangeStats (with Slots set) is returned for a scan with
// no returns.
func ComputeRangeStats(ranges []float32, policy l2scan.Policy) RangeStats {
	s := RangeStats{Slots: len(ranges)}
	xs := make([]float64, 0, len(ranges))
	for _, r := range ranges {
		if l2scan.IsNoReturn(policy, r) || math.IsInf(float64(r), 0) {
			continue
		}
		xs = append(xs, float64(r))
	}
	s.Returns = len(xs)
	if len(xs) == 0 {
		return s
	}
	sort.Float64s(xs)
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		s.StdDev = 0
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, xs, nil)
	return s
}

// point is a return projected into the sensor's plane, x forward, y left.
type point struct {
	Slot  int
	Angle float64 // rad
	X, Y  float64 // m
	Range float64 // m
}

func project(ranges []float32, geom l2scan.Geometry, policy l2scan.Policy) []point {
	pts := make([]point, 0, len(ranges))
	for i, r := range ranges {
		if l2scan.IsNoReturn(policy, r) || math.IsInf(float64(r), 0) {
			continue
		}
		a := geom.SlotAngle(i)
		d := float64(r)
		pts = append(pts, point{Slot: i, Angle: a, X: d * math.Cos(a), Y: d * math.Sin(a), Range: d})
	}
	return pts
}
