package monitor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
)

func TestComputeRangeStats(t *testing.T) {
	nan := float32(math.NaN())
	s := ComputeRangeStats([]float32{4, nan, 2, 1, 3}, l2scan.PolicyNaN)
	assert.Equal(t, 5, s.Slots)
	assert.Equal(t, 4, s.Returns)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(5.0/3), s.StdDev, 1e-9)
	assert.Equal(t, 2.0, s.Median)
	assert.Equal(t, 4.0, s.P95)
}

func TestComputeRangeStats_ZeroFill(t *testing.T) {
	s := ComputeRangeStats([]float32{0, 5, 0}, l2scan.PolicyZeroFill)
	assert.Equal(t, 1, s.Returns)
	assert.Equal(t, 5.0, s.Mean)
	assert.Zero(t, s.StdDev)
}

func TestComputeRangeStats_Empty(t *testing.T) {
	nan := float32(math.NaN())
	s := ComputeRangeStats([]float32{nan, nan}, l2scan.PolicyNaN)
	assert.Equal(t, RangeStats{Slots: 2}, s)
}

func TestProject(t *testing.T) {
	g, err := l2scan.GeometryFromDegrees(3, -90, 90, 0.1, 10, 40)
	assert.NoError(t, err)
	pts := project([]float32{1, float32(math.NaN()), 2}, g, l2scan.PolicyNaN)
	if assert.Len(t, pts, 2) {
		// Slot 0 is -90 deg: to the right, -y.
		assert.InDelta(t, -1, pts[0].Y, 1e-9)
		assert.InDelta(t, 2, pts[1].Y, 1e-9)
		assert.Equal(t, 2, pts[1].Slot)
	}
}
