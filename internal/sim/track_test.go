package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewTrack_Validation(t *testing.T) {
	_, err := NewTrack(20, 12, 6)
	assert.Error(t, err)
	_, err = NewTrack(20, 12, 0)
	assert.Error(t, err)
	tr, err := NewTrack(20, 12, 3)
	require.NoError(t, err)
	assert.Len(t, tr.Walls(), 8)
}

func TestTrack_Raycast(t *testing.T) {
	tr, err := NewTrack(20, 12, 3)
	require.NoError(t, err)
	start, _ := tr.StartPose()
	assert.Equal(t, r3.Vec{X: -4.5, Z: -1.5}, start)

	tests := []struct {
		name     string
		dir      r3.Vec
		maxRange float64
		want     float64
		ok       bool
	}{
		{"left to outer wall", r3.Vec{X: -1}, 10, 1.5, true},
		{"right to island", r3.Vec{X: 1}, 10, 1.5, true},
		{"forward to top wall", r3.Vec{Z: 1}, 20, 11.5, true},
		{"beyond max range", r3.Vec{Z: 1}, 10, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tr.Raycast(start, tt.dir, tt.maxRange)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, d, 1e-9)
		})
	}
}

func TestTrack_FinishLineSpansLane(t *testing.T) {
	tr, err := NewTrack(20, 12, 3)
	require.NoError(t, err)
	a, b := tr.FinishLine()
	assert.Equal(t, r3.Vec{X: -6}, a)
	assert.Equal(t, r3.Vec{X: -3}, b)
	start, _ := tr.StartPose()
	assert.Less(t, start.Z, 0.0, "start is behind the line")
	assert.Len(t, tr.Centerline(), 4)
}
