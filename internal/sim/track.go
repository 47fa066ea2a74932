package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Segment is a wall on the ground plane. Only X and Z are used.
type Segment struct {
	A, B r3.Vec
}

// Track is a closed rectangular circuit centred on the origin: an outer wall
// and an inner island, with a lane of constant width between them. The long
// side runs along z.
type Track struct {
	Length float64 // outer wall extent along z, m
	Width  float64 // outer wall extent along x, m
	Lane   float64 // gap between the outer wall and the island, m

	walls []Segment
}

// NewTrack validates the dimensions and builds the walls.
func NewTrack(length, width, lane float64) (*Track, error) {
	if !(lane > 0) || !(2*lane < length) || !(2*lane < width) {
		return nil, fmt.Errorf("lane width %.2f does not fit a %.2fx%.2f track", lane, width, length)
	}
	t := &Track{Length: length, Width: width, Lane: lane}
	hx, hz := width/2, length/2
	t.walls = append(rectangle(hx, hz), rectangle(hx-lane, hz-lane)...)
	return t, nil
}

func rectangle(hx, hz float64) []Segment {
	c := []r3.Vec{{X: -hx, Z: -hz}, {X: hx, Z: -hz}, {X: hx, Z: hz}, {X: -hx, Z: hz}}
	return []Segment{{c[0], c[1]}, {c[1], c[2]}, {c[2], c[3]}, {c[3], c[0]}}
}

// Walls returns the wall segments, outer wall first.
func (t *Track) Walls() []Segment {
	return t.walls
}

// StartPose is a point in the middle of the left lane, just behind the
// finish line, facing +z.
func (t *Track) StartPose() (position r3.Vec, yaw float64) {
	return r3.Vec{X: -t.Width/2 + t.Lane/2, Z: -t.Lane / 2}, 0
}

// FinishLine spans the left lane at z = 0.
func (t *Track) FinishLine() (a, b r3.Vec) {
	return r3.Vec{X: -t.Width / 2}, r3.Vec{X: -t.Width/2 + t.Lane}
}

// Centerline returns the corners of the lane centre in driving order from
// StartPose: up the left side, then right turns all the way round.
func (t *Track) Centerline() []r3.Vec {
	hx, hz := t.Width/2-t.Lane/2, t.Length/2-t.Lane/2
	return []r3.Vec{{X: -hx, Z: hz}, {X: hx, Z: hz}, {X: hx, Z: -hz}, {X: -hx, Z: -hz}}
}

// Raycast returns the distance from origin along dir (unit, ground plane) to
// the nearest wall within maxRange.
func (t *Track) Raycast(origin, dir r3.Vec, maxRange float64) (float64, bool) {
	best := math.Inf(1)
	for _, w := range t.walls {
		if d, ok := intersect(origin, dir, w); ok && d < best {
			best = d
		}
	}
	if best > maxRange {
		return 0, false
	}
	return best, true
}

// intersect solves origin + t*dir = A + u*(B-A) for t >= 0, u in [0, 1].
func intersect(origin, dir r3.Vec, s Segment) (float64, bool) {
	e := r3.Sub(s.B, s.A)
	denom := cross2(dir, e)
	if denom == 0 {
		return 0, false
	}
	ap := r3.Sub(s.A, origin)
	t := cross2(ap, e) / denom
	u := cross2(ap, dir) / denom
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

func cross2(v, w r3.Vec) float64 {
	return v.X*w.Z - v.Z*w.X
}
