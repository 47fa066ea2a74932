package l2scan

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/simbridge/internal/lidar/l1hits"
)

// ErrRayIndexOutOfRange marks a corrupt hit buffer: a record names a ray
// outside the scan. The whole buffer is rejected.
var ErrRayIndexOutOfRange = errors.New("ray index out of range")

// Policy selects what an empty slot holds and which hits are accepted.
type Policy int

const (
	// PolicyNaN fills empty slots with NaN and accepts every hit. The
	// upstream pipeline is trusted to have applied the minimum range.
	PolicyNaN Policy = iota
	// PolicyZeroFill leaves empty slots at 0 and drops hits closer than
	// RangeMin.
	PolicyZeroFill
)

// ParsePolicy accepts "nan" or "zero" (case-insensitive). Empty selects
// PolicyNaN.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan":
		return PolicyNaN, nil
	case "zero", "zero_fill", "zerofill":
		return PolicyZeroFill, nil
	default:
		return PolicyNaN, fmt.Errorf("unknown no-return policy %q (want \"nan\" or \"zero\")", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyNaN:
		return "nan"
	case PolicyZeroFill:
		return "zero"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// NoReturn returns the value written to slots without a hit.
func (p Policy) NoReturn() float32 {
	if p == PolicyZeroFill {
		return 0
	}
	return float32(math.NaN())
}

// Decoder converts hit-record buffers into dense range arrays. It holds no
// per-cycle state, so Decode is a pure function of its inputs.
type Decoder struct {
	geom     Geometry
	policy   Policy
	noReturn float32
	rangeMin float32
}

// NewDecoder validates geom and returns a decoder for it.
func NewDecoder(geom Geometry, policy Policy) (*Decoder, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if policy != PolicyNaN && policy != PolicyZeroFill {
		return nil, fmt.Errorf("unsupported no-return policy %v", policy)
	}
	return &Decoder{
		geom:     geom,
		policy:   policy,
		noReturn: policy.NoReturn(),
		rangeMin: float32(geom.RangeMin),
	}, nil
}

// Geometry returns the decoder's scan geometry.
func (d *Decoder) Geometry() Geometry { return d.geom }

// Policy returns the decoder's no-return policy.
func (d *Decoder) Policy() Policy { return d.policy }

// Decode reads hitCount records from buf into out and returns out resized to
// HorizontalSteps. out is reused when it has enough capacity, so a caller
// that keeps passing the returned slice decodes without allocating.
//
// Record ray indices are enumerated in the opposite angular direction to the
// scan, so ray r lands in slot HorizontalSteps-1-r. Slots without a record
// keep the policy's no-return value.
//
// On error out is not modified. buf is not retained.
func (d *Decoder) Decode(buf []byte, hitCount int, out []float32) ([]float32, error) {
	if err := l1hits.CheckBounds(buf, hitCount); err != nil {
		return out, err
	}

	steps := d.geom.HorizontalSteps
	for i := 0; i < hitCount; i++ {
		if ray := l1hits.RayIndexAt(buf, i); ray >= uint32(steps) {
			return out, fmt.Errorf("%w: record %d has ray index %d, scan has %d steps", ErrRayIndexOutOfRange, i, ray, steps)
		}
	}

	if cap(out) < steps {
		out = make([]float32, steps)
	}
	out = out[:steps]
	for i := range out {
		out[i] = d.noReturn
	}

	for i := 0; i < hitCount; i++ {
		rec := l1hits.Read(buf, i)
		// NaN fails the comparison and is dropped with the short hits.
		if d.policy == PolicyZeroFill && !(rec.Distance >= d.rangeMin) {
			continue
		}
		out[steps-1-int(rec.RayIndex)] = rec.Distance
	}
	return out, nil
}

// IsNoReturn reports whether v is the no-return value under p.
func IsNoReturn(p Policy, v float32) bool {
	if p == PolicyZeroFill {
		return v == 0
	}
	return v != v
}
