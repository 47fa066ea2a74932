package msgs

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloat32Array_NaNRoundTripsAsNull(t *testing.T) {
	in := Float32Array{1.5, float32(math.NaN()), float32(math.Inf(1)), 0.25}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(data), `[1.5,null,null,0.25]`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}

	var out Float32Array
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if out[0] != 1.5 || out[3] != 0.25 {
		t.Errorf("finite values = %v, %v", out[0], out[3])
	}
	for _, i := range []int{1, 2} {
		if !math.IsNaN(float64(out[i])) {
			t.Errorf("out[%d] = %v, want NaN", i, out[i])
		}
	}
}

func TestFloat32Array_NilAndEmpty(t *testing.T) {
	data, err := json.Marshal(Float32Array(nil))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Marshal(nil) = %s, want []", data)
	}

	var out Float32Array
	if err := json.Unmarshal([]byte("null"), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != nil {
		t.Errorf("Unmarshal(null) = %v, want nil", out)
	}
}

func TestLaserScan_MarshalsNaNRanges(t *testing.T) {
	scan := &LaserScan{Ranges: Float32Array{float32(math.NaN()), 2}}
	data, err := json.Marshal(scan)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back LaserScan
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !math.IsNaN(float64(back.Ranges[0])) {
		t.Errorf("Ranges[0] = %v, want NaN", back.Ranges[0])
	}
	if back.Ranges[1] != 2 {
		t.Errorf("Ranges[1] = %v, want 2", back.Ranges[1])
	}
}
