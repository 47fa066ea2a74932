package msgs

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Float32Array is a float32 slice whose JSON form writes NaN and ±Inf as
// null. Range arrays use NaN for "no return", which encoding/json rejects.
type Float32Array []float32

// MarshalJSON implements json.Marshaler.
func (a Float32Array) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	buf := make([]byte, 0, 2+len(a)*8)
	buf = append(buf, '[')
	for i, v := range a {
		if i > 0 {
			buf = append(buf, ',')
		}
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, f, 'g', -1, 32)
	}
	return append(buf, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler; null elements decode as NaN.
func (a *Float32Array) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}
	var raw []*float32
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Float32Array, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = float32(math.NaN())
			continue
		}
		out[i] = *v
	}
	*a = out
	return nil
}
