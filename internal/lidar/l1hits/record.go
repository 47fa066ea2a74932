package l1hits

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Hit record layout constants.
// A buffer is a packed sequence of records with no header or padding.
const (
	DistanceSize = 4                           // float32 distance in metres
	RayIndexSize = 4                           // uint32 ray index
	RecordSize   = DistanceSize + RayIndexSize // 8 bytes per record
)

// ErrShortBuffer is returned when a buffer holds fewer bytes than the
// announced hit count requires.
var ErrShortBuffer = errors.New("hit buffer shorter than hit count")

// ErrNegativeCount is returned for a negative hit count.
var ErrNegativeCount = errors.New("negative hit count")

// Record is one return reported by the ranging pipeline for a single ray.
type Record struct {
	Distance float32 // measured range (m)
	RayIndex uint32  // upstream ray enumeration index
}

// CheckBounds verifies that buf can hold hitCount records.
func CheckBounds(buf []byte, hitCount int) error {
	if hitCount < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCount, hitCount)
	}
	// Compare in records so a huge count cannot overflow the byte length.
	if hitCount > len(buf)/RecordSize {
		return fmt.Errorf("%w: %d hits need %d bytes, have %d", ErrShortBuffer, hitCount, uint64(hitCount)*RecordSize, len(buf))
	}
	return nil
}

// Read decodes record i from buf. The caller must have checked bounds.
func Read(buf []byte, i int) Record {
	off := i * RecordSize
	return Record{
		Distance: math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+DistanceSize])),
		RayIndex: binary.LittleEndian.Uint32(buf[off+DistanceSize : off+RecordSize]),
	}
}

// RayIndexAt decodes only the ray index of record i.
func RayIndexAt(buf []byte, i int) uint32 {
	off := i*RecordSize + DistanceSize
	return binary.LittleEndian.Uint32(buf[off : off+RayIndexSize])
}

// Append encodes recs onto dst and returns the extended slice.
func Append(dst []byte, recs ...Record) []byte {
	for _, r := range recs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(r.Distance))
		dst = binary.LittleEndian.AppendUint32(dst, r.RayIndex)
	}
	return dst
}

// Encode returns a fresh buffer holding recs.
func Encode(recs ...Record) []byte {
	return Append(make([]byte, 0, len(recs)*RecordSize), recs...)
}

// Count returns the number of whole records in buf.
func Count(buf []byte) int {
	return len(buf) / RecordSize
}
