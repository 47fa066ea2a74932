// Package units converts between the speed and angle units used on the wire
// and in reports.
package units

import (
	"fmt"
	"math"
)

// Speed unit names accepted by ConvertSpeed.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ParseSpeedUnit validates unit, defaulting "" to MPS.
func ParseSpeedUnit(unit string) (string, error) {
	if unit == "" {
		return MPS, nil
	}
	if !IsValid(unit) {
		return "", fmt.Errorf("invalid speed unit %q (want one of mps, mph, kmph, kph)", unit)
	}
	return unit, nil
}

// ConvertSpeed converts a speed in metres per second to targetUnits. Unknown
// units return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
