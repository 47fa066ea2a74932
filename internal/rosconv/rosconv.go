// Package rosconv converts between the simulator's Unity frame (left handed:
// x right, y up, z forward) and the ROS frame (right handed: x forward,
// y left, z up), and between vehicle and ROS gear values.
package rosconv

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simbridge/internal/msgs"
	"github.com/banshee-data/simbridge/internal/vehicle"
)

// UnityToRosPosition converts a Unity position or direction.
func UnityToRosPosition(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.Z, Y: -v.X, Z: v.Y}
}

// RosToUnityPosition is the inverse of UnityToRosPosition.
func RosToUnityPosition(v r3.Vec) r3.Vec {
	return r3.Vec{X: -v.Y, Y: v.Z, Z: v.X}
}

// UnityToRosRotation converts a Unity rotation. Real is w; Imag, Jmag, Kmag
// are x, y, z.
func UnityToRosRotation(q quat.Number) quat.Number {
	return quat.Number{Real: q.Real, Imag: -q.Kmag, Jmag: q.Imag, Kmag: -q.Jmag}
}

// RosToUnityRotation is the inverse of UnityToRosRotation.
func RosToUnityRotation(q quat.Number) quat.Number {
	return quat.Number{Real: q.Real, Imag: q.Jmag, Jmag: -q.Kmag, Kmag: -q.Imag}
}

// Point converts a ROS-frame vector to a message point.
func Point(v r3.Vec) msgs.Point {
	return msgs.Point{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion converts a ROS-frame rotation to a message quaternion.
func Quaternion(q quat.Number) msgs.Quaternion {
	return msgs.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// UnityToRosShift maps a vehicle gear to the GearReport value.
func UnityToRosShift(g vehicle.Gear) uint8 {
	switch g {
	case vehicle.GearPark:
		return msgs.GearPark
	case vehicle.GearReverse:
		return msgs.GearReverse
	case vehicle.GearNeutral:
		return msgs.GearNeutral
	case vehicle.GearDrive:
		return msgs.GearDrive
	default:
		return msgs.GearNone
	}
}

// Autoware numbers the extra forward and reverse ratios consecutively after
// DRIVE and REVERSE.
const (
	gearDrive18  uint8 = 19
	gearReverse2 uint8 = 21
	gearLow2     uint8 = 24
)

// RosToUnityShift maps a GearCommand value to a vehicle gear. The model has
// a single forward ratio, so DRIVE_2..DRIVE_18 and LOW select drive. ok is
// false for NONE and unknown values, which leave the gear unchanged.
func RosToUnityShift(command uint8) (g vehicle.Gear, ok bool) {
	switch {
	case command >= msgs.GearDrive && command <= gearDrive18:
		return vehicle.GearDrive, true
	case command == msgs.GearReverse || command == gearReverse2:
		return vehicle.GearReverse, true
	case command == msgs.GearPark:
		return vehicle.GearPark, true
	case command == msgs.GearNeutral:
		return vehicle.GearNeutral, true
	case command == msgs.GearLow || command == gearLow2:
		return vehicle.GearDrive, true
	default:
		return vehicle.GearPark, false
	}
}
