// Package l2scan owns Layer 2 (Scans) of the scan data model.
//
// Responsibilities: scan geometry, decoding a hit-record buffer into a dense
// angularly indexed range array, and emitting the result as a LaserScan.
// Key types: Geometry, Decoder, Emitter.
//
// Dependency rule: L2 may depend on L1, but never on producers or
// transports; publishing goes through the Publisher interface.
package l2scan
