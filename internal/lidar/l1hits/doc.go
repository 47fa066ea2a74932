// Package l1hits owns Layer 1 (Hit records) of the scan data model.
//
// Responsibilities: the binary layout of the raw hit-record buffers produced
// by the upstream ray-casting pipeline, and reading/writing single records
// without allocation.
// Key types: Record.
//
// Dependency rule: L1 depends on nothing else in internal/lidar.
package l1hits
