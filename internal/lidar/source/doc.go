// Package source produces raw hit buffers for the scan decoder.
//
// A Producer lends its buffer to exactly one consumer per capture; the
// buffer is only valid for the duration of the callback. Synthetic casts
// rays against a simulated track; Replay reads captures recorded to a pcap
// file by Recorder.
package source
