// Package transport moves telemetry messages out of the simulation and
// commands into it.
//
// The in-process Bus is the hub: publishers hand it a message, it serialises
// the message once and fans the copy out to subscriber queues sized by the
// topic's QoS. Outer sinks (UDP forwarder, gRPC stream, SQLite recorder)
// either implement Publisher directly or read from the Bus.
package transport
