package transport

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/msgs"
)

// UDPForwarder sends every published message as one UDP datagram holding a
// protobuf-encoded Struct envelope (see Envelope.Struct). Sending happens on
// a background goroutine; Publish only encodes and queues.
type UDPForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	logInterval time.Duration
	address     string
	logf        func(format string, v ...interface{})

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// ForwarderQueueSize is the number of encoded datagrams buffered for sending.
const ForwarderQueueSize = 1000

// NewUDPForwarder dials addr:port.
func NewUDPForwarder(addr string, port int, logInterval time.Duration) (*UDPForwarder, error) {
	forwardAddress := fmt.Sprintf("%s:%d", addr, port)
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	if logInterval <= 0 {
		logInterval = 5 * time.Second
	}
	return &UDPForwarder{
		conn:        conn,
		channel:     make(chan []byte, ForwarderQueueSize),
		logInterval: logInterval,
		address:     forwardAddress,
		logf:        monitoring.Prefixed("Forwarder"),
	}, nil
}

// Start runs the send loop until ctx is done.
func (f *UDPForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case datagram, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(datagram); err != nil {
					droppedCount++
					lastError = err
					f.dropped.Add(1)
					continue
				}
				f.sent.Add(1)
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					f.logf("dropped %d forwarded messages due to errors (latest: %v)", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	f.logf("forwarding telemetry to %s", f.address)
}

// Publish encodes msg and queues it. A full queue drops the message without
// reporting an error; only encoding failures are returned.
func (f *UDPForwarder) Publish(topic string, msg msgs.Message) error {
	env, err := NewEnvelope(topic, msg)
	if err != nil {
		return err
	}
	return f.forward(env)
}

func (f *UDPForwarder) forward(env Envelope) error {
	s, err := env.Struct()
	if err != nil {
		return fmt.Errorf("forward %s: %w", env.Topic, err)
	}
	datagram, err := proto.Marshal(s)
	if err != nil {
		return fmt.Errorf("forward %s: %w", env.Topic, err)
	}
	select {
	case f.channel <- datagram:
	default:
		f.dropped.Add(1)
	}
	return nil
}

// Sent returns the number of datagrams written.
func (f *UDPForwarder) Sent() uint64 { return f.sent.Load() }

// Dropped returns the number of datagrams lost to a full queue or write errors.
func (f *UDPForwarder) Dropped() uint64 { return f.dropped.Load() }

// Close closes the UDP connection and the queue. Publish must not be called
// after Close.
func (f *UDPForwarder) Close() error {
	close(f.channel)
	return f.conn.Close()
}
