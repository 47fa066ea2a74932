package source

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/simbridge/internal/lidar/l1hits"
	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
	"github.com/banshee-data/simbridge/internal/monitoring"
)

// DefaultPort is the UDP port hit buffers are recorded on.
const DefaultPort = 2369

const snapLen = 65536

// MaxRecordPayload is the largest capture that fits one snapLen frame after
// the Ethernet, IPv4 and UDP headers. It is also under the 65507 byte UDP
// payload limit.
const MaxRecordPayload = snapLen - 14 - 20 - 8

// MaxRecordHits is the largest hit count Record accepts.
const MaxRecordHits = MaxRecordPayload / l1hits.RecordSize

// ErrCaptureTooLarge is returned by Record for a capture that would not fit
// in one datagram.
var ErrCaptureTooLarge = errors.New("capture too large for one datagram")

// Recorder writes hit buffers to a pcap file, one UDP datagram per capture.
// The payload is the first hitCount records of the buffer.
type Recorder struct {
	mu      sync.Mutex
	f       *os.File
	w       *pcapgo.Writer
	port    int
	written uint64
	now     func() time.Time
}

// CreateRecorder creates (truncating) a pcap file at path. now stamps the
// packets; pass the simulation clock's Now so replay keeps the capture
// cadence.
func CreateRecorder(path string, port int, now func() time.Time) (*Recorder, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid UDP port %d", port)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create PCAP file %s: %w", path, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write PCAP header: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{f: f, w: w, port: port, now: now}, nil
}

// Record writes one capture.
func (r *Recorder) Record(buf []byte, hitCount int) error {
	if err := l1hits.CheckBounds(buf, hitCount); err != nil {
		return err
	}
	if hitCount > MaxRecordHits {
		return fmt.Errorf("%w: %d hits, limit is %d", ErrCaptureTooLarge, hitCount, MaxRecordHits)
	}
	payload := buf[:hitCount*l1hits.RecordSize]

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(r.port), DstPort: layers.UDPPort(r.port)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("udp checksum: %w", err)
	}
	sbuf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(sbuf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize capture: %w", err)
	}

	data := sbuf.Bytes()
	r.mu.Lock()
	defer r.mu.Unlock()
	ci := gopacket.CaptureInfo{Timestamp: r.now(), CaptureLength: len(data), Length: len(data)}
	if err := r.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}
	r.written++
	return nil
}

// Tap returns a Handler that records each capture and then calls next.
// Recording errors are logged.
func (r *Recorder) Tap(next Handler) Handler {
	logf := monitoring.Prefixed("PCAP")
	return func(buf []byte, hitCount int) {
		if err := r.Record(buf, hitCount); err != nil {
			logf("record failed: %v", err)
		}
		if next != nil {
			next(buf, hitCount)
		}
	}
}

// Written returns the number of captures written.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close flushes and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// capture is one replayed datagram.
type capture struct {
	offset  time.Duration // since the first capture
	payload []byte
}

// Replay is a Producer that plays back a pcap file written by Recorder. It
// is stepped by the scheduler and emits each capture once simulation time
// reaches the capture's offset from the first one.
type Replay struct {
	geom     l2scan.Geometry
	out      consumer
	captures []capture
	next     int
	elapsed  time.Duration
	loop     bool
	logf     func(format string, v ...interface{})
}

// OpenReplay reads every UDP datagram to port from path. The file is read
// fully up front.
func OpenReplay(path string, port int, geom l2scan.Geometry, loop bool) (*Replay, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCAP header: %w", err)
	}

	rp := &Replay{geom: geom, loop: loop, logf: monitoring.Prefixed("PCAP")}
	var first time.Time
	skipped := 0
	for {
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet %d: %w", len(rp.captures)+skipped, err)
		}
		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || int(udp.DstPort) != port {
			skipped++
			continue
		}
		if len(udp.Payload)%l1hits.RecordSize != 0 {
			rp.logf("packet %d: %d trailing bytes ignored", len(rp.captures)+skipped, len(udp.Payload)%l1hits.RecordSize)
		}
		if first.IsZero() {
			first = ci.Timestamp
		}
		rp.captures = append(rp.captures, capture{
			offset:  ci.Timestamp.Sub(first),
			payload: append([]byte(nil), udp.Payload...),
		})
	}
	rp.logf("loaded %d captures from %s (%d packets skipped)", len(rp.captures), path, skipped)
	return rp, nil
}

// Geometry implements Producer.
func (r *Replay) Geometry() l2scan.Geometry { return r.geom }

// Subscribe implements Producer.
func (r *Replay) Subscribe(fn Handler) func() { return r.out.subscribe(fn) }

// Len returns the number of captures loaded.
func (r *Replay) Len() int { return len(r.captures) }

// Done reports whether every capture has been emitted. A looping replay is
// never done.
func (r *Replay) Done() bool {
	return !r.loop && r.next >= len(r.captures)
}

// Step is a sim.StepFunc.
func (r *Replay) Step(dt float64) error {
	if len(r.captures) == 0 {
		return nil
	}
	r.elapsed += time.Duration(dt * float64(time.Second))
	for r.next < len(r.captures) && r.captures[r.next].offset <= r.elapsed {
		c := r.captures[r.next]
		r.next++
		r.out.notify(c.payload, l1hits.Count(c.payload))
	}
	if r.loop && r.next >= len(r.captures) {
		last := r.captures[len(r.captures)-1].offset
		r.elapsed -= last + r.geom.CaptureInterval
		if r.elapsed < 0 {
			r.elapsed = 0
		}
		r.next = 0
	}
	return nil
}
