package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/simbridge/internal/monitoring"
)

// TelemetryServiceName is the fully qualified gRPC service name.
const TelemetryServiceName = "simbridge.Telemetry"

const (
	telemetrySubscribeMethod = "/" + TelemetryServiceName + "/Subscribe"
	telemetryPublishMethod   = "/" + TelemetryServiceName + "/Publish"
)

// TelemetryServer streams bus traffic out and accepts messages in. Subscribe
// names one topic, or is empty for every topic. Publish takes an envelope in
// the form produced by Envelope.Struct.
type TelemetryServer interface {
	Subscribe(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
	Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

func telemetryPublishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: telemetryPublishMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TelemetryServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func telemetrySubscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(TelemetryServer).Subscribe(m, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}

// TelemetryServiceDesc describes the simbridge.Telemetry service.
var TelemetryServiceDesc = grpc.ServiceDesc{
	ServiceName: TelemetryServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler:    telemetryPublishHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       telemetrySubscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "simbridge/telemetry.proto",
}

// RegisterTelemetryServer registers srv on s.
func RegisterTelemetryServer(s grpc.ServiceRegistrar, srv TelemetryServer) {
	s.RegisterService(&TelemetryServiceDesc, srv)
}

// TelemetryClient is the client side of simbridge.Telemetry.
type TelemetryClient struct {
	cc grpc.ClientConnInterface
}

// NewTelemetryClient wraps a connection.
func NewTelemetryClient(cc grpc.ClientConnInterface) *TelemetryClient {
	return &TelemetryClient{cc: cc}
}

// Subscribe opens a stream for topic (AllTopics for everything).
func (c *TelemetryClient) Subscribe(ctx context.Context, topic string, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &TelemetryServiceDesc.Streams[0], telemetrySubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(wrapperspb.String(topic)); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Publish sends env to the server's bus.
func (c *TelemetryClient) Publish(ctx context.Context, env Envelope, opts ...grpc.CallOption) error {
	in, err := env.Struct()
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, telemetryPublishMethod, in, new(emptypb.Empty), opts...)
}

// GRPCConfig holds configuration for the telemetry gRPC server.
type GRPCConfig struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50052")
	ListenAddr string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// Writable lists the topics clients may publish to. Empty allows none.
	Writable []string
}

// DefaultGRPCConfig returns a default configuration.
func DefaultGRPCConfig() GRPCConfig {
	return GRPCConfig{
		ListenAddr: "localhost:50052",
		MaxClients: 5,
	}
}

// GRPCServer serves simbridge.Telemetry from a Bus.
type GRPCServer struct {
	config GRPCConfig
	bus    *Bus
	server *grpc.Server
	logf   func(format string, v ...interface{})

	clientCount atomic.Int32
	streamed    atomic.Uint64
	received    atomic.Uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewGRPCServer builds a server streaming from bus. Start or Serve runs it.
func NewGRPCServer(cfg GRPCConfig, bus *Bus) *GRPCServer {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultGRPCConfig().MaxClients
	}
	s := &GRPCServer{
		config: cfg,
		bus:    bus,
		logf:   monitoring.Prefixed("Telemetry"),
	}
	const maxMsgSize = 4 * 1024 * 1024 // a 1081 step scan is ~20KB of JSON
	s.server = grpc.NewServer(grpc.MaxSendMsgSize(maxMsgSize))
	RegisterTelemetryServer(s.server, s)
	return s
}

// Start listens on the configured address and serves in the background.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logf("gRPC server listening on %s", lis.Addr())
	s.Serve(lis)
	return nil
}

// Serve serves on lis in the background.
func (s *GRPCServer) Serve(lis net.Listener) {
	s.running.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			s.logf("gRPC server error: %v", err)
		}
	}()
}

// Stop closes active streams and waits for the server to exit.
func (s *GRPCServer) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.server.Stop()
	s.wg.Wait()
	s.logf("gRPC server stopped")
}

// Clients returns the number of connected streams.
func (s *GRPCServer) Clients() int { return int(s.clientCount.Load()) }

// Received returns the number of messages accepted by Publish.
func (s *GRPCServer) Received() uint64 { return s.received.Load() }

// Publish implements TelemetryServer.
func (s *GRPCServer) Publish(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	env, err := EnvelopeFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if env.Topic == "" || env.Type == "" {
		return nil, status.Error(codes.InvalidArgument, "envelope needs a topic and a type")
	}
	if !s.writable(env.Topic) {
		return nil, status.Errorf(codes.PermissionDenied, "topic %q is not writable", env.Topic)
	}
	switch err := s.bus.PublishEnvelope(env); {
	case errors.Is(err, ErrUnknownTopic):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrBusClosed):
		return nil, status.Error(codes.Unavailable, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.received.Add(1)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) writable(topic string) bool {
	for _, t := range s.config.Writable {
		if t == topic {
			return true
		}
	}
	return false
}

// Subscribe implements TelemetryServer.
func (s *GRPCServer) Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if n := s.clientCount.Add(1); int(n) > s.config.MaxClients {
		s.clientCount.Add(-1)
		return status.Errorf(codes.ResourceExhausted, "too many clients (max %d)", s.config.MaxClients)
	}
	defer s.clientCount.Add(-1)

	topic := req.GetValue()
	id, ch := s.bus.Subscribe(topic)
	defer s.bus.Unsubscribe(id)
	s.logf("client %s subscribed to %q", id, topic)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.logf("client %s disconnected", id)
			return nil
		case env, ok := <-ch:
			if !ok {
				return status.Error(codes.Unavailable, "bus closed")
			}
			msg, err := env.Struct()
			if err != nil {
				s.logf("skipping %s message: %v", env.Topic, err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
			s.streamed.Add(1)
		}
	}
}
