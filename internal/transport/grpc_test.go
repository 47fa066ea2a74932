package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startTelemetry(t *testing.T, bus *Bus, maxClients int) *TelemetryClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(GRPCConfig{MaxClients: maxClients}, bus)
	srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewTelemetryClient(conn)
}

// waitSubscribers blocks until the bus has n subscriptions on topic, so a
// publish is not raced against the server-side Subscribe.
func waitSubscribers(t *testing.T, bus *Bus, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return bus.Stats()[topic].Subscribers == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGRPCServer_StreamsTopic(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Advertise("/diagnostics", DiagnosticsQoS))
	require.NoError(t, bus.Advertise("/other", PoseQoS))
	client := startTelemetry(t, bus, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Subscribe(ctx, "/diagnostics")
	require.NoError(t, err)
	waitSubscribers(t, bus, "/diagnostics", 1)

	require.NoError(t, bus.Publish("/other", diag("ignored")))
	require.NoError(t, bus.Publish("/diagnostics", diag("LapTimer")))

	msg, err := stream.Recv()
	require.NoError(t, err)
	env, err := EnvelopeFromStruct(msg)
	require.NoError(t, err)
	assert.Equal(t, "/diagnostics", env.Topic)
	assert.Equal(t, "LapTimer", decodeDiag(t, env))
}

func TestGRPCServer_RejectsTooManyClients(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Advertise("/a", PoseQoS))
	client := startTelemetry(t, bus, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Subscribe(ctx, "/a")
	require.NoError(t, err)
	waitSubscribers(t, bus, "/a", 1)

	second, err := client.Subscribe(ctx, "/a")
	require.NoError(t, err)
	_, err = second.Recv()
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestGRPCServer_BusCloseEndsStream(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Advertise("/a", PoseQoS))
	client := startTelemetry(t, bus, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Subscribe(ctx, "/a")
	require.NoError(t, err)
	waitSubscribers(t, bus, "/a", 1)

	require.NoError(t, bus.Close())
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCServer_Publish(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Advertise("/cmd", CommandQoS))
	require.NoError(t, bus.Advertise("/status", PoseQoS))

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(GRPCConfig{MaxClients: 1, Writable: []string{"/cmd", "/missing"}}, bus)
	srv.Serve(lis)
	t.Cleanup(srv.Stop)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := NewTelemetryClient(conn)

	_, ch := bus.Subscribe("/cmd")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env, err := NewEnvelope("/cmd", diag("Remote"))
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, env))
	select {
	case got := <-ch:
		assert.Equal(t, "Remote", decodeDiag(t, got))
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
	assert.Equal(t, uint64(1), srv.Received())

	env.Topic = "/status"
	assert.Equal(t, codes.PermissionDenied, status.Code(client.Publish(ctx, env)))

	env.Topic = "/missing"
	assert.Equal(t, codes.NotFound, status.Code(client.Publish(ctx, env)))

	env.Topic = ""
	assert.Equal(t, codes.InvalidArgument, status.Code(client.Publish(ctx, env)))
}
