package grpcapi_test

import (
	"context"
	"io"
	"log"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/kioskauth/internal/grpcapi"
	"github.com/BrandonDHaskell/kioskauth/internal/hub"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// newTestServer serves a hub over bufconn and returns a connected client.
func newTestServer(t *testing.T, cfg hub.Config, opts ...grpc.DialOption) (*hub.Hub, *grpc.ClientConn) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	h := hub.New(cfg, logger)

	srv := grpcapi.NewServer(grpcapi.Dependencies{Logger: logger, Hub: h})
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		h.Stop()
		srv.Stop()
	})

	opts = append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	cc, err := grpc.NewClient("passthrough:///bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return h, cc
}

func subscribe(t *testing.T, ctx context.Context, h *hub.Hub, cc *grpc.ClientConn) grpc.ClientStream {
	t.Helper()
	stream, err := cc.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, grpcapi.SubscribeMethod)
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&emptypb.Empty{}))
	require.NoError(t, stream.CloseSend())

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	return stream
}

func TestSubscribe_ReceivesBroadcasts(t *testing.T) {
	h, cc := newTestServer(t, hub.Config{ProbeInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := subscribe(t, ctx, h, cc)

	h.Broadcast(types.TagEvent{
		UID:         "04A1B2C3",
		TS:          time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Source:      types.SourceHardwareReader,
		Device:      "kiosk-01",
		MemberFound: types.Bool(false),
	})

	got := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(got))

	fields := got.GetFields()
	require.Equal(t, "tag", fields["type"].GetStringValue())
	require.Equal(t, "04A1B2C3", fields["uid"].GetStringValue())
	require.False(t, fields["memberFound"].GetBoolValue())

	cancel()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSubscribe_StalledClientIsEvicted(t *testing.T) {
	// A fixed receive window keeps flow control from growing to absorb the
	// backlog, so the server's sends block once the window is full.
	h, cc := newTestServer(t,
		hub.Config{ProbeInterval: time.Hour, QueueSize: 1024, WriteTimeout: 50 * time.Millisecond},
		grpc.WithInitialWindowSize(64<<10),
		grpc.WithInitialConnWindowSize(64<<10),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	subscribe(t, ctx, h, cc) // never received from

	payload := strings.Repeat("x", 32<<10)
	for i := 0; i < 200; i++ {
		h.Broadcast(types.ReaderErrorEvent{
			TS:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			Source: types.SourceHardwareReader,
			Device: "kiosk-01",
			Error:  payload,
		})
	}

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond,
		"a subscriber that stops reading must be dropped")
}
