// Package grpcapi mirrors the websocket event stream over gRPC for
// subscribers that cannot hold a browser websocket open.
//
// The service is registered by hand; messages are google.protobuf.Struct
// values holding the same fields as the websocket JSON.
//
//	service AuthEvents {
//	  rpc Subscribe(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/kioskauth/internal/hub"
)

const (
	ServiceName     = "kiosk.v1.AuthEvents"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
)

// AuthEventsServer is the server API for the AuthEvents service.
type AuthEventsServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AuthEventsServer).Subscribe(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthEventsServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "kiosk/v1/auth_events.proto",
}

func RegisterAuthEventsServer(s grpc.ServiceRegistrar, srv AuthEventsServer) {
	s.RegisterService(&serviceDesc, srv)
}

// ErrStalled is returned when a subscriber has not drained a previous
// message in time.
var ErrStalled = errors.New("grpc subscriber stalled")

type Dependencies struct {
	Logger *log.Logger
	Addr   string
	Hub    *hub.Hub

	// KeepaliveTime is the idle period after which the server pings the
	// transport. Defaults to 30s; KeepaliveTimeout defaults to 10s.
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// Server exposes the hub as a server-streaming gRPC service.
type Server struct {
	grpcServer *grpc.Server
	logger     *log.Logger
	addr       string
	hub        *hub.Hub
}

func NewServer(d Dependencies) *Server {
	if d.KeepaliveTime <= 0 {
		d.KeepaliveTime = 30 * time.Second
	}
	if d.KeepaliveTimeout <= 0 {
		d.KeepaliveTimeout = 10 * time.Second
	}
	gs := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    d.KeepaliveTime,
			Timeout: d.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	s := &Server{
		grpcServer: gs,
		logger:     d.Logger,
		addr:       d.Addr,
		hub:        d.Hub,
	}
	RegisterAuthEventsServer(s.grpcServer, s)
	return s
}

// Subscribe registers the stream with the hub and blocks until the client
// goes away or the hub drops it.
func (s *Server) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	sub := s.hub.Add(newStreamConn(stream, cancel))
	if sub == nil {
		return errors.New("hub is shutting down")
	}
	defer s.hub.Remove(sub)

	<-ctx.Done()
	return nil
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Start listens on the configured address and serves.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// streamConn adapts a server stream to hub.Conn. At most one SendMsg is
// outstanding; a send that outlives its context cancels the stream.
type streamConn struct {
	stream grpc.ServerStream
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight chan struct{} // closed when the outstanding SendMsg returns
}

func newStreamConn(stream grpc.ServerStream, cancel context.CancelFunc) *streamConn {
	return &streamConn{stream: stream, cancel: cancel}
}

func (c *streamConn) Send(ctx context.Context, msg []byte) error {
	st := new(structpb.Struct)
	if err := protojson.Unmarshal(msg, st); err != nil {
		return fmt.Errorf("convert event: %w", err)
	}

	c.mu.Lock()
	if c.inflight != nil {
		c.mu.Unlock()
		return ErrStalled
	}
	inflight := make(chan struct{})
	c.inflight = inflight
	c.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		err := c.stream.SendMsg(st)
		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		close(inflight)
		result <- err
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		c.cancel()
		return fmt.Errorf("%w: %v", ErrStalled, ctx.Err())
	}
}

// Ping fails once the stream is gone, or when a send is still blocked by
// the time ctx expires.
func (c *streamConn) Ping(ctx context.Context) error {
	if err := c.stream.Context().Err(); err != nil {
		return err
	}

	c.mu.Lock()
	inflight := c.inflight
	c.mu.Unlock()
	if inflight == nil {
		return nil
	}

	select {
	case <-inflight:
		return nil
	case <-ctx.Done():
		return ErrStalled
	}
}

func (c *streamConn) Close(string) error {
	c.cancel()
	return nil
}
