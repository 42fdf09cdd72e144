// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/luxfi/bridge/proxy"
	"github.com/luxfi/bridge/wire"
)

const exchangeMethod = "/bridge.Bridge/Exchange"

func init() {
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// grpcConn carries each request frame in one unary call. Release is sent
// like any other request and its empty reply discarded.
type grpcConn struct {
	conn    *grpc.ClientConn
	proxies wire.Proxies
}

func dialGRPC(ctx context.Context, addr string, o *dialOptions) (exchanger, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	if err := waitReady(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &grpcConn{conn: conn, proxies: o.proxies}, nil
}

// waitReady connects eagerly so dial failures surface to the retry loop
// instead of on the first call.
func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		s := conn.GetState()
		switch s {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return fmt.Errorf("grpc dial %s: %v", conn.Target(), s)
		}
		if !conn.WaitForStateChange(ctx, s) {
			return ctx.Err()
		}
	}
}

func (c *grpcConn) exchange(ctx context.Context, req wire.Message, reply bool) (wire.Message, error) {
	frame, err := encodeMessage(c.proxies, req)
	if err != nil {
		return nil, err
	}
	var resp []byte
	if err := c.conn.Invoke(ctx, exchangeMethod, &frame, &resp); err != nil {
		if status.Code(err) == codes.Canceled && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, &TransportError{Op: "exchange", Err: err}
	}
	if !reply {
		return nil, nil
	}
	if len(resp) == 0 {
		return nil, &TransportError{Op: "read", Err: ErrNoReply}
	}
	m, err := wire.NewReader(bytes.NewReader(resp), c.proxies).ReadMessage()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return m, nil
}

func (c *grpcConn) Close() error {
	return c.conn.Close()
}

// bridgeService is implemented by grpcServer; the service descriptor needs
// an interface type to check registrations against.
type bridgeService interface {
	serveFrame(ctx context.Context, frame []byte) ([]byte, error)
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: "bridge.Bridge",
	HandlerType: (*bridgeService)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Exchange",
		Handler:    exchangeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bridge.proto",
}

func exchangeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var in []byte
	if err := dec(&in); err != nil {
		return nil, err
	}
	serve := func(ctx context.Context, req any) (any, error) {
		out, err := srv.(bridgeService).serveFrame(ctx, *req.(*[]byte))
		if err != nil {
			return nil, err
		}
		return &out, nil
	}
	if interceptor == nil {
		return serve(ctx, &in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: exchangeMethod}
	return interceptor(ctx, &in, info, serve)
}

type grpcServer struct {
	listener net.Listener
	srv      *grpc.Server
	h        *handler
	log      logrus.FieldLogger

	active atomic.Int64
	closed atomic.Bool
}

func listenGRPC(addr string, h *handler, o *serverOptions) (Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &grpcServer{
		listener: l,
		srv:      grpc.NewServer(grpc.ForceServerCodec(rawCodec{})),
		h:        h,
		log:      o.logger.WithField("transport", TransportGRPC),
	}
	if o.releaseOnClose {
		s.log.Warn("release on close has no effect on the grpc transport")
	}
	s.srv.RegisterService(&bridgeServiceDesc, s)
	return s, nil
}

func (s *grpcServer) serveFrame(ctx context.Context, frame []byte) ([]byte, error) {
	s.active.Add(1)
	defer s.active.Add(-1)

	msg, err := wire.NewReader(bytes.NewReader(frame), s.h.proxies).ReadMessage()
	if err != nil {
		s.log.WithError(err).Warn("malformed request")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	reply, err := s.h.dispatch(ctx, msg)
	if err != nil {
		s.log.WithError(err).Warn("malformed request")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if reply == nil {
		return []byte{}, nil
	}
	return s.h.encodeReply(s.h.proxies, reply), nil
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.WithField("addr", s.Addr()).Info("serving")
	err := s.srv.Serve(s.listener)
	if s.closed.Load() || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *grpcServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.srv.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *grpcServer) Stats() Stats {
	return Stats{
		Transport:   TransportGRPC,
		Objects:     s.h.proxies.Len(),
		LastID:      s.h.proxies.LastID(),
		Connections: s.active.Load(),
	}
}

func (s *grpcServer) Proxies() *proxy.Table { return s.h.proxies }
