// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge/proxy"
	"github.com/luxfi/bridge/wire"
)

const acceptBackoff = 50 * time.Millisecond

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// tcpConn is the client side of one TCP connection. Requests and replies
// strictly alternate.
type tcpConn struct {
	conn    net.Conn
	r       *wire.Reader
	proxies wire.Proxies
	log     logrus.FieldLogger

	mu     sync.Mutex
	broken error
	closed atomic.Bool
}

func dialTCP(ctx context.Context, addr string, o *dialOptions) (exchanger, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &tcpConn{
		conn:    conn,
		r:       wire.NewReader(bufio.NewReader(conn), o.proxies),
		proxies: o.proxies,
		log:     o.logger.WithField("remote", conn.RemoteAddr().String()),
	}, nil
}

func (c *tcpConn) exchange(ctx context.Context, req wire.Message, reply bool) (wire.Message, error) {
	frame, err := encodeMessage(c.proxies, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.broken != nil {
		return nil, &TransportError{Op: "exchange", Err: c.broken}
	}

	dl, _ := ctx.Deadline()
	c.conn.SetDeadline(dl)
	if ctx.Done() != nil {
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			c.conn.SetDeadline(aLongTimeAgo)
			close(fired)
		})
		defer func() {
			if !stop() {
				<-fired
			}
		}()
	}

	if _, err := c.conn.Write(frame); err != nil {
		return nil, c.fail(ctx, "write", err)
	}
	if !reply {
		return nil, nil
	}
	m, err := c.r.ReadMessage()
	if err != nil {
		if err == io.EOF {
			err = ErrNoReply
		}
		return nil, c.fail(ctx, "read", err)
	}
	return m, nil
}

// fail marks the connection unusable. A half-read reply cannot be skipped.
func (c *tcpConn) fail(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	c.broken = err
	c.log.WithError(err).WithField("op", op).Warn("connection failed")
	return &TransportError{Op: op, Err: err}
}

func (c *tcpConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// tcpServer serves one goroutine per accepted connection.
type tcpServer struct {
	listener net.Listener
	h        *handler
	o        *serverOptions
	log      logrus.FieldLogger

	conns  sync.Map
	active atomic.Int64
	closed atomic.Bool
}

func listenTCP(addr string, h *handler, o *serverOptions) (Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpServer{
		listener: l,
		h:        h,
		o:        o,
		log:      o.logger.WithField("transport", TransportTCP),
	}, nil
}

// Serve accepts connections until ctx is done or the server is closed. A
// failed accept is logged and retried; it never stops the loop.
func (s *tcpServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.WithField("addr", s.Addr()).Info("serving")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Warn("accept failed")
			time.Sleep(acceptBackoff)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *tcpServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)
	s.active.Add(1)
	defer s.active.Add(-1)

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	log := s.log.WithField("remote", conn.RemoteAddr().String())
	log.Info("connection opened")

	var proxies wire.Proxies = s.h.proxies
	if s.o.releaseOnClose {
		cp := newConnProxies(s.h.proxies)
		defer func() {
			if n := cp.releaseAll(); n > 0 {
				log.WithField("released", n).Debug("released connection objects")
			}
		}()
		proxies = cp
	}

	r := wire.NewReader(bufio.NewReader(conn), proxies)
	w := bufio.NewWriter(conn)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			switch {
			case err == io.EOF:
				log.Info("connection closed")
			case wire.IsProtocolError(err):
				log.WithError(err).Warn("protocol violation, closing connection")
			case s.closed.Load():
			default:
				log.WithError(err).Info("connection lost")
			}
			return
		}

		reply, err := s.h.dispatch(ctx, msg)
		if err != nil {
			log.WithError(err).Warn("protocol violation, closing connection")
			return
		}
		if reply == nil {
			continue
		}
		if _, err := w.Write(s.h.encodeReply(proxies, reply)); err != nil {
			log.WithError(err).Info("write failed")
			return
		}
		if err := w.Flush(); err != nil {
			log.WithError(err).Info("write failed")
			return
		}
	}
}

func (s *tcpServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ any) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

func (s *tcpServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *tcpServer) Stats() Stats {
	return Stats{
		Transport:   TransportTCP,
		Objects:     s.h.proxies.Len(),
		LastID:      s.h.proxies.LastID(),
		Connections: s.active.Load(),
	}
}

func (s *tcpServer) Proxies() *proxy.Table { return s.h.proxies }
