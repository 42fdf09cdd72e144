// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/luxfi/bridge/wire"
)

func startServer(t *testing.T, ctx context.Context, opts ...ServerOption) Server {
	t.Helper()
	opts = append([]ServerOption{WithLogger(quietLogger())}, opts...)
	server, err := Listen("127.0.0.1:0", fakeModel{}, opts...)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	go server.Serve(ctx)
	time.Sleep(10 * time.Millisecond)
	return server
}

func TestTCPRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx)

	client, err := Dial(ctx, server.Addr(), WithDialLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	obj, err := client.Create(ctx, "Counter")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ref, ok := obj.(*wire.ObjectRef)
	if !ok || ref.ID != 1 || ref.Class != "counter" {
		t.Fatalf("Create = %#v, want object 1 of class counter", obj)
	}
	for want := int32(1); want <= 3; want++ {
		v, err := client.Call(ctx, obj, "Inc")
		if err != nil || v != want {
			t.Fatalf("Inc = %v, %v; want %d", v, err, want)
		}
	}
	if err := client.SetProperty(ctx, obj, "N", int32(10)); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if v, err := client.GetProperty(ctx, obj, "N"); err != nil || v != int32(10) {
		t.Errorf("N = %v, %v", v, err)
	}
	if v, err := client.GetIndexed(ctx, obj, 4); err != nil || v != int32(40) {
		t.Errorf("obj[4] = %v, %v", v, err)
	}
}

// A Release must not produce a reply, so the only bytes the server sends
// back are the reply to the Create that follows it.
func TestReleaseHasNoReply(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx)

	conn, err := net.Dial("tcp", server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	for _, m := range []wire.Message{&wire.Release{ID: 7}, &wire.Create{Class: "Counter"}} {
		frame, err := encodeMessage(nil, m)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := conn.Write(frame); err != nil {
			t.Fatal(err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	r := wire.NewReader(conn, nil)
	reply, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if d, ok := reply.(*wire.Data); !ok || d.Type() != wire.TypeObject {
		t.Fatalf("first reply = %#v, want the created object", reply)
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if extra, err := r.ReadMessage(); err == nil {
		t.Errorf("unexpected extra reply %#v", extra)
	}
}

func TestProtocolViolationClosesConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx)

	conn, err := net.Dial("tcp", server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0xbe, 0xef, 0x00}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("server answered a frame with a bad magic number")
	}

	client, err := Dial(ctx, server.Addr(), WithDialLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial after violation: %v", err)
	}
	defer client.Close()
	obj, err := client.Create(ctx, "Counter")
	if err != nil {
		t.Fatalf("Create after violation: %v", err)
	}
	if v, err := client.GetProperty(ctx, obj, "N"); err != nil || v != int32(0) {
		t.Errorf("N = %v, %v", v, err)
	}
}

func TestReleaseOnClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx, WithReleaseOnClose())

	client, err := Dial(ctx, server.Addr(), WithDialLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := client.Create(ctx, "Counter"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if n := server.Stats().Objects; n != 3 {
		t.Fatalf("Objects = %d, want 3", n)
	}
	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.Stats().Objects != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("objects not released after close: %d left", server.Stats().Objects)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if server.Stats().LastID != 3 {
		t.Errorf("LastID = %d, ids must not be reused", server.Stats().LastID)
	}
}

func TestReleaseOnCloseKeepsSharedObjects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx, WithReleaseOnClose())

	a, err := Dial(ctx, server.Addr(), WithDialLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	b, err := Dial(ctx, server.Addr(), WithDialLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer b.Close()

	objA, err := a.CallStatic(ctx, "Counter", "Shared")
	if err != nil {
		t.Fatalf("Shared on a: %v", err)
	}
	objB, err := b.CallStatic(ctx, "Counter", "Shared")
	if err != nil {
		t.Fatalf("Shared on b: %v", err)
	}
	if objA.(*wire.ObjectRef).ID != objB.(*wire.ObjectRef).ID {
		t.Fatalf("singleton has ids %v and %v", objA, objB)
	}

	a.Close()
	time.Sleep(50 * time.Millisecond)
	if v, err := b.GetProperty(ctx, objB, "N"); err != nil || v != int32(7) {
		t.Fatalf("N after other holder closed = %v, %v", v, err)
	}

	b.Close()
	deadline := time.Now().Add(2 * time.Second)
	for server.Stats().Objects != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("shared object not released after last holder closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListenTwice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx)

	_, err := Listen(server.Addr(), fakeModel{}, WithLogger(quietLogger()))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Listen: got %v, want ErrAlreadyRunning", err)
	}
}

func TestDialRunsStartupHook(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	calls := 0
	startup := func() error {
		calls++
		server, err := Listen(addr, fakeModel{}, WithLogger(quietLogger()))
		if err != nil {
			return err
		}
		t.Cleanup(func() { server.Close() })
		go server.Serve(ctx)
		return nil
	}

	client, err := Dial(ctx, addr,
		WithRetry(5, 20*time.Millisecond),
		WithStartup(startup),
		WithDialLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	if calls != 1 {
		t.Errorf("startup hook ran %d times, want 1", calls)
	}
	if _, err := client.Create(ctx, "Counter"); err != nil {
		t.Errorf("Create: %v", err)
	}
}

func TestDialGivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	_, err = Dial(ctx, addr, WithRetry(2, time.Millisecond), WithDialLogger(quietLogger()))
	if !IsTransport(err) {
		t.Errorf("got %v, want a transport error", err)
	}
}

func TestClosedClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, ctx)

	client, err := Dial(ctx, server.Addr(), WithDialLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Close()
	if _, err := client.Create(ctx, "Counter"); !errors.Is(err, ErrClosed) || !IsTransport(err) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestUnknownTransport(t *testing.T) {
	if _, err := Dial(context.Background(), "127.0.0.1:1", WithTransport("carrier-pigeon")); !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("Dial: got %v", err)
	}
	if HasTransport("carrier-pigeon") || !HasTransport(TransportTCP) || !HasTransport(TransportGRPC) {
		t.Errorf("AvailableTransports = %v", AvailableTransports())
	}
}
