// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"slices"
	"sync"

	"github.com/luxfi/bridge/wire"
)

// Transport types
const (
	TransportTCP  = "tcp"  // raw frames over one TCP connection, default
	TransportGRPC = "grpc" // frames carried in unary gRPC calls
)

// DefaultTransport is the default transport type (tcp)
const DefaultTransport = TransportTCP

// exchanger sends one request and, when reply is set, waits for the one
// message that answers it.
type exchanger interface {
	exchange(ctx context.Context, req wire.Message, reply bool) (wire.Message, error)
	Close() error
}

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (exchanger, error)
type listenFunc func(addr string, h *handler, o *serverOptions) (Server, error)

type transport struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transport{
		TransportTCP: {dialTCP, listenTCP},
	}
)

// registerTransport registers a new transport
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transport{dial, listen}
}

func lookupTransport(name string) (transport, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	return t, ok
}

// AvailableTransports returns the registered transport types, sorted
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
