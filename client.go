// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge/proxy"
	"github.com/luxfi/bridge/wire"
)

// ObjectModel creates objects and invokes their members on behalf of remote
// clients. Implementations are called from one goroutine per connection and
// must be safe for concurrent use; wrap one that is not with Serialized.
type ObjectModel interface {
	Create(ctx context.Context, class string, args []any) (any, error)
	CallStatic(ctx context.Context, class, method string, args []any) (any, error)
	Call(ctx context.Context, obj any, method string, args []any) (any, error)

	GetProperty(ctx context.Context, obj any, name string) (any, error)
	SetProperty(ctx context.Context, obj any, name string, value any) error
	GetStaticProperty(ctx context.Context, class, name string) (any, error)
	SetStaticProperty(ctx context.Context, class, name string, value any) error

	GetIndexed(ctx context.Context, obj any, index int) (any, error)
	GetIndexedProperty(ctx context.Context, obj any, name string, index int) (any, error)

	// Describe lists the public members of class.
	Describe(ctx context.Context, class string) (*wire.TypeInfo, error)
}

// ClassNamer is implemented by object models that know the class name to
// transmit for their objects.
type ClassNamer interface {
	ClassName(obj any) string
}

// ClassLister is implemented by object models that can enumerate classes.
type ClassLister interface {
	Classes() []string
}

// Client is a connection to a bridge server. Object results come back as
// references (*wire.ObjectRef, or *proxy.Ref with WithClientProxies) that
// can be passed as targets or arguments of later calls.
//
// A Client owns one connection and serves one call at a time.
type Client interface {
	Create(ctx context.Context, class string, args ...any) (any, error)
	CallStatic(ctx context.Context, class, method string, args ...any) (any, error)
	Call(ctx context.Context, obj any, method string, args ...any) (any, error)

	GetProperty(ctx context.Context, obj any, name string) (any, error)
	SetProperty(ctx context.Context, obj any, name string, value any) error
	GetStaticProperty(ctx context.Context, class, name string) (any, error)
	SetStaticProperty(ctx context.Context, class, name string, value any) error

	GetIndexed(ctx context.Context, obj any, index int32) (any, error)
	GetIndexedProperty(ctx context.Context, obj any, name string, index int32) (any, error)

	// Describe returns the members of class. Replies are cached.
	Describe(ctx context.Context, class string) (*wire.TypeInfo, error)

	// Protect is reserved for pinning server objects. Servers ignore it.
	Protect(ctx context.Context, obj any) error

	// Release drops the server's reference to obj. No reply is awaited.
	Release(ctx context.Context, obj any) error

	Close() error
}

// Server accepts bridge connections.
type Server interface {
	// Serve accepts connections until ctx is cancelled or Close is called
	Serve(ctx context.Context) error

	Close() error

	// Addr returns the server's listen address
	Addr() string

	Stats() Stats

	// Proxies returns the table of objects handed out to clients
	Proxies() *proxy.Table
}

// Stats is a snapshot of server state.
type Stats struct {
	Transport   string
	Objects     int
	LastID      int32
	Connections int64
}

const (
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = 2 * time.Second
)

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	transport string
	attempts  int
	delay     time.Duration
	startup   func() error
	proxies   wire.Proxies
	logger    logrus.FieldLogger
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithRetry sets how many times the initial connection is attempted and the
// pause between attempts.
func WithRetry(attempts int, delay time.Duration) DialOption {
	return func(o *dialOptions) {
		o.attempts = max(attempts, 1)
		o.delay = delay
	}
}

// WithStartup registers a hook run once when the first connection attempt
// is refused, typically to launch the server. Retries continue afterwards.
func WithStartup(fn func() error) DialOption {
	return func(o *dialOptions) { o.startup = fn }
}

// WithClientProxies sets the table used to resolve object references in
// replies and to register local objects sent as arguments.
func WithClientProxies(p wire.Proxies) DialOption {
	return func(o *dialOptions) { o.proxies = p }
}

// WithDialLogger sets the client logger.
func WithDialLogger(l logrus.FieldLogger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport      string
	logger         logrus.FieldLogger
	proxies        *proxy.Table
	releaseOnClose bool
	adminAddr      string
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithLogger sets the server logger.
func WithLogger(l logrus.FieldLogger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithProxyTable shares an existing proxy table with the server.
func WithProxyTable(t *proxy.Table) ServerOption {
	return func(o *serverOptions) { o.proxies = t }
}

// WithReleaseOnClose makes a connection release every object id it handed
// out when it closes. Only the tcp transport has connections to track.
func WithReleaseOnClose() ServerOption {
	return func(o *serverOptions) { o.releaseOnClose = true }
}

// WithAdmin serves the JSON-RPC admin API on addr while the server runs.
func WithAdmin(addr string) ServerOption {
	return func(o *serverOptions) { o.adminAddr = addr }
}
