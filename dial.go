// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge/proxy"
)

// Dial connects to a bridge server using the default transport (tcp). The
// first connection is retried according to WithRetry; after that the
// client never reconnects.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Client, error) {
	o := &dialOptions{
		transport: DefaultTransport,
		attempts:  DefaultRetryAttempts,
		delay:     DefaultRetryDelay,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, o.transport)
	}
	log := o.logger.WithFields(logrus.Fields{"transport": o.transport, "addr": addr})
	conn, err := retry(ctx, o, log, func() (exchanger, error) {
		return t.dial(ctx, addr, o)
	})
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return newStub(conn), nil
}

// retry runs fn up to o.attempts times with o.delay between attempts and
// returns the last error. The startup hook runs once, after the first
// refused connection.
func retry[T any](ctx context.Context, o *dialOptions, log logrus.FieldLogger, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
		started bool
	)
	for attempt := 1; attempt <= o.attempts; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 1 {
				log.WithField("attempt", attempt).Info("connected")
			}
			return v, nil
		}
		lastErr = err

		if o.startup != nil && !started && errors.Is(err, syscall.ECONNREFUSED) {
			started = true
			log.Info("connection refused, running startup hook")
			if serr := o.startup(); serr != nil {
				log.WithError(serr).Warn("startup hook failed")
			}
		}
		if attempt == o.attempts {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Debug("connect failed, retrying")
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(o.delay):
		}
	}
	return zero, lastErr
}

// Listen binds addr for the default transport (tcp). When the address is
// already in use another server is assumed to own it: the condition is
// logged and ErrAlreadyRunning returned.
func Listen(addr string, model ObjectModel, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.proxies == nil {
		if n, ok := model.(ClassNamer); ok {
			o.proxies = proxy.New(proxy.WithNamer(func(obj any) string {
				if name := n.ClassName(obj); name != "" {
					return name
				}
				return proxy.DefaultName(obj)
			}))
		} else {
			o.proxies = proxy.New()
		}
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, o.transport)
	}
	srv, err := t.listen(addr, newHandler(model, o), o)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			o.logger.WithField("addr", addr).Warn("address in use, another server is already running")
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if o.adminAddr == "" {
		return srv, nil
	}
	return newAdminServer(srv, model, o)
}
