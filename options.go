// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"net/http"
	"net/url"
	"time"
)

// Option adjusts an admin JSON-RPC request.
type Option func(*Options)

type Options struct {
	headers     http.Header
	queryParams url.Values
	attempts    int
	backoff     time.Duration
}

func NewOptions(ops []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
		attempts:    defaultAdminAttempts,
		backoff:     defaultAdminBackoff,
	}
	for _, op := range ops {
		op(o)
	}
	return o
}

func WithHeader(key, value string) Option {
	return func(o *Options) {
		o.headers.Set(key, value)
	}
}

func WithQueryParam(key, value string) Option {
	return func(o *Options) {
		o.queryParams.Set(key, value)
	}
}

// WithAdminRetry sets how many times a request is tried when the connection
// fails, and the wait before the first retry. Later waits double.
func WithAdminRetry(attempts int, backoff time.Duration) Option {
	return func(o *Options) {
		if attempts > 0 {
			o.attempts = attempts
		}
		o.backoff = backoff
	}
}
