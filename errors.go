// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("bridge: connection closed")
	ErrAlreadyRunning   = errors.New("bridge: address in use, another server is already running")
	ErrNoReply          = errors.New("bridge: server sent no reply")
	ErrUnknownTransport = errors.New("bridge: unknown transport")
	ErrNotObject        = errors.New("bridge: value is not an object reference")
)

// RemoteError is an application failure raised on the server. Only the
// message survives the trip.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// TransportError reports that the connection itself failed: dial, read,
// write or a malformed reply.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bridge %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvocationError wraps a failure raised while invoking a member through
// reflection. Servers report the wrapped cause, never the wrapper.
type InvocationError struct {
	Member string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s: %v", e.Member, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsRemote reports whether err came back from the server as an exception.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsTransport reports whether err means the connection failed.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrClosed)
}

// rootCause strips invocation wrappers until the underlying failure.
func rootCause(err error) error {
	for {
		var ie *InvocationError
		if !errors.As(err, &ie) || ie.Err == nil {
			return err
		}
		err = ie.Err
	}
}
