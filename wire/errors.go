// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic    = errors.New("wire: wrong magic number")
	ErrUnknownType = errors.New("wire: unknown message type")
	ErrBadLength   = errors.New("wire: invalid length")
	ErrNotValue    = errors.New("wire: expected a value message")
	ErrNotRequest  = errors.New("wire: expected a request message")
	ErrNoProxies   = errors.New("wire: no proxy table for object values")
	ErrTooDeep     = errors.New("wire: messages nested too deeply")
)

// ProtocolError reports a stream that violates the wire format. It is fatal
// for the connection it was read from.
type ProtocolError struct {
	Err    error
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError returns a ProtocolError for err with a formatted detail.
func NewProtocolError(err error, format string, args ...any) error {
	return protocolErrorf(err, format, args...)
}

func protocolErrorf(err error, format string, args ...any) error {
	return &ProtocolError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err, or any error it wraps, is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// SerializationError reports a local value that has no wire representation.
// Nothing is written to the stream when it is returned.
type SerializationError struct {
	GoType string
	Reason string
}

func (e *SerializationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("wire: do not know how to serialize %s", e.GoType)
	}
	return fmt.Sprintf("wire: cannot serialize %s: %s", e.GoType, e.Reason)
}

// Exception is the value form of a remote failure. Only the display text
// crosses the wire.
type Exception struct {
	Message string
}

func (e *Exception) Error() string { return e.Message }
