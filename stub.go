// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/luxfi/bridge/wire"
)

// stub implements Client over any transport.
type stub struct {
	conn exchanger

	mu        sync.Mutex
	described map[string]*wire.TypeInfo
}

func newStub(conn exchanger) *stub {
	return &stub{conn: conn, described: make(map[string]*wire.TypeInfo)}
}

// call sends req and returns the value of its reply. An exception reply is
// returned as a *RemoteError.
func (s *stub) call(ctx context.Context, req wire.Message) (any, error) {
	m, err := s.conn.exchange(ctx, req, true)
	if err != nil {
		return nil, err
	}
	d, ok := m.(*wire.Data)
	if !ok {
		return nil, &TransportError{Op: "read", Err: wire.NewProtocolError(wire.ErrNotValue, "reply to %v was %v", req.Type(), m.Type())}
	}
	if e, ok := d.Value.(*wire.Exception); ok {
		return nil, &RemoteError{Message: e.Message}
	}
	return d.Value, nil
}

func (s *stub) Create(ctx context.Context, class string, args ...any) (any, error) {
	return s.call(ctx, &wire.Create{Class: class, Args: args})
}

func (s *stub) CallStatic(ctx context.Context, class, method string, args ...any) (any, error) {
	return s.call(ctx, &wire.CallStaticMethod{Class: class, Method: method, Args: args})
}

func (s *stub) Call(ctx context.Context, obj any, method string, args ...any) (any, error) {
	return s.call(ctx, &wire.CallMethod{Target: obj, Method: method, Args: args})
}

func (s *stub) GetProperty(ctx context.Context, obj any, name string) (any, error) {
	return s.call(ctx, &wire.GetProperty{Target: obj, Property: name})
}

func (s *stub) SetProperty(ctx context.Context, obj any, name string, value any) error {
	_, err := s.call(ctx, &wire.SetProperty{Target: obj, Property: name, Value: value})
	return err
}

func (s *stub) GetStaticProperty(ctx context.Context, class, name string) (any, error) {
	return s.call(ctx, &wire.GetStaticProperty{Class: class, Property: name})
}

func (s *stub) SetStaticProperty(ctx context.Context, class, name string, value any) error {
	_, err := s.call(ctx, &wire.SetStaticProperty{Class: class, Property: name, Value: value})
	return err
}

func (s *stub) GetIndexed(ctx context.Context, obj any, index int32) (any, error) {
	return s.call(ctx, &wire.GetIndexed{Target: obj, Index: index})
}

func (s *stub) GetIndexedProperty(ctx context.Context, obj any, name string, index int32) (any, error) {
	return s.call(ctx, &wire.GetIndexedProperty{Target: obj, Property: name, Index: index})
}

func (s *stub) Describe(ctx context.Context, class string) (*wire.TypeInfo, error) {
	s.mu.Lock()
	info, ok := s.described[class]
	s.mu.Unlock()
	if ok {
		return info, nil
	}

	req := &wire.DescribeType{Class: class}
	m, err := s.conn.exchange(ctx, req, true)
	if err != nil {
		return nil, err
	}
	switch r := m.(type) {
	case *wire.TypeInfo:
		s.mu.Lock()
		s.described[class] = r
		s.mu.Unlock()
		return r, nil
	case *wire.Data:
		if e, ok := r.Value.(*wire.Exception); ok {
			return nil, &RemoteError{Message: e.Message}
		}
	}
	return nil, &TransportError{Op: "read", Err: wire.NewProtocolError(wire.ErrNotValue, "reply to %v was %v", req.Type(), m.Type())}
}

func (s *stub) Protect(ctx context.Context, obj any) error {
	id, err := objectID(obj)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, &wire.Protect{ID: id})
	return err
}

func (s *stub) Release(ctx context.Context, obj any) error {
	id, err := objectID(obj)
	if err != nil {
		return err
	}
	_, err = s.conn.exchange(ctx, &wire.Release{ID: id}, false)
	return err
}

func (s *stub) Close() error {
	return s.conn.Close()
}

// objectID accepts a reference returned by the server or a raw id.
func objectID(obj any) (int32, error) {
	switch o := obj.(type) {
	case wire.Unresolved:
		return o.ObjectID(), nil
	case int32:
		return o, nil
	case int:
		if o < math.MinInt32 || o > math.MaxInt32 {
			return 0, fmt.Errorf("%w: id %d out of range", ErrNotObject, o)
		}
		return int32(o), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrNotObject, obj)
}
