// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"sync"

	"github.com/luxfi/bridge/wire"
)

// Serialized wraps an object model that is not safe for concurrent use so
// that only one connection invokes it at a time.
func Serialized(m ObjectModel) ObjectModel {
	return &serialized{m: m}
}

type serialized struct {
	mu sync.Mutex
	m  ObjectModel
}

func (s *serialized) Create(ctx context.Context, class string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Create(ctx, class, args)
}

func (s *serialized) CallStatic(ctx context.Context, class, method string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.CallStatic(ctx, class, method, args)
}

func (s *serialized) Call(ctx context.Context, obj any, method string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Call(ctx, obj, method, args)
}

func (s *serialized) GetProperty(ctx context.Context, obj any, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.GetProperty(ctx, obj, name)
}

func (s *serialized) SetProperty(ctx context.Context, obj any, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.SetProperty(ctx, obj, name, value)
}

func (s *serialized) GetStaticProperty(ctx context.Context, class, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.GetStaticProperty(ctx, class, name)
}

func (s *serialized) SetStaticProperty(ctx context.Context, class, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.SetStaticProperty(ctx, class, name, value)
}

func (s *serialized) GetIndexed(ctx context.Context, obj any, index int) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.GetIndexed(ctx, obj, index)
}

func (s *serialized) GetIndexedProperty(ctx context.Context, obj any, name string, index int) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.GetIndexedProperty(ctx, obj, name, index)
}

func (s *serialized) Describe(ctx context.Context, class string) (*wire.TypeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Describe(ctx, class)
}

// ClassName forwards to the wrapped model when it names its own classes.
func (s *serialized) ClassName(obj any) string {
	if n, ok := s.m.(ClassNamer); ok {
		return n.ClassName(obj)
	}
	return ""
}

func (s *serialized) Classes() []string {
	if l, ok := s.m.(ClassLister); ok {
		return l.Classes()
	}
	return nil
}
