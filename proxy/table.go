// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package proxy keeps the two-way association between live objects and the
// integer ids that stand in for them on the wire.
package proxy

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

var ErrNotComparable = errors.New("proxy: object type cannot be used as a table key")

// Ref stands in for an object that lives on the other side of a connection,
// or for an id this table no longer knows about.
type Ref struct {
	ID    int32
	Class string
}

func (r *Ref) ObjectID() int32 { return r.ID }

func (r *Ref) String() string {
	return fmt.Sprintf("[ObjectProxy: id=%d]", r.ID)
}

// Namer returns the class name sent alongside an object.
type Namer func(obj any) string

// Option configures a Table.
type Option func(*Table)

// WithNamer overrides how class names are derived for registered objects.
func WithNamer(n Namer) Option {
	return func(t *Table) { t.namer = n }
}

// Table maps objects to ids and back. Ids start at 1, increase
// monotonically and are never reused, even after a release. It is safe for
// concurrent use.
//
// Holders taken with Retain are counted per id so an id shared by several
// connections survives until the last of them drops it.
type Table struct {
	mu     sync.RWMutex
	next   atomic.Int32
	byID   map[int32]any
	byObj  map[any]int32
	owners map[int32]int
	namer  Namer
}

// New returns an empty table.
func New(opts ...Option) *Table {
	t := &Table{
		byID:   make(map[int32]any),
		byObj:  make(map[any]int32),
		owners: make(map[int32]int),
		namer:  DefaultName,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DefaultName is the Go type name of obj without pointer markers or the
// package qualifier.
func DefaultName(obj any) string {
	name := strings.TrimLeft(reflect.TypeOf(obj).String(), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// ProxyFor returns the id registered for obj, allocating the next id when
// obj is new. Calling it twice with the same object yields the same id.
func (t *Table) ProxyFor(obj any) (int32, error) {
	return t.proxyFor(obj, false)
}

// Retain is ProxyFor that also counts one more holder of the id.
func (t *Table) Retain(obj any) (int32, error) {
	return t.proxyFor(obj, true)
}

func (t *Table) proxyFor(obj any, hold bool) (int32, error) {
	if u, ok := obj.(interface{ ObjectID() int32 }); ok {
		return u.ObjectID(), nil
	}
	if obj == nil || !reflect.ValueOf(obj).Comparable() {
		return 0, fmt.Errorf("%w: %T", ErrNotComparable, obj)
	}

	if !hold {
		t.mu.RLock()
		id, ok := t.byObj[obj]
		t.mu.RUnlock()
		if ok {
			return id, nil
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byObj[obj]
	if !ok {
		id = t.next.Add(1)
		t.byObj[obj] = id
		t.byID[id] = obj
	}
	if hold {
		t.owners[id]++
	}
	return id, nil
}

// Drop gives up n holds on id taken with Retain. The id is released when
// no holds remain; Drop reports whether that happened.
func (t *Table) Drop(id int32, n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return false
	}
	if left := t.owners[id] - n; left > 0 {
		t.owners[id] = left
		return false
	}
	t.release(id)
	return true
}

// IDFor is ProxyFor plus the class name to transmit. A Ref passes through
// with its own id and class.
func (t *Table) IDFor(obj any) (int32, string, error) {
	if r, ok := obj.(*Ref); ok {
		return r.ID, r.Class, nil
	}
	id, err := t.ProxyFor(obj)
	if err != nil {
		return 0, "", err
	}
	return id, t.ClassName(obj), nil
}

// ClassName returns the name transmitted with obj.
func (t *Table) ClassName(obj any) string {
	if n, ok := obj.(interface{ ClassName() string }); ok {
		return n.ClassName()
	}
	return t.namer(obj)
}

// Lookup returns the object registered under id.
func (t *Table) Lookup(id int32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj, ok := t.byID[id]
	return obj, ok
}

// Find returns the object registered under id, or a *Ref carrying the id
// when there is none.
func (t *Table) Find(id int32) any {
	return t.Resolve(id, "")
}

// Resolve is Find with a class name for the placeholder.
func (t *Table) Resolve(id int32, class string) any {
	if obj, ok := t.Lookup(id); ok {
		return obj
	}
	return &Ref{ID: id, Class: class}
}

// Release forgets id at once, whatever holds remain. Releasing an unknown
// id is a no-op. It reports whether anything was removed.
func (t *Table) Release(id int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return false
	}
	t.release(id)
	return true
}

func (t *Table) release(id int32) {
	delete(t.byObj, t.byID[id])
	delete(t.byID, id)
	delete(t.owners, id)
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// LastID returns the most recently allocated id, or 0.
func (t *Table) LastID() int32 { return t.next.Load() }
