// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge/proxy"
	"github.com/luxfi/bridge/wire"
)

// handler turns decoded requests into calls on the object model. It holds
// no per-connection state; transports pass their own wire.Proxies.
type handler struct {
	model   ObjectModel
	proxies *proxy.Table
	log     logrus.FieldLogger
}

func newHandler(model ObjectModel, o *serverOptions) *handler {
	return &handler{model: model, proxies: o.proxies, log: o.logger}
}

// dispatch serves one request. It returns a nil reply for Release. The
// error is non-nil only when msg is not a request, which is fatal for the
// connection; every object model failure becomes an Exception reply.
func (h *handler) dispatch(ctx context.Context, msg wire.Message) (wire.Message, error) {
	if !msg.Type().IsRequest() {
		return nil, wire.NewProtocolError(wire.ErrNotRequest, "got %v", msg.Type())
	}
	log := h.log.WithField("type", msg.Type())

	switch m := msg.(type) {
	case *wire.Release:
		released := h.proxies.Release(m.ID)
		log.WithFields(logrus.Fields{"object_id": m.ID, "released": released}).Debug("release")
		return nil, nil
	case *wire.Protect:
		log.WithField("object_id", m.ID).Debug("protect")
		return &wire.Data{}, nil
	case *wire.DescribeType:
		info, err := h.describe(ctx, m.Class)
		if err != nil {
			log.WithField("class", m.Class).WithError(err).Debug("describe failed")
			return exceptionData(err), nil
		}
		return info, nil
	}

	v, err := h.invoke(ctx, msg)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return exceptionData(err), nil
	}
	d, err := wire.NewData(v)
	if err != nil {
		log.WithError(err).Warn("result has no wire representation")
		return exceptionData(err), nil
	}
	log.Debug("request served")
	return d, nil
}

func (h *handler) describe(ctx context.Context, class string) (info *wire.TypeInfo, err error) {
	defer recoverInto(&err)
	info, err = h.model.Describe(ctx, class)
	if err != nil {
		return nil, rootCause(err)
	}
	return info, nil
}

// invoke runs the object model call for msg. Panics are recovered and
// invocation wrappers stripped so only the underlying failure is reported.
func (h *handler) invoke(ctx context.Context, msg wire.Message) (v any, err error) {
	defer recoverInto(&err)
	defer func() {
		if err != nil {
			err = rootCause(err)
		}
	}()

	switch m := msg.(type) {
	case *wire.Create:
		return h.model.Create(ctx, m.Class, m.Args)
	case *wire.CallStaticMethod:
		return h.model.CallStatic(ctx, m.Class, m.Method, m.Args)
	case *wire.GetStaticProperty:
		return h.model.GetStaticProperty(ctx, m.Class, m.Property)
	case *wire.SetStaticProperty:
		return nil, h.model.SetStaticProperty(ctx, m.Class, m.Property, m.Value)
	case *wire.CallMethod:
		obj, err := resolved(m.Target)
		if err != nil {
			return nil, err
		}
		return h.model.Call(ctx, obj, m.Method, m.Args)
	case *wire.GetProperty:
		obj, err := resolved(m.Target)
		if err != nil {
			return nil, err
		}
		return h.model.GetProperty(ctx, obj, m.Property)
	case *wire.SetProperty:
		obj, err := resolved(m.Target)
		if err != nil {
			return nil, err
		}
		return nil, h.model.SetProperty(ctx, obj, m.Property, m.Value)
	case *wire.GetIndexed:
		obj, err := resolved(m.Target)
		if err != nil {
			return nil, err
		}
		return h.model.GetIndexed(ctx, obj, int(m.Index))
	case *wire.GetIndexedProperty:
		obj, err := resolved(m.Target)
		if err != nil {
			return nil, err
		}
		return h.model.GetIndexedProperty(ctx, obj, m.Property, int(m.Index))
	}
	return nil, fmt.Errorf("unsupported request %v", msg.Type())
}

// resolved rejects targets that did not resolve to a local object.
// Placeholders are still accepted as plain arguments.
func resolved(target any) (any, error) {
	if u, ok := target.(wire.Unresolved); ok {
		return nil, fmt.Errorf("could not find object associated with proxy: %d", u.ObjectID())
	}
	return target, nil
}

func recoverInto(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = rootCause(e)
		return
	}
	*err = fmt.Errorf("%v", r)
}

func exceptionData(err error) *wire.Data {
	d, _ := wire.NewData(&wire.Exception{Message: err.Error()})
	return d
}

// encodeMessage renders m into a standalone frame so a value that fails to
// serialize halfway never leaves a partial message on the stream.
func encodeMessage(p wire.Proxies, m wire.Message) ([]byte, error) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, p)
	if err := w.WriteMessage(m); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeReply is encodeMessage with serialization failures reported to the
// client as an exception.
func (h *handler) encodeReply(p wire.Proxies, m wire.Message) []byte {
	b, err := encodeMessage(p, m)
	if err == nil {
		return b
	}
	var se *wire.SerializationError
	if !errors.As(err, &se) {
		h.log.WithError(err).Error("encode reply")
	}
	b, _ = encodeMessage(p, exceptionData(err))
	return b
}

// connProxies holds every id a single connection hands out so they can be
// dropped together when it closes. Ids another connection also holds stay
// live until that connection drops them too.
type connProxies struct {
	table *proxy.Table

	mu    sync.Mutex
	owned map[int32]int
}

func newConnProxies(t *proxy.Table) *connProxies {
	return &connProxies{table: t, owned: make(map[int32]int)}
}

func (c *connProxies) IDFor(obj any) (int32, string, error) {
	if _, remote := obj.(wire.Unresolved); remote {
		return c.table.IDFor(obj)
	}
	id, err := c.table.Retain(obj)
	if err != nil {
		return 0, "", err
	}
	c.mu.Lock()
	c.owned[id]++
	c.mu.Unlock()
	return id, c.table.ClassName(obj), nil
}

func (c *connProxies) Resolve(id int32, class string) any {
	return c.table.Resolve(id, class)
}

// releaseAll drops this connection's holds and returns how many ids were
// released as a result.
func (c *connProxies) releaseAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, holds := range c.owned {
		if c.table.Drop(id, holds) {
			n++
		}
	}
	clear(c.owned)
	return n
}
