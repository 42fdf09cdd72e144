// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"fmt"
	"math"
)

// Message is one unit on the wire. The set of implementations is closed:
// *Data for values, one struct per request, and *TypeInfo for describe
// replies.
type Message interface {
	Type() Type
	encode(w *Writer) error
	decode(r *Reader) error
}

// Data carries a single value.
type Data struct {
	Value any
	typ   Type
}

// NewData wraps v, failing if v has no wire representation.
func NewData(v any) (*Data, error) {
	t, err := TypeOf(v)
	if err != nil {
		return nil, err
	}
	return &Data{Value: v, typ: t}, nil
}

func (d *Data) Type() Type { return d.typ }

func (d *Data) encode(w *Writer) error { return w.writeValueBody(d.typ, d.Value) }

func (d *Data) decode(r *Reader) (err error) {
	d.Value, err = r.readValueBody(d.typ)
	return err
}

// Create instantiates Class with Args.
type Create struct {
	Class string
	Args  []any
}

func (*Create) Type() Type { return TypeCreate }

func (m *Create) encode(w *Writer) error {
	if err := w.writeString(m.Class); err != nil {
		return err
	}
	return w.writeArgs(m.Args)
}

func (m *Create) decode(r *Reader) (err error) {
	if m.Class, err = r.readString(); err != nil {
		return err
	}
	m.Args, err = r.readArgs()
	return err
}

// CallStaticMethod invokes a class-level method.
type CallStaticMethod struct {
	Class  string
	Method string
	Args   []any
}

func (*CallStaticMethod) Type() Type { return TypeCallStaticMethod }

func (m *CallStaticMethod) encode(w *Writer) error {
	if err := w.writeString(m.Class); err != nil {
		return err
	}
	if err := w.writeString(m.Method); err != nil {
		return err
	}
	return w.writeArgs(m.Args)
}

func (m *CallStaticMethod) decode(r *Reader) (err error) {
	if m.Class, err = r.readString(); err != nil {
		return err
	}
	if m.Method, err = r.readString(); err != nil {
		return err
	}
	m.Args, err = r.readArgs()
	return err
}

// CallMethod invokes Method on the object Target.
type CallMethod struct {
	Target any
	Method string
	Args   []any
}

func (*CallMethod) Type() Type { return TypeCallMethod }

func (m *CallMethod) encode(w *Writer) error {
	if err := w.writeTarget(m.Target); err != nil {
		return err
	}
	if err := w.writeString(m.Method); err != nil {
		return err
	}
	return w.writeArgs(m.Args)
}

func (m *CallMethod) decode(r *Reader) (err error) {
	if m.Target, err = r.readTarget(); err != nil {
		return err
	}
	if m.Method, err = r.readString(); err != nil {
		return err
	}
	m.Args, err = r.readArgs()
	return err
}

// GetProperty reads a named property of Target.
type GetProperty struct {
	Target   any
	Property string
}

func (*GetProperty) Type() Type { return TypeGetProperty }

func (m *GetProperty) encode(w *Writer) error {
	if err := w.writeTarget(m.Target); err != nil {
		return err
	}
	return w.writeString(m.Property)
}

func (m *GetProperty) decode(r *Reader) (err error) {
	if m.Target, err = r.readTarget(); err != nil {
		return err
	}
	m.Property, err = r.readString()
	return err
}

// GetIndexedProperty reads element Index of the property Property of Target.
type GetIndexedProperty struct {
	Target   any
	Property string
	Index    int32
}

func (*GetIndexedProperty) Type() Type { return TypeGetIndexedProperty }

func (m *GetIndexedProperty) encode(w *Writer) error {
	if err := w.writeTarget(m.Target); err != nil {
		return err
	}
	if err := w.writeString(m.Property); err != nil {
		return err
	}
	return w.writeInt32(m.Index)
}

func (m *GetIndexedProperty) decode(r *Reader) (err error) {
	if m.Target, err = r.readTarget(); err != nil {
		return err
	}
	if m.Property, err = r.readString(); err != nil {
		return err
	}
	m.Index, err = r.readInt32()
	return err
}

// GetIndexed reads element Index of Target itself.
type GetIndexed struct {
	Target any
	Index  int32
}

func (*GetIndexed) Type() Type { return TypeGetIndexed }

func (m *GetIndexed) encode(w *Writer) error {
	if err := w.writeTarget(m.Target); err != nil {
		return err
	}
	return w.writeInt32(m.Index)
}

func (m *GetIndexed) decode(r *Reader) (err error) {
	if m.Target, err = r.readTarget(); err != nil {
		return err
	}
	m.Index, err = r.readInt32()
	return err
}

// SetProperty assigns Value to a named property of Target.
type SetProperty struct {
	Target   any
	Property string
	Value    any
}

func (*SetProperty) Type() Type { return TypeSetProperty }

func (m *SetProperty) encode(w *Writer) error {
	if err := w.writeTarget(m.Target); err != nil {
		return err
	}
	if err := w.writeString(m.Property); err != nil {
		return err
	}
	return w.WriteValue(m.Value)
}

func (m *SetProperty) decode(r *Reader) (err error) {
	if m.Target, err = r.readTarget(); err != nil {
		return err
	}
	if m.Property, err = r.readString(); err != nil {
		return err
	}
	m.Value, err = r.ReadValue()
	return err
}

// GetStaticProperty reads a class-level property.
type GetStaticProperty struct {
	Class    string
	Property string
}

func (*GetStaticProperty) Type() Type { return TypeGetStaticProperty }

func (m *GetStaticProperty) encode(w *Writer) error {
	if err := w.writeString(m.Class); err != nil {
		return err
	}
	return w.writeString(m.Property)
}

func (m *GetStaticProperty) decode(r *Reader) (err error) {
	if m.Class, err = r.readString(); err != nil {
		return err
	}
	m.Property, err = r.readString()
	return err
}

// SetStaticProperty assigns a class-level property.
type SetStaticProperty struct {
	Class    string
	Property string
	Value    any
}

func (*SetStaticProperty) Type() Type { return TypeSetStaticProperty }

func (m *SetStaticProperty) encode(w *Writer) error {
	if err := w.writeString(m.Class); err != nil {
		return err
	}
	if err := w.writeString(m.Property); err != nil {
		return err
	}
	return w.WriteValue(m.Value)
}

func (m *SetStaticProperty) decode(r *Reader) (err error) {
	if m.Class, err = r.readString(); err != nil {
		return err
	}
	if m.Property, err = r.readString(); err != nil {
		return err
	}
	m.Value, err = r.ReadValue()
	return err
}

// Protect pins a server-side object. Servers treat it as a no-op.
type Protect struct {
	ID int32
}

func (*Protect) Type() Type { return TypeProtect }

func (m *Protect) encode(w *Writer) error { return w.writeInt32(m.ID) }

func (m *Protect) decode(r *Reader) (err error) {
	m.ID, err = r.readInt32()
	return err
}

// Release tells the server the client no longer holds ID. It has no reply.
type Release struct {
	ID int32
}

func (*Release) Type() Type { return TypeRelease }

func (m *Release) encode(w *Writer) error { return w.writeInt32(m.ID) }

func (m *Release) decode(r *Reader) (err error) {
	m.ID, err = r.readInt32()
	return err
}

// DescribeType asks for the public members of Class.
type DescribeType struct {
	Class string
}

func (*DescribeType) Type() Type { return TypeDescribeTypeRequest }

func (m *DescribeType) encode(w *Writer) error { return w.writeString(m.Class) }

func (m *DescribeType) decode(r *Reader) (err error) {
	m.Class, err = r.readString()
	return err
}

// TypeInfo is the reply to DescribeType.
type TypeInfo struct {
	Properties    []string
	Methods       []string
	StaticMethods []string
}

func (*TypeInfo) Type() Type { return TypeDescribeTypeReply }

func (m *TypeInfo) encode(w *Writer) error {
	for _, l := range [][]string{m.Properties, m.Methods, m.StaticMethods} {
		if err := w.writeNames(l); err != nil {
			return err
		}
	}
	return nil
}

func (m *TypeInfo) decode(r *Reader) (err error) {
	if m.Properties, err = r.readNames(); err != nil {
		return err
	}
	if m.Methods, err = r.readNames(); err != nil {
		return err
	}
	m.StaticMethods, err = r.readNames()
	return err
}

func newMessage(t Type) (Message, error) {
	switch t {
	case TypeCreate:
		return &Create{}, nil
	case TypeCallStaticMethod:
		return &CallStaticMethod{}, nil
	case TypeCallMethod:
		return &CallMethod{}, nil
	case TypeGetProperty:
		return &GetProperty{}, nil
	case TypeGetIndexedProperty:
		return &GetIndexedProperty{}, nil
	case TypeGetIndexed:
		return &GetIndexed{}, nil
	case TypeSetProperty:
		return &SetProperty{}, nil
	case TypeGetStaticProperty:
		return &GetStaticProperty{}, nil
	case TypeSetStaticProperty:
		return &SetStaticProperty{}, nil
	case TypeProtect:
		return &Protect{}, nil
	case TypeRelease:
		return &Release{}, nil
	case TypeDescribeTypeRequest:
		return &DescribeType{}, nil
	case TypeDescribeTypeReply:
		return &TypeInfo{}, nil
	}
	if t.IsValue() {
		return &Data{typ: t}, nil
	}
	return nil, protocolErrorf(ErrUnknownType, "%d", uint8(t))
}

// WriteMessage writes m with its header. The caller flushes.
func (w *Writer) WriteMessage(m Message) error {
	if err := w.writeHeader(m.Type()); err != nil {
		return err
	}
	return m.encode(w)
}

// MaxDepth bounds how deeply ObjectArray values may nest, counting the
// outermost message.
const MaxDepth = 64

// ReadMessage reads the next message. A stream that ends cleanly before the
// magic number returns io.EOF; one that ends anywhere later returns
// io.ErrUnexpectedEOF.
func (r *Reader) ReadMessage() (Message, error) {
	magic, err := r.readUint16()
	if err != nil {
		return nil, err
	}
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > MaxDepth {
		return nil, protocolErrorf(ErrTooDeep, "more than %d levels", MaxDepth)
	}

	if magic != Magic {
		return nil, protocolErrorf(ErrBadMagic, "got 0x%04x", magic)
	}
	t, err := r.readUint8()
	if err != nil {
		return nil, err
	}
	m, err := newMessage(Type(t))
	if err != nil {
		return nil, err
	}
	if err := m.decode(r); err != nil {
		return nil, err
	}
	return m, nil
}

func (w *Writer) writeArgs(args []any) error {
	if len(args) > math.MaxUint16 {
		return &SerializationError{GoType: "arguments", Reason: fmt.Sprintf("%d exceeds %d", len(args), math.MaxUint16)}
	}
	if err := w.writeUint16(uint16(len(args))); err != nil {
		return err
	}
	for _, a := range args {
		if err := w.WriteValue(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readArgs() ([]any, error) {
	n, err := r.readUint16()
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, n)
	for range n {
		v, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// Targets travel as a bare id; the class is not sent.
func (w *Writer) writeTarget(target any) error {
	switch t := target.(type) {
	case *ObjectRef:
		return w.writeInt32(t.ID)
	case Unresolved:
		return w.writeInt32(t.ObjectID())
	}
	if w.proxies == nil {
		return &SerializationError{GoType: fmt.Sprintf("%T", target), Reason: ErrNoProxies.Error()}
	}
	id, _, err := w.proxies.IDFor(target)
	if err != nil {
		return &SerializationError{GoType: fmt.Sprintf("%T", target), Reason: err.Error()}
	}
	return w.writeInt32(id)
}

func (r *Reader) readTarget() (any, error) {
	id, err := r.readInt32()
	if err != nil {
		return nil, err
	}
	if r.proxies == nil {
		return &ObjectRef{ID: id}, nil
	}
	return r.proxies.Resolve(id, ""), nil
}
