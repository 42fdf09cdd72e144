// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"fmt"
	"reflect"
)

// ObjectRef is an object reference as it appears on the wire: an id plus an
// optional class name. Readers without a proxy table return it unresolved.
type ObjectRef struct {
	ID    int32
	Class string
}

func (o *ObjectRef) ObjectID() int32 { return o.ID }

func (o *ObjectRef) String() string {
	return fmt.Sprintf("[ObjectRef: id=%d class=%s]", o.ID, o.Class)
}

// TypeOf reports the wire type a Go value is carried as. Scalars, strings,
// typed slices, *Vector, *Matrix and *Exception map statically. Any other
// slice or array is an ObjectArray and any other comparable value, including
// one that implements error, is an Object.
func TypeOf(v any) (Type, error) {
	switch v.(type) {
	case nil:
		return TypeNull, nil
	case *Exception:
		return TypeException, nil
	case bool:
		return TypeBool, nil
	case uint8:
		return TypeByte, nil
	case int8, int16, uint16, int32:
		return TypeInt32, nil
	case int, uint, int64, uint32, uint64:
		return TypeInt64, nil
	case float32, float64:
		return TypeFloat64, nil
	case string:
		return TypeString, nil
	case *Vector:
		return TypeVector, nil
	case *Matrix:
		return TypeMatrix, nil
	case []bool:
		return TypeBoolArray, nil
	case []byte:
		return TypeByteArray, nil
	case []int32:
		return TypeInt32Array, nil
	case []int, []int64:
		return TypeInt64Array, nil
	case []float32, []float64:
		return TypeFloat64Array, nil
	case []string:
		return TypeStringArray, nil
	case []any:
		return TypeObjectArray, nil
	case *ObjectRef, Unresolved:
		return TypeObject, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return TypeObjectArray, nil
	}
	if rv.Comparable() {
		return TypeObject, nil
	}
	return 0, &SerializationError{GoType: fmt.Sprintf("%T", v)}
}

// WriteValue writes v as a complete data message (magic, type, payload).
// Writing an object registers it with the proxy table.
func (w *Writer) WriteValue(v any) error {
	t, err := TypeOf(v)
	if err != nil {
		return err
	}
	if err := w.writeHeader(t); err != nil {
		return err
	}
	return w.writeValueBody(t, v)
}

func (w *Writer) writeHeader(t Type) error {
	if err := w.writeUint16(Magic); err != nil {
		return err
	}
	return w.writeUint8(uint8(t))
}

func (w *Writer) writeValueBody(t Type, v any) error {
	switch t {
	case TypeNull:
		return nil
	case TypeBool:
		return w.writeBool(v.(bool))
	case TypeByte:
		return w.writeUint8(v.(uint8))
	case TypeInt32:
		return w.writeInt32(int32(toInt64(v)))
	case TypeInt64:
		return w.writeInt64(toInt64(v))
	case TypeFloat64:
		return w.writeFloat64(reflect.ValueOf(v).Float())
	case TypeString:
		return w.writeString(v.(string))
	case TypeException:
		return w.writeString(exceptionText(v))
	case TypeObject:
		return w.writeObject(v)
	case TypeVector:
		return w.writeVector(v.(*Vector))
	case TypeMatrix:
		return w.writeMatrix(v.(*Matrix))
	case TypeBoolArray:
		a := v.([]bool)
		if err := w.writeLen(len(a)); err != nil {
			return err
		}
		for _, x := range a {
			if err := w.writeBool(x); err != nil {
				return err
			}
		}
		return nil
	case TypeByteArray:
		a := v.([]byte)
		if err := w.writeLen(len(a)); err != nil {
			return err
		}
		_, err := w.w.Write(a)
		return err
	case TypeInt32Array:
		a := v.([]int32)
		if err := w.writeLen(len(a)); err != nil {
			return err
		}
		for _, x := range a {
			if err := w.writeInt32(x); err != nil {
				return err
			}
		}
		return nil
	case TypeInt64Array:
		rv := reflect.ValueOf(v)
		if err := w.writeLen(rv.Len()); err != nil {
			return err
		}
		for i := range rv.Len() {
			if err := w.writeInt64(rv.Index(i).Int()); err != nil {
				return err
			}
		}
		return nil
	case TypeFloat64Array:
		rv := reflect.ValueOf(v)
		if err := w.writeLen(rv.Len()); err != nil {
			return err
		}
		for i := range rv.Len() {
			if err := w.writeFloat64(rv.Index(i).Float()); err != nil {
				return err
			}
		}
		return nil
	case TypeStringArray:
		a := v.([]string)
		if err := w.writeLen(len(a)); err != nil {
			return err
		}
		for _, s := range a {
			if err := w.writeString(s); err != nil {
				return err
			}
		}
		return nil
	case TypeObjectArray:
		rv := reflect.ValueOf(v)
		if err := w.writeLen(rv.Len()); err != nil {
			return err
		}
		for i := range rv.Len() {
			if err := w.WriteValue(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return &SerializationError{GoType: fmt.Sprintf("%T", v), Reason: "no encoder for " + t.String()}
}

func toInt64(v any) int64 {
	rv := reflect.ValueOf(v)
	if rv.CanInt() {
		return rv.Int()
	}
	return int64(rv.Uint())
}

func exceptionText(v any) string {
	return v.(*Exception).Message
}

func (w *Writer) writeObject(v any) error {
	var (
		id    int32
		class string
	)
	switch o := v.(type) {
	case *ObjectRef:
		id, class = o.ID, o.Class
	default:
		if w.proxies == nil {
			u, ok := v.(Unresolved)
			if !ok {
				return &SerializationError{GoType: fmt.Sprintf("%T", v), Reason: ErrNoProxies.Error()}
			}
			id = u.ObjectID()
			break
		}
		var err error
		if id, class, err = w.proxies.IDFor(v); err != nil {
			return &SerializationError{GoType: fmt.Sprintf("%T", v), Reason: err.Error()}
		}
	}
	if err := w.writeInt32(id); err != nil {
		return err
	}
	if err := w.writeBool(class != ""); err != nil {
		return err
	}
	if class == "" {
		return nil
	}
	return w.writeString(class)
}

func (w *Writer) writeVector(v *Vector) error {
	if err := w.writeNames(v.names); err != nil {
		return err
	}
	if err := w.writeLen(len(v.values)); err != nil {
		return err
	}
	for _, x := range v.values {
		if err := w.writeFloat64(x); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeMatrix(m *Matrix) error {
	if err := w.writeNames(m.rowNames); err != nil {
		return err
	}
	if err := w.writeNames(m.colNames); err != nil {
		return err
	}
	if err := w.writeLen(m.rows); err != nil {
		return err
	}
	if err := w.writeLen(m.cols); err != nil {
		return err
	}
	// column-major: outer loop over columns, inner over rows
	for _, x := range m.data {
		if err := w.writeFloat64(x); err != nil {
			return err
		}
	}
	return nil
}

// ReadValue reads one complete message and returns the value it carries.
// A request or describe reply in its place is a protocol error.
func (r *Reader) ReadValue() (any, error) {
	m, err := r.ReadMessage()
	if err != nil {
		return nil, err
	}
	d, ok := m.(*Data)
	if !ok {
		return nil, protocolErrorf(ErrNotValue, "got %v", m.Type())
	}
	return d.Value, nil
}

func (r *Reader) readValueBody(t Type) (any, error) {
	switch t {
	case TypeNull:
		return nil, nil
	case TypeBool:
		return r.readBool()
	case TypeByte:
		return r.readUint8()
	case TypeInt32:
		return r.readInt32()
	case TypeInt64:
		return r.readInt64()
	case TypeFloat64:
		return r.readFloat64()
	case TypeString:
		return r.readString()
	case TypeException:
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		return &Exception{Message: s}, nil
	case TypeObject:
		return r.readObject()
	case TypeVector:
		return r.readVector()
	case TypeMatrix:
		return r.readMatrix()
	case TypeBoolArray:
		n, err := r.readLen()
		if err != nil {
			return nil, err
		}
		out := make([]bool, 0, min(n, maxPrealloc))
		for range n {
			b, err := r.readBool()
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	case TypeByteArray:
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case TypeInt32Array:
		n, err := r.readLen()
		if err != nil {
			return nil, err
		}
		out := make([]int32, 0, min(n, maxPrealloc))
		for range n {
			x, err := r.readInt32()
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case TypeInt64Array:
		n, err := r.readLen()
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, min(n, maxPrealloc))
		for range n {
			x, err := r.readInt64()
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case TypeFloat64Array:
		n, err := r.readLen()
		if err != nil {
			return nil, err
		}
		return r.readFloats(n)
	case TypeStringArray:
		n, err := r.readLen()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, min(n, maxPrealloc))
		for range n {
			s, err := r.readString()
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case TypeObjectArray:
		n, err := r.readLen()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, min(n, maxPrealloc))
		for range n {
			v, err := r.ReadValue()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, protocolErrorf(ErrUnknownType, "%d is not a value type", uint8(t))
}

func (r *Reader) readObject() (any, error) {
	id, err := r.readInt32()
	if err != nil {
		return nil, err
	}
	hasClass, err := r.readBool()
	if err != nil {
		return nil, err
	}
	var class string
	if hasClass {
		if class, err = r.readString(); err != nil {
			return nil, err
		}
	}
	if r.proxies == nil {
		return &ObjectRef{ID: id, Class: class}, nil
	}
	return r.proxies.Resolve(id, class), nil
}

func (r *Reader) readVector() (*Vector, error) {
	names, err := r.readNames()
	if err != nil {
		return nil, err
	}
	n, err := r.readLen()
	if err != nil {
		return nil, err
	}
	if len(names) != 0 && len(names) != n {
		return nil, protocolErrorf(ErrBadLength, "vector of %d values has %d names", n, len(names))
	}
	values, err := r.readFloats(n)
	if err != nil {
		return nil, err
	}
	return &Vector{names: names, values: values}, nil
}

func (r *Reader) readMatrix() (*Matrix, error) {
	rowNames, err := r.readNames()
	if err != nil {
		return nil, err
	}
	colNames, err := r.readNames()
	if err != nil {
		return nil, err
	}
	rows, err := r.readLen()
	if err != nil {
		return nil, err
	}
	cols, err := r.readLen()
	if err != nil {
		return nil, err
	}
	if len(rowNames) != 0 && len(rowNames) != rows {
		return nil, protocolErrorf(ErrBadLength, "matrix of %d rows has %d row names", rows, len(rowNames))
	}
	if len(colNames) != 0 && len(colNames) != cols {
		return nil, protocolErrorf(ErrBadLength, "matrix of %d columns has %d column names", cols, len(colNames))
	}
	if rows != 0 && cols > MaxLength/rows {
		return nil, protocolErrorf(ErrBadLength, "matrix %dx%d", rows, cols)
	}
	data, err := r.readFloats(rows * cols)
	if err != nil {
		return nil, err
	}
	return &Matrix{rowNames: rowNames, colNames: colNames, rows: rows, cols: cols, data: data}, nil
}
