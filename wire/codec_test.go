// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"reflect"
	"testing"
)

func encodeValue(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	if err := w.WriteValue(v); err != nil {
		t.Fatalf("WriteValue(%v): %v", v, err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buf.Bytes()
}

func decodeValue(t *testing.T, b []byte) any {
	t.Helper()
	v, err := NewReader(bytes.NewReader(b), nil).ReadValue()
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	return v
}

func TestScalarEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []byte
	}{
		{"null", nil, []byte{0xd0, 0x0d, 0}},
		{"true", true, []byte{0xd0, 0x0d, 1, 1}},
		{"byte", uint8(7), []byte{0xd0, 0x0d, 2, 7}},
		{"int32", int32(-2), []byte{0xd0, 0x0d, 5, 0xff, 0xff, 0xff, 0xfe}},
		{"int64", int64(258), []byte{0xd0, 0x0d, 6, 0, 0, 0, 0, 0, 0, 1, 2}},
		{"string", "hi", []byte{0xd0, 0x0d, 8, 0, 0, 0, 2, 'h', 'i'}},
		{"object", &ObjectRef{ID: 3, Class: "W"}, []byte{0xd0, 0x0d, 9, 0, 0, 0, 3, 1, 0, 0, 0, 1, 'W'}},
		{"exception", &Exception{Message: "x"}, []byte{0xd0, 0x0d, 23, 0, 0, 0, 1, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeValue(t, tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestValueRoundTrip(t *testing.T) {
	vec, err := NewNamedVector([]string{"a", "b"}, []float64{1.5, -2})
	if err != nil {
		t.Fatalf("NewNamedVector: %v", err)
	}
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int widens", 42, int64(42)},
		{"int16 to int32", int16(-9), int32(-9)},
		{"float32", float32(0.5), 0.5},
		{"infinity", math.Inf(1), math.Inf(1)},
		{"empty string", "", ""},
		{"utf8 bytes pass through", "hé", "hé"},
		{"bools", []bool{true, false}, []bool{true, false}},
		{"bytes", []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"int32s", []int32{1, -1}, []int32{1, -1}},
		{"ints", []int{4, 5}, []int64{4, 5}},
		{"float32s", []float32{0.25}, []float64{0.25}},
		{"strings", []string{"x", ""}, []string{"x", ""}},
		{"mixed", []any{int32(1), "two", nil}, []any{int32(1), "two", nil}},
		{"nested", []any{[]any{true}}, []any{[]any{true}}},
		{"vector", vec, vec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeValue(t, encodeValue(t, tt.in))
			switch want := tt.want.(type) {
			case *Vector:
				if !want.Equal(got.(*Vector)) {
					t.Errorf("got %v, want %v", got, want)
				}
			default:
				if !reflect.DeepEqual(got, want) {
					t.Errorf("got %#v, want %#v", got, want)
				}
			}
		})
	}
}

func TestMatrixColumnMajor(t *testing.T) {
	m, err := NewMatrix([][]float64{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	b := encodeValue(t, m)

	// header(3) + two empty name lists(8) + rows(4) + cols(4)
	body := b[3+8+8:]
	if len(body) != 6*8 {
		t.Fatalf("body length %d, want 48", len(body))
	}
	var got []float64
	for i := 0; i < len(body); i += 8 {
		got = append(got, math.Float64frombits(binary.BigEndian.Uint64(body[i:])))
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payload order %v, want %v", got, want)
	}

	back := decodeValue(t, b).(*Matrix)
	if !back.Equal(m) {
		t.Errorf("round trip %v, want %v", back, m)
	}
	if back.At(1, 0) != 4 {
		t.Errorf("At(1,0) = %v, want 4", back.At(1, 0))
	}
}

func TestNamedMatrixRoundTrip(t *testing.T) {
	m, _ := NewMatrix([][]float64{{1}, {2}})
	m, err := m.WithNames([]string{"r1", "r2"}, []string{"c"})
	if err != nil {
		t.Fatalf("WithNames: %v", err)
	}
	back := decodeValue(t, encodeValue(t, m)).(*Matrix)
	if !back.Equal(m) {
		t.Errorf("got %v, want %v", back, m)
	}
	if got := back.RowNames(); !reflect.DeepEqual(got, []string{"r1", "r2"}) {
		t.Errorf("row names %v", got)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	msgs := []Message{
		&Create{Class: "Widget", Args: []any{int32(42), "red"}},
		&CallStaticMethod{Class: "Math", Method: "Max", Args: []any{}},
		&CallMethod{Target: &ObjectRef{ID: 7}, Method: "Paint", Args: []any{"blue"}},
		&GetProperty{Target: &ObjectRef{ID: 1}, Property: "Color"},
		&GetIndexedProperty{Target: &ObjectRef{ID: 1}, Property: "Parts", Index: 2},
		&GetIndexed{Target: &ObjectRef{ID: 1}, Index: 0},
		&SetProperty{Target: &ObjectRef{ID: 1}, Property: "Size", Value: int32(3)},
		&GetStaticProperty{Class: "Widget", Property: "Count"},
		&SetStaticProperty{Class: "Widget", Property: "Count", Value: nil},
		&Protect{ID: 5},
		&Release{ID: 5},
		&DescribeType{Class: "Widget"},
		&TypeInfo{Properties: []string{"Color"}, Methods: []string{"Paint"}},
	}
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	for _, m := range msgs {
		if err := w.WriteMessage(m); err != nil {
			t.Fatalf("WriteMessage(%v): %v", m.Type(), err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf, nil)
	for _, want := range msgs {
		got, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage(%v): %v", want.Type(), err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	}
	if _, err := r.ReadMessage(); err != io.EOF {
		t.Errorf("after last message: %v, want io.EOF", err)
	}
}

func TestCreateWireLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	if err := w.WriteMessage(&Create{Class: "W", Args: []any{true}}); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	want := []byte{0xd0, 0x0d, 201, 0, 0, 0, 1, 'W', 0, 1, 0xd0, 0x0d, 1, 1}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x, want % x", buf.Bytes(), want)
	}
}

func TestBadMagic(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0xbe, 0xef, 0}), nil).ReadMessage()
	if !errors.Is(err, ErrBadMagic) || !IsProtocolError(err) {
		t.Errorf("got %v, want bad magic protocol error", err)
	}
}

func TestUnknownType(t *testing.T) {
	for _, typ := range []byte{3, 4, 10, 100, 214, 255} {
		_, err := NewReader(bytes.NewReader([]byte{0xd0, 0x0d, typ}), nil).ReadMessage()
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("type %d: got %v, want ErrUnknownType", typ, err)
		}
	}
}

func TestTruncatedMessage(t *testing.T) {
	full := encodeValue(t, []any{"abc", int64(1)})
	for n := 1; n < len(full); n++ {
		_, err := NewReader(bytes.NewReader(full[:n]), nil).ReadMessage()
		if err != io.ErrUnexpectedEOF {
			t.Errorf("prefix %d: got %v, want io.ErrUnexpectedEOF", n, err)
		}
	}
}

// nestedArrays returns levels single-element ObjectArrays wrapped around a
// Null, as raw bytes.
func nestedArrays(levels int) []byte {
	var b []byte
	for range levels {
		b = append(b, 0xd0, 0x0d, byte(TypeObjectArray), 0, 0, 0, 1)
	}
	return append(b, 0xd0, 0x0d, byte(TypeNull))
}

func TestNestingLimit(t *testing.T) {
	v, err := NewReader(bytes.NewReader(nestedArrays(MaxDepth-1)), nil).ReadValue()
	if err != nil {
		t.Fatalf("nesting at the limit: %v", err)
	}
	for range MaxDepth - 1 {
		a, ok := v.([]any)
		if !ok || len(a) != 1 {
			t.Fatalf("got %#v, want a one-element array", v)
		}
		v = a[0]
	}
	if v != nil {
		t.Errorf("innermost value = %v, want nil", v)
	}

	_, err = NewReader(bytes.NewReader(nestedArrays(MaxDepth)), nil).ReadValue()
	if !IsProtocolError(err) || !errors.Is(err, ErrTooDeep) {
		t.Errorf("got %v, want ErrTooDeep protocol error", err)
	}

	// Deep input is rejected after MaxDepth levels, not read to the end.
	_, err = NewReader(bytes.NewReader(nestedArrays(100_000)), nil).ReadValue()
	if !errors.Is(err, ErrTooDeep) {
		t.Errorf("got %v, want ErrTooDeep", err)
	}
}

func TestNegativeLength(t *testing.T) {
	b := []byte{0xd0, 0x0d, 8, 0xff, 0xff, 0xff, 0xff}
	_, err := NewReader(bytes.NewReader(b), nil).ReadValue()
	if !errors.Is(err, ErrBadLength) {
		t.Errorf("got %v, want ErrBadLength", err)
	}
}

func TestVectorNameMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	w.writeHeader(TypeVector)
	w.writeNames([]string{"a", "b"})
	w.writeLen(1)
	w.writeFloat64(1)
	w.Flush()
	_, err := NewReader(&buf, nil).ReadValue()
	if !IsProtocolError(err) {
		t.Errorf("got %v, want protocol error", err)
	}
}

func TestReadValueRejectsRequest(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	w.WriteMessage(&Release{ID: 1})
	w.Flush()
	_, err := NewReader(&buf, nil).ReadValue()
	if !errors.Is(err, ErrNotValue) {
		t.Errorf("got %v, want ErrNotValue", err)
	}
}

func TestUnserializable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	err := w.WriteValue(map[string]int{"a": 1})
	var se *SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want SerializationError", err)
	}
	w.Flush()
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for an unserializable value", buf.Len())
	}
}

func TestObjectWithoutProxies(t *testing.T) {
	type widget struct{ n int }
	err := NewWriter(io.Discard, nil).WriteValue(&widget{})
	var se *SerializationError
	if !errors.As(err, &se) {
		t.Errorf("got %v, want SerializationError", err)
	}
}

type fakeProxies struct {
	ids  map[any]int32
	objs map[int32]any
}

func (p *fakeProxies) IDFor(obj any) (int32, string, error) {
	if id, ok := p.ids[obj]; ok {
		return id, "Fake", nil
	}
	id := int32(len(p.ids) + 1)
	p.ids[obj] = id
	p.objs[id] = obj
	return id, "Fake", nil
}

func (p *fakeProxies) Resolve(id int32, class string) any {
	if o, ok := p.objs[id]; ok {
		return o
	}
	return &ObjectRef{ID: id, Class: class}
}

func TestObjectThroughProxies(t *testing.T) {
	type widget struct{ n int }
	obj := &widget{n: 1}
	p := &fakeProxies{ids: map[any]int32{}, objs: map[int32]any{}}

	var buf bytes.Buffer
	w := NewWriter(&buf, p)
	if err := w.WriteValue([]any{obj, obj}); err != nil {
		t.Fatal(err)
	}
	w.Flush()

	got, err := NewReader(&buf, p).ReadValue()
	if err != nil {
		t.Fatal(err)
	}
	list := got.([]any)
	if list[0] != obj || list[1] != obj {
		t.Errorf("objects did not resolve to the original: %v", list)
	}
	if len(p.ids) != 1 {
		t.Errorf("allocated %d ids, want 1", len(p.ids))
	}
}

type failure struct{ code int }

func (f *failure) Error() string { return "failure" }

func TestErrorValueIsObject(t *testing.T) {
	obj := &failure{code: 3}
	if typ, err := TypeOf(obj); err != nil || typ != TypeObject {
		t.Fatalf("TypeOf(error value) = %v, %v; want Object", typ, err)
	}

	p := &fakeProxies{ids: map[any]int32{}, objs: map[int32]any{}}
	var buf bytes.Buffer
	w := NewWriter(&buf, p)
	if err := w.WriteValue(obj); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	if got := buf.Bytes()[2]; Type(got) != TypeObject {
		t.Errorf("wire type = %d, want %d", got, TypeObject)
	}
	got, err := NewReader(&buf, p).ReadValue()
	if err != nil {
		t.Fatal(err)
	}
	if got != obj {
		t.Errorf("got %#v, want the original object", got)
	}
}
