// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// MaxLength bounds every length and element count read off the wire.
const MaxLength = 1 << 28

// preallocation cap for decoded slices; larger payloads grow as they arrive.
const maxPrealloc = 4096

// Proxies maps objects to the ids that stand in for them on the wire.
type Proxies interface {
	// IDFor returns the id of obj, allocating one if obj has not crossed
	// the wire before, together with the class name to transmit.
	IDFor(obj any) (id int32, class string, err error)

	// Resolve returns the local object registered under id, or a
	// placeholder when there is none. It never fails.
	Resolve(id int32, class string) any
}

// Unresolved is implemented by placeholders for objects that have no local
// counterpart on the side that decoded them.
type Unresolved interface {
	ObjectID() int32
}

// Writer encodes messages in network byte order.
type Writer struct {
	w       *bufio.Writer
	buf     [8]byte
	proxies Proxies
}

// NewWriter returns a Writer over w. proxies may be nil, in which case only
// ObjectRef and Unresolved values can be written as objects.
func NewWriter(w io.Writer, proxies Proxies) *Writer {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &Writer{w: bw, proxies: proxies}
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }

func (w *Writer) writeUint8(v uint8) error { return w.w.WriteByte(v) }

func (w *Writer) writeBool(v bool) error {
	if v {
		return w.w.WriteByte(1)
	}
	return w.w.WriteByte(0)
}

func (w *Writer) writeUint16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	_, err := w.w.Write(w.buf[:2])
	return err
}

func (w *Writer) writeInt32(v int32) error {
	binary.BigEndian.PutUint32(w.buf[:4], uint32(v))
	_, err := w.w.Write(w.buf[:4])
	return err
}

func (w *Writer) writeInt64(v int64) error {
	binary.BigEndian.PutUint64(w.buf[:8], uint64(v))
	_, err := w.w.Write(w.buf[:8])
	return err
}

func (w *Writer) writeFloat64(v float64) error {
	return w.writeInt64(int64(math.Float64bits(v)))
}

func (w *Writer) writeLen(n int) error {
	if n > MaxLength {
		return &SerializationError{GoType: "length", Reason: "exceeds wire maximum"}
	}
	return w.writeInt32(int32(n))
}

func (w *Writer) writeString(s string) error {
	if err := w.writeLen(len(s)); err != nil {
		return err
	}
	_, err := w.w.WriteString(s)
	return err
}

// writeNames writes an optional name list; nil is written as a zero count.
func (w *Writer) writeNames(names []string) error {
	if err := w.writeLen(len(names)); err != nil {
		return err
	}
	for _, s := range names {
		if err := w.writeString(s); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes messages in network byte order.
type Reader struct {
	r       io.Reader
	buf     [8]byte
	proxies Proxies
	depth   int
}

// NewReader returns a Reader over r. proxies may be nil, in which case
// object values decode to *ObjectRef.
func NewReader(r io.Reader, proxies Proxies) *Reader {
	return &Reader{r: r, proxies: proxies}
}

// full reads exactly len(b) bytes. EOF inside a message is reported as
// io.ErrUnexpectedEOF; only EOF at a message boundary is a clean close.
func (r *Reader) full(b []byte) error {
	_, err := io.ReadFull(r.r, b)
	if err == io.EOF && r.depth > 0 {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (r *Reader) readUint8() (uint8, error) {
	if err := r.full(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) readBool() (bool, error) {
	b, err := r.readUint8()
	return b != 0, err
}

func (r *Reader) readUint16() (uint16, error) {
	if err := r.full(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) readInt32() (int32, error) {
	if err := r.full(r.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(r.buf[:4])), nil
}

func (r *Reader) readInt64() (int64, error) {
	if err := r.full(r.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(r.buf[:8])), nil
}

func (r *Reader) readFloat64() (float64, error) {
	v, err := r.readInt64()
	return math.Float64frombits(uint64(v)), err
}

func (r *Reader) readLen() (int, error) {
	n, err := r.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > MaxLength {
		return 0, protocolErrorf(ErrBadLength, "%d", n)
	}
	return int(n), nil
}

func (r *Reader) readString() (string, error) {
	n, err := r.readLen()
	if err != nil {
		return "", err
	}
	if n <= maxPrealloc {
		b := make([]byte, n)
		if err := r.full(b); err != nil {
			return "", err
		}
		return string(b), nil
	}
	b := make([]byte, 0, maxPrealloc)
	chunk := make([]byte, maxPrealloc)
	for n > 0 {
		k := min(n, len(chunk))
		if err := r.full(chunk[:k]); err != nil {
			return "", err
		}
		b = append(b, chunk[:k]...)
		n -= k
	}
	return string(b), nil
}

// readNames reads an optional name list; a zero count yields nil.
func (r *Reader) readNames() ([]string, error) {
	n, err := r.readLen()
	if err != nil || n == 0 {
		return nil, err
	}
	names := make([]string, 0, min(n, maxPrealloc))
	for range n {
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		names = append(names, s)
	}
	return names, nil
}

func (r *Reader) readFloats(n int) ([]float64, error) {
	out := make([]float64, 0, min(n, maxPrealloc))
	for range n {
		x, err := r.readFloat64()
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}
