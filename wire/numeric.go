// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"fmt"
	"slices"
)

// Vector is a dense float64 vector with optional element names.
// Treat it as immutable once constructed.
type Vector struct {
	names  []string
	values []float64
}

// NewVector returns an unnamed vector holding a copy of values.
func NewVector(values ...float64) *Vector {
	return &Vector{values: slices.Clone(values)}
}

// NewNamedVector returns a vector whose elements are labelled by names.
// An empty names list yields an unnamed vector.
func NewNamedVector(names []string, values []float64) (*Vector, error) {
	if len(names) != 0 && len(names) != len(values) {
		return nil, fmt.Errorf("vector has %d values but %d names", len(values), len(names))
	}
	v := NewVector(values...)
	if len(names) > 0 {
		v.names = slices.Clone(names)
	}
	return v, nil
}

func (v *Vector) Len() int { return len(v.values) }

func (v *Vector) At(i int) float64 { return v.values[i] }

// Names returns the element names, or nil for an unnamed vector.
func (v *Vector) Names() []string { return slices.Clone(v.names) }

func (v *Vector) Values() []float64 { return slices.Clone(v.values) }

func (v *Vector) Equal(o *Vector) bool {
	if v == nil || o == nil {
		return v == o
	}
	return slices.Equal(v.names, o.names) && slices.Equal(v.values, o.values)
}

func (v *Vector) String() string {
	return fmt.Sprintf("Vector%v", v.values)
}

// Matrix is a dense rows x cols float64 matrix with optional row and column
// names. Values are held in column-major order, which is also the order they
// take on the wire.
type Matrix struct {
	rowNames []string
	colNames []string
	rows     int
	cols     int
	data     []float64
}

// NewMatrix builds a matrix from row-major input. Every row must have the
// same length.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	r := len(rows)
	c := 0
	if r > 0 {
		c = len(rows[0])
	}
	m := &Matrix{rows: r, cols: c, data: make([]float64, r*c)}
	for ri, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d", ri, len(row), c)
		}
		for ci, x := range row {
			m.data[ci*r+ri] = x
		}
	}
	return m, nil
}

// NewMatrixColumnMajor builds a rows x cols matrix from values laid out
// column by column.
func NewMatrixColumnMajor(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("matrix %dx%d cannot hold %d values", rows, cols, len(data))
	}
	return &Matrix{rows: rows, cols: cols, data: slices.Clone(data)}, nil
}

// WithNames returns a copy of m carrying the given row and column names.
// A nil or empty list leaves that dimension unnamed.
func (m *Matrix) WithNames(rowNames, colNames []string) (*Matrix, error) {
	if len(rowNames) != 0 && len(rowNames) != m.rows {
		return nil, fmt.Errorf("matrix has %d rows but %d row names", m.rows, len(rowNames))
	}
	if len(colNames) != 0 && len(colNames) != m.cols {
		return nil, fmt.Errorf("matrix has %d columns but %d column names", m.cols, len(colNames))
	}
	out := &Matrix{rows: m.rows, cols: m.cols, data: slices.Clone(m.data)}
	if len(rowNames) > 0 {
		out.rowNames = slices.Clone(rowNames)
	}
	if len(colNames) > 0 {
		out.colNames = slices.Clone(colNames)
	}
	return out, nil
}

func (m *Matrix) Dims() (rows, cols int) { return m.rows, m.cols }

func (m *Matrix) At(r, c int) float64 {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		panic(fmt.Sprintf("matrix index (%d,%d) out of range %dx%d", r, c, m.rows, m.cols))
	}
	return m.data[c*m.rows+r]
}

func (m *Matrix) RowNames() []string { return slices.Clone(m.rowNames) }

func (m *Matrix) ColNames() []string { return slices.Clone(m.colNames) }

// Rows returns the matrix in row-major form.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.rows)
	for r := range out {
		out[r] = make([]float64, m.cols)
		for c := range out[r] {
			out[r][c] = m.data[c*m.rows+r]
		}
	}
	return out
}

// ColumnMajor returns a copy of the values in column-major order.
func (m *Matrix) ColumnMajor() []float64 { return slices.Clone(m.data) }

func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.rows == o.rows && m.cols == o.cols &&
		slices.Equal(m.rowNames, o.rowNames) &&
		slices.Equal(m.colNames, o.colNames) &&
		slices.Equal(m.data, o.data)
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix%dx%d%v", m.rows, m.cols, m.Rows())
}
