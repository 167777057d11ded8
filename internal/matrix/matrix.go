// Package matrix provides the host-resident matrix type used by the
// execution engine. Storage is row-major float32; this layout is fixed
// and shared with the device side, which indexes buffers the same way.
package matrix

import (
	"fmt"
	"unsafe"
)

// ElemSize is the byte size of a single matrix element (float32).
const ElemSize = 4

// Matrix is a dense 2D float32 array in row-major order.
// Element (i, j) lives at data[i*cols+j].
type Matrix struct {
	rows int
	cols int
	data []float32
}

// New creates a zero-filled rows×cols matrix.
// Zero dimensions are legal and produce an empty matrix.
func New(rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("matrix: negative dimensions %dx%d", rows, cols)
	}
	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]float32, rows*cols),
	}, nil
}

// FromData creates a matrix backed by the given row-major slice.
// The slice is used directly, not copied.
func FromData(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("matrix: negative dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix: data length %d does not match %dx%d", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// NumElements returns rows*cols.
func (m *Matrix) NumElements() int { return m.rows * m.cols }

// ByteSize returns the size of the element data in bytes.
func (m *Matrix) ByteSize() int { return m.NumElements() * ElemSize }

// Data returns the underlying row-major element slice.
func (m *Matrix) Data() []float32 { return m.data }

// At returns element (i, j).
func (m *Matrix) At(i, j int) float32 { return m.data[i*m.cols+j] }

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v float32) { m.data[i*m.cols+j] = v }

// SameShape reports whether m and other have identical dimensions.
func (m *Matrix) SameShape(other *Matrix) bool {
	return m.rows == other.rows && m.cols == other.cols
}

// ShapeString returns the shape formatted as "RxC".
func (m *Matrix) ShapeString() string {
	return fmt.Sprintf("%dx%d", m.rows, m.cols)
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	data := make([]float32, len(m.data))
	copy(data, m.data)
	return &Matrix{rows: m.rows, cols: m.cols, data: data}
}

// Bytes returns the element data viewed as raw bytes, without copying.
// Valid only while the matrix is reachable.
func (m *Matrix) Bytes() []byte {
	if len(m.data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.data[0])), m.ByteSize())
}
