package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m, err := New(3, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())
	assert.Equal(t, 12, m.NumElements())
	assert.Equal(t, 48, m.ByteSize())

	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			assert.Zero(t, m.At(i, j))
		}
	}
}

func TestNewEmpty(t *testing.T) {
	m, err := New(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, m.NumElements())
	assert.Nil(t, m.Bytes())
}

func TestNewNegativeDimensions(t *testing.T) {
	_, err := New(-1, 4)
	assert.Error(t, err)

	_, err = New(4, -1)
	assert.Error(t, err)
}

func TestFromData(t *testing.T) {
	m, err := FromData(2, 3, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	// Row-major: element (1, 2) is the last one.
	assert.Equal(t, float32(3), m.At(0, 2))
	assert.Equal(t, float32(6), m.At(1, 2))
}

func TestFromDataLengthMismatch(t *testing.T) {
	_, err := FromData(2, 3, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestSetAt(t *testing.T) {
	m, err := New(2, 2)
	require.NoError(t, err)

	m.Set(1, 0, 42)
	assert.Equal(t, float32(42), m.At(1, 0))
	assert.Equal(t, float32(42), m.Data()[2])
}

func TestSameShape(t *testing.T) {
	a, _ := New(3, 4)
	b, _ := New(3, 4)
	c, _ := New(4, 3)

	assert.True(t, a.SameShape(b))
	assert.False(t, a.SameShape(c))
}

func TestClone(t *testing.T) {
	a, _ := FromData(1, 2, []float32{1, 2})
	b := a.Clone()

	b.Set(0, 0, 99)
	assert.Equal(t, float32(1), a.At(0, 0))
	assert.Equal(t, float32(99), b.At(0, 0))
}

func TestBytesRoundTrip(t *testing.T) {
	m, _ := FromData(1, 1, []float32{1.0})
	raw := m.Bytes()
	require.Len(t, raw, 4)

	// float32(1.0) is 0x3F800000 little-endian.
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, raw)
}
