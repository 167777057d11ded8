package cpu

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsum-dev/gridsum/internal/engine"
	"github.com/gridsum-dev/gridsum/internal/matrix"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	b := New()

	m, err := matrix.FromData(2, 3, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	buf, err := b.Upload(m)
	require.NoError(t, err)
	defer buf.Release()

	assert.Equal(t, uint64(24), buf.Size())

	out, err := b.Download(buf, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, m.Data(), out.Data())
}

func TestLaunchAdd(t *testing.T) {
	b := New()
	ctx := context.Background()

	rows, cols := 37, 53 // deliberately not multiples of 16
	a := randomMatrix(t, rows, cols)
	bb := randomMatrix(t, rows, cols)

	da, err := b.Upload(a)
	require.NoError(t, err)
	defer da.Release()
	db, err := b.Upload(bb)
	require.NoError(t, err)
	defer db.Release()
	dc, err := b.AllocateResult(rows, cols)
	require.NoError(t, err)
	defer dc.Release()

	cfg := engine.Configure(rows, cols, engine.DefaultThreadsPerGroup)
	done, err := b.LaunchAdd(da, db, dc, rows, cols, cfg)
	require.NoError(t, err)
	require.NoError(t, done.Wait(ctx))

	out, err := b.Download(dc, rows, cols)
	require.NoError(t, err)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.Equal(t, a.At(i, j)+bb.At(i, j), out.At(i, j))
		}
	}
}

// The launch grid for 100x100 with 16x16 groups covers 112x112
// coordinates. Threads beyond the matrix must not write anywhere:
// guard cells appended past the 100x100 payload stay untouched.
func TestLaunchAddBoundaryNonCorruption(t *testing.T) {
	b := New()
	ctx := context.Background()

	rows, cols := 100, 100
	a := randomMatrix(t, rows, cols)
	bb := randomMatrix(t, rows, cols)

	da, err := b.Upload(a)
	require.NoError(t, err)
	defer da.Release()
	db, err := b.Upload(bb)
	require.NoError(t, err)
	defer db.Release()

	const guard float32 = -777.25
	const guardCells = 512
	dst := &hostBuffer{b: b, data: make([]float32, rows*cols+guardCells)}
	for i := rows * cols; i < len(dst.data); i++ {
		dst.data[i] = guard
	}

	cfg := engine.Configure(rows, cols, engine.DefaultThreadsPerGroup)
	require.Equal(t, engine.Dim2{X: 7, Y: 7}, cfg.GroupsPerGrid)

	done, err := b.LaunchAdd(da, db, dst, rows, cols, cfg)
	require.NoError(t, err)
	require.NoError(t, done.Wait(ctx))

	for i := rows * cols; i < len(dst.data); i++ {
		require.Equal(t, guard, dst.data[i], "guard cell %d was overwritten", i)
	}
}

func TestLaunchAddForeignBuffer(t *testing.T) {
	b := New()

	da, err := b.Upload(mustMatrix(t, 1, 1, []float32{1}))
	require.NoError(t, err)
	defer da.Release()

	_, err = b.LaunchAdd(da, da, fakeBuffer{}, 1, 1,
		engine.Configure(1, 1, engine.DefaultThreadsPerGroup))
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindLaunch))
}

func TestStatsTracking(t *testing.T) {
	b := New()

	assert.Equal(t, engine.MemoryStats{}, b.Stats())

	buf, err := b.Upload(mustMatrix(t, 4, 4, make([]float32, 16)))
	require.NoError(t, err)

	stats := b.Stats()
	assert.Equal(t, uint64(64), stats.AllocatedBytes)
	assert.Equal(t, int64(1), stats.ActiveBuffers)

	buf.Release()
	buf.Release() // idempotent

	stats = b.Stats()
	assert.Equal(t, uint64(0), stats.AllocatedBytes)
	assert.Equal(t, int64(0), stats.ActiveBuffers)
	assert.Equal(t, uint64(64), stats.PeakMemoryBytes)
}

func randomMatrix(t *testing.T, rows, cols int) *matrix.Matrix {
	t.Helper()
	data := make([]float32, rows*cols)
	rng := rand.New(rand.NewSource(int64(rows)<<16 | int64(cols)))
	for i := range data {
		data[i] = rng.Float32()*200 - 100
	}
	return mustMatrix(t, rows, cols, data)
}

func mustMatrix(t *testing.T, rows, cols int, data []float32) *matrix.Matrix {
	t.Helper()
	m, err := matrix.FromData(rows, cols, data)
	require.NoError(t, err)
	return m
}

type fakeBuffer struct{}

func (fakeBuffer) Size() uint64 { return 0 }
func (fakeBuffer) Release()     {}
