// Package cpu implements the host fallback backend. It executes the
// same grid/group/thread decomposition as the accelerator path, with
// execution groups spread across worker goroutines and the threads of a
// group run sequentially inside one worker.
package cpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/gridsum-dev/gridsum/internal/engine"
	"github.com/gridsum-dev/gridsum/internal/matrix"
	"github.com/gridsum-dev/gridsum/internal/parallel"
)

// Backend implements engine.Backend on host memory.
type Backend struct {
	par parallel.Config

	stats struct {
		mu            sync.Mutex
		allocated     uint64
		peakMemory    uint64
		activeBuffers int64
		launches      int64
	}
}

// New creates a host backend with default parallelism.
func New() *Backend {
	return &Backend{par: parallel.DefaultConfig()}
}

// hostBuffer is the host-resident engine.Buffer: a float32 slice plus a
// back-reference for allocation accounting.
type hostBuffer struct {
	b        *Backend
	data     []float32
	released bool
}

func (hb *hostBuffer) Size() uint64 {
	return uint64(len(hb.data)) * matrix.ElemSize
}

// Release drops the buffer from the allocation accounting. The slice
// itself is left intact: a dispatch still in flight after a timed-out
// synchronization wait keeps its own reference and writes into memory
// it still owns; the GC reclaims it once that work finishes.
func (hb *hostBuffer) Release() {
	if hb.released {
		return
	}
	hb.released = true
	hb.b.trackRelease(hb.Size())
}

func (b *Backend) newBuffer(n int) *hostBuffer {
	hb := &hostBuffer{b: b, data: make([]float32, n)}
	b.trackAllocation(hb.Size())
	return hb
}

// Upload copies the matrix into a fresh host buffer.
func (b *Backend) Upload(m *matrix.Matrix) (engine.Buffer, error) {
	hb := b.newBuffer(m.NumElements())
	copy(hb.data, m.Data())
	return hb, nil
}

// AllocateResult allocates an uninitialized result buffer.
func (b *Backend) AllocateResult(rows, cols int) (engine.Buffer, error) {
	return b.newBuffer(rows * cols), nil
}

// Download copies a buffer back into a host matrix.
func (b *Backend) Download(buf engine.Buffer, rows, cols int) (*matrix.Matrix, error) {
	hb, err := b.asHostBuffer("Downloading", buf)
	if err != nil {
		return nil, err
	}
	if len(hb.data) < rows*cols {
		return nil, engine.NewTransferError("Downloading",
			fmt.Sprintf("buffer holds %d elements, need %d", len(hb.data), rows*cols), nil)
	}
	data := make([]float32, rows*cols)
	copy(data, hb.data)
	return matrix.FromData(rows, cols, data)
}

// LaunchAdd executes the addition kernel over the grid. Submission is
// asynchronous: the grid runs on worker goroutines and the returned
// completion is the barrier.
func (b *Backend) LaunchAdd(a, bb, dst engine.Buffer, rows, cols int, cfg engine.LaunchConfig) (engine.Completion, error) {
	ha, err := b.asHostBuffer("Launching", a)
	if err != nil {
		return nil, err
	}
	hb, err := b.asHostBuffer("Launching", bb)
	if err != nil {
		return nil, err
	}
	hc, err := b.asHostBuffer("Launching", dst)
	if err != nil {
		return nil, err
	}

	b.stats.mu.Lock()
	b.stats.launches++
	b.stats.mu.Unlock()

	// Capture the slice headers now: the caller may release the
	// buffers after an abandoned wait while this grid is still running.
	src1, src2, dst2 := ha.data, hb.data, hc.data

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.dispatch(src1, src2, dst2, rows, cols, cfg)
	}()
	return hostCompletion{done: done}, nil
}

// dispatch runs every group of the grid, executing the threads of a
// group sequentially. Each thread performs the per-cell kernel:
//
//	if i < rows && j < cols { c[i,j] = a[i,j] + b[i,j] }
//
// The bounds guard is mandatory: the grid is a ceiling-rounded cover
// and threads in the last row/column of groups may fall outside the
// matrix. Out-of-range threads touch nothing.
func (b *Backend) dispatch(a, bb, c []float32, rows, cols int, cfg engine.LaunchConfig) {
	grid := cfg.GroupsPerGrid
	tpg := cfg.ThreadsPerGroup

	parallel.For(grid.Size(), func(g int) {
		groupX := g % grid.X
		groupY := g / grid.X
		for tx := 0; tx < tpg.X; tx++ {
			i := groupX*tpg.X + tx
			if i >= rows {
				break
			}
			for ty := 0; ty < tpg.Y; ty++ {
				j := groupY*tpg.Y + ty
				if j >= cols {
					break
				}
				c[i*cols+j] = a[i*cols+j] + bb[i*cols+j]
			}
		}
	}, b.par)
}

func (b *Backend) asHostBuffer(op string, buf engine.Buffer) (*hostBuffer, error) {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return nil, engine.NewLaunchError(op, fmt.Sprintf("foreign buffer type %T", buf), nil)
	}
	return hb, nil
}

// hostCompletion is the barrier for one dispatched grid.
type hostCompletion struct {
	done chan struct{}
}

func (c hostCompletion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tag returns the device tag used in results.
func (b *Backend) Tag() string { return "CPU" }

// Name returns a human-readable device description.
func (b *Backend) Name() string { return "CPU (host fallback)" }

// Stats returns the backend's memory and dispatch counters.
func (b *Backend) Stats() engine.MemoryStats {
	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()
	return engine.MemoryStats{
		AllocatedBytes:  b.stats.allocated,
		PeakMemoryBytes: b.stats.peakMemory,
		ActiveBuffers:   b.stats.activeBuffers,
		Launches:        b.stats.launches,
	}
}

func (b *Backend) trackAllocation(size uint64) {
	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()
	b.stats.allocated += size
	b.stats.activeBuffers++
	if b.stats.allocated > b.stats.peakMemory {
		b.stats.peakMemory = b.stats.allocated
	}
}

func (b *Backend) trackRelease(size uint64) {
	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()
	if b.stats.allocated >= size {
		b.stats.allocated -= size
	}
	b.stats.activeBuffers--
}
