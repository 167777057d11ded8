// Package engine implements the GPU execution engine: launch
// configuration, host/device memory transfer, kernel dispatch, and the
// orchestrator that sequences them into one timed operation.
package engine

import (
	"context"
	"time"

	"github.com/gridsum-dev/gridsum/internal/matrix"
)

// Buffer is an opaque handle to accelerator-resident memory. A buffer
// is owned by exactly one orchestrator invocation and must be released
// on every exit path; Release is idempotent. Releasing a buffer still
// referenced by in-flight device work drops it from the accounting
// immediately; the memory itself is reclaimed when that work finishes.
type Buffer interface {
	// Size returns the buffer capacity in bytes.
	Size() uint64
	// Release frees the underlying device memory.
	Release()
}

// Completion is the synchronization barrier for one submitted grid.
// Wait blocks until the device signals that every invocation of the
// grid has finished, or the context expires. A context expiry abandons
// the wait only: the device work itself runs to completion and its
// resources are reclaimed when it does.
type Completion interface {
	Wait(ctx context.Context) error
}

// Backend is the accelerator surface the orchestrator drives: the
// memory transfer manager plus kernel dispatch. Implementations must be
// safe for concurrent use; buffers are never shared across invocations.
type Backend interface {
	// Upload allocates a device buffer and copies the matrix into it.
	Upload(m *matrix.Matrix) (Buffer, error)
	// AllocateResult allocates an uninitialized rows×cols result buffer.
	// Contents are undefined until a kernel writes them.
	AllocateResult(rows, cols int) (Buffer, error)
	// Download copies a device buffer back into a host matrix.
	Download(buf Buffer, rows, cols int) (*matrix.Matrix, error)
	// LaunchAdd submits the elementwise addition kernel over the grid
	// described by cfg. Submission is asynchronous; the returned
	// Completion is the only way to observe the grid finishing.
	LaunchAdd(a, b, dst Buffer, rows, cols int, cfg LaunchConfig) (Completion, error)

	// Tag returns the device tag reported in results: "GPU" or "CPU".
	Tag() string
	// Name returns a human-readable device description.
	Name() string
	// Stats returns the backend's memory and dispatch counters.
	Stats() MemoryStats
}

// MemoryStats tracks device memory pressure and dispatch activity.
type MemoryStats struct {
	// Bytes currently held by live buffers.
	AllocatedBytes uint64
	// Peak concurrent allocation in bytes.
	PeakMemoryBytes uint64
	// Number of currently live buffers.
	ActiveBuffers int64
	// Number of kernel grids submitted.
	Launches int64
}

// ExecutionResult is the outcome of one completed addition: the summed
// matrix, the wall-clock duration from validation through download, and
// the tag of the device that produced it. Immutable after creation.
type ExecutionResult struct {
	Matrix  *matrix.Matrix
	Elapsed time.Duration
	Device  string
}

// Seconds returns the elapsed time in seconds.
func (r *ExecutionResult) Seconds() float64 {
	return r.Elapsed.Seconds()
}
