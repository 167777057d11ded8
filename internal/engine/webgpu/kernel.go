package webgpu

import (
	"context"
	"encoding/binary"
	"time"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/gridsum-dev/gridsum/internal/engine"
)

// matrixAddShader is the elementwise addition kernel. One invocation per
// grid cell; invocations are independent and order-free. The bounds
// guard is mandatory: the dispatch grid is a ceiling-rounded cover of
// the matrix, so invocations in the last row/column of groups may map
// outside it and must perform no read or write. Buffers are row-major,
// matching the host layout. global_id.x spans rows, global_id.y spans
// columns, mirroring the launch configuration's extents.
const matrixAddShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let i = global_id.x;
    let j = global_id.y;

    if (i >= params.rows || j >= params.cols) {
        return;
    }

    let idx = i * params.cols + j;
    result[idx] = a[idx] + b[idx];
}
`

// shaderThreadsPerGroup is the workgroup shape compiled into the
// kernel. A dispatch with a different ThreadsPerGroup would silently
// cover the wrong domain, so LaunchAdd rejects it.
var shaderThreadsPerGroup = engine.Dim2{X: 16, Y: 16}

// createUniformBuffer creates a uniform buffer with the 16-byte
// alignment uniform structs require.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// LaunchAdd encodes and submits the addition kernel over the configured
// grid. Submission is asynchronous; the returned completion observes
// the queue draining.
func (b *Backend) LaunchAdd(a, bb, dst engine.Buffer, rows, cols int, cfg engine.LaunchConfig) (engine.Completion, error) {
	da, ok1 := a.(*deviceBuffer)
	db, ok2 := bb.(*deviceBuffer)
	dc, ok3 := dst.(*deviceBuffer)
	if !ok1 || !ok2 || !ok3 {
		return nil, engine.NewLaunchError("Launching",
			"buffer does not belong to this backend", nil)
	}
	if cfg.ThreadsPerGroup != shaderThreadsPerGroup {
		return nil, engine.NewLaunchError("Launching",
			"threads per group does not match the compiled workgroup size", nil)
	}

	shader := b.compileShader("matrix_add", matrixAddShader)
	pipeline := b.getOrCreatePipeline("matrix_add", shader)

	// Uniform params (rows, cols: u32 each, padded to 16 bytes).
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(params[4:8], uint32(cols))
	bufferParams := b.createUniformBuffer(params)
	defer bufferParams.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, da.buf, 0, da.size),
		wgpu.BufferBindingEntry(1, db.buf, 0, db.size),
		wgpu.BufferBindingEntry(2, dc.buf, 0, dc.size),
		wgpu.BufferBindingEntry(3, bufferParams, 0, 16),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(uint32(cfg.GroupsPerGrid.X), uint32(cfg.GroupsPerGrid.Y), 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	b.stats.mu.Lock()
	b.stats.launches++
	b.stats.mu.Unlock()

	return &deviceCompletion{b: b}, nil
}

// deviceCompletion is the synchronization barrier for submitted work.
// The device is polled until its queue drains; an expired context
// abandons the wait while the device work runs to completion.
type deviceCompletion struct {
	b *Backend
}

func (c *deviceCompletion) Wait(ctx context.Context) error {
	for {
		if c.b.device.Poll(false) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
}
