package webgpu

import (
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/gridsum-dev/gridsum/internal/engine"
	"github.com/gridsum-dev/gridsum/internal/matrix"
)

// deviceBuffer is the accelerator-resident engine.Buffer: a storage
// buffer plus its byte size for accounting.
type deviceBuffer struct {
	b        *Backend
	buf      *wgpu.Buffer
	size     uint64
	released bool
}

func (db *deviceBuffer) Size() uint64 { return db.size }

func (db *deviceBuffer) Release() {
	if db.released {
		return
	}
	db.released = true
	db.b.trackRelease(db.size)
	db.buf.Release()
	db.buf = nil
}

// Upload allocates a storage buffer sized to the matrix and copies the
// host bytes into it through a mapped-at-creation range.
func (b *Backend) Upload(m *matrix.Matrix) (engine.Buffer, error) {
	size := uint64(m.ByteSize())

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	if buffer == nil {
		return nil, engine.NewAllocationError("Uploading",
			"device buffer allocation failed", nil)
	}

	mappedPtr := buffer.GetMappedRange(0, size)
	if mappedPtr == nil {
		buffer.Release()
		return nil, engine.NewTransferError("Uploading",
			"mapping freshly created buffer failed", nil)
	}
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, m.Bytes())
	buffer.Unmap()

	b.trackAllocation(size)
	return &deviceBuffer{b: b, buf: buffer, size: size}, nil
}

// AllocateResult allocates a result buffer without copying. Contents
// are undefined until the kernel writes them.
func (b *Backend) AllocateResult(rows, cols int) (engine.Buffer, error) {
	size := uint64(rows) * uint64(cols) * matrix.ElemSize

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	if buffer == nil {
		return nil, engine.NewAllocationError("Uploading",
			"result buffer allocation failed", nil)
	}

	b.trackAllocation(size)
	return &deviceBuffer{b: b, buf: buffer, size: size}, nil
}

// Download copies a device buffer back to a host matrix through a
// staging buffer, since storage buffers cannot be mapped directly.
func (b *Backend) Download(buf engine.Buffer, rows, cols int) (*matrix.Matrix, error) {
	db, ok := buf.(*deviceBuffer)
	if !ok {
		return nil, engine.NewTransferError("Downloading",
			"buffer does not belong to this backend", nil)
	}
	size := uint64(rows) * uint64(cols) * matrix.ElemSize

	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	if stagingBuffer == nil {
		return nil, engine.NewAllocationError("Downloading",
			"staging buffer allocation failed", nil)
	}
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(db.buf, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	if err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, engine.NewTransferError("Downloading", "failed to map staging buffer", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	if mappedPtr == nil {
		return nil, engine.NewTransferError("Downloading", "failed to get mapped range", nil)
	}
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)

	out, err := matrix.New(rows, cols)
	if err != nil {
		stagingBuffer.Unmap()
		return nil, err
	}
	copy(out.Bytes(), mappedSlice)
	stagingBuffer.Unmap()

	return out, nil
}
