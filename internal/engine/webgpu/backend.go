// Package webgpu implements the accelerator backend on WebGPU using
// go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO bindings. It
// provides the device half of the engine: buffer transfer, the WGSL
// addition kernel, and the completion barrier.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/gridsum-dev/gridsum/internal/engine"
)

// Options selects and configures the accelerator.
type Options struct {
	// AdapterIndex picks among enumerated adapters. Negative means let
	// the runtime choose by power preference.
	AdapterIndex int
	// HighPerformance asks for the discrete GPU when the runtime
	// chooses the adapter.
	HighPerformance bool
}

// DefaultOptions returns the usual accelerator selection: runtime
// choice, high-performance preference.
func DefaultOptions() Options {
	return Options{AdapterIndex: -1, HighPerformance: true}
}

// Backend implements engine.Backend on a WebGPU device.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfoGo

	stats struct {
		mu            sync.Mutex
		allocated     uint64
		peakMemory    uint64
		activeBuffers int64
		launches      int64
	}
}

// New creates a WebGPU backend. Returns an Unavailable engine error if
// the native library is missing or no adapter can be acquired.
func New(opts Options) (backend *Backend, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = engine.NewUnavailableError("Initializing",
				fmt.Sprintf("native library not available: %v", r), nil)
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)

	adapter, adapterErr := requestAdapter(instance, opts)
	if adapterErr != nil {
		instance.Release()
		return nil, engine.NewUnavailableError("Initializing", "failed to request adapter", adapterErr)
	}

	adapterInfo, _ := adapter.GetInfo()

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, engine.NewUnavailableError("Initializing", "failed to request device", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, engine.NewUnavailableError("Initializing", "failed to get queue", nil)
	}

	return &Backend{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: adapterInfo,
	}, nil
}

// requestAdapter honors an explicit adapter index when given, otherwise
// defers to the runtime's power-preference choice.
func requestAdapter(instance *wgpu.Instance, opts Options) (*wgpu.Adapter, error) {
	if opts.AdapterIndex >= 0 {
		adapters := instance.EnumerateAdapters(nil)
		if opts.AdapterIndex >= len(adapters) {
			return nil, fmt.Errorf("adapter index %d out of range (%d adapters)",
				opts.AdapterIndex, len(adapters))
		}
		return adapters[opts.AdapterIndex], nil
	}

	pref := wgpu.PowerPreferenceLowPower
	if opts.HighPerformance {
		pref = wgpu.PowerPreferenceHighPerformance
	}
	return instance.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: pref})
}

// Release frees all WebGPU resources. The backend must not be used
// afterwards.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil

	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// Tag returns the device tag used in results.
func (b *Backend) Tag() string { return "GPU" }

// Name returns the adapter description.
func (b *Backend) Name() string {
	if b.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", b.adapterInfo.Device, b.adapterInfo.Vendor)
	}
	return "WebGPU"
}

// AdapterInfo returns information about the GPU adapter.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfoGo {
	return b.adapterInfo
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

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

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout).
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}
