// Package gpu exposes the GPU device, surfaces and renderer used by
// waveline.
//
// A HAL backend must be registered by importing it, for example:
//
//	import _ "github.com/gogpu/wgpu/hal/vulkan" // Vulkan
//	import _ "github.com/gogpu/wgpu/hal/noop"   // headless, for tests
//
// Most callers only need Available and OpenDevice (or SharedDevice when a
// host application already owns a device) and hand the result to the
// stream controller.
package gpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	gpuimpl "github.com/gogpu/waveline/internal/gpu"
)

// Device is an owned or host-shared GPU device.
type Device = gpuimpl.Device

// DeviceProvider is implemented by host applications that share their GPU
// device.
type DeviceProvider = gpucontext.DeviceProvider

// Surface is a render target.
type Surface = gpuimpl.Surface

// OffscreenSurface is a headless texture render target.
type OffscreenSurface = gpuimpl.OffscreenSurface

// WindowSurface presents to a caller-owned hal.Surface.
type WindowSurface = gpuimpl.WindowSurface

// Renderer draws line vertices with a single render pipeline.
type Renderer = gpuimpl.Renderer

// RendererConfig configures a Renderer.
type RendererConfig = gpuimpl.RendererConfig

// RendererStats is a snapshot of renderer counters.
type RendererStats = gpuimpl.RendererStats

// DrawRange is a contiguous run of vertices drawn as one primitive sequence.
type DrawRange = gpuimpl.DrawRange

// State is the lifecycle state of a Renderer.
type State = gpuimpl.State

// Renderer states.
const (
	StateUninitialized = gpuimpl.StateUninitialized
	StateReady         = gpuimpl.StateReady
	StateRendering     = gpuimpl.StateRendering
	StateDestroyed     = gpuimpl.StateDestroyed
)

// BufferManager owns named GPU buffers.
type BufferManager = gpuimpl.BufferManager

// BufferManagerConfig configures a BufferManager.
type BufferManagerConfig = gpuimpl.BufferManagerConfig

// BufferStats contains buffer manager statistics.
type BufferStats = gpuimpl.BufferStats

// Available reports whether backend is registered and has an adapter.
func Available(backend gputypes.Backend) bool {
	return gpuimpl.Available(backend)
}

// OpenDevice creates an owned device on backend.
func OpenDevice(backend gputypes.Backend) (*Device, error) {
	return gpuimpl.OpenDevice(backend)
}

// SharedDevice wraps a host application's device. It is never destroyed
// by waveline.
func SharedDevice(provider DeviceProvider) (*Device, error) {
	return gpuimpl.SharedDevice(provider)
}

// ExternalDevice wraps a host-owned HAL device and queue.
func ExternalDevice(device hal.Device, queue hal.Queue) *Device {
	return gpuimpl.ExternalDevice(device, queue)
}

// NewRenderer creates a renderer that takes over one reference to dev.
func NewRenderer(dev *Device, config RendererConfig) *Renderer {
	return gpuimpl.NewRenderer(dev, config)
}

// NewBufferManager creates a standalone buffer manager.
func NewBufferManager(device hal.Device, queue hal.Queue, config BufferManagerConfig) *BufferManager {
	return gpuimpl.NewBufferManager(device, queue, config)
}

// NewOffscreenSurface creates a headless render target.
func NewOffscreenSurface(dev *Device, width, height int, format gputypes.TextureFormat) (*OffscreenSurface, error) {
	return gpuimpl.NewOffscreenSurface(dev, width, height, format)
}

// NewWindowSurface configures a caller-owned hal.Surface for presentation.
func NewWindowSurface(dev *Device, surface hal.Surface, width, height int, format gputypes.TextureFormat) (*WindowSurface, error) {
	return gpuimpl.NewWindowSurface(dev, surface, width, height, format)
}

// IsFatal reports whether err requires the renderer to be torn down.
func IsFatal(err error) bool {
	return gpuimpl.IsFatal(err)
}

// ParseBackend maps a backend name to its identifier. "noop" and "empty"
// both select the noop backend.
func ParseBackend(name string) (gputypes.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "empty":
		return gputypes.BackendEmpty, nil
	case "vulkan", "vk":
		return gputypes.BackendVulkan, nil
	case "metal":
		return gputypes.BackendMetal, nil
	case "dx12", "d3d12":
		return gputypes.BackendDX12, nil
	case "gl", "gles", "opengl":
		return gputypes.BackendGL, nil
	default:
		return gputypes.BackendEmpty, fmt.Errorf("unknown GPU backend %q", name)
	}
}
