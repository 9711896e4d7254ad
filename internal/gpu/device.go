package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/waveline"
)

// Device is a GPU device and queue used by one or more renderers.
//
// A Device is either owned or external. An owned device is created by
// OpenDevice and destroyed when its last reference is released. An external
// device is supplied by the host (SharedDevice, ExternalDevice) and is never
// destroyed here: sibling renderers and the host keep using it.
//
// Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	info   gputypes.AdapterInfo
	limits gputypes.Limits
	format gputypes.TextureFormat

	external bool // true when the host owns device and queue
	refs     int
}

// Available reports whether backend is registered and exposes at least one
// adapter. It creates and immediately destroys a throwaway instance.
func Available(backend gputypes.Backend) bool {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return false
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return false
	}
	defer instance.Destroy()
	return len(instance.EnumerateAdapters(nil)) > 0
}

// OpenDevice creates an owned device on the given backend, preferring a
// discrete GPU, then an integrated GPU, then the first adapter reported.
// Every failure wraps waveline.ErrGPUUnavailable.
func OpenDevice(backend gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %s backend not registered", waveline.ErrGPUUnavailable, backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", waveline.ErrGPUUnavailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", waveline.ErrGPUUnavailable)
	}

	selected := selectAdapter(adapters)
	openDev, err := selected.Adapter.Open(gputypes.Features(0), selected.Capabilities.Limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", waveline.ErrGPUUnavailable, err)
	}

	slogger().Info("gpu: adapter selected",
		"name", selected.Info.Name,
		"type", selected.Info.DeviceType,
		"backend", backend)

	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		info:     selected.Info,
		limits:   selected.Capabilities.Limits,
		format:   gputypes.TextureFormatBGRA8Unorm,
		refs:     1,
	}, nil
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// SharedDevice wraps the device of a host application. The provider's
// Device and Queue must be hal.Device and hal.Queue.
func SharedDevice(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil device provider", waveline.ErrGPUUnavailable)
	}
	device, ok := provider.Device().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider device is %T, not hal.Device", waveline.ErrGPUUnavailable, provider.Device())
	}
	queue, ok := provider.Queue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider queue is %T, not hal.Queue", waveline.ErrGPUUnavailable, provider.Queue())
	}

	d := ExternalDevice(device, queue)
	d.info.Name = provider.AdapterInfo().Name
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		d.format = f
	}
	return d, nil
}

// ExternalDevice wraps a host-owned device and queue. Releasing the
// returned Device never destroys them.
func ExternalDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device:   device,
		queue:    queue,
		limits:   gputypes.DefaultLimits(),
		format:   gputypes.TextureFormatBGRA8Unorm,
		external: true,
		refs:     1,
	}
}

// HAL returns the underlying device, or nil after the last Release.
func (d *Device) HAL() hal.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device
}

// Queue returns the device queue, or nil after the last Release.
func (d *Device) Queue() hal.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue
}

// Info returns the adapter metadata. Only Name is set for shared devices.
func (d *Device) Info() gputypes.AdapterInfo { return d.info }

// Limits returns the device limits.
func (d *Device) Limits() gputypes.Limits { return d.limits }

// SurfaceFormat returns the preferred render target format.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.format }

// External reports whether the device is owned by the host.
func (d *Device) External() bool { return d.external }

// UniformAlignment returns the uniform buffer offset alignment in bytes.
func (d *Device) UniformAlignment() int {
	if a := d.limits.MinUniformBufferOffsetAlignment; a > 0 {
		return int(a)
	}
	return int(gputypes.DefaultLimits().MinUniformBufferOffsetAlignment)
}

// Acquire adds a reference and returns d, for handing one device to
// several renderers. Each Acquire must be paired with a Release.
func (d *Device) Acquire() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs > 0 {
		d.refs++
	}
	return d
}

// Release drops a reference. When the last reference of an owned device is
// released the device and its instance are destroyed. External devices are
// only detached. Extra calls are no-ops.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return
	}
	d.refs--
	if d.refs > 0 {
		return
	}

	if !d.external {
		if d.device != nil {
			if err := d.device.WaitIdle(); err != nil {
				slogger().Warn("gpu: wait idle before destroy", "err", err)
			}
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	// Shared resources are not ours to destroy.
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// Refs returns the current reference count.
func (d *Device) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs
}
