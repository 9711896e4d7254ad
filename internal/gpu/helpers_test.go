package gpu

import (
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

var errInjected = errors.New("injected failure")

// countingDevice wraps a hal.Device and tracks buffer and device lifetimes.
// It records double destroys instead of panicking so tests can assert on
// them.
type countingDevice struct {
	hal.Device

	mu             sync.Mutex
	live           map[hal.Buffer]uint64 // buffer -> size
	destroyed      map[hal.Buffer]bool
	creates        int
	destroys       int
	doubleDestroys int
	bindGroups     int
	deviceDestroys int
	failCreate     bool
}

func newCountingDevice(d hal.Device) *countingDevice {
	return &countingDevice{
		Device:    d,
		live:      make(map[hal.Buffer]uint64),
		destroyed: make(map[hal.Buffer]bool),
	}
}

func (d *countingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCreate {
		return nil, hal.ErrDeviceOutOfMemory
	}
	buf, err := d.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	d.creates++
	d.live[buf] = desc.Size
	return buf, nil
}

func (d *countingDevice) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed[buf] {
		d.doubleDestroys++
		return
	}
	d.destroyed[buf] = true
	delete(d.live, buf)
	d.destroys++
	d.Device.DestroyBuffer(buf)
}

func (d *countingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.mu.Lock()
	d.bindGroups++
	d.mu.Unlock()
	return d.Device.CreateBindGroup(desc)
}

func (d *countingDevice) Destroy() {
	d.mu.Lock()
	d.deviceDestroys++
	d.mu.Unlock()
	d.Device.Destroy()
}

func (d *countingDevice) setFailCreate(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failCreate = v
}

func (d *countingDevice) liveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *countingDevice) wasDestroyed(buf hal.Buffer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed[buf]
}

// checkingQueue wraps a hal.Queue and counts writes into destroyed buffers
// and submissions. Submit and Present fail with their injected errors when
// set.
type checkingQueue struct {
	hal.Queue

	dev *countingDevice

	mu              sync.Mutex
	writes          int
	writesDestroyed int
	submits         int
	presents        int
	submitErr       error
	presentErr      error
}

func (q *checkingQueue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	q.mu.Lock()
	q.writes++
	if q.dev != nil && q.dev.wasDestroyed(buf) {
		q.writesDestroyed++
	}
	q.mu.Unlock()
	return q.Queue.WriteBuffer(buf, offset, data)
}

func (q *checkingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return 0, q.submitErr
	}
	q.submits++
	return q.Queue.Submit(cmds)
}

func (q *checkingQueue) Present(surface hal.Surface, tex hal.SurfaceTexture, rects []image.Rectangle) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.presentErr != nil {
		return q.presentErr
	}
	q.presents++
	return q.Queue.Present(surface, tex, rects)
}

func (q *checkingQueue) setPresentErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.presentErr = err
}

func (q *checkingQueue) presentCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.presents
}

func (q *checkingQueue) setSubmitErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitErr = err
}

func (q *checkingQueue) submitCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submits
}

// newTestDevice returns an external Device over counting wrappers of a
// noop device.
func newTestDevice(t *testing.T) (*Device, *countingDevice, *checkingQueue) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	cd := newCountingDevice(device)
	cq := &checkingQueue{Queue: queue, dev: cd}
	return ExternalDevice(cd, cq), cd, cq
}

// stubProvider implements gpucontext.DeviceProvider over fixed handles.
type stubProvider struct {
	device any
	queue  any
	format gputypes.TextureFormat
}

func (p stubProvider) Device() gpucontext.Device { return p.device }
func (p stubProvider) Queue() gpucontext.Queue { return p.queue }
func (p stubProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p stubProvider) Adapter() gpucontext.Adapter { return nil }
func (p stubProvider) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{Name: "stub"} }
