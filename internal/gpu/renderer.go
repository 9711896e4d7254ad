package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/waveline"
	"github.com/gogpu/waveline/pack"
)

// Buffer names used by the renderer.
const (
	VertexBufferName  = "vertices"
	UniformBufferName = "uniforms"
)

// State is the lifecycle state of a Renderer.
type State int

const (
	// StateUninitialized is the state after NewRenderer.
	StateUninitialized State = iota

	// StateReady means the pipeline exists and frames can be rendered.
	StateReady

	// StateRendering is held for the duration of Render.
	StateRendering

	// StateDestroyed is terminal.
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateRendering:
		return "Rendering"
	case StateDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsFatal reports whether err means the device or surface is gone and the
// renderer must be torn down. Out-of-memory and budget errors are not fatal.
func IsFatal(err error) bool {
	return errors.Is(err, hal.ErrDeviceLost) ||
		errors.Is(err, hal.ErrSurfaceLost) ||
		errors.Is(err, waveline.ErrDestroyed)
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// Topology joins consecutive vertices. Default is a line strip.
	Topology waveline.Topology

	// Format is the color target format. Undefined uses the device's
	// preferred surface format.
	Format gputypes.TextureFormat

	// ClearColor is the RGBA clear value of every frame.
	ClearColor [4]float64

	// UniformAlignment is the uniform block alignment in bytes. Zero uses
	// the device limit.
	UniformAlignment int

	// Budget caps the renderer's buffer memory. Zero means unlimited.
	Budget datasize.ByteSize
}

// RendererStats is a snapshot of renderer counters.
type RendererStats struct {
	State    State
	Frames   uint64
	Vertices uint32
	Buffers  BufferStats
}

// Renderer draws uploaded line vertices into a Surface with one render
// pipeline. The vertex and uniform buffers are owned by its BufferManager
// and reused across frames. Per frame only a command encoder and its
// command buffer are created.
//
// Renderer is safe for concurrent use.
type Renderer struct {
	mu sync.Mutex

	dev    *Device
	device hal.Device
	queue  hal.Queue
	config RendererConfig
	state  State

	pipeline *linePipeline
	buffers  *BufferManager

	// Bound draw state. Nil vertex buffer or bind group means frames skip
	// drawing until the next successful Upload.
	vertexBuf     hal.Buffer
	boundUniforms hal.Buffer
	bindGroup     hal.BindGroup
	ranges        []DrawRange
	count         uint32

	frames uint64
}

// NewRenderer creates a renderer on dev. The renderer takes over one
// reference to dev and releases it on Destroy.
func NewRenderer(dev *Device, config RendererConfig) *Renderer {
	if config.Format == gputypes.TextureFormatUndefined {
		config.Format = dev.SurfaceFormat()
	}
	if config.UniformAlignment <= 0 {
		config.UniformAlignment = dev.UniformAlignment()
	}
	return &Renderer{
		dev:    dev,
		device: dev.HAL(),
		queue:  dev.Queue(),
		config: config,
		state:  StateUninitialized,
	}
}

// Config returns the effective configuration.
func (r *Renderer) Config() RendererConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// Init creates the shader, layouts, pipeline and buffer manager.
// Calling Init on a ready renderer is a no-op. A failure destroys the
// renderer.
func (r *Renderer) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateReady, StateRendering:
		return nil
	case StateDestroyed:
		return waveline.ErrDestroyed
	}

	if r.device == nil || r.queue == nil {
		r.destroyLocked()
		return fmt.Errorf("%w: device already released", waveline.ErrGPUUnavailable)
	}

	p, err := createLinePipeline(r.device, r.config.Format, r.config.Topology)
	if err != nil {
		r.destroyLocked()
		return err
	}
	r.pipeline = p
	r.buffers = NewBufferManager(r.device, r.queue, BufferManagerConfig{
		Budget:      r.config.Budget,
		LabelPrefix: "waveline_",
	})
	r.state = StateReady

	slogger().Debug("gpu: renderer ready",
		"format", r.config.Format,
		"topology", r.config.Topology,
		"uniform_alignment", r.config.UniformAlignment)
	return nil
}

// DrawRange is a contiguous run of vertices drawn as one primitive
// sequence. Separate ranges keep line strips of different series apart.
type DrawRange struct {
	First uint32
	Count uint32
}

// Upload writes vertices and uniforms to the GPU and makes the first count
// vertices drawable as a single range.
func (r *Renderer) Upload(vertices []float32, count uint32, uniforms []float32) error {
	return r.UploadRanges(vertices, []DrawRange{{First: 0, Count: count}}, uniforms)
}

// UploadRanges writes vertices and uniforms to the GPU and draws each range
// separately. Ranges are clipped to the whole vertices present; empty ones
// are dropped. On failure the bound state is cleared so frames skip drawing
// until the next successful upload.
func (r *Renderer) UploadRanges(vertices []float32, ranges []DrawRange, uniforms []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReadyLocked(); err != nil {
		return err
	}

	n := uint32(pack.VertexCount(vertices))
	r.ranges = r.ranges[:0]
	var count uint32
	for _, rng := range ranges {
		if rng.First >= n {
			continue
		}
		if rng.Count > n-rng.First {
			rng.Count = n - rng.First
		}
		if rng.Count == 0 {
			continue
		}
		r.ranges = append(r.ranges, rng)
		count += rng.Count
	}
	if count == 0 {
		r.count = 0
		return nil
	}

	vbuf, _, err := r.buffers.Upsert(VertexBufferName, pack.Bytes(vertices), gputypes.BufferUsageVertex)
	if err != nil {
		r.clearBoundLocked()
		return fmt.Errorf("upload vertices: %w", err)
	}
	ubuf, _, err := r.buffers.Upsert(UniformBufferName, pack.Bytes(uniforms), gputypes.BufferUsageUniform)
	if err != nil {
		r.clearBoundLocked()
		return fmt.Errorf("upload uniforms: %w", err)
	}

	if ubuf != r.boundUniforms || r.bindGroup == nil {
		if r.bindGroup != nil {
			r.device.DestroyBindGroup(r.bindGroup)
			r.bindGroup = nil
		}
		bg, err := r.pipeline.createBindGroup(r.device, ubuf, uint64(pack.UniformFields*4))
		if err != nil {
			r.clearBoundLocked()
			return err
		}
		r.bindGroup = bg
		r.boundUniforms = ubuf
	}

	r.vertexBuf = vbuf
	r.count = count
	return nil
}

// Render draws one frame into target. It is a no-op when nothing drawable
// has been uploaded.
func (r *Renderer) Render(target Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReadyLocked(); err != nil {
		return err
	}
	if r.vertexBuf == nil || r.bindGroup == nil || r.count == 0 {
		return nil
	}

	r.state = StateRendering
	defer func() {
		if r.state == StateRendering {
			r.state = StateReady
		}
	}()

	view, err := target.AcquireView()
	if err != nil {
		return fmt.Errorf("acquire view: %w", err)
	}
	if err := r.encodeSubmit(view); err != nil {
		target.Discard()
		return err
	}
	if err := target.Present(); err != nil {
		return err
	}
	r.frames++
	return nil
}

// encodeSubmit records a single clear-and-draw render pass into view and
// submits it.
func (r *Renderer) encodeSubmit(view hal.TextureView) error {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "line_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("line_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	c := r.config.ClearColor
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "line_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: c[0], G: c[1], B: c[2], A: c[3]},
		}},
	})
	rp.SetPipeline(r.pipeline.pipeline)
	rp.SetBindGroup(0, r.bindGroup, nil)
	rp.SetVertexBuffer(0, r.vertexBuf, 0)
	for _, rng := range r.ranges {
		rp.Draw(rng.Count, 1, rng.First, 0)
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	if _, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

func (r *Renderer) checkReadyLocked() error {
	switch r.state {
	case StateDestroyed:
		return waveline.ErrDestroyed
	case StateUninitialized:
		return fmt.Errorf("%w: renderer not initialized", waveline.ErrNotAttached)
	}
	return nil
}

func (r *Renderer) clearBoundLocked() {
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
	}
	r.bindGroup = nil
	r.boundUniforms = nil
	r.vertexBuf = nil
	r.ranges = r.ranges[:0]
	r.count = 0
}

// State returns the lifecycle state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Ranges returns a copy of the draw ranges of the last upload.
func (r *Renderer) Ranges() []DrawRange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DrawRange(nil), r.ranges...)
}

// VertexCount returns the number of vertices drawn per frame.
func (r *Renderer) VertexCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Buffers returns the renderer's buffer manager, or nil before Init.
func (r *Renderer) Buffers() *BufferManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers
}

// Stats returns a snapshot of renderer counters.
func (r *Renderer) Stats() RendererStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RendererStats{State: r.state, Frames: r.frames, Vertices: r.count}
	if r.buffers != nil {
		s.Buffers = r.buffers.Stats()
	}
	return s
}

// Destroy releases buffers and pipeline objects, then the device
// reference. Owned devices are closed with their last reference; shared
// devices are left alone. Safe to call multiple times.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyLocked()
}

func (r *Renderer) destroyLocked() {
	if r.state == StateDestroyed {
		return
	}
	r.state = StateDestroyed

	if r.device != nil {
		r.clearBoundLocked()
	}
	if r.buffers != nil {
		r.buffers.Close()
	}
	r.pipeline.destroy(r.device)
	r.pipeline = nil

	if r.dev != nil {
		r.dev.Release()
	}
	r.device = nil
	r.queue = nil

	slogger().Debug("gpu: renderer destroyed", "frames", r.frames)
}
