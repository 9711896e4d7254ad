package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/waveline"
	"github.com/gogpu/waveline/downsample"
	"github.com/gogpu/waveline/gpu"
	"github.com/gogpu/waveline/internal/parallel"
	"github.com/gogpu/waveline/pack"
)

// Stats is a snapshot of controller counters.
type Stats struct {
	State  State
	Paused bool

	// Series is the number of series currently set.
	Series int

	// Frames counts RenderFrame calls since the last attach, paused
	// frames included.
	Frames uint64

	// Rendered counts frames that were presented.
	Rendered uint64

	// Vertices is the number of vertices drawn per frame.
	Vertices uint32

	// LastUpdate describes the most recent upload.
	LastUpdate waveline.UpdateStats

	// Buffers describes GPU buffer usage. Zero when not attached.
	Buffers gpu.BufferStats
}

// prepared is one series after sanitizing and decimation.
type prepared struct {
	points    []waveline.Point
	dropped   int
	decimated bool
}

// resizer is implemented by surfaces that follow viewport changes.
type resizer interface {
	Resize(width, height int) error
}

// Controller owns the GPU lifecycle of one plot. It keeps the latest data,
// configuration and domain, uploads them whenever they change while
// attached, and redraws from a frame loop.
//
// Updates and frames are serialized, so several updates between two frames
// collapse into the last one. Callbacks and observers run on the goroutine
// that caused them, after the controller's lock has been released.
//
// Controller is safe for concurrent use.
type Controller struct {
	mu   sync.Mutex
	opts options

	state  State
	config waveline.RenderConfig
	series []waveline.Series
	domain *waveline.Domain
	paused bool

	device     *gpu.Device
	renderer   *gpu.Renderer
	pool       *parallel.Pool
	surface    gpu.Surface
	attachedAt time.Time
	readyFired bool

	// gen identifies the current attachment. Frame loops from an earlier
	// attachment compare it and become no-ops.
	gen  uint64
	loop *frameLoop

	prepared []prepared
	vertices []float32
	ranges   []gpu.DrawRange
	last     waveline.UpdateStats
	frames   uint64
	lastErr  error

	// frameErr is set once a recoverable frame error has been reported, and
	// cleared by the next good frame or upload.
	frameErr bool

	// pending holds callbacks queued under mu, run by unlock.
	pending []func()
}

// New creates a detached controller.
func New(opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{
		opts:   o,
		config: o.config,
		state:  Idle,
	}
}

// unlock releases mu and runs the callbacks queued while it was held.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Attach acquires a device, builds the renderer for surface and starts the
// frame loop. The loop runs until ctx is cancelled or Detach is called.
//
// Attach is allowed from Idle, TornDown and Error. The surface stays owned
// by the caller and must outlive the attachment.
func (c *Controller) Attach(ctx context.Context, surface gpu.Surface) error {
	if surface == nil {
		return fmt.Errorf("%w: nil surface", waveline.ErrInvalidConfig)
	}

	c.mu.Lock()
	defer c.unlock()

	if c.state.attached() {
		return waveline.ErrAlreadyAttached
	}

	c.gen++
	c.state = Initializing
	c.readyFired = false
	c.frames = 0
	c.lastErr = nil
	c.frameErr = false
	c.last = waveline.UpdateStats{}

	if err := c.config.Validate(); err != nil {
		return c.failLocked(err)
	}
	if !c.opts.capable() {
		return c.failLocked(waveline.ErrGPUUnavailable)
	}

	dev, err := c.opts.openDevice()
	if err != nil {
		if !errors.Is(err, waveline.ErrGPUUnavailable) {
			err = fmt.Errorf("%w: %w", waveline.ErrGPUUnavailable, err)
		}
		return c.failLocked(err)
	}
	r := gpu.NewRenderer(dev, c.rendererConfig())
	if err := r.Init(); err != nil {
		return c.failLocked(err)
	}

	c.device = dev
	c.renderer = r
	c.surface = surface
	if c.opts.workers > 1 {
		c.pool = parallel.NewPool(c.opts.workers)
	}
	c.attachedAt = time.Now()
	c.state = Ready

	info := dev.Info()
	waveline.Logger().Info("stream: attached",
		"adapter", info.Name,
		"shared", dev.External(),
		"series", len(c.series))

	if len(c.series) > 0 {
		if err := c.updateLocked(); err != nil && c.state == Error {
			return err
		}
	}

	if src := c.opts.frames; src != nil {
		loopCtx, cancel := context.WithCancel(ctx)
		loop := &frameLoop{gen: c.gen, cancel: cancel, done: make(chan struct{})}
		c.loop = loop
		frames := src.Frames(loopCtx)
		go runFrameLoop(loopCtx, frames, func() error { return c.renderLoop(loop) }, loop.done)
	}
	return nil
}

// Detach stops the frame loop and waits for it to exit, then destroys the
// renderer and its buffers. The device is released; a shared device is
// left alone. Detach is idempotent, and after it Attach starts from scratch.
//
// Called from a callback running on the frame loop, Detach does not wait:
// the loop exits once the callback returns.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	loop := c.loop
	c.loop = nil
	c.mu.Unlock()

	if loop != nil {
		loop.stop()
	}

	c.mu.Lock()
	defer c.unlock()

	// A concurrent Attach after an Error state owns the controller now.
	if c.gen != gen {
		return
	}
	if c.state == Idle || c.state == TornDown {
		return
	}
	frames := c.frames
	c.teardownLocked(TornDown)
	waveline.Logger().Info("stream: detached", "frames", frames)
}

// SetSeries replaces the plotted data. While attached the data is uploaded
// immediately; otherwise it is stored for the next Attach. The series are
// read, never modified.
func (c *Controller) SetSeries(series []waveline.Series) error {
	c.mu.Lock()
	defer c.unlock()

	c.series = append(c.series[:0:0], series...)
	if c.state != Ready {
		return nil
	}
	return c.updateLocked()
}

// SetConfig replaces the render configuration. A topology or clear color
// change rebuilds the pipeline on the same device; a viewport change
// resizes the surface when it supports resizing.
func (c *Controller) SetConfig(cfg waveline.RenderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.unlock()

	old := c.config
	c.config = cfg
	if c.state != Ready {
		return nil
	}

	if old.Topology != cfg.Topology || old.ClearColor != cfg.ClearColor {
		if err := c.rebuildLocked(); err != nil {
			return err
		}
	}
	if old.Width != cfg.Width || old.Height != cfg.Height {
		if rs, ok := c.surface.(resizer); ok {
			waveline.Logger().Debug("stream: resize surface",
				"width", cfg.Width, "height", cfg.Height)
			if err := rs.Resize(cfg.Width, cfg.Height); err != nil {
				return c.handleErrLocked(fmt.Errorf("resize surface: %w", err))
			}
		}
	}
	return c.updateLocked()
}

// SetDomain fixes the data range mapped onto the plot area. Nil returns to
// the domain computed from the data.
func (c *Controller) SetDomain(d *waveline.Domain) error {
	if d != nil && !d.Valid() {
		return fmt.Errorf("%w: domain %v", waveline.ErrInvalidConfig, *d)
	}

	c.mu.Lock()
	defer c.unlock()

	if d == nil {
		c.domain = nil
	} else {
		dom := *d
		c.domain = &dom
	}
	if c.state != Ready {
		return nil
	}
	return c.updateLocked()
}

// ClearDomain returns to the domain computed from the data.
func (c *Controller) ClearDomain() error {
	return c.SetDomain(nil)
}

// SetPaused suppresses frames while keeping GPU state.
func (c *Controller) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.unlock()
	c.paused = paused
}

// RenderFrame draws one frame. The frame loop calls it on every tick;
// callers with their own cadence can call it directly, typically with
// WithFrameSource(nil).
func (c *Controller) RenderFrame() error {
	c.mu.Lock()
	defer c.unlock()
	return c.renderLocked()
}

// renderLoop renders a frame for loop's attachment. Callbacks queued by
// the frame run with loop marked busy, so they may Detach.
func (c *Controller) renderLoop(loop *frameLoop) error {
	c.mu.Lock()
	if c.gen != loop.gen {
		c.mu.Unlock()
		return nil
	}
	err := c.renderLocked()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		loop.callbacks.Store(true)
		defer loop.callbacks.Store(false)
		for _, fn := range pending {
			fn()
		}
	}
	return err
}

func (c *Controller) renderLocked() error {
	if c.state != Ready {
		return waveline.ErrNotAttached
	}

	c.frames++
	fs := waveline.FrameStats{Frame: c.frames}
	obs := c.opts.observer

	if c.paused {
		fs.Skipped = true
		c.pending = append(c.pending, func() { obs.ObserveFrame(fs) })
		return nil
	}

	start := time.Now()
	err := c.renderer.Render(c.surface)
	fs.Duration = time.Since(start)
	if err == nil {
		fs.Vertices = int(c.renderer.VertexCount())
	}
	fs.Skipped = fs.Vertices == 0
	c.pending = append(c.pending, func() { obs.ObserveFrame(fs) })

	if err != nil {
		err = fmt.Errorf("render frame %d: %w", fs.Frame, err)
		if c.frameErr && !gpu.IsFatal(err) {
			c.lastErr = err
			return err
		}
		c.frameErr = true
		return c.handleErrLocked(err)
	}
	c.frameErr = false
	return nil
}

// updateLocked runs sanitize, decimate, pack and upload for the current
// series, config and domain.
func (c *Controller) updateLocked() error {
	c.state = Updating
	defer func() {
		if c.state == Updating {
			c.state = Ready
		}
	}()

	start := time.Now()
	cfg := c.config
	stats := waveline.UpdateStats{Series: len(c.series)}

	if cap(c.prepared) < len(c.series) {
		c.prepared = make([]prepared, len(c.series))
	}
	c.prepared = c.prepared[:len(c.series)]
	c.pool.Run(len(c.series), func(i int) {
		points := waveline.Sanitize(c.series[i].Points)
		p := prepared{dropped: len(c.series[i].Points) - len(points)}
		if cfg.NeedsDecimation(len(points)) {
			points = downsample.Downsample(points, cfg.MaxPoints, cfg.Method)
			p.decimated = true
		}
		p.points = points
		c.prepared[i] = p
	})

	c.vertices = c.vertices[:0]
	c.ranges = c.ranges[:0]
	for i, s := range c.series {
		p := c.prepared[i]
		stats.InputPoints += len(s.Points)
		stats.Dropped += p.dropped
		stats.Decimated = stats.Decimated || p.decimated

		first := pack.VertexCount(c.vertices)
		c.vertices = pack.AppendVertices(c.vertices, p.points, s.Color)
		c.ranges = append(c.ranges, gpu.DrawRange{First: uint32(first), Count: uint32(len(p.points))})
		stats.OutputPoints += len(p.points)
	}
	clear(c.prepared)

	domain := waveline.ComputeSeriesDomain(c.series, true)
	if c.domain != nil {
		domain = *c.domain
	}

	r := c.renderer
	elapsed := float32(time.Since(c.attachedAt).Seconds())
	uniforms := pack.Uniforms(cfg, domain, elapsed, r.Config().UniformAlignment)

	allocs := r.Stats().Buffers.Allocations
	err := r.UploadRanges(c.vertices, c.ranges, uniforms)
	after := r.Stats()
	stats.Reallocated = after.Buffers.Allocations > allocs
	if err == nil && after.Vertices > 0 {
		stats.UploadBytes = 4 * (len(c.vertices) + len(uniforms))
	}
	stats.Duration = time.Since(start)
	c.last = stats

	obs := c.opts.observer
	c.pending = append(c.pending, func() { obs.ObserveUpdate(stats) })
	waveline.Logger().Debug("stream: update", "stats", stats.String())

	if err != nil {
		return c.handleErrLocked(err)
	}
	c.frameErr = false
	if after.Vertices > 0 {
		c.fireReadyLocked()
	}
	return nil
}

// rebuildLocked replaces the renderer with one built from the current
// config on the same device.
func (c *Controller) rebuildLocked() error {
	c.device.Acquire()
	c.renderer.Destroy()
	c.renderer = nil

	r := gpu.NewRenderer(c.device, c.rendererConfig())
	if err := r.Init(); err != nil {
		return c.failLocked(err)
	}
	c.renderer = r
	waveline.Logger().Debug("stream: renderer rebuilt",
		"topology", c.config.Topology)
	return nil
}

func (c *Controller) rendererConfig() gpu.RendererConfig {
	return gpu.RendererConfig{
		Topology:         c.config.Topology,
		ClearColor:       c.config.ClearColor,
		UniformAlignment: c.opts.uniformAlignment,
		Budget:           c.opts.budget,
	}
}

// handleErrLocked reports err and tears down when it is fatal.
func (c *Controller) handleErrLocked(err error) error {
	if gpu.IsFatal(err) {
		return c.failLocked(err)
	}
	waveline.Logger().Warn("stream: recoverable error", "err", err)
	c.fireErrorLocked(err)
	return err
}

// failLocked tears down into Error and reports err.
func (c *Controller) failLocked(err error) error {
	c.teardownLocked(Error)
	waveline.Logger().Warn("stream: failed", "err", err)
	c.fireErrorLocked(err)
	return err
}

// teardownLocked stops the loop without waiting for it and releases the
// renderer. The surface belongs to the caller and is not destroyed.
func (c *Controller) teardownLocked(final State) {
	if c.loop != nil {
		c.loop.cancel()
	}
	if c.renderer != nil {
		c.renderer.Destroy()
		c.renderer = nil
	}
	c.pool.Close()
	c.pool = nil
	c.device = nil
	c.surface = nil
	c.state = final
}

func (c *Controller) fireReadyLocked() {
	if c.readyFired {
		return
	}
	c.readyFired = true
	if fn := c.opts.onReady; fn != nil {
		c.pending = append(c.pending, fn)
	}
}

func (c *Controller) fireErrorLocked(err error) {
	c.lastErr = err
	if fn := c.opts.onError; fn != nil {
		c.pending = append(c.pending, func() { fn(err) })
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last reported error, or nil. It is reset by Attach.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Config returns the current render configuration.
func (c *Controller) Config() waveline.RenderConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Domain returns the domain frames are drawn with: the fixed domain if
// one is set, otherwise the one computed from the data.
func (c *Controller) Domain() waveline.Domain {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.domain != nil {
		return *c.domain
	}
	return waveline.ComputeSeriesDomain(c.series, true)
}

// Stats returns a snapshot of controller counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		State:      c.state,
		Paused:     c.paused,
		Series:     len(c.series),
		Frames:     c.frames,
		LastUpdate: c.last,
	}
	if c.renderer != nil {
		rs := c.renderer.Stats()
		s.Rendered = rs.Frames
		s.Vertices = rs.Vertices
		s.Buffers = rs.Buffers
	}
	return s
}
