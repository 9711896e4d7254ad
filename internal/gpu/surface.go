package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/waveline"
)

// Surface is a render target the renderer draws one frame into.
//
// AcquireView returns the color view for the next frame. After the frame is
// submitted the renderer calls Present, or Discard when encoding failed.
type Surface interface {
	AcquireView() (hal.TextureView, error)
	Present() error
	Discard()
}

// viewDescriptor describes a full 2D color view of a texture.
func viewDescriptor(label string, format gputypes.TextureFormat) *hal.TextureViewDescriptor {
	return &hal.TextureViewDescriptor{
		Label:           label,
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	}
}

// OffscreenSurface is a headless render target backed by a texture.
// The texture and view are created once per size and reused every frame.
type OffscreenSurface struct {
	mu sync.Mutex

	device hal.Device
	format gputypes.TextureFormat
	width  uint32
	height uint32

	texture hal.Texture
	view    hal.TextureView

	presented uint64
}

// NewOffscreenSurface creates a width x height render texture on dev.
func NewOffscreenSurface(dev *Device, width, height int, format gputypes.TextureFormat) (*OffscreenSurface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: surface size %dx%d", waveline.ErrInvalidConfig, width, height)
	}
	device := dev.HAL()
	if device == nil {
		return nil, waveline.ErrDestroyed
	}
	if format == gputypes.TextureFormatUndefined {
		format = dev.SurfaceFormat()
	}
	s := &OffscreenSurface{device: device, format: format}
	if err := s.create(uint32(width), uint32(height)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OffscreenSurface) create(width, height uint32) error {
	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "waveline_offscreen",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        s.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create offscreen texture: %w", err)
	}
	view, err := s.device.CreateTextureView(tex, viewDescriptor("waveline_offscreen_view", s.format))
	if err != nil {
		s.device.DestroyTexture(tex)
		return fmt.Errorf("create offscreen view: %w", err)
	}
	s.texture, s.view = tex, view
	s.width, s.height = width, height
	return nil
}

func (s *OffscreenSurface) release() {
	if s.view != nil {
		s.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.texture != nil {
		s.device.DestroyTexture(s.texture)
		s.texture = nil
	}
}

// AcquireView returns the texture view.
func (s *OffscreenSurface) AcquireView() (hal.TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return nil, waveline.ErrDestroyed
	}
	return s.view, nil
}

// Present counts the finished frame. The texture keeps its contents until
// the next frame clears it.
func (s *OffscreenSurface) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented++
	return nil
}

// Discard is a no-op for offscreen targets.
func (s *OffscreenSurface) Discard() {}

// Texture returns the backing texture, for readback by the caller.
func (s *OffscreenSurface) Texture() hal.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}

// Size returns the current size in pixels.
func (s *OffscreenSurface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.width), int(s.height)
}

// Presented returns the number of frames presented.
func (s *OffscreenSurface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Resize recreates the texture when the size changes. Same-size calls are
// no-ops.
func (s *OffscreenSurface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", waveline.ErrInvalidConfig, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return waveline.ErrDestroyed
	}
	if uint32(width) == s.width && uint32(height) == s.height && s.view != nil {
		return nil
	}
	slogger().Debug("gpu: offscreen resize",
		"from_w", s.width, "from_h", s.height,
		"to_w", width, "to_h", height)
	s.release()
	return s.create(uint32(width), uint32(height))
}

// Destroy releases the texture and view. Safe to call multiple times.
func (s *OffscreenSurface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return
	}
	s.release()
	s.device = nil
}

// WindowSurface presents frames to a caller-owned hal.Surface. The surface
// itself is not destroyed here: Destroy only unconfigures it.
type WindowSurface struct {
	mu sync.Mutex

	device  hal.Device
	queue   hal.Queue
	surface hal.Surface
	format  gputypes.TextureFormat
	width   uint32
	height  uint32

	// Per-frame state between AcquireView and Present/Discard.
	current hal.SurfaceTexture
	view    hal.TextureView
}

// NewWindowSurface configures surface for presentation on dev.
func NewWindowSurface(dev *Device, surface hal.Surface, width, height int, format gputypes.TextureFormat) (*WindowSurface, error) {
	if surface == nil {
		return nil, fmt.Errorf("%w: nil surface", waveline.ErrInvalidConfig)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: surface size %dx%d", waveline.ErrInvalidConfig, width, height)
	}
	device, queue := dev.HAL(), dev.Queue()
	if device == nil || queue == nil {
		return nil, waveline.ErrDestroyed
	}
	if format == gputypes.TextureFormatUndefined {
		format = dev.SurfaceFormat()
	}
	w := &WindowSurface{device: device, queue: queue, surface: surface, format: format}
	if err := w.configure(uint32(width), uint32(height)); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WindowSurface) configure(width, height uint32) error {
	err := w.surface.Configure(w.device, &hal.SurfaceConfiguration{
		Width:       width,
		Height:      height,
		Format:      w.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: gputypes.PresentModeFifo,
		AlphaMode:   gputypes.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	w.width, w.height = width, height
	return nil
}

// AcquireView acquires the next swapchain texture and returns a view of it.
// An outdated surface is reconfigured once at the current size and retried.
func (w *WindowSurface) AcquireView() (hal.TextureView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.device == nil {
		return nil, waveline.ErrDestroyed
	}
	if w.view != nil {
		return w.view, nil
	}

	acquired, err := w.surface.AcquireTexture(nil)
	if errors.Is(err, hal.ErrSurfaceOutdated) {
		slogger().Debug("gpu: surface outdated, reconfiguring", "w", w.width, "h", w.height)
		if cerr := w.configure(w.width, w.height); cerr != nil {
			return nil, cerr
		}
		acquired, err = w.surface.AcquireTexture(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}

	view, err := w.device.CreateTextureView(acquired.Texture, viewDescriptor("waveline_surface_view", w.format))
	if err != nil {
		w.surface.DiscardTexture(acquired.Texture)
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	w.current, w.view = acquired.Texture, view
	return view, nil
}

// Present presents the acquired texture and releases its view.
func (w *WindowSurface) Present() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.queue.Present(w.surface, w.current, nil)
	w.releaseFrame()
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Discard drops the acquired texture without presenting it.
func (w *WindowSurface) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return
	}
	w.surface.DiscardTexture(w.current)
	w.releaseFrame()
}

func (w *WindowSurface) releaseFrame() {
	if w.view != nil {
		w.device.DestroyTextureView(w.view)
		w.view = nil
	}
	w.current = nil
}

// Size returns the configured size in pixels.
func (w *WindowSurface) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.width), int(w.height)
}

// Resize reconfigures the surface when the size changes.
func (w *WindowSurface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", waveline.ErrInvalidConfig, width, height)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.device == nil {
		return waveline.ErrDestroyed
	}
	if uint32(width) == w.width && uint32(height) == w.height {
		return nil
	}
	if w.current != nil {
		w.surface.DiscardTexture(w.current)
		w.releaseFrame()
	}
	return w.configure(uint32(width), uint32(height))
}

// Destroy discards any in-flight frame and unconfigures the surface.
// Safe to call multiple times.
func (w *WindowSurface) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.device == nil {
		return
	}
	if w.current != nil {
		w.surface.DiscardTexture(w.current)
		w.releaseFrame()
	}
	w.surface.Unconfigure(w.device)
	w.device = nil
	w.queue = nil
}
