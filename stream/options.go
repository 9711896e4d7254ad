package stream

import (
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/waveline"
	"github.com/gogpu/waveline/gpu"
)

// Option configures a Controller during creation.
//
// Example:
//
//	c := stream.New(
//		stream.WithConfig(cfg),
//		stream.WithOnError(func(err error) { log.Println(err) }),
//	)
type Option func(*options)

// options holds optional configuration for Controller creation.
type options struct {
	config           waveline.RenderConfig
	openDevice       func() (*gpu.Device, error)
	capable          func() bool
	onReady          func()
	onError          func(error)
	observer         waveline.Observer
	frames           FrameSource
	uniformAlignment int
	budget           datasize.ByteSize
	workers          int
}

// preferredBackends are tried in order by the default capability check and
// device opener.
var preferredBackends = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
}

// defaultOptions returns the default controller options.
func defaultOptions() options {
	return options{
		config:     waveline.DefaultRenderConfig(),
		openDevice: openPreferredDevice,
		capable:    anyBackendAvailable,
		observer:   waveline.NopObserver{},
		frames:     TickerSource{Interval: DefaultFrameInterval},
	}
}

func anyBackendAvailable() bool {
	for _, b := range preferredBackends {
		if gpu.Available(b) {
			return true
		}
	}
	return false
}

func openPreferredDevice() (*gpu.Device, error) {
	var lastErr error = waveline.ErrGPUUnavailable
	for _, b := range preferredBackends {
		if !gpu.Available(b) {
			continue
		}
		dev, err := gpu.OpenDevice(b)
		if err == nil {
			return dev, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// WithConfig sets the initial render configuration.
func WithConfig(cfg waveline.RenderConfig) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithTopology sets the primitive topology of the initial configuration.
func WithTopology(t waveline.Topology) Option {
	return func(o *options) {
		o.config.Topology = t
	}
}

// WithDeviceOpener sets the function Attach uses to obtain a device. The
// controller releases its reference on Detach, so an owned device is
// closed and a shared one is left alone.
func WithDeviceOpener(open func() (*gpu.Device, error)) Option {
	return func(o *options) {
		if open != nil {
			o.openDevice = open
		}
	}
}

// WithBackend opens an owned device on a specific backend and uses its
// availability as the capability check.
func WithBackend(backend gputypes.Backend) Option {
	return func(o *options) {
		o.capable = func() bool { return gpu.Available(backend) }
		o.openDevice = func() (*gpu.Device, error) { return gpu.OpenDevice(backend) }
	}
}

// WithSharedDevice renders on a host application's device. The device is
// never destroyed by the controller.
func WithSharedDevice(provider gpu.DeviceProvider) Option {
	return func(o *options) {
		o.capable = func() bool { return provider != nil }
		o.openDevice = func() (*gpu.Device, error) { return gpu.SharedDevice(provider) }
	}
}

// WithCapabilityCheck overrides the check Attach runs before opening a
// device.
func WithCapabilityCheck(check func() bool) Option {
	return func(o *options) {
		if check != nil {
			o.capable = check
		}
	}
}

// WithOnReady sets a callback fired once per attach after the first
// successful upload.
func WithOnReady(fn func()) Option {
	return func(o *options) {
		o.onReady = fn
	}
}

// WithOnError sets a callback fired once for every failure.
func WithOnError(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithObserver sets the observer notified of every update and frame.
func WithObserver(obs waveline.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithFrameInterval sets the period of the default ticker frame source.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) {
		o.frames = TickerSource{Interval: d}
	}
}

// WithFrameSource replaces the ticker with a custom frame source, for
// example a display-synchronized callback. A nil source disables the loop;
// frames are then drawn only by RenderFrame.
func WithFrameSource(src FrameSource) Option {
	return func(o *options) {
		o.frames = src
	}
}

// WithUniformAlignment overrides the uniform buffer alignment. Zero uses
// the device limit.
func WithUniformAlignment(bytes int) Option {
	return func(o *options) {
		o.uniformAlignment = bytes
	}
}

// WithBufferBudget caps the GPU buffer memory of the renderer.
func WithBufferBudget(budget datasize.ByteSize) Option {
	return func(o *options) {
		o.budget = budget
	}
}

// WithWorkers prepares series on n goroutines during an update. Values
// below 2 keep the work on the updating goroutine. Packing and upload stay
// serial.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
