package waveline

import "fmt"

// Method selects the decimation algorithm.
type Method string

// Decimation methods.
const (
	// LTTB is Largest-Triangle-Three-Buckets. Output length equals the target.
	LTTB Method = "lttb"

	// MinMax keeps the minimum and maximum of each bucket. Output length is
	// at most twice the target.
	MinMax Method = "minmax"
)

// Topology selects how consecutive vertices are joined.
type Topology int

const (
	// TopologyLineStrip draws one continuous trace through all vertices.
	TopologyLineStrip Topology = iota

	// TopologyLineList draws disconnected segments from vertex pairs.
	TopologyLineList
)

// String returns the topology name.
func (t Topology) String() string {
	switch t {
	case TopologyLineStrip:
		return "LineStrip"
	case TopologyLineList:
		return "LineList"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// Margin is the inset of the plot area from the viewport edges, in pixels.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// Default render configuration values.
const (
	DefaultWidth     = 800
	DefaultHeight    = 600
	DefaultMaxPoints = 2000
)

// RenderConfig describes a render pass. A RenderConfig is treated as
// immutable: to change it, pass a new value to the controller, which
// re-packs and re-uploads the buffers laid out from it.
type RenderConfig struct {
	// Width and Height are the viewport size in pixels.
	Width  int
	Height int

	Margin Margin

	// MaxPoints is the per-series point budget when decimation is enabled.
	MaxPoints int

	// EnableDecimation turns on downsampling of series longer than MaxPoints.
	EnableDecimation bool

	// Method is the decimation algorithm. Empty means LTTB.
	Method Method

	// ClearColor is the RGBA color each frame starts from.
	ClearColor [4]float64

	// Topology is the primitive topology of the line pipeline.
	Topology Topology
}

// DefaultRenderConfig returns an 800x600 configuration with LTTB
// decimation at 2000 points and a transparent clear color.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		MaxPoints:        DefaultMaxPoints,
		EnableDecimation: true,
		Method:           LTTB,
		Topology:         TopologyLineStrip,
	}
}

// Validate reports whether the configuration can be rendered.
func (c RenderConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.MaxPoints < 0 {
		return fmt.Errorf("%w: max points %d", ErrInvalidConfig, c.MaxPoints)
	}
	switch c.Method {
	case "", LTTB, MinMax:
	default:
		return fmt.Errorf("%w: method %q", ErrInvalidConfig, c.Method)
	}
	return nil
}

// NeedsDecimation reports whether a series of n points must be downsampled
// under this configuration.
func (c RenderConfig) NeedsDecimation(n int) bool {
	return c.EnableDecimation && c.MaxPoints > 0 && n > c.MaxPoints
}
