// Command wavedemo streams synthetic waveforms through the waveline
// pipeline into an offscreen target and reports pipeline statistics.
//
// Usage:
//
//	wavedemo -backend vulkan -points 200000 -max 2000 -frames 300
//	wavedemo -backend noop -method minmax -metrics
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/noop"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/waveline"
	"github.com/gogpu/waveline/downsample"
	"github.com/gogpu/waveline/gpu"
	"github.com/gogpu/waveline/metrics"
	"github.com/gogpu/waveline/stream"
)

func main() {
	var (
		width    = flag.Int("width", waveline.DefaultWidth, "viewport width")
		height   = flag.Int("height", waveline.DefaultHeight, "viewport height")
		backend  = flag.String("backend", "vulkan", "GPU backend: vulkan, metal, dx12, gl or noop")
		points   = flag.Int("points", 100000, "points per series")
		nseries  = flag.Int("series", 2, "number of series")
		maxPts   = flag.Int("max", waveline.DefaultMaxPoints, "per-series point budget, 0 disables decimation")
		method   = flag.String("method", string(waveline.LTTB), "decimation method: lttb or minmax")
		frames   = flag.Uint64("frames", 120, "frames to render before exiting")
		fps      = flag.Float64("fps", 60, "frame rate")
		update   = flag.Duration("update", 100*time.Millisecond, "data update period")
		verbose  = flag.Bool("v", false, "debug logging")
		showProm = flag.Bool("metrics", false, "print Prometheus metrics on exit")
		budget   datasize.ByteSize
	)
	flag.TextVar(&budget, "budget", datasize.ByteSize(0), "GPU buffer budget, e.g. 64MB; 0 is unlimited")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	waveline.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	m, err := downsample.ParseMethod(*method)
	if err != nil {
		log.Fatal(err)
	}
	b, err := gpu.ParseBackend(*backend)
	if err != nil {
		log.Fatal(err)
	}
	if *fps <= 0 {
		log.Fatalf("invalid frame rate %v", *fps)
	}

	cfg := waveline.DefaultRenderConfig()
	cfg.Width, cfg.Height = *width, *height
	cfg.Margin = waveline.Margin{Top: 20, Right: 20, Bottom: 40, Left: 60}
	cfg.MaxPoints = *maxPts
	cfg.EnableDecimation = *maxPts > 0
	cfg.Method = m
	cfg.ClearColor = [4]float64{0.05, 0.05, 0.08, 1}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg, b, *nseries, *points, *frames, *fps, *update, budget, *showProm); err != nil {
		log.Fatal(err)
	}
}

func run(cfg waveline.RenderConfig, backend gputypes.Backend, nseries, points int, frames uint64,
	fps float64, update time.Duration, budget datasize.ByteSize, showProm bool) error {
	if !gpu.Available(backend) {
		return fmt.Errorf("%s: %w", backend, waveline.ErrGPUUnavailable)
	}
	dev, err := gpu.OpenDevice(backend)
	if err != nil {
		return err
	}
	defer dev.Release()

	target, err := gpu.NewOffscreenSurface(dev, cfg.Width, cfg.Height, gputypes.TextureFormatUndefined)
	if err != nil {
		return err
	}
	defer target.Destroy()

	reg := prometheus.NewRegistry()
	obs, err := metrics.NewPrometheusObserver(reg)
	if err != nil {
		return err
	}

	ctrl := stream.New(
		stream.WithConfig(cfg),
		stream.WithDeviceOpener(func() (*gpu.Device, error) { return dev.Acquire(), nil }),
		stream.WithCapabilityCheck(func() bool { return true }),
		stream.WithObserver(obs),
		stream.WithFrameInterval(time.Duration(float64(time.Second)/fps)),
		stream.WithBufferBudget(budget),
		stream.WithOnReady(func() { slog.Info("wavedemo: first data on the GPU") }),
		stream.WithOnError(func(err error) { slog.Warn("wavedemo: pipeline error", "err", err) }),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gen := newGenerator(nseries, points)
	if err := ctrl.SetSeries(gen.next(0)); err != nil {
		return err
	}
	if err := ctrl.Attach(ctx, target); err != nil {
		return err
	}

	start := time.Now()
	ticker := time.NewTicker(update)
	defer ticker.Stop()

loop:
	for ctrl.Stats().Frames < frames {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			if ctrl.State() == stream.Error {
				break loop
			}
			// Update errors are reported through WithOnError.
			_ = ctrl.SetSeries(gen.next(now.Sub(start).Seconds()))
		}
	}

	st := ctrl.Stats()
	ctrl.Detach()

	fmt.Printf("adapter:  %s (%s)\n", dev.Info().Name, backend)
	fmt.Printf("frames:   %d requested, %d presented in %v\n", st.Frames, st.Rendered, time.Since(start).Round(time.Millisecond))
	fmt.Printf("update:   %s\n", st.LastUpdate)
	fmt.Printf("buffers:  %s\n", st.Buffers)
	if err := ctrl.Err(); err != nil {
		fmt.Printf("last err: %v\n", err)
	}

	if showProm {
		return metrics.WriteText(os.Stdout, reg)
	}
	return nil
}

// generator produces phase-shifted noisy sine waves. The point slices are
// reused between updates, which is safe because the controller has packed
// the previous update before SetSeries returns.
type generator struct {
	series []waveline.Series
	seed   uint64
}

var palette = [][3]float32{
	{0.30, 0.75, 0.93},
	{0.93, 0.55, 0.25},
	{0.45, 0.85, 0.40},
	{0.85, 0.35, 0.55},
}

func newGenerator(n, points int) *generator {
	g := &generator{seed: 0x9e3779b97f4a7c15}
	for i := range n {
		g.series = append(g.series, waveline.Series{
			ID:     fmt.Sprintf("ch%d", i),
			Label:  fmt.Sprintf("channel %d", i),
			Points: make([]waveline.Point, points),
			Color:  palette[i%len(palette)],
		})
	}
	return g
}

func (g *generator) next(t float64) []waveline.Series {
	for si := range g.series {
		pts := g.series[si].Points
		freq := float64(si+1) * 3
		for i := range pts {
			x := float64(i) / float64(len(pts))
			y := math.Sin(2*math.Pi*(freq*x+t)) + 0.1*g.noise()
			pts[i] = waveline.Pt(x, y+float64(si)*2.5)
		}
	}
	return g.series
}

// noise returns a value in [-1, 1) from an xorshift generator.
func (g *generator) noise() float64 {
	g.seed ^= g.seed << 13
	g.seed ^= g.seed >> 7
	g.seed ^= g.seed << 17
	return float64(g.seed>>11)/(1<<52) - 1
}
