// Package metrics exports waveline pipeline statistics as Prometheus
// metrics.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	obs, err := metrics.NewPrometheusObserver(reg)
//	if err != nil {
//		return err
//	}
//	c := stream.New(stream.WithObserver(obs))
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/gogpu/waveline"
)

// Namespace prefixes every metric name.
const Namespace = "waveline"

// Frame result label values.
const (
	resultRendered = "rendered"
	resultSkipped  = "skipped"
)

// PrometheusObserver implements waveline.Observer with Prometheus
// collectors. It is safe for concurrent use.
type PrometheusObserver struct {
	updates        prometheus.Counter
	points         *prometheus.CounterVec
	decimated      prometheus.Counter
	reallocations  prometheus.Counter
	uploadBytes    prometheus.Counter
	updateDuration prometheus.Histogram

	frames        *prometheus.CounterVec
	frameVertices prometheus.Gauge
	frameDuration prometheus.Histogram
}

var _ waveline.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the collectors and registers them with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "updates_total",
			Help:      "Data updates packed and uploaded",
		}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "points_total",
			Help:      "Points seen by updates, by stage",
		}, []string{"stage"}),
		decimated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decimated_updates_total",
			Help:      "Updates in which at least one series was downsampled",
		}),
		reallocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "buffer_reallocations_total",
			Help:      "Updates that had to recreate a GPU buffer",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written to GPU buffers",
		}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "update_duration_seconds",
			Help:      "Wall time of sanitize, decimate, pack and upload",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_total",
			Help:      "Frames by result",
		}, []string{"result"}),
		frameVertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "frame_vertices",
			Help:      "Vertices drawn by the last rendered frame",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall time of encoding, submitting and presenting a frame",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1},
		}),
	}

	for _, c := range o.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register waveline metrics: %w", err)
		}
	}
	return o, nil
}

func (o *PrometheusObserver) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		o.updates,
		o.points,
		o.decimated,
		o.reallocations,
		o.uploadBytes,
		o.updateDuration,
		o.frames,
		o.frameVertices,
		o.frameDuration,
	}
}

// Unregister removes the collectors from reg.
func (o *PrometheusObserver) Unregister(reg prometheus.Registerer) {
	for _, c := range o.collectors() {
		reg.Unregister(c)
	}
}

// ObserveUpdate records one data update.
func (o *PrometheusObserver) ObserveUpdate(s waveline.UpdateStats) {
	o.updates.Inc()
	o.points.WithLabelValues("input").Add(float64(s.InputPoints))
	o.points.WithLabelValues("output").Add(float64(s.OutputPoints))
	o.points.WithLabelValues("dropped").Add(float64(s.Dropped))
	if s.Decimated {
		o.decimated.Inc()
	}
	if s.Reallocated {
		o.reallocations.Inc()
	}
	o.uploadBytes.Add(float64(s.UploadBytes))
	o.updateDuration.Observe(s.Duration.Seconds())
}

// ObserveFrame records one frame. Skipped frames only count.
func (o *PrometheusObserver) ObserveFrame(s waveline.FrameStats) {
	if s.Skipped {
		o.frames.WithLabelValues(resultSkipped).Inc()
		return
	}
	o.frames.WithLabelValues(resultRendered).Inc()
	o.frameVertices.Set(float64(s.Vertices))
	o.frameDuration.Observe(s.Duration.Seconds())
}

// WriteText writes every metric family gathered from g to w in the
// Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
