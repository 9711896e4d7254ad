// Package waveline renders high-volume 2D time series on the GPU.
//
// # Overview
//
// waveline takes a potentially unbounded stream of samples, reduces it to a
// bounded number of visually faithful points, packs those points into GPU
// vertex buffers and draws them once per display refresh with a
// domain-to-screen transform. Resizes, re-domains and streaming updates reuse
// GPU allocations where possible and never leak them.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/waveline"
//	    "github.com/gogpu/waveline/gpu"
//	    "github.com/gogpu/waveline/stream"
//	)
//
//	c := stream.New(
//	    stream.WithConfig(waveline.DefaultRenderConfig()),
//	    stream.WithOnError(func(err error) { log.Print(err) }),
//	)
//	if err := c.Attach(ctx, surface); err != nil {
//	    return err
//	}
//	defer c.Detach()
//	c.SetSeries([]waveline.Series{{ID: "ch0", Points: samples, Color: [3]float32{0, 1, 0}}})
//
// # Architecture
//
// The pipeline is organized into:
//   - waveline: data model, domain and scale helpers, errors, logging, observer hook
//   - downsample: LTTB and min/max decimation
//   - pack: vertex and uniform buffer layouts
//   - gpu: device acquisition, surfaces, buffer lifecycle and the frame driver
//   - stream: the lifecycle controller and frame loop
//   - metrics: a Prometheus observer
//
// Data flows from raw series through downsample and pack into GPU buffers,
// and the stream controller draws the latest buffers each frame.
package waveline
