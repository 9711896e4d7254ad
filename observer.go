package waveline

import (
	"fmt"
	"time"
)

// UpdateStats describes one data update: decimation, packing and upload.
type UpdateStats struct {
	// Series is the number of series in the update.
	Series int

	// InputPoints is the total number of points before decimation.
	InputPoints int

	// OutputPoints is the total number of vertices uploaded.
	OutputPoints int

	// Dropped is the number of non-finite points removed.
	Dropped int

	// Decimated reports whether any series was downsampled.
	Decimated bool

	// UploadBytes is the number of bytes written to GPU buffers.
	UploadBytes int

	// Reallocated reports whether any GPU buffer had to be recreated.
	Reallocated bool

	// Duration is the wall time of the update.
	Duration time.Duration
}

// String returns a human-readable summary.
func (s UpdateStats) String() string {
	return fmt.Sprintf("Update[%d series, %d->%d points, %d bytes, decimated=%v, realloc=%v, %v]",
		s.Series, s.InputPoints, s.OutputPoints, s.UploadBytes, s.Decimated, s.Reallocated, s.Duration)
}

// FrameStats describes one frame.
type FrameStats struct {
	// Frame is the frame index since attach, starting at 1.
	Frame uint64

	// Vertices is the number of vertices drawn. Zero when Skipped.
	Vertices int

	// Skipped reports whether the frame issued no draw call.
	Skipped bool

	// Duration is the wall time spent encoding and submitting.
	Duration time.Duration
}

// Observer receives structured metrics from the pipeline. Implementations
// must be safe for use from the frame loop goroutine.
type Observer interface {
	ObserveUpdate(UpdateStats)
	ObserveFrame(FrameStats)
}

// NopObserver discards all metrics. It is the default observer.
type NopObserver struct{}

func (NopObserver) ObserveUpdate(UpdateStats) {}
func (NopObserver) ObserveFrame(FrameStats)   {}

// ObserverFuncs adapts plain functions to the Observer interface.
// Nil fields are skipped.
type ObserverFuncs struct {
	Update func(UpdateStats)
	Frame  func(FrameStats)
}

// ObserveUpdate calls f.Update if set.
func (f ObserverFuncs) ObserveUpdate(s UpdateStats) {
	if f.Update != nil {
		f.Update(s)
	}
}

// ObserveFrame calls f.Frame if set.
func (f ObserverFuncs) ObserveFrame(s FrameStats) {
	if f.Frame != nil {
		f.Frame(s)
	}
}
