package stream

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultFrameInterval is the frame period of the default ticker, 60 Hz.
const DefaultFrameInterval = time.Second / 60

// FrameSource paces the frame loop.
//
// Frames returns a channel that yields one value per frame. The source must
// stop sending and close the channel once ctx is done.
type FrameSource interface {
	Frames(ctx context.Context) <-chan time.Time
}

// TickerSource is a FrameSource driven by a time.Ticker.
type TickerSource struct {
	Interval time.Duration
}

// Frames starts the ticker. Ticks that arrive while the consumer is still
// busy with the previous frame are dropped.
func (s TickerSource) Frames(ctx context.Context) <-chan time.Time {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ch := make(chan time.Time)
	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				select {
				case ch <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) <-chan time.Time

// Frames calls f.
func (f FrameSourceFunc) Frames(ctx context.Context) <-chan time.Time { return f(ctx) }

// frameLoop is the handle of one attachment's frame loop goroutine.
type frameLoop struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	// callbacks is set while the loop goroutine runs controller callbacks.
	callbacks atomic.Bool
}

// stop cancels the loop and waits for it to exit. It returns at once when
// the loop is busy in a callback, which may be the caller itself.
func (l *frameLoop) stop() {
	l.cancel()
	if l.callbacks.Load() {
		return
	}
	<-l.done
}

// runFrameLoop renders one frame per tick until ctx is done or frames is
// closed, then closes done.
func runFrameLoop(ctx context.Context, frames <-chan time.Time, render func() error, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-frames:
			if !ok {
				return
			}
			// Failures are reported through the controller's callbacks.
			_ = render()
		}
	}
}
