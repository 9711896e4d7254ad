// Package gpu drives the GPU side of waveline line rendering.
//
// It is an internal package used by the public waveline/gpu package and by
// the stream controller. All GPU access goes through gogpu/wgpu/hal, so the
// same code runs on Vulkan, Metal, DX12, GLES or the noop backend used in
// tests.
//
// # Architecture Overview
//
//	[]float32 vertices + uniforms -> BufferManager (reuse or grow) -> Renderer -> Surface
//
// Key components:
//
//   - Device: an owned or host-shared hal device with reference counting
//   - BufferManager: named GPU buffers with 1.5x growth and an optional budget
//   - Renderer: one line pipeline (WGSL compiled with naga) and the per-frame
//     encode, submit and present sequence
//   - OffscreenSurface, WindowSurface: render targets
//
// # Resource Ownership
//
// Buffers are owned by the BufferManager of their renderer and are released
// exactly once, either when they are outgrown or when the renderer is
// destroyed. A Device opened by OpenDevice is destroyed with its last
// reference. A Device obtained from SharedDevice or ExternalDevice belongs to
// the host and is never destroyed here.
//
// # Errors
//
// Errors wrap the waveline sentinel errors and the hal errors they stem from.
// IsFatal separates a lost device or surface, which requires tear down, from
// resource exhaustion, which only skips frames until the next upload.
//
// # Logging
//
// The package logs through waveline.Logger. Debug covers buffer and pipeline
// creation, Info covers adapter selection, Warn covers recoverable failures.
package gpu
