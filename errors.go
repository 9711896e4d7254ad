package waveline

import "errors"

// Pipeline errors. Stateful operations wrap these with context; match them
// with errors.Is.
var (
	// ErrGPUUnavailable is reported when no GPU capability is present.
	// It is terminal and is never retried.
	ErrGPUUnavailable = errors.New("waveline: GPU rendering not supported in this environment")

	// ErrShaderCompile wraps shader compiler and pipeline build failures.
	ErrShaderCompile = errors.New("waveline: shader compilation failed")

	// ErrBufferAlloc wraps GPU buffer allocation failures.
	ErrBufferAlloc = errors.New("waveline: buffer allocation failed")

	// ErrBufferBudgetExceeded is returned when an allocation would exceed
	// the configured buffer budget.
	ErrBufferBudgetExceeded = errors.New("waveline: buffer budget exceeded")

	// ErrBufferManagerClosed is returned when uploading through a closed
	// buffer manager.
	ErrBufferManagerClosed = errors.New("waveline: buffer manager closed")

	// ErrInvalidConfig is returned for a RenderConfig that cannot be rendered.
	ErrInvalidConfig = errors.New("waveline: invalid render config")

	// ErrAlreadyAttached is returned when attaching an attached controller.
	ErrAlreadyAttached = errors.New("waveline: already attached")

	// ErrNotAttached is returned when an operation needs an attached controller.
	ErrNotAttached = errors.New("waveline: not attached")

	// ErrDestroyed is returned when using a renderer after Destroy.
	ErrDestroyed = errors.New("waveline: renderer destroyed")
)
