package pack

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/waveline"
)

// UniformFields is the number of meaningful float32 values in the uniform
// block, including the trailing pad slot. Field order:
//
//	[0]  width        [1]  height
//	[2]  xMin         [3]  xMax
//	[4]  yMin         [5]  yMax
//	[6]  marginLeft   [7]  marginRight
//	[8]  marginTop    [9]  marginBottom
//	[10] time         [11] pad
const UniformFields = 12

// DefaultUniformAlignment is the uniform buffer alignment used when the
// caller does not supply the backend's limit.
var DefaultUniformAlignment = int(gputypes.DefaultLimits().MinUniformBufferOffsetAlignment)

// Uniforms packs the render parameters into the fixed uniform layout and
// zero-pads the result so its byte length is a multiple of alignment bytes.
// A non-positive alignment uses DefaultUniformAlignment.
func Uniforms(cfg waveline.RenderConfig, domain waveline.Domain, time float32, alignment int) []float32 {
	if alignment <= 0 {
		alignment = DefaultUniformAlignment
	}
	n := UniformLen(alignment)
	u := make([]float32, n)
	u[0] = float32(cfg.Width)
	u[1] = float32(cfg.Height)
	u[2] = float32(domain.X[0])
	u[3] = float32(domain.X[1])
	u[4] = float32(domain.Y[0])
	u[5] = float32(domain.Y[1])
	u[6] = float32(cfg.Margin.Left)
	u[7] = float32(cfg.Margin.Right)
	u[8] = float32(cfg.Margin.Top)
	u[9] = float32(cfg.Margin.Bottom)
	u[10] = time
	return u
}

// UniformLen returns the padded float count of the uniform block for the
// given byte alignment.
func UniformLen(alignment int) int {
	if alignment <= 0 {
		alignment = DefaultUniformAlignment
	}
	size := UniformFields * 4
	padded := (size + alignment - 1) / alignment * alignment
	for padded%4 != 0 {
		padded += alignment
	}
	return padded / 4
}
