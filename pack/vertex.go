// Package pack converts points and render parameters into the flat float32
// layouts consumed by the line pipeline.
//
// The vertex layout and the pipeline's vertex attribute description are one
// contract: VertexStride, VertexLayout and the line shader must change
// together.
package pack

import (
	"encoding/binary"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/waveline"
)

// VertexStride is the number of float32 values per vertex.
// Layout per vertex:
//
//	position (vec2<f32>) = 8 bytes  (location 0, offset 0)
//	color    (vec3<f32>) = 12 bytes (location 1, offset 8)
//
// Total = 20 bytes per vertex.
const VertexStride = 5

// VertexStrideBytes is the byte stride per vertex.
const VertexStrideBytes = VertexStride * 4

// Attribute byte offsets within a vertex.
const (
	positionOffset = 0
	colorOffset    = 8
)

// VertexLayout returns the vertex buffer layout matching Vertices.
func VertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: VertexStrideBytes,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: positionOffset, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x3, Offset: colorOffset, ShaderLocation: 1},    // color
			},
		},
	}
}

// Vertices packs points with a single color into exactly
// len(points)*VertexStride floats. Color components are clamped to [0, 1].
func Vertices(points []waveline.Point, color [3]float32) []float32 {
	return AppendVertices(make([]float32, 0, len(points)*VertexStride), points, color)
}

// AppendVertices appends the packed vertices of points to dst and returns
// the extended slice. It allocates only when dst lacks capacity.
func AppendVertices(dst []float32, points []waveline.Point, color [3]float32) []float32 {
	r, g, b := clamp01(color[0]), clamp01(color[1]), clamp01(color[2])
	for _, p := range points {
		dst = append(dst, float32(p.X), float32(p.Y), r, g, b)
	}
	return dst
}

// VertexCount returns the number of vertices in a packed buffer.
func VertexCount(packed []float32) int {
	return len(packed) / VertexStride
}

func clamp01(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return math32.Min(math32.Max(v, 0), 1)
}

// Bytes returns the little-endian byte encoding of f.
func Bytes(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	PutBytes(buf, f)
	return buf
}

// PutBytes writes the little-endian encoding of f into dst, which must hold
// at least len(f)*4 bytes. It returns the number of bytes written.
func PutBytes(dst []byte, f []float32) int {
	for i, v := range f {
		binary.LittleEndian.PutUint32(dst[i*4:], math32.Float32bits(v))
	}
	return len(f) * 4
}
