package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/waveline"
	"github.com/gogpu/waveline/pack"
)

//go:embed shaders/line.wgsl
var lineShaderSource string

// CompileShaderToSPIRV compiles WGSL source to SPIR-V words. Compiler
// diagnostics are wrapped in waveline.ErrShaderCompile.
func CompileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", waveline.ErrShaderCompile, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not a multiple of 4", waveline.ErrShaderCompile, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// primitiveTopology maps the configured topology to its GPU primitive.
func primitiveTopology(t waveline.Topology) gputypes.PrimitiveTopology {
	if t == waveline.TopologyLineList {
		return gputypes.PrimitiveTopologyLineList
	}
	return gputypes.PrimitiveTopologyLineStrip
}

// linePipeline holds the immutable GPU objects of the line renderer.
// Objects are created in dependency order and destroyed in reverse.
type linePipeline struct {
	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline
}

// createLinePipeline compiles the line shader and creates the render
// pipeline with alpha blending. On error every object created so far is
// destroyed.
func createLinePipeline(device hal.Device, format gputypes.TextureFormat, topology waveline.Topology) (*linePipeline, error) {
	code, err := CompileShaderToSPIRV(lineShaderSource)
	if err != nil {
		return nil, err
	}

	p := &linePipeline{}
	ok := false
	defer func() {
		if !ok {
			p.destroy(device)
		}
	}()

	p.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "line_shader",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create line shader module: %w", waveline.ErrShaderCompile, err)
	}

	p.uniformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "line_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create line uniform layout: %w", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "line_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create line pipeline layout: %w", err)
	}

	blend := gputypes.BlendStateAlpha()
	p.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "line_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    pack.VertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: primitiveTopology(topology),
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create line pipeline: %w", err)
	}

	slogger().Debug("gpu: line pipeline created",
		"format", format,
		"topology", topology,
		"spirv_words", len(code))

	ok = true
	return p, nil
}

// createBindGroup binds a uniform buffer of size bytes at binding 0.
func (p *linePipeline) createBindGroup(device hal.Device, uniforms hal.Buffer, size uint64) (hal.BindGroup, error) {
	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "line_uniform_bind",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding: 0,
				Resource: gputypes.BufferBinding{
					Buffer: uniforms.NativeHandle(),
					Offset: 0,
					Size:   size,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create line bind group: %w", err)
	}
	return bg, nil
}

// destroy releases the pipeline objects in reverse creation order.
// Safe to call on a partially built pipeline and more than once.
func (p *linePipeline) destroy(device hal.Device) {
	if p == nil || device == nil {
		return
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.uniformLayout != nil {
		device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
