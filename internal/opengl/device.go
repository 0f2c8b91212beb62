// Package opengl implements gpu.Device on an OpenGL 4.1 core context.
//
// Every method must be called on the thread that owns the context; the
// window package locks the main goroutine to its OS thread for that reason.
package opengl

import (
	"fmt"
	"log/slog"
	"slices"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
)

var _ gpu.Device = (*Device)(nil)

// Device is the OpenGL backend. Handles are the raw GL object names.
type Device struct {
	log     *slog.Logger
	caps    gpu.Capabilities
	version string

	// anisotropy is set when GL_EXT_texture_filter_anisotropic is present.
	anisotropy bool
}

// New loads the GL entry points and queries the device limits. The context
// must already be current.
func New(log *slog.Logger) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Device{log: log, version: gl.GoStr(gl.GetString(gl.VERSION))}
	d.caps = d.queryCapabilities()
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	log.Info("opengl device",
		"version", d.version,
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"max_texture_size", d.caps.MaxTextureSize,
		"parallel_compile", d.caps.ParallelShaderCompile)
	return d, nil
}

func (d *Device) queryCapabilities() gpu.Capabilities {
	integer := func(name uint32) int {
		var v int32
		gl.GetIntegerv(name, &v)
		return int(v)
	}
	exts := extensions()
	d.anisotropy = slices.Contains(exts, extAnisotropic)

	caps := gpu.Capabilities{
		MaxTextureSize:        integer(gl.MAX_TEXTURE_SIZE),
		MaxCubeMapSize:        integer(gl.MAX_CUBE_MAP_TEXTURE_SIZE),
		MaxTextureUnits:       integer(gl.MAX_TEXTURE_IMAGE_UNITS),
		MaxVertexAttribs:      integer(gl.MAX_VERTEX_ATTRIBS),
		MaxVertexUniforms:     integer(gl.MAX_VERTEX_UNIFORM_VECTORS),
		MaxSamples:            integer(gl.MAX_SAMPLES),
		FloatTextures:         true,
		HalfFloatTextures:     true,
		FloatRenderTargets:    true,
		FloatLinearFiltering:  true,
		ParallelShaderCompile: slices.Contains(exts, extParallelShaderCompile),
	}
	if d.anisotropy {
		var v float32
		gl.GetFloatv(maxTextureAnisotropyEXT, &v)
		caps.MaxAnisotropy = v
	}
	return caps
}

func extensions() []string {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	out := make([]string, 0, n)
	for i := range uint32(n) {
		out = append(out, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, i)))
	}
	return out
}

func (d *Device) Capabilities() gpu.Capabilities { return d.caps }

// Version returns the GL_VERSION string.
func (d *Device) Version() string { return d.version }

// IsContextLost is always false: a 4.1 core context created without the
// robustness extension never reports a reset.
func (d *Device) IsContextLost() bool { return false }

func (d *Device) Enable(c gpu.Capability)  { gl.Enable(capabilities[c]) }
func (d *Device) Disable(c gpu.Capability) { gl.Disable(capabilities[c]) }

func (d *Device) BlendEquationSeparate(rgb, alpha gpu.BlendEquation) {
	gl.BlendEquationSeparate(blendEquations[rgb], blendEquations[alpha])
}

func (d *Device) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha gpu.BlendFactor) {
	gl.BlendFuncSeparate(blendFactors[srcRGB], blendFactors[dstRGB], blendFactors[srcAlpha], blendFactors[dstAlpha])
}

func (d *Device) BlendColor(r, g, b, a float32) { gl.BlendColor(r, g, b, a) }
func (d *Device) DepthFunc(f gpu.CompareFunc)   { gl.DepthFunc(compareFuncs[f]) }
func (d *Device) DepthMask(write bool)          { gl.DepthMask(write) }

func (d *Device) StencilFunc(f gpu.CompareFunc, ref int32, mask uint32) {
	gl.StencilFunc(compareFuncs[f], ref, mask)
}

func (d *Device) StencilMask(mask uint32) { gl.StencilMask(mask) }

func (d *Device) StencilOp(fail, zfail, zpass gpu.StencilOp) {
	gl.StencilOp(stencilOps[fail], stencilOps[zfail], stencilOps[zpass])
}

func (d *Device) CullFace(f gpu.Face) { gl.CullFace(faces[f]) }

func (d *Device) FrontFace(w gpu.Winding) {
	if w == gpu.CW {
		gl.FrontFace(gl.CW)
		return
	}
	gl.FrontFace(gl.CCW)
}

func (d *Device) PolygonOffset(factor, units float32) { gl.PolygonOffset(factor, units) }
func (d *Device) ColorMask(r, g, b, a bool)          { gl.ColorMask(r, g, b, a) }
func (d *Device) Scissor(x, y, w, h int32)           { gl.Scissor(x, y, w, h) }
func (d *Device) Viewport(x, y, w, h int32)          { gl.Viewport(x, y, w, h) }
func (d *Device) ClearColor(r, g, b, a float32)      { gl.ClearColor(r, g, b, a) }
func (d *Device) Clear(mask gpu.ClearMask)           { gl.Clear(clearBits(mask)) }

// LineWidth is clamped by core profiles to the aliased range, usually 1.
func (d *Device) LineWidth(w float32) { gl.LineWidth(w) }

func (d *Device) DrawArrays(mode gpu.Primitive, first, count int) {
	gl.DrawArrays(primitives[mode], int32(first), int32(count))
}

func (d *Device) DrawElements(mode gpu.Primitive, count, offset int) {
	gl.DrawElements(primitives[mode], int32(count), gl.UNSIGNED_INT, gl.PtrOffset(offset))
}

func (d *Device) DrawArraysInstanced(mode gpu.Primitive, first, count, instances int) {
	gl.DrawArraysInstanced(primitives[mode], int32(first), int32(count), int32(instances))
}

func (d *Device) DrawElementsInstanced(mode gpu.Primitive, count, offset, instances int) {
	gl.DrawElementsInstanced(primitives[mode], int32(count), gl.UNSIGNED_INT, gl.PtrOffset(offset), int32(instances))
}
