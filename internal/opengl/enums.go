package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
)

// Extension enums missing from the 4.1 core bindings.
const (
	completionStatusKHR      = 0x91B1
	textureMaxAnisotropyEXT  = 0x84FE
	maxTextureAnisotropyEXT  = 0x84FF
	extParallelShaderCompile = "GL_KHR_parallel_shader_compile"
	extAnisotropic           = "GL_EXT_texture_filter_anisotropic"
)

var capabilities = [gpu.NumCapabilities]uint32{
	gpu.Blend:                 gl.BLEND,
	gpu.DepthTest:             gl.DEPTH_TEST,
	gpu.StencilTest:           gl.STENCIL_TEST,
	gpu.CullFace:              gl.CULL_FACE,
	gpu.PolygonOffsetFill:     gl.POLYGON_OFFSET_FILL,
	gpu.SampleAlphaToCoverage: gl.SAMPLE_ALPHA_TO_COVERAGE,
	gpu.ScissorTest:           gl.SCISSOR_TEST,
}

var primitives = map[gpu.Primitive]uint32{
	gpu.Triangles:     gl.TRIANGLES,
	gpu.TriangleStrip: gl.TRIANGLE_STRIP,
	gpu.TriangleFan:   gl.TRIANGLE_FAN,
	gpu.Lines:         gl.LINES,
	gpu.LineStrip:     gl.LINE_STRIP,
	gpu.LineLoop:      gl.LINE_LOOP,
	gpu.Points:        gl.POINTS,
}

var compareFuncs = map[gpu.CompareFunc]uint32{
	gpu.Never:        gl.NEVER,
	gpu.Less:         gl.LESS,
	gpu.Equal:        gl.EQUAL,
	gpu.LessEqual:    gl.LEQUAL,
	gpu.Greater:      gl.GREATER,
	gpu.NotEqual:     gl.NOTEQUAL,
	gpu.GreaterEqual: gl.GEQUAL,
	gpu.Always:       gl.ALWAYS,
}

var blendEquations = map[gpu.BlendEquation]uint32{
	gpu.FuncAdd:             gl.FUNC_ADD,
	gpu.FuncSubtract:        gl.FUNC_SUBTRACT,
	gpu.FuncReverseSubtract: gl.FUNC_REVERSE_SUBTRACT,
	gpu.Min:                 gl.MIN,
	gpu.Max:                 gl.MAX,
}

var blendFactors = map[gpu.BlendFactor]uint32{
	gpu.Zero:                  gl.ZERO,
	gpu.One:                   gl.ONE,
	gpu.SrcColor:              gl.SRC_COLOR,
	gpu.OneMinusSrcColor:      gl.ONE_MINUS_SRC_COLOR,
	gpu.SrcAlpha:              gl.SRC_ALPHA,
	gpu.OneMinusSrcAlpha:      gl.ONE_MINUS_SRC_ALPHA,
	gpu.DstAlpha:              gl.DST_ALPHA,
	gpu.OneMinusDstAlpha:      gl.ONE_MINUS_DST_ALPHA,
	gpu.DstColor:              gl.DST_COLOR,
	gpu.OneMinusDstColor:      gl.ONE_MINUS_DST_COLOR,
	gpu.SrcAlphaSaturate:      gl.SRC_ALPHA_SATURATE,
	gpu.ConstantColor:         gl.CONSTANT_COLOR,
	gpu.OneMinusConstantColor: gl.ONE_MINUS_CONSTANT_COLOR,
	gpu.ConstantAlpha:         gl.CONSTANT_ALPHA,
	gpu.OneMinusConstantAlpha: gl.ONE_MINUS_CONSTANT_ALPHA,
}

var stencilOps = map[gpu.StencilOp]uint32{
	gpu.Keep:     gl.KEEP,
	gpu.ZeroOp:   gl.ZERO,
	gpu.Replace:  gl.REPLACE,
	gpu.Incr:     gl.INCR,
	gpu.IncrWrap: gl.INCR_WRAP,
	gpu.Decr:     gl.DECR,
	gpu.DecrWrap: gl.DECR_WRAP,
	gpu.Invert:   gl.INVERT,
}

var faces = map[gpu.Face]uint32{
	gpu.FaceBack:         gl.BACK,
	gpu.FaceFront:        gl.FRONT,
	gpu.FaceFrontAndBack: gl.FRONT_AND_BACK,
}

var usages = map[gpu.Usage]uint32{
	gpu.StaticDraw:  gl.STATIC_DRAW,
	gpu.DynamicDraw: gl.DYNAMIC_DRAW,
	gpu.StreamDraw:  gl.STREAM_DRAW,
}

var textureTargets = map[gpu.TextureTarget]uint32{
	gpu.Texture2D:      gl.TEXTURE_2D,
	gpu.TextureCube:    gl.TEXTURE_CUBE_MAP,
	gpu.Texture2DArray: gl.TEXTURE_2D_ARRAY,
	gpu.Texture3D:      gl.TEXTURE_3D,
}

var formats = map[gpu.Format]uint32{
	gpu.RGBA:           gl.RGBA,
	gpu.RGB:            gl.RGB,
	gpu.RG:             gl.RG,
	gpu.Red:            gl.RED,
	gpu.DepthComponent: gl.DEPTH_COMPONENT,
	gpu.DepthStencil:   gl.DEPTH_STENCIL,
}

var dataTypes = map[gpu.DataType]uint32{
	gpu.UnsignedByte:   gl.UNSIGNED_BYTE,
	gpu.Float:          gl.FLOAT,
	gpu.HalfFloat:      gl.HALF_FLOAT,
	gpu.UnsignedInt:    gl.UNSIGNED_INT,
	gpu.UnsignedInt248: gl.UNSIGNED_INT_24_8,
}

var internalFormats = map[gpu.InternalFormat]int32{
	gpu.RGBA8:           gl.RGBA8,
	gpu.SRGB8Alpha8:     gl.SRGB8_ALPHA8,
	gpu.RGB8:            gl.RGB8,
	gpu.RG8:             gl.RG8,
	gpu.R8:              gl.R8,
	gpu.RGBA16F:         gl.RGBA16F,
	gpu.RGBA32F:         gl.RGBA32F,
	gpu.RG16F:           gl.RG16F,
	gpu.RG32F:           gl.RG32F,
	gpu.R32F:            gl.R32F,
	gpu.Depth24:         gl.DEPTH_COMPONENT24,
	gpu.Depth32F:        gl.DEPTH_COMPONENT32F,
	gpu.Depth24Stencil8: gl.DEPTH24_STENCIL8,
}

var wraps = map[gpu.Wrap]int32{
	gpu.Repeat:         gl.REPEAT,
	gpu.ClampToEdge:    gl.CLAMP_TO_EDGE,
	gpu.MirroredRepeat: gl.MIRRORED_REPEAT,
}

var filters = map[gpu.Filter]int32{
	gpu.Nearest:              gl.NEAREST,
	gpu.Linear:               gl.LINEAR,
	gpu.NearestMipmapNearest: gl.NEAREST_MIPMAP_NEAREST,
	gpu.LinearMipmapNearest:  gl.LINEAR_MIPMAP_NEAREST,
	gpu.NearestMipmapLinear:  gl.NEAREST_MIPMAP_LINEAR,
	gpu.LinearMipmapLinear:   gl.LINEAR_MIPMAP_LINEAR,
}

var framebufferTargets = map[gpu.FramebufferTarget]uint32{
	gpu.DrawReadFramebuffer: gl.FRAMEBUFFER,
	gpu.DrawFramebuffer:     gl.DRAW_FRAMEBUFFER,
	gpu.ReadFramebuffer:     gl.READ_FRAMEBUFFER,
}

var uniformTypes = map[uint32]gpu.UniformType{
	gl.FLOAT:             gpu.UniformFloat,
	gl.FLOAT_VEC2:        gpu.UniformVec2,
	gl.FLOAT_VEC3:        gpu.UniformVec3,
	gl.FLOAT_VEC4:        gpu.UniformVec4,
	gl.INT:               gpu.UniformInt,
	gl.INT_VEC2:          gpu.UniformIVec2,
	gl.INT_VEC3:          gpu.UniformIVec3,
	gl.INT_VEC4:          gpu.UniformIVec4,
	gl.BOOL:              gpu.UniformBool,
	gl.FLOAT_MAT3:        gpu.UniformMat3,
	gl.FLOAT_MAT4:        gpu.UniformMat4,
	gl.SAMPLER_2D:        gpu.UniformSampler2D,
	gl.SAMPLER_CUBE:      gpu.UniformSamplerCube,
	gl.SAMPLER_2D_ARRAY:  gpu.UniformSampler2DArray,
	gl.SAMPLER_3D:        gpu.UniformSampler3D,
	gl.SAMPLER_2D_SHADOW: gpu.UniformSampler2DShadow,
}

func attachment(a gpu.Attachment) uint32 {
	switch a {
	case gpu.DepthAttachment:
		return gl.DEPTH_ATTACHMENT
	case gpu.DepthStencilAttachment:
		return gl.DEPTH_STENCIL_ATTACHMENT
	}
	return gl.COLOR_ATTACHMENT0 + uint32(a-gpu.ColorAttachment0)
}

func clearBits(m gpu.ClearMask) uint32 {
	var bits uint32
	if m&gpu.ClearColorBit != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if m&gpu.ClearDepthBit != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	if m&gpu.ClearStencilBit != 0 {
		bits |= gl.STENCIL_BUFFER_BIT
	}
	return bits
}
