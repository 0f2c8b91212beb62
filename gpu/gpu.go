// Package gpu defines the immediate-mode graphics device the renderer drives.
//
// The interface mirrors a GL-style API closely enough that an OpenGL
// implementation is a thin translation layer, while staying free of any
// binding so the pipeline can be exercised without a GPU.
package gpu

// Object handles. The zero value of every handle means "none" (the default
// framebuffer for Framebuffer).
type (
	Buffer       uint32
	Texture      uint32
	Framebuffer  uint32
	Renderbuffer uint32
	Program      uint32
	VertexArray  uint32
)

type BufferKind int

const (
	ArrayBuffer BufferKind = iota
	ElementArrayBuffer
)

type Usage int

const (
	StaticDraw Usage = iota
	DynamicDraw
	StreamDraw
)

type ShaderStage int

const (
	VertexStage ShaderStage = iota
	FragmentStage
)

func (s ShaderStage) String() string {
	if s == VertexStage {
		return "vertex"
	}
	return "fragment"
}

// Capability is a server-side toggle (glEnable/glDisable).
type Capability int

const (
	Blend Capability = iota
	DepthTest
	StencilTest
	CullFace
	PolygonOffsetFill
	SampleAlphaToCoverage
	ScissorTest
	numCapabilities
)

// NumCapabilities is the number of distinct Capability values.
const NumCapabilities = int(numCapabilities)

type Primitive int

const (
	Triangles Primitive = iota
	TriangleStrip
	TriangleFan
	Lines
	LineStrip
	LineLoop
	Points
)

type CompareFunc int

const (
	Never CompareFunc = iota
	Less
	Equal
	LessEqual
	Greater
	NotEqual
	GreaterEqual
	Always
)

type BlendEquation int

const (
	FuncAdd BlendEquation = iota
	FuncSubtract
	FuncReverseSubtract
	Min
	Max
)

type BlendFactor int

const (
	Zero BlendFactor = iota
	One
	SrcColor
	OneMinusSrcColor
	SrcAlpha
	OneMinusSrcAlpha
	DstAlpha
	OneMinusDstAlpha
	DstColor
	OneMinusDstColor
	SrcAlphaSaturate
	ConstantColor
	OneMinusConstantColor
	ConstantAlpha
	OneMinusConstantAlpha
)

type StencilOp int

const (
	Keep StencilOp = iota
	ZeroOp
	Replace
	Incr
	IncrWrap
	Decr
	DecrWrap
	Invert
)

type Face int

const (
	FaceBack Face = iota
	FaceFront
	FaceFrontAndBack
)

type Winding int

const (
	CCW Winding = iota
	CW
)

type TextureTarget int

const (
	Texture2D TextureTarget = iota
	TextureCube
	Texture2DArray
	Texture3D
)

func (t TextureTarget) String() string {
	switch t {
	case TextureCube:
		return "cube"
	case Texture2DArray:
		return "2d-array"
	case Texture3D:
		return "3d"
	}
	return "2d"
}

// Format is the client-side pixel layout.
type Format int

const (
	RGBA Format = iota
	RGB
	RG
	Red
	DepthComponent
	DepthStencil
)

// Channels returns the component count of the format.
func (f Format) Channels() int {
	switch f {
	case RGB:
		return 3
	case RG, DepthStencil:
		return 2
	case Red, DepthComponent:
		return 1
	}
	return 4
}

type DataType int

const (
	UnsignedByte DataType = iota
	Float
	HalfFloat
	UnsignedInt
	UnsignedInt248
)

// Size returns the byte size of one component.
func (d DataType) Size() int {
	switch d {
	case UnsignedByte:
		return 1
	case HalfFloat:
		return 2
	}
	return 4
}

// IsFloat reports whether the type needs float texture support.
func (d DataType) IsFloat() bool { return d == Float || d == HalfFloat }

// InternalFormat is the server-side storage format.
type InternalFormat int

const (
	RGBA8 InternalFormat = iota
	SRGB8Alpha8
	RGB8
	RG8
	R8
	RGBA16F
	RGBA32F
	RG16F
	RG32F
	R32F
	Depth24
	Depth32F
	Depth24Stencil8
)

type Wrap int

const (
	Repeat Wrap = iota
	ClampToEdge
	MirroredRepeat
)

type Filter int

const (
	Nearest Filter = iota
	Linear
	NearestMipmapNearest
	LinearMipmapNearest
	NearestMipmapLinear
	LinearMipmapLinear
)

// UsesMipmaps reports whether sampling reads below level 0.
func (f Filter) UsesMipmaps() bool { return f >= NearestMipmapNearest }

// SamplerParams are the per-texture sampling parameters.
type SamplerParams struct {
	WrapS, WrapT, WrapR Wrap
	MinFilter           Filter
	MagFilter           Filter
	Anisotropy          float32
	// Compare enables depth comparison sampling (shadow samplers).
	Compare     bool
	CompareFunc CompareFunc
}

// Image describes one TexImage/TexSubImage call. Face selects the cube face
// for TextureCube; Z/Depth address layers of array and 3D textures.
type Image struct {
	Target   TextureTarget
	Face     int
	Level    int
	Internal InternalFormat
	X, Y, Z  int
	Width    int
	Height   int
	Depth    int
	Format   Format
	Type     DataType
	Data     []byte
}

type FramebufferTarget int

const (
	DrawReadFramebuffer FramebufferTarget = iota
	DrawFramebuffer
	ReadFramebuffer
)

// Attachment is a framebuffer attachment point. Color attachments are
// ColorAttachment0 + i.
type Attachment int

const (
	DepthAttachment Attachment = iota - 2
	DepthStencilAttachment
	ColorAttachment0
)

type ClearMask int

const (
	ClearColorBit ClearMask = 1 << iota
	ClearDepthBit
	ClearStencilBit
)

// AttribLayout binds a buffer to a vertex attribute location.
type AttribLayout struct {
	Buffer     Buffer
	Size       int
	Type       DataType
	Normalized bool
	// Integer keeps integer data unconverted (glVertexAttribIPointer).
	Integer bool
	Stride  int
	Offset  int
	Divisor int
}

type UniformType int

const (
	UniformFloat UniformType = iota
	UniformVec2
	UniformVec3
	UniformVec4
	UniformInt
	UniformIVec2
	UniformIVec3
	UniformIVec4
	UniformBool
	UniformMat3
	UniformMat4
	UniformSampler2D
	UniformSamplerCube
	UniformSampler2DArray
	UniformSampler3D
	UniformSampler2DShadow
)

// IsSampler reports whether the uniform takes a texture unit.
func (t UniformType) IsSampler() bool { return t >= UniformSampler2D }

// Components returns the number of scalars per element.
func (t UniformType) Components() int {
	switch t {
	case UniformVec2, UniformIVec2:
		return 2
	case UniformVec3, UniformIVec3:
		return 3
	case UniformVec4, UniformIVec4:
		return 4
	case UniformMat3:
		return 9
	case UniformMat4:
		return 16
	}
	return 1
}

// ActiveUniform is one entry of a linked program's uniform table. Array
// uniforms are reported once with the "[0]" suffix stripped.
type ActiveUniform struct {
	Name     string
	Type     UniformType
	Size     int
	Location int32
}

type ActiveAttrib struct {
	Name     string
	Location int32
}

// ProgramStatus is the outcome of compiling and linking a program.
type ProgramStatus struct {
	VertexOK    bool
	FragmentOK  bool
	Linked      bool
	VertexLog   string
	FragmentLog string
	LinkLog     string
}

// OK reports whether the program is usable.
func (s ProgramStatus) OK() bool { return s.VertexOK && s.FragmentOK && s.Linked }

// Capabilities describes device limits and optional features.
type Capabilities struct {
	MaxTextureSize        int
	MaxCubeMapSize        int
	MaxTextureUnits       int
	MaxVertexAttribs      int
	MaxVertexUniforms     int
	MaxSamples            int
	MaxAnisotropy         float32
	FloatTextures         bool
	HalfFloatTextures     bool
	FloatRenderTargets    bool
	FloatLinearFiltering  bool
	ParallelShaderCompile bool
}

// Device is an immediate-mode graphics context. All methods must be called
// from the goroutine that owns the context.
type Device interface {
	Capabilities() Capabilities
	IsContextLost() bool

	Enable(c Capability)
	Disable(c Capability)
	BlendEquationSeparate(rgb, alpha BlendEquation)
	BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha BlendFactor)
	BlendColor(r, g, b, a float32)
	DepthFunc(f CompareFunc)
	DepthMask(write bool)
	StencilFunc(f CompareFunc, ref int32, mask uint32)
	StencilMask(mask uint32)
	StencilOp(fail, zfail, zpass StencilOp)
	CullFace(f Face)
	FrontFace(w Winding)
	PolygonOffset(factor, units float32)
	ColorMask(r, g, b, a bool)
	Scissor(x, y, w, h int32)
	Viewport(x, y, w, h int32)
	ClearColor(r, g, b, a float32)
	Clear(mask ClearMask)
	LineWidth(w float32)

	CreateBuffer() Buffer
	DeleteBuffer(b Buffer)
	BufferData(kind BufferKind, b Buffer, data []byte, usage Usage)
	BufferSubData(kind BufferKind, b Buffer, offset int, data []byte)

	CreateVertexArray() VertexArray
	DeleteVertexArray(v VertexArray)
	BindVertexArray(v VertexArray)
	VertexAttrib(location uint32, layout AttribLayout)
	DisableVertexAttrib(location uint32)
	BindIndexBuffer(b Buffer)

	CreateTexture() Texture
	DeleteTexture(t Texture)
	ActiveTexture(unit int)
	BindTexture(target TextureTarget, t Texture)
	// TexImage and TexSubImage operate on the texture bound to the active unit.
	TexImage(img Image)
	TexSubImage(img Image)
	TexParameters(target TextureTarget, p SamplerParams)
	GenerateMipmap(target TextureTarget)

	// CreateProgram compiles and links a program. With parallel compilation
	// the result is only final once ProgramReady reports true.
	CreateProgram(vertex, fragment string, attribs map[string]uint32) Program
	ProgramReady(p Program) bool
	ProgramStatus(p Program) ProgramStatus
	ActiveUniforms(p Program) []ActiveUniform
	ActiveAttribs(p Program) []ActiveAttrib
	DeleteProgram(p Program)
	UseProgram(p Program)
	UniformFloats(location int32, typ UniformType, v []float32)
	UniformInts(location int32, typ UniformType, v []int32)

	CreateFramebuffer() Framebuffer
	DeleteFramebuffer(f Framebuffer)
	BindFramebuffer(target FramebufferTarget, f Framebuffer)
	FramebufferTexture(att Attachment, target TextureTarget, face int, t Texture, level, layer int)
	CreateRenderbuffer() Renderbuffer
	DeleteRenderbuffer(r Renderbuffer)
	RenderbufferStorage(r Renderbuffer, format InternalFormat, samples, width, height int)
	FramebufferRenderbuffer(att Attachment, r Renderbuffer)
	DrawBuffers(n int)
	CheckFramebufferStatus() error
	BlitFramebuffer(width, height int, mask ClearMask, filter Filter)
	ReadPixels(x, y, w, h int, format Format, typ DataType, out []byte) error

	DrawArrays(mode Primitive, first, count int)
	DrawElements(mode Primitive, count, offset int)
	DrawArraysInstanced(mode Primitive, first, count, instances int)
	DrawElementsInstanced(mode Primitive, count, offset, instances int)
}
