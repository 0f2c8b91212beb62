package scene

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
	"render-pipeline/gpu"
)

// MaterialKind is the closed set of shading models.
type MaterialKind int

const (
	KindBasic MaterialKind = iota
	KindLambert
	KindPhong
	KindStandard
	KindPhysical
	KindToon
	KindNormal
	KindDepth
	KindDistance
	KindPoints
	KindShader
)

var kindNames = [...]string{"basic", "lambert", "phong", "standard", "physical", "toon", "normal", "depth", "distance", "points", "shader"}

func (k MaterialKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Lit reports whether the kind reacts to scene lights.
func (k MaterialKind) Lit() bool {
	switch k {
	case KindLambert, KindPhong, KindStandard, KindPhysical, KindToon:
		return true
	}
	return false
}

type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

// Blending selects a blend preset. CustomBlending uses the material's
// explicit factors and equations.
type Blending int

const (
	NoBlending Blending = iota
	NormalBlending
	AdditiveBlending
	SubtractiveBlending
	MultiplyBlending
	CustomBlending
)

// DepthPacking selects how depth materials encode depth.
type DepthPacking int

const (
	BasicDepthPacking DepthPacking = iota
	RGBADepthPacking
)

// Stencil is the stencil configuration of a material.
type Stencil struct {
	Write     bool
	Func      gpu.CompareFunc
	Ref       int32
	FuncMask  uint32
	WriteMask uint32
	Fail      gpu.StencilOp
	ZFail     gpu.StencilOp
	ZPass     gpu.StencilOp
}

// ShaderSource is the user program of a KindShader material. Sources may use
// `#include <chunk>` directives for the renderer's shader library.
type ShaderSource struct {
	Vertex   string
	Fragment string
	Defines  map[string]string
	Uniforms map[string]any
	// Lights requests the light uniforms.
	Lights bool
}

var materialIDCounter atomic.Uint32

// Material describes how a surface is shaded and which pipeline state it
// draws with. It may be shared by many meshes. Any change to a field that
// alters the shader variant must be followed by NeedsUpdate.
type Material struct {
	ID   uint32
	Name string
	Kind MaterialKind

	Color       core.Color
	Opacity     float32
	Emissive    core.Color
	Specular    core.Color
	Shininess   float32
	Metalness   float32
	Roughness   float32
	Clearcoat   float32
	Sheen       float32
	Iridescence float32
	// Transmission > 0 renders the material in the transmission pass.
	Transmission float32
	Thickness    float32
	IOR          float32

	// Point size for KindPoints.
	Size            float32
	SizeAttenuation bool

	Map               *Texture
	AlphaMap          *Texture
	NormalMap         *Texture
	NormalScale       mgl32.Vec2
	EmissiveMap       *Texture
	RoughnessMap      *Texture
	MetalnessMap      *Texture
	AOMap             *Texture
	AOMapIntensity    float32
	BumpMap           *Texture
	BumpScale         float32
	DisplacementMap   *Texture
	DisplacementScale float32
	EnvMap            *Texture
	EnvMapIntensity   float32
	GradientMap       *Texture
	SpecularMap       *Texture
	LightMap          *Texture
	LightMapIntensity float32

	Side          Side
	ShadowSide    *Side
	Transparent   bool
	Blending      Blending
	BlendSrc      gpu.BlendFactor
	BlendDst      gpu.BlendFactor
	BlendEquation gpu.BlendEquation
	// Separate alpha factors; nil uses the colour factors.
	BlendSrcAlpha      *gpu.BlendFactor
	BlendDstAlpha      *gpu.BlendFactor
	BlendEquationAlpha *gpu.BlendEquation
	BlendColor         core.Color
	PremultipliedAlpha bool

	DepthTest  bool
	DepthWrite bool
	DepthFunc  gpu.CompareFunc
	Stencil    Stencil
	ColorWrite bool

	PolygonOffset       bool
	PolygonOffsetFactor float32
	PolygonOffsetUnits  float32

	AlphaTest          float32
	AlphaHash          bool
	AlphaToCoverage    bool
	Dithering          bool
	Fog                bool
	ToneMapped         bool
	VertexColors       bool
	FlatShading        bool
	Wireframe          bool
	WireframeLinewidth float32

	ClippingPlanes   []Plane
	ClipIntersection bool
	ClipShadows      bool

	DepthPacking DepthPacking
	Shader       *ShaderSource

	Visible bool
	Version uint64

	disposer
}

// NewMaterial returns a material of the given kind with renderer defaults.
func NewMaterial(name string, kind MaterialKind) *Material {
	return &Material{
		ID:                 materialIDCounter.Add(1),
		Name:               name,
		Kind:               kind,
		Color:              core.ColorWhite,
		Opacity:            1,
		Emissive:           core.ColorBlack,
		Specular:           core.Color{R: 0.07, G: 0.07, B: 0.07, A: 1},
		Shininess:          30,
		Roughness:          1,
		IOR:                1.5,
		Size:               1,
		SizeAttenuation:    true,
		NormalScale:        mgl32.Vec2{1, 1},
		AOMapIntensity:     1,
		BumpScale:          1,
		DisplacementScale:  1,
		EnvMapIntensity:    1,
		LightMapIntensity:  1,
		Blending:           NormalBlending,
		BlendSrc:           gpu.SrcAlpha,
		BlendDst:           gpu.OneMinusSrcAlpha,
		BlendEquation:      gpu.FuncAdd,
		BlendColor:         core.Color{A: 0},
		DepthTest:          true,
		DepthWrite:         true,
		DepthFunc:          gpu.LessEqual,
		Stencil:            Stencil{Func: gpu.Always, FuncMask: 0xff, WriteMask: 0xff, Fail: gpu.Keep, ZFail: gpu.Keep, ZPass: gpu.Keep},
		ColorWrite:         true,
		Fog:                true,
		ToneMapped:         true,
		WireframeLinewidth: 1,
		Visible:            true,
	}
}

// NewBasicMaterial returns an unlit material of the given colour.
func NewBasicMaterial(name string, color core.Color) *Material {
	m := NewMaterial(name, KindBasic)
	m.Color = color
	return m
}

func NewLambertMaterial(name string, color core.Color) *Material {
	m := NewMaterial(name, KindLambert)
	m.Color = color
	return m
}

func NewPhongMaterial(name string, color core.Color) *Material {
	m := NewMaterial(name, KindPhong)
	m.Color = color
	return m
}

// NewStandardMaterial returns a metallic-roughness PBR material.
func NewStandardMaterial(name string, color core.Color, metalness, roughness float32) *Material {
	m := NewMaterial(name, KindStandard)
	m.Color = color
	m.Metalness = metalness
	m.Roughness = roughness
	return m
}

// NewPhysicalMaterial returns a standard material with the extended
// clearcoat/sheen/transmission parameters enabled.
func NewPhysicalMaterial(name string, color core.Color) *Material {
	m := NewStandardMaterial(name, color, 0, 1)
	m.Kind = KindPhysical
	return m
}

// NewShaderMaterial returns a material that runs user GLSL.
func NewShaderMaterial(name string, src ShaderSource) *Material {
	m := NewMaterial(name, KindShader)
	m.Shader = &src
	return m
}

// NeedsUpdate marks the material as changed so derived shader features are
// recomputed on next use.
func (m *Material) NeedsUpdate() { m.Version++ }

// Clone returns a copy with a new ID and no dispose listeners.
func (m *Material) Clone() *Material {
	c := *m
	c.ID = materialIDCounter.Add(1)
	c.disposer = disposer{}
	c.ClippingPlanes = append([]Plane(nil), m.ClippingPlanes...)
	if m.Shader != nil {
		src := *m.Shader
		c.Shader = &src
	}
	return &c
}

// Textures returns every texture the material references.
func (m *Material) Textures() []*Texture {
	all := []*Texture{m.Map, m.AlphaMap, m.NormalMap, m.EmissiveMap, m.RoughnessMap, m.MetalnessMap,
		m.AOMap, m.BumpMap, m.DisplacementMap, m.EnvMap, m.GradientMap, m.SpecularMap, m.LightMap}
	out := all[:0]
	for _, t := range all {
		if t != nil {
			out = append(out, t)
		}
	}
	if m.Shader != nil {
		for _, v := range m.Shader.Uniforms {
			if t, ok := v.(*Texture); ok && t != nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// Dispose notifies renderers to release programs held for the material.
func (m *Material) Dispose() { m.fire() }
