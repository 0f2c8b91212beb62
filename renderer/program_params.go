package renderer

import (
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
	"strings"

	"render-pipeline/scene"
)

// MaterialFeatures are the shader-relevant properties of one material
// version. They are derived once per version by a switch on the kind.
type MaterialFeatures struct {
	Kind scene.MaterialKind
	Lit  bool

	Map             bool
	AlphaMap        bool
	NormalMap       bool
	BumpMap         bool
	EmissiveMap     bool
	RoughnessMap    bool
	MetalnessMap    bool
	AOMap           bool
	DisplacementMap bool
	EnvMap          bool
	GradientMap     bool
	SpecularMap     bool
	LightMap        bool

	VertexColors       bool
	FlatShading        bool
	DoubleSided        bool
	FlipSided          bool
	AlphaTest          bool
	AlphaHash          bool
	PremultipliedAlpha bool
	Dithering          bool
	Points             bool
	SizeAttenuation    bool
	Clearcoat          bool
	Sheen              bool
	Transmission       bool
	DepthPackingRGBA   bool

	Fog        bool
	ToneMapped bool

	// Shader materials key on a hash of their sources and defines.
	ShaderHash string
	Defines    string
}

// deriveFeatures computes the features of m. Transparency is excluded:
// it changes pipeline state, not the program.
func deriveFeatures(m *scene.Material) MaterialFeatures {
	f := MaterialFeatures{
		Kind:               m.Kind,
		Lit:                m.Kind.Lit(),
		Map:                m.Map != nil,
		AlphaMap:           m.AlphaMap != nil,
		DisplacementMap:    m.DisplacementMap != nil,
		VertexColors:       m.VertexColors,
		DoubleSided:        m.Side == scene.DoubleSide,
		FlipSided:          m.Side == scene.BackSide,
		AlphaTest:          m.AlphaTest > 0,
		AlphaHash:          m.AlphaHash,
		PremultipliedAlpha: m.PremultipliedAlpha,
		Dithering:          m.Dithering,
		Fog:                m.Fog,
		ToneMapped:         m.ToneMapped,
	}

	switch m.Kind {
	case scene.KindBasic:
		f.SpecularMap = m.SpecularMap != nil
		f.LightMap = m.LightMap != nil
		f.AOMap = m.AOMap != nil
		f.EnvMap = m.EnvMap != nil
	case scene.KindLambert, scene.KindPhong, scene.KindToon:
		f.NormalMap = m.NormalMap != nil
		f.BumpMap = m.BumpMap != nil
		f.EmissiveMap = m.EmissiveMap != nil
		f.AOMap = m.AOMap != nil
		f.LightMap = m.LightMap != nil
		f.FlatShading = m.FlatShading
		if m.Kind == scene.KindToon {
			f.GradientMap = m.GradientMap != nil
		} else {
			f.SpecularMap = m.SpecularMap != nil
			f.EnvMap = m.EnvMap != nil
		}
	case scene.KindStandard, scene.KindPhysical:
		f.NormalMap = m.NormalMap != nil
		f.BumpMap = m.BumpMap != nil
		f.EmissiveMap = m.EmissiveMap != nil
		f.RoughnessMap = m.RoughnessMap != nil
		f.MetalnessMap = m.MetalnessMap != nil
		f.AOMap = m.AOMap != nil
		f.LightMap = m.LightMap != nil
		f.EnvMap = m.EnvMap != nil
		f.FlatShading = m.FlatShading
		if m.Kind == scene.KindPhysical {
			f.Clearcoat = m.Clearcoat > 0
			f.Sheen = m.Sheen > 0
			f.Transmission = m.Transmission > 0
		}
	case scene.KindNormal:
		f.NormalMap = m.NormalMap != nil
		f.BumpMap = m.BumpMap != nil
		f.FlatShading = m.FlatShading
		f.Fog = false
	case scene.KindDepth:
		f.DepthPackingRGBA = m.DepthPacking == scene.RGBADepthPacking
		f.Fog, f.ToneMapped = false, false
	case scene.KindDistance:
		f.Fog, f.ToneMapped = false, false
	case scene.KindPoints:
		f.Points = true
		f.SizeAttenuation = m.SizeAttenuation
		f.DisplacementMap = false
	case scene.KindShader:
		if m.Shader != nil {
			f.Lit = m.Shader.Lights
			f.ShaderHash, f.Defines = hashShader(m.Shader)
		}
	}
	return f
}

// hashShader returns a stable hash of the sources and the sorted defines.
func hashShader(src *scene.ShaderSource) (string, string) {
	var defs strings.Builder
	for _, k := range slices.Sorted(maps.Keys(src.Defines)) {
		defs.WriteString(k)
		if v := src.Defines[k]; v != "" {
			defs.WriteByte(' ')
			defs.WriteString(v)
		}
		defs.WriteByte('\n')
	}
	h := fnv.New64a()
	h.Write([]byte(src.Vertex))
	h.Write([]byte{0})
	h.Write([]byte(src.Fragment))
	h.Write([]byte{0})
	h.Write([]byte(defs.String()))
	return strconv.FormatUint(h.Sum64(), 16), defs.String()
}

// LightCounts are the per-type light numbers a program is compiled for.
type LightCounts struct {
	Directional int
	Point       int
	Spot        int
	Hemisphere  int
	RectArea    int

	DirectionalShadows int
	PointShadows       int
	SpotShadows        int
}

// ProgramParameters is every input that selects a program variant.
// Equal parameters produce equal keys and share one program.
type ProgramParameters struct {
	MaterialFeatures

	Precision string

	Instancing      bool
	InstancingColor bool
	Skinning        bool
	MaxBones        int
	MorphTargets    int

	Lights     LightCounts
	ShadowMap  bool
	ShadowType ShadowType
	// VSM selects the moments output of the depth variant.
	VSM bool

	FogEnabled bool
	FogExp2    bool

	ToneMapping ToneMapping
	OutputSRGB  bool

	ClippingPlanes      int
	UnionClippingPlanes int
}

// Key returns the cache key of p.
func (p *ProgramParameters) Key() string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(p.Kind.String())
	if p.ShaderHash != "" {
		b.WriteByte(':')
		b.WriteString(p.ShaderHash)
	}
	b.WriteByte('|')
	for _, on := range p.flags() {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	for _, n := range []int{
		p.MaxBones, p.MorphTargets,
		p.Lights.Directional, p.Lights.Point, p.Lights.Spot, p.Lights.Hemisphere, p.Lights.RectArea,
		p.Lights.DirectionalShadows, p.Lights.PointShadows, p.Lights.SpotShadows,
		p.ClippingPlanes, p.UnionClippingPlanes,
	} {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteByte('|')
	b.WriteString(p.Precision)
	b.WriteByte('|')
	b.WriteString(string(p.ShadowType))
	b.WriteByte('|')
	b.WriteString(string(p.ToneMapping))
	return b.String()
}

func (p *ProgramParameters) flags() []bool {
	return []bool{
		p.Lit, p.Map, p.AlphaMap, p.NormalMap, p.BumpMap, p.EmissiveMap, p.RoughnessMap,
		p.MetalnessMap, p.AOMap, p.DisplacementMap, p.EnvMap, p.GradientMap, p.SpecularMap,
		p.LightMap, p.VertexColors, p.FlatShading, p.DoubleSided, p.FlipSided, p.AlphaTest,
		p.AlphaHash, p.PremultipliedAlpha, p.Dithering, p.Points, p.SizeAttenuation,
		p.Clearcoat, p.Sheen, p.Transmission, p.DepthPackingRGBA, p.Fog, p.ToneMapped,
		p.Instancing, p.InstancingColor, p.Skinning, p.ShadowMap, p.VSM, p.FogEnabled,
		p.FogExp2, p.OutputSRGB,
	}
}

var shadingDefines = map[scene.MaterialKind]string{
	scene.KindBasic:    "SHADING_BASIC",
	scene.KindLambert:  "SHADING_LAMBERT",
	scene.KindPhong:    "SHADING_PHONG",
	scene.KindStandard: "SHADING_STANDARD",
	scene.KindPhysical: "SHADING_STANDARD",
	scene.KindToon:     "SHADING_TOON",
	scene.KindNormal:   "SHADING_NORMAL",
	scene.KindDepth:    "SHADING_DEPTH",
	scene.KindDistance: "SHADING_DISTANCE",
	scene.KindPoints:   "SHADING_BASIC",
}

var toneMappingFuncs = map[ToneMapping]string{
	LinearToneMapping:   "LinearToneMapping",
	ReinhardToneMapping: "ReinhardToneMapping",
	CineonToneMapping:   "CineonToneMapping",
	ACESToneMapping:     "ACESFilmicToneMapping",
}

// defines returns the preprocessor definitions of p, one "NAME [VALUE]"
// per entry.
func (p *ProgramParameters) defines() []string {
	var d []string
	if s, ok := shadingDefines[p.Kind]; ok {
		d = append(d, s)
	}
	if p.Kind == scene.KindPhysical {
		d = append(d, "SHADING_PHYSICAL")
	}
	on := func(flag bool, name string) {
		if flag {
			d = append(d, name)
		}
	}
	on(p.Lit, "USE_LIGHTS")
	on(p.Map, "USE_MAP")
	on(p.AlphaMap, "USE_ALPHAMAP")
	on(p.NormalMap, "USE_NORMALMAP")
	on(p.BumpMap, "USE_BUMPMAP")
	on(p.EmissiveMap, "USE_EMISSIVEMAP")
	on(p.RoughnessMap, "USE_ROUGHNESSMAP")
	on(p.MetalnessMap, "USE_METALNESSMAP")
	on(p.AOMap, "USE_AOMAP")
	on(p.DisplacementMap, "USE_DISPLACEMENTMAP")
	on(p.EnvMap, "USE_ENVMAP")
	on(p.GradientMap, "USE_GRADIENTMAP")
	on(p.SpecularMap, "USE_SPECULARMAP")
	on(p.LightMap, "USE_LIGHTMAP")
	on(p.VertexColors, "USE_COLOR")
	on(p.FlatShading, "FLAT_SHADED")
	on(p.DoubleSided, "DOUBLE_SIDED")
	on(p.FlipSided, "FLIP_SIDED")
	on(p.AlphaTest, "USE_ALPHATEST")
	on(p.AlphaHash, "USE_ALPHAHASH")
	on(p.PremultipliedAlpha, "PREMULTIPLIED_ALPHA")
	on(p.Dithering, "DITHERING")
	on(p.Points, "USE_POINTS")
	on(p.SizeAttenuation, "USE_SIZEATTENUATION")
	on(p.Clearcoat, "USE_CLEARCOAT")
	on(p.Sheen, "USE_SHEEN")
	on(p.Transmission, "USE_TRANSMISSION")
	on(p.DepthPackingRGBA, "DEPTH_PACKING_RGBA")
	on(p.Instancing, "USE_INSTANCING")
	on(p.InstancingColor, "USE_INSTANCING_COLOR")
	on(p.VSM, "SHADOW_VSM")

	if p.Skinning {
		d = append(d, "USE_SKINNING", fmt.Sprintf("MAX_BONES %d", p.MaxBones))
	}
	if p.MorphTargets > 0 {
		d = append(d, "USE_MORPHTARGETS", fmt.Sprintf("MORPHTARGETS_COUNT %d", p.MorphTargets))
	}

	l := p.Lights
	d = append(d,
		fmt.Sprintf("NUM_DIR_LIGHTS %d", l.Directional),
		fmt.Sprintf("NUM_POINT_LIGHTS %d", l.Point),
		fmt.Sprintf("NUM_SPOT_LIGHTS %d", l.Spot),
		fmt.Sprintf("NUM_HEMI_LIGHTS %d", l.Hemisphere),
		fmt.Sprintf("NUM_RECT_AREA_LIGHTS %d", l.RectArea),
		fmt.Sprintf("NUM_DIR_LIGHT_SHADOWS %d", l.DirectionalShadows),
		fmt.Sprintf("NUM_POINT_LIGHT_SHADOWS %d", l.PointShadows),
		fmt.Sprintf("NUM_SPOT_LIGHT_SHADOWS %d", l.SpotShadows),
		fmt.Sprintf("NUM_CLIPPING_PLANES %d", p.ClippingPlanes),
		fmt.Sprintf("UNION_CLIPPING_PLANES %d", p.UnionClippingPlanes),
	)

	if p.ShadowMap {
		d = append(d, "USE_SHADOWMAP")
		switch p.ShadowType {
		case PCFShadow:
			d = append(d, "SHADOWMAP_TYPE_PCF")
		case PCFSoftShadow:
			d = append(d, "SHADOWMAP_TYPE_PCF_SOFT")
		case VSMShadow:
			d = append(d, "SHADOWMAP_TYPE_VSM")
		}
	}
	if p.Fog && p.FogEnabled {
		d = append(d, "USE_FOG")
		on(p.FogExp2, "FOG_EXP2")
	}
	if fn, ok := toneMappingFuncs[p.ToneMapping]; ok && p.ToneMapped {
		d = append(d, "TONE_MAPPING", "toneMapping(c) "+fn+"(c)")
	}
	if p.OutputSRGB {
		d = append(d, "SRGB_OUTPUT")
	}
	if p.Defines != "" {
		d = append(d, strings.Split(strings.TrimSuffix(p.Defines, "\n"), "\n")...)
	}
	return d
}
