package renderer

import (
	"fmt"
	"slices"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// ShadowState is the phase of the shadow pre-pass.
type ShadowState int

const (
	ShadowIdle ShadowState = iota
	ShadowCollecting
	ShadowDepthPass
)

func (s ShadowState) String() string {
	switch s {
	case ShadowCollecting:
		return "collecting"
	case ShadowDepthPass:
		return "depth-pass"
	}
	return "idle"
}

type shadowMap struct {
	target *RenderTarget
	// pass is the intermediate target of the VSM blur.
	pass *RenderTarget
	typ  ShadowType
}

// depthVariant selects a cached depth or distance material.
type depthVariant struct {
	distance  bool
	vsm       bool
	side      scene.Side
	alphaMap  *scene.Texture
	colorMap  *scene.Texture
	alphaTest float32
}

// ShadowRenderer renders a depth (or distance, for point lights) map per
// shadow-casting light before the main pass.
type ShadowRenderer struct {
	r *Renderer

	Enabled     bool
	Type        ShadowType
	AutoUpdate  bool
	NeedsUpdate bool

	state ShadowState
	// OnState observes every state transition.
	OnState func(ShadowState)

	maps     map[*scene.Light]*shadowMap
	variants map[depthVariant]*scene.Material
	frustum  scene.Frustum

	blur *scene.Mesh
}

func newShadowRenderer(r *Renderer, opts ShadowMapOptions) *ShadowRenderer {
	return &ShadowRenderer{
		r:          r,
		Enabled:    opts.Enabled,
		Type:       opts.Type,
		AutoUpdate: opts.AutoUpdate,
		maps:       make(map[*scene.Light]*shadowMap),
		variants:   make(map[depthVariant]*scene.Material),
	}
}

// State returns the current phase; it is ShadowIdle between frames.
func (s *ShadowRenderer) State() ShadowState { return s.state }

func (s *ShadowRenderer) enter(st ShadowState) {
	s.state = st
	if s.OnState != nil {
		s.OnState(st)
	}
}

// effectiveType degrades VSM to PCF on devices without float targets.
func (s *ShadowRenderer) effectiveType() ShadowType {
	if s.Type == VSMShadow && !s.r.caps.FloatRenderTargets {
		s.r.warnOnce("shadow-vsm", &UnsupportedFeatureError{Feature: "VSM shadows (float render targets)", Fallback: string(PCFShadow)})
		return PCFShadow
	}
	return s.Type
}

// ── Shadow pass ──────────────────────────────────────────────────────────────

// Render draws the shadow maps of lights. The previous render target is
// restored afterwards.
func (s *ShadowRenderer) Render(lights []*scene.Light, sc *scene.Scene) error {
	s.prune(lights)
	if !s.Enabled || len(lights) == 0 || (!s.AutoUpdate && !s.NeedsUpdate) {
		return nil
	}
	s.enter(ShadowCollecting)
	defer s.enter(ShadowIdle)

	r := s.r
	prev, prevFace, prevLevel := r.active, r.activeFace, r.activeLevel
	typ := s.effectiveType()

	r.state.Disable(gpu.Blend)
	r.state.ColorMask(true)
	r.state.DepthMask(true)
	r.state.Enable(gpu.DepthTest)
	r.state.Disable(gpu.ScissorTest)

	for _, l := range lights {
		sh := l.Shadow
		sm, err := s.mapFor(l, typ)
		if err != nil {
			return err
		}
		s.enter(ShadowDepthPass)
		if err := r.bindTarget(sm.target, 0, 0); err != nil {
			return fmt.Errorf("shadow map for %s light: %w", l.Kind, err)
		}
		r.state.ClearColor(core.Color{R: 1, G: 1, B: 1, A: 1})
		r.dev.Clear(gpu.ClearColorBit | gpu.ClearDepthBit | gpu.ClearStencilBit)

		cols, rows := sh.FrameExtents(l.Kind)
		faceW := float32(sm.target.Width / cols)
		faceH := float32(sm.target.Height / rows)
		for vp := range sh.ViewportCount(l.Kind) {
			sh.UpdateMatrices(l, vp)
			v := sh.Viewports[vp]
			r.state.Viewport(core.Rect{X: v[0] * faceW, Y: v[1] * faceH, Width: v[2] * faceW, Height: v[3] * faceH})
			s.frustum = sh.Camera.Frustum()
			dc := r.newDrawContext(sh.Camera, nil)
			dc.shadowLight = l
			dc.vsm = typ == VSMShadow && l.Kind != scene.PointLight
			if err := s.renderCasters(sc.Root, l, dc); err != nil {
				return err
			}
		}
		if typ == VSMShadow && l.Kind != scene.PointLight {
			if err := s.blurVSM(sm, sh); err != nil {
				return err
			}
		}
		s.enter(ShadowCollecting)
	}
	s.NeedsUpdate = false
	return r.bindTarget(prev, prevFace, prevLevel)
}

// ── Shadow maps ──────────────────────────────────────────────────────────────

// mapFor returns the map of l, (re)creating it when its size or type changed.
func (s *ShadowRenderer) mapFor(l *scene.Light, typ ShadowType) (*shadowMap, error) {
	sh := l.Shadow
	cols, rows := sh.FrameExtents(l.Kind)
	limit := s.r.caps.MaxTextureSize
	w, h := sh.MapWidth*cols, sh.MapHeight*rows
	if limit > 0 && (w > limit || h > limit) {
		// Shrink the per-face size so the whole layout fits.
		sh.MapWidth = min(sh.MapWidth, limit/cols)
		sh.MapHeight = min(sh.MapHeight, limit/rows)
		w, h = sh.MapWidth*cols, sh.MapHeight*rows
	}
	vsm := typ == VSMShadow && l.Kind != scene.PointLight

	sm := s.maps[l]
	if sm != nil && sm.target.Width == w && sm.target.Height == h && sm.typ == typ {
		return sm, nil
	}
	if sm != nil {
		sm.dispose()
	}

	opts := RenderTargetOptions{Format: gpu.RGBA, Type: gpu.UnsignedByte, MinFilter: gpu.Nearest, MagFilter: gpu.Nearest, DepthBuffer: true}
	if vsm {
		opts = RenderTargetOptions{Format: gpu.RG, Type: gpu.HalfFloat, MinFilter: gpu.Linear, MagFilter: gpu.Linear, DepthBuffer: true}
	}
	sm = &shadowMap{target: NewRenderTarget(w, h, opts), typ: typ}
	if vsm {
		opts.DepthBuffer = false
		sm.pass = NewRenderTarget(w, h, opts)
	}
	if err := sm.target.Validate(s.r.caps); err != nil {
		return nil, err
	}
	s.maps[l] = sm
	Logger().Debug("shadow map", "light", l.Kind, "width", w, "height", h, "type", typ)
	return sm, nil
}

// prune disposes the maps of lights that no longer cast this frame.
func (s *ShadowRenderer) prune(lights []*scene.Light) {
	for l, sm := range s.maps {
		if !s.Enabled || !slices.Contains(lights, l) {
			sm.dispose()
			delete(s.maps, l)
		}
	}
}

func (m *shadowMap) dispose() {
	m.target.Dispose()
	if m.pass != nil {
		m.pass.Dispose()
	}
}

// ── Casters ──────────────────────────────────────────────────────────────────

// renderCasters draws every visible shadow caster under n with its depth
// material variant.
func (s *ShadowRenderer) renderCasters(n *scene.Node, l *scene.Light, dc *drawContext) error {
	if !n.Visible {
		return nil
	}
	cam := l.Shadow.Camera
	if mesh := n.Mesh; mesh != nil && n.CastShadow && n.Layers.Test(cam.Layers) && mesh.Geometry != nil {
		if s.inFrustum(n) {
			geo := mesh.Geometry
			if len(mesh.Materials) > 1 && len(geo.Groups) > 0 {
				for i := range geo.Groups {
					g := &geo.Groups[i]
					if m := mesh.MaterialFor(*g); m != nil && m.Visible {
						if err := s.drawCaster(n, g, m, dc); err != nil {
							return err
						}
					}
				}
			} else if m := mesh.Material(); m != nil && m.Visible {
				if err := s.drawCaster(n, nil, m, dc); err != nil {
					return err
				}
			}
		}
	}
	for _, c := range n.Children() {
		if err := s.renderCasters(c, l, dc); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShadowRenderer) inFrustum(n *scene.Node) bool {
	if !n.FrustumCulled || n.Mesh.IsInstanced() {
		return true
	}
	geo := n.Mesh.Geometry
	sphere := geo.BoundingSphere
	if sphere == nil {
		v := geo.ComputeBoundingSphere()
		sphere = &v
	}
	return sphere.Empty() || s.frustum.IntersectsSphere(sphere.ApplyMatrix(n.WorldMatrix()))
}

func (s *ShadowRenderer) drawCaster(n *scene.Node, g *scene.Group, m *scene.Material, dc *drawContext) error {
	dm := s.variant(m, dc.shadowLight.Kind == scene.PointLight, dc.vsm)
	return s.r.renderObject(n, n.Mesh.Geometry, dm, g, dc)
}

// variant returns the cached depth or distance material standing in for m.
func (s *ShadowRenderer) variant(m *scene.Material, distance, vsm bool) *scene.Material {
	side := shadowSide(m, vsm)
	key := depthVariant{distance: distance, vsm: vsm, side: side, alphaMap: m.AlphaMap, alphaTest: m.AlphaTest}
	if m.AlphaTest > 0 {
		key.colorMap = m.Map
	}
	dm := s.variants[key]
	if dm != nil {
		return dm
	}
	kind := scene.KindDepth
	if distance {
		kind = scene.KindDistance
	}
	dm = scene.NewMaterial(fmt.Sprintf("shadow-%s", kind), kind)
	dm.DepthPacking = scene.RGBADepthPacking
	dm.Side = side
	dm.AlphaMap = key.alphaMap
	dm.Map = key.colorMap
	dm.AlphaTest = key.alphaTest
	dm.Blending = scene.NoBlending
	dm.Fog, dm.ToneMapped = false, false
	s.variants[key] = dm
	return dm
}

// shadowSide renders the back faces of single-sided casters into
// basic and PCF maps to reduce acne; VSM keeps the material side.
func shadowSide(m *scene.Material, vsm bool) scene.Side {
	if m.ShadowSide != nil {
		return *m.ShadowSide
	}
	if vsm {
		return m.Side
	}
	switch m.Side {
	case scene.FrontSide:
		return scene.BackSide
	case scene.BackSide:
		return scene.FrontSide
	}
	return scene.DoubleSide
}

// ── VSM blur ─────────────────────────────────────────────────────────────────

// blurVSM runs the separable blur: vertical into the pass target, then
// horizontal back into the map.
func (s *ShadowRenderer) blurVSM(sm *shadowMap, sh *scene.LightShadow) error {
	r := s.r
	samples := max(sh.BlurSamples, 1)
	if s.blur == nil {
		s.blur = fullscreenTriangle()
	}
	var progs [2]*Program
	for i, horizontal := range []bool{false, true} {
		key := fmt.Sprintf("vsm-blur:%d:%t", samples, horizontal)
		defines := []string{fmt.Sprintf("VSM_SAMPLES %d", samples)}
		if horizontal {
			defines = append(defines, "VSM_HORIZONTAL")
		}
		prog, err := r.programs.internal(key, "fullscreen_vert", "vsm_frag", defines...)
		if err != nil {
			return err
		}
		ok, err := r.programs.Poll(prog)
		if err != nil {
			return err
		}
		if !ok {
			// Still compiling; the unblurred moments are usable meanwhile.
			return nil
		}
		progs[i] = prog
	}

	r.state.Disable(gpu.DepthTest)
	r.state.DepthMask(false)
	r.state.Disable(gpu.CullFace)
	defer r.state.Enable(gpu.DepthTest)
	defer r.state.DepthMask(true)

	for i, pass := range []struct {
		src, dst *RenderTarget
	}{{sm.target, sm.pass}, {sm.pass, sm.target}} {
		prog := progs[i]
		if err := r.bindTarget(pass.dst, 0, 0); err != nil {
			return fmt.Errorf("vsm pass %d: %w", i, err)
		}
		r.state.Viewport(core.Rect{Width: float32(pass.dst.Width), Height: float32(pass.dst.Height)})
		r.state.UseProgram(prog.Handle)
		r.textures.Bind(pass.src.Texture(), gpu.Texture2D, 0)
		prog.uniforms.ints("shadowPass", []int32{0})
		prog.uniforms.vec2("resolution", [2]float32{float32(pass.dst.Width), float32(pass.dst.Height)})
		prog.uniforms.float("radius", sh.Radius)
		if _, err := r.bindings.Setup(s.blur, s.blur.Geometry, false); err != nil {
			return err
		}
		r.dev.DrawArrays(gpu.Triangles, 0, 3)
		r.info.update(3, gpu.Triangles, 0)
	}
	return nil
}

// fullscreenTriangle covers clip space with one triangle.
func fullscreenTriangle() *scene.Mesh {
	geo := scene.NewGeometry("fullscreen")
	geo.SetAttribute(scene.AttrPosition, scene.NewFloatAttribute([]float32{-1, -1, 0, 3, -1, 0, -1, 3, 0}, 3))
	return scene.NewMesh(geo)
}

// ── Lookup and teardown ──────────────────────────────────────────────────────

// Map returns the shadow map target of l, if it has one.
func (s *ShadowRenderer) Map(l *scene.Light) (*RenderTarget, bool) {
	sm, ok := s.maps[l]
	if !ok {
		return nil, false
	}
	return sm.target, true
}

func (s *ShadowRenderer) dispose() {
	for l, sm := range s.maps {
		sm.dispose()
		delete(s.maps, l)
	}
	for k, m := range s.variants {
		m.Dispose()
		delete(s.variants, k)
	}
	if s.blur != nil {
		s.blur.Geometry.Dispose()
		s.blur = nil
	}
}

// forget drops device-side state but keeps the variant materials; their
// programs are rebuilt on demand.
func (s *ShadowRenderer) forget() {
	clear(s.maps)
	s.blur = nil
}
