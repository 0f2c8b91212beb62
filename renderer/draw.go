package renderer

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// drawContext holds what every draw of one pass shares.
type drawContext struct {
	camera     *scene.Camera
	view       mgl32.Mat4
	proj       mgl32.Mat4
	viewNormal mgl32.Mat3
	cameraPos  mgl32.Vec3
	height     float32

	fog *scene.Fog
	// shadowLight is set during shadow depth passes.
	shadowLight *scene.Light
	vsm         bool
	// cull overrides the material's face culling; used to draw double
	// sided transparent materials back faces first.
	cull      bool
	cullFace  gpu.Face
	clipping  bool
	transmit  *RenderTarget
	toneMap   bool
	srgbOut   bool
}

func (r *Renderer) newDrawContext(cam *scene.Camera, s *scene.Scene) *drawContext {
	view := cam.ViewMatrix()
	dc := &drawContext{
		camera:     cam,
		view:       view,
		proj:       cam.ProjectionMatrix(),
		viewNormal: view.Mat3().Inv().Transpose(),
		cameraPos:  cam.Position(),
		height:     r.drawHeight,
	}
	if s != nil {
		dc.fog = s.Fog
		dc.clipping = len(r.ClippingPlanes) > 0 || r.opts.LocalClippingEnabled
		dc.toneMap = r.active == nil
		dc.srgbOut = r.active == nil && r.opts.OutputColorSpace == SRGBOutput
	}
	return dc
}

// ── Program selection ────────────────────────────────────────────────────────

// parameters assembles the program variant for drawing m on n.
func (r *Renderer) parameters(f MaterialFeatures, n *scene.Node, geo *scene.Geometry, m *scene.Material, dc *drawContext) ProgramParameters {
	mesh := n.Mesh
	p := ProgramParameters{MaterialFeatures: f, Precision: r.opts.Precision}
	p.Instancing = mesh.InstanceMatrix != nil
	p.InstancingColor = mesh.InstanceColor != nil
	if mesh.Skeleton != nil && geo.Attributes[scene.AttrSkinIndex] != nil {
		p.Skinning = true
		p.MaxBones = r.opts.MaxBones
		if len(mesh.Skeleton.Bones) > r.opts.MaxBones {
			r.warnOnce(fmt.Sprintf("bones:%p", mesh.Skeleton), &UnsupportedFeatureError{Feature: fmt.Sprintf("%d bones", len(mesh.Skeleton.Bones)), Fallback: fmt.Sprintf("first %d", r.opts.MaxBones)})
		}
	}
	p.MorphTargets = min(geo.MorphTargetCount(), r.opts.MaxMorphTargets, maxMorphBindings)

	if dc.shadowLight != nil {
		p.VSM = dc.vsm && f.Kind == scene.KindDepth
		p.ShadowType = BasicShadow
		p.ToneMapping = NoToneMapping
		return p
	}

	if f.Lit {
		p.Lights = r.lights.Counts
		c := p.Lights
		p.ShadowMap = r.shadows.Enabled && c.DirectionalShadows+c.PointShadows+c.SpotShadows > 0
	}
	p.ShadowType = BasicShadow
	if p.ShadowMap {
		p.ShadowType = r.shadows.effectiveType()
	}
	if dc.fog != nil && f.Fog {
		p.FogEnabled = true
		p.FogExp2 = dc.fog.Kind == scene.ExpFog2
	}
	p.ToneMapping = NoToneMapping
	if dc.toneMap && f.ToneMapped {
		p.ToneMapping = r.opts.ToneMapping
	}
	p.OutputSRGB = dc.srgbOut
	if dc.clipping {
		_, p.ClippingPlanes, p.UnionClippingPlanes = r.clip.planes(m, r.opts.LocalClippingEnabled, dc.view, dc.viewNormal)
	}
	return p
}

// programFor returns the program to draw m with and the material whose
// values it should use. A failed material yields the fallback; a program
// still compiling yields nil when unready programs are skipped.
func (r *Renderer) programFor(n *scene.Node, geo *scene.Geometry, m *scene.Material, dc *drawContext) (*Program, *scene.Material) {
	props := r.materials.get(m)
	params := r.parameters(props.features, n, geo, m, dc)
	prog, err := r.materials.program(m, props, &params)
	if err == nil {
		var ok bool
		if ok, err = r.poll(prog); ok {
			props.err = nil
			return prog, m
		}
	}
	if err == nil {
		return nil, nil
	}

	props.err = err
	if props.logFailure(m) {
		Logger().Warn("material failed, drawing fallback", "material", m.Name, "version", m.Version, "err", err)
	}
	if m == r.fallback {
		return nil, nil
	}
	fb := r.materials.get(r.fallback)
	fparams := r.parameters(fb.features, n, geo, r.fallback, dc)
	prog, err = r.materials.program(r.fallback, fb, &fparams)
	if err != nil {
		return nil, nil
	}
	if ok, _ := r.poll(prog); !ok {
		return nil, nil
	}
	return prog, r.fallback
}

// poll checks readiness. When unready programs are not skipped it blocks
// Render on the compile for at most ProgramWaitMillis, then gives up for
// this draw.
func (r *Renderer) poll(p *Program) (bool, error) {
	ok, err := r.programs.Poll(p)
	if ok || err != nil || r.opts.SkipUnreadyPrograms {
		return ok, err
	}
	wait := time.Duration(r.opts.ProgramWaitMillis) * time.Millisecond
	deadline := time.Now().Add(wait)
	for delay := 100 * time.Microsecond; time.Now().Before(deadline); delay = min(2*delay, 5*time.Millisecond) {
		time.Sleep(delay)
		if ok, err = r.programs.Poll(p); ok || err != nil {
			return ok, err
		}
	}
	r.warnOnce("wait:"+p.Key, fmt.Errorf("program %d still compiling after %v, draw skipped", p.ID, wait))
	return false, nil
}

// ── Draw submission ──────────────────────────────────────────────────────────

// renderObject issues the draw of one item.
func (r *Renderer) renderObject(n *scene.Node, geo *scene.Geometry, m *scene.Material, g *scene.Group, dc *drawContext) error {
	mesh := n.Mesh
	prog, mat := r.programFor(n, geo, m, dc)
	if prog == nil {
		return nil
	}

	index, err := r.bindings.Setup(mesh, geo, mat.Wireframe)
	if err != nil {
		return fmt.Errorf("mesh %q: %w", n.Name, err)
	}

	start, count, ok := drawRange(geo, g, index, mat.Wireframe)
	if !ok {
		return nil
	}

	world := n.WorldMatrix()
	r.state.ApplyMaterialState(mat, world.Det() < 0)
	if dc.cull {
		r.state.Enable(gpu.CullFace)
		r.state.CullFace(dc.cullFace)
	}
	mode := mesh.Mode.Primitive()
	if mat.Wireframe {
		mode = gpu.Lines
		r.state.LineWidth(mat.WireframeLinewidth)
	}
	r.state.UseProgram(prog.Handle)
	r.uploadUniforms(prog, n, geo, mat, dc)

	instances := 0
	if mesh.InstanceMatrix != nil {
		instances = mesh.InstanceCount
		if instances == 0 {
			return nil
		}
	}
	switch {
	case index != nil && instances > 0:
		r.dev.DrawElementsInstanced(mode, count, start*4, instances)
	case index != nil:
		r.dev.DrawElements(mode, count, start*4)
	case instances > 0:
		r.dev.DrawArraysInstanced(mode, start, count, instances)
	default:
		r.dev.DrawArrays(mode, start, count)
	}
	r.info.update(count, mode, instances)
	return nil
}

// drawRange intersects the geometry draw range, the group and the stream
// length. Wireframe indices hold two entries per triangle edge.
func drawRange(geo *scene.Geometry, g *scene.Group, index *scene.Attribute, wireframe bool) (int, int, bool) {
	factor := 1
	if wireframe {
		factor = 2
	}
	start := geo.DrawRange.Start * factor
	end := -1
	if geo.DrawRange.Count >= 0 {
		end = (geo.DrawRange.Start + geo.DrawRange.Count) * factor
	}
	if g != nil {
		start = max(start, g.Start*factor)
		if ge := (g.Start + g.Count) * factor; end < 0 || ge < end {
			end = ge
		}
	}
	var limit int
	if index != nil {
		limit = index.Len()
	} else if pos := geo.Attributes[scene.AttrPosition]; pos != nil {
		limit = pos.Count()
	}
	if end < 0 || end > limit {
		end = limit
	}
	start = max(start, 0)
	if end <= start {
		return 0, 0, false
	}
	return start, end - start, true
}

// ── Uniforms ─────────────────────────────────────────────────────────────────

// uploadUniforms sends the object, material and environment values the
// program declares. Texture units are assigned per draw.
func (r *Renderer) uploadUniforms(prog *Program, n *scene.Node, geo *scene.Geometry, m *scene.Material, dc *drawContext) {
	u := prog.uniforms
	p := &prog.Params
	r.unit = 0
	mesh := n.Mesh

	world := n.WorldMatrix()
	modelView := dc.view.Mul4(world)
	u.mat4("modelMatrix", world)
	u.mat4("viewMatrix", dc.view)
	u.mat4("projectionMatrix", dc.proj)
	u.mat4("modelViewMatrix", modelView)
	u.mat3("normalMatrix", modelView.Mat3().Inv().Transpose())
	u.vec3("cameraPosition", dc.cameraPos)

	if p.Skinning {
		sk := mesh.Skeleton
		if r.skeletons[sk] != r.info.Render.Frame {
			sk.Update()
			r.skeletons[sk] = r.info.Render.Frame
		}
		u.mat4("bindMatrix", mesh.BindMatrix)
		u.mat4("bindMatrixInverse", mesh.BindMatrix.Inv())
		u.floats("boneMatrices", sk.BoneMatrices)
	}
	if p.MorphTargets > 0 {
		w := mesh.MorphTargetInfluences
		u.floats("morphTargetInfluences", w[:min(len(w), p.MorphTargets)])
	}

	u.color("diffuse", m.Color)
	u.float("opacity", m.Opacity)
	u.float("alphaTest", m.AlphaTest)
	if p.Points {
		u.float("size", m.Size)
		u.float("scale", dc.height/2)
	}

	if dc.shadowLight != nil && p.Kind == scene.KindDistance {
		u.vec3("referencePosition", dc.shadowLight.Node.WorldPosition())
		u.float("nearDistance", dc.shadowLight.Shadow.Camera.Near)
		u.float("farDistance", dc.shadowLight.Shadow.Camera.Far)
	}

	if p.Lit {
		u.color("emissive", m.Emissive)
		u.color("specular", m.Specular)
		u.float("shininess", m.Shininess)
		u.float("roughness", m.Roughness)
		u.float("metalness", m.Metalness)
		u.float("clearcoat", m.Clearcoat)
		u.float("sheen", m.Sheen)
		u.boolean("receiveShadow", n.ReceiveShadow)
		r.lights.upload(u)
		r.shadowSamplers(u, "directionalShadowMap", r.lights.DirectionalShadows)
		r.shadowSamplers(u, "spotShadowMap", r.lights.SpotShadows)
		r.shadowSamplers(u, "pointShadowMap", r.lights.PointShadows)
	}

	r.sampler(u, p.Map, "map", m.Map, gpu.Texture2D)
	r.sampler(u, p.AlphaMap, "alphaMap", m.AlphaMap, gpu.Texture2D)
	r.sampler(u, p.EmissiveMap, "emissiveMap", m.EmissiveMap, gpu.Texture2D)
	r.sampler(u, p.SpecularMap, "specularMap", m.SpecularMap, gpu.Texture2D)
	r.sampler(u, p.GradientMap, "gradientMap", m.GradientMap, gpu.Texture2D)
	r.sampler(u, p.RoughnessMap, "roughnessMap", m.RoughnessMap, gpu.Texture2D)
	r.sampler(u, p.MetalnessMap, "metalnessMap", m.MetalnessMap, gpu.Texture2D)
	if r.sampler(u, p.AOMap, "aoMap", m.AOMap, gpu.Texture2D) {
		u.float("aoMapIntensity", m.AOMapIntensity)
	}
	if r.sampler(u, p.LightMap, "lightMap", m.LightMap, gpu.Texture2D) {
		u.float("lightMapIntensity", m.LightMapIntensity)
	}
	if r.sampler(u, p.NormalMap, "normalMap", m.NormalMap, gpu.Texture2D) {
		u.vec2("normalScale", m.NormalScale)
	}
	if r.sampler(u, p.BumpMap, "bumpMap", m.BumpMap, gpu.Texture2D) {
		u.float("bumpScale", m.BumpScale)
	}
	if r.sampler(u, p.DisplacementMap, "displacementMap", m.DisplacementMap, gpu.Texture2D) {
		u.float("displacementScale", m.DisplacementScale)
	}
	if r.sampler(u, p.EnvMap, "envMap", m.EnvMap, gpu.TextureCube) {
		u.float("envMapIntensity", m.EnvMapIntensity)
	}
	if p.Transmission {
		u.float("transmission", m.Transmission)
		u.float("thickness", m.Thickness)
		u.float("ior", m.IOR)
		var tex *scene.Texture
		if dc.transmit != nil {
			tex = dc.transmit.Texture()
			u.vec2("transmissionSamplerSize", mgl32.Vec2{float32(dc.transmit.Width), float32(dc.transmit.Height)})
		}
		r.sampler(u, true, "transmissionSamplerMap", tex, gpu.Texture2D)
	}

	if p.FogEnabled {
		u.color("fogColor", dc.fog.Color)
		u.float("fogNear", dc.fog.Near)
		u.float("fogFar", dc.fog.Far)
		u.float("fogDensity", dc.fog.Density)
	}
	if p.ToneMapping != NoToneMapping {
		u.float("toneMappingExposure", r.opts.ToneMappingExposure)
	}
	if p.ClippingPlanes > 0 {
		values, _, _ := r.clip.planes(m, r.opts.LocalClippingEnabled, dc.view, dc.viewNormal)
		u.floats("clippingPlanes", values)
	}

	if m.Kind == scene.KindShader && m.Shader != nil {
		for name, v := range m.Shader.Uniforms {
			if t, ok := v.(*scene.Texture); ok {
				target := gpu.Texture2D
				if t != nil {
					target = t.Target
				}
				r.sampler(u, true, name, t, target)
				continue
			}
			if !u.setAny(name, v) {
				r.warnOnce("uniform:"+name, fmt.Errorf("uniform %s: unsupported value type %T", name, v))
			}
		}
	}
}

// sampler binds t to the next texture unit when the program uses name.
func (r *Renderer) sampler(u *uniformTable, used bool, name string, t *scene.Texture, target gpu.TextureTarget) bool {
	if !used || !u.has(name) {
		return false
	}
	unit := r.allocUnit()
	r.textures.Bind(t, target, unit)
	u.ints(name, []int32{int32(unit)})
	return true
}

func (r *Renderer) shadowSamplers(u *uniformTable, name string, lights []*scene.Light) {
	if len(lights) == 0 || !u.has(name) {
		return
	}
	units := r.units[:0]
	for _, l := range lights {
		unit := r.allocUnit()
		var tex *scene.Texture
		if rt, ok := r.shadows.Map(l); ok {
			tex = rt.Texture()
		}
		r.textures.Bind(tex, gpu.Texture2D, unit)
		units = append(units, int32(unit))
	}
	u.ints(name, units)
	r.units = units
}

func (r *Renderer) allocUnit() int {
	unit := r.unit
	if unit >= r.caps.MaxTextureUnits {
		r.warnOnce("texture-units", &UnsupportedFeatureError{Feature: fmt.Sprintf("%d texture units", unit+1)})
	}
	r.unit++
	return unit
}
