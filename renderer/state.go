package renderer

import (
	"slices"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// Cached is one tracked state category. Valid is false until the tracker
// has issued (or been told of) a value.
type Cached[T comparable] struct {
	Value T
	Valid bool
}

// set records v and reports whether the device must be told.
func (c *Cached[T]) set(v T) bool {
	if c.Valid && c.Value == v {
		return false
	}
	c.Value, c.Valid = v, true
	return true
}

type StencilFunc struct {
	Func gpu.CompareFunc
	Ref  int32
	Mask uint32
}

type TextureBinding struct {
	Target  gpu.TextureTarget
	Texture gpu.Texture
}

// StateSnapshot is the pipeline state the tracker believes is current.
type StateSnapshot struct {
	Enabled       [gpu.NumCapabilities]Cached[bool]
	BlendEquation Cached[[2]gpu.BlendEquation]
	BlendFunc     Cached[[4]gpu.BlendFactor]
	BlendColor    Cached[core.Color]
	DepthFunc     Cached[gpu.CompareFunc]
	DepthMask     Cached[bool]
	StencilFunc   Cached[StencilFunc]
	StencilMask   Cached[uint32]
	StencilOp     Cached[[3]gpu.StencilOp]
	CullFace      Cached[gpu.Face]
	FrontFace     Cached[gpu.Winding]
	PolygonOffset Cached[[2]float32]
	ColorMask     Cached[[4]bool]
	Scissor       Cached[core.Rect]
	Viewport      Cached[core.Rect]
	ClearColor    Cached[core.Color]
	LineWidth     Cached[float32]
	Program       Cached[gpu.Program]
	Framebuffer   Cached[gpu.Framebuffer]
	VertexArray   Cached[gpu.VertexArray]
	ActiveUnit    Cached[int]
	Textures      []Cached[TextureBinding]
}

// categories lists every category as a comparable value.
func (s *StateSnapshot) categories() []any {
	out := make([]any, 0, 32+len(s.Textures))
	for _, e := range s.Enabled {
		out = append(out, e)
	}
	out = append(out, s.BlendEquation, s.BlendFunc, s.BlendColor, s.DepthFunc, s.DepthMask,
		s.StencilFunc, s.StencilMask, s.StencilOp, s.CullFace, s.FrontFace, s.PolygonOffset,
		s.ColorMask, s.Scissor, s.Viewport, s.ClearColor, s.LineWidth, s.Program,
		s.Framebuffer, s.VertexArray, s.ActiveUnit)
	for _, t := range s.Textures {
		out = append(out, t)
	}
	return out
}

// Empty reports whether no category is known.
func (s StateSnapshot) Empty() bool {
	for _, c := range s.categories() {
		if v, ok := c.(interface{ valid() bool }); ok && v.valid() {
			return false
		}
	}
	return true
}

func (c Cached[T]) valid() bool { return c.Valid }

// Diff returns the number of categories whose value differs between a and b.
func (a StateSnapshot) Diff(b StateSnapshot) int {
	ca, cb := a.categories(), b.categories()
	n := 0
	for i := range max(len(ca), len(cb)) {
		if i >= len(ca) || i >= len(cb) || ca[i] != cb[i] {
			n++
		}
	}
	return n
}

// StateTracker mirrors device pipeline state and drops redundant calls.
// Every category that actually changes costs exactly one device call.
type StateTracker struct {
	dev gpu.Device
	s   StateSnapshot

	calls int
}

func NewStateTracker(dev gpu.Device, textureUnits int) *StateTracker {
	t := &StateTracker{dev: dev}
	t.s.Textures = make([]Cached[TextureBinding], textureUnits)
	return t
}

// Reset forgets everything so the next request of every category reaches
// the device. Call after out-of-band device use or a context restore.
func (t *StateTracker) Reset() {
	units := len(t.s.Textures)
	t.s = StateSnapshot{Textures: make([]Cached[TextureBinding], units)}
}

// Snapshot returns a copy of the tracked state.
func (t *StateTracker) Snapshot() StateSnapshot {
	s := t.s
	s.Textures = slices.Clone(t.s.Textures)
	return s
}

// Calls returns the number of device calls issued so far.
func (t *StateTracker) Calls() int { return t.calls }

func (t *StateTracker) Enable(c gpu.Capability) {
	if t.s.Enabled[c].set(true) {
		t.calls++
		t.dev.Enable(c)
	}
}

func (t *StateTracker) Disable(c gpu.Capability) {
	if t.s.Enabled[c].set(false) {
		t.calls++
		t.dev.Disable(c)
	}
}

func (t *StateTracker) toggle(c gpu.Capability, on bool) {
	if on {
		t.Enable(c)
	} else {
		t.Disable(c)
	}
}

func (t *StateTracker) BlendEquation(rgb, alpha gpu.BlendEquation) {
	if t.s.BlendEquation.set([2]gpu.BlendEquation{rgb, alpha}) {
		t.calls++
		t.dev.BlendEquationSeparate(rgb, alpha)
	}
}

func (t *StateTracker) BlendFunc(srcRGB, dstRGB, srcAlpha, dstAlpha gpu.BlendFactor) {
	if t.s.BlendFunc.set([4]gpu.BlendFactor{srcRGB, dstRGB, srcAlpha, dstAlpha}) {
		t.calls++
		t.dev.BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha)
	}
}

func (t *StateTracker) BlendColor(c core.Color) {
	if t.s.BlendColor.set(c) {
		t.calls++
		t.dev.BlendColor(c.R, c.G, c.B, c.A)
	}
}

func (t *StateTracker) DepthFunc(f gpu.CompareFunc) {
	if t.s.DepthFunc.set(f) {
		t.calls++
		t.dev.DepthFunc(f)
	}
}

func (t *StateTracker) DepthMask(write bool) {
	if t.s.DepthMask.set(write) {
		t.calls++
		t.dev.DepthMask(write)
	}
}

func (t *StateTracker) StencilFunc(f gpu.CompareFunc, ref int32, mask uint32) {
	if t.s.StencilFunc.set(StencilFunc{f, ref, mask}) {
		t.calls++
		t.dev.StencilFunc(f, ref, mask)
	}
}

func (t *StateTracker) StencilMask(mask uint32) {
	if t.s.StencilMask.set(mask) {
		t.calls++
		t.dev.StencilMask(mask)
	}
}

func (t *StateTracker) StencilOp(fail, zfail, zpass gpu.StencilOp) {
	if t.s.StencilOp.set([3]gpu.StencilOp{fail, zfail, zpass}) {
		t.calls++
		t.dev.StencilOp(fail, zfail, zpass)
	}
}

func (t *StateTracker) CullFace(f gpu.Face) {
	if t.s.CullFace.set(f) {
		t.calls++
		t.dev.CullFace(f)
	}
}

func (t *StateTracker) FrontFace(w gpu.Winding) {
	if t.s.FrontFace.set(w) {
		t.calls++
		t.dev.FrontFace(w)
	}
}

// PolygonOffset enables the offset and sets factor/units, or disables it.
func (t *StateTracker) PolygonOffset(enabled bool, factor, units float32) {
	t.toggle(gpu.PolygonOffsetFill, enabled)
	if !enabled {
		return
	}
	if t.s.PolygonOffset.set([2]float32{factor, units}) {
		t.calls++
		t.dev.PolygonOffset(factor, units)
	}
}

func (t *StateTracker) ColorMask(write bool) {
	if t.s.ColorMask.set([4]bool{write, write, write, write}) {
		t.calls++
		t.dev.ColorMask(write, write, write, write)
	}
}

func (t *StateTracker) Scissor(r core.Rect) {
	if t.s.Scissor.set(r) {
		t.calls++
		t.dev.Scissor(int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height))
	}
}

func (t *StateTracker) Viewport(r core.Rect) {
	if t.s.Viewport.set(r) {
		t.calls++
		t.dev.Viewport(int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height))
	}
}

func (t *StateTracker) ClearColor(c core.Color) {
	if t.s.ClearColor.set(c) {
		t.calls++
		t.dev.ClearColor(c.R, c.G, c.B, c.A)
	}
}

func (t *StateTracker) LineWidth(w float32) {
	if t.s.LineWidth.set(w) {
		t.calls++
		t.dev.LineWidth(w)
	}
}

// UseProgram binds p and reports whether the binding changed.
func (t *StateTracker) UseProgram(p gpu.Program) bool {
	if t.s.Program.set(p) {
		t.calls++
		t.dev.UseProgram(p)
		return true
	}
	return false
}

// BindFramebuffer binds f for both drawing and reading.
func (t *StateTracker) BindFramebuffer(f gpu.Framebuffer) bool {
	if t.s.Framebuffer.set(f) {
		t.calls++
		t.dev.BindFramebuffer(gpu.DrawReadFramebuffer, f)
		return true
	}
	return false
}

// InvalidateFramebuffer forgets the framebuffer binding after the device
// was rebound directly, e.g. for a blit.
func (t *StateTracker) InvalidateFramebuffer() { t.s.Framebuffer = Cached[gpu.Framebuffer]{} }

func (t *StateTracker) BindVertexArray(v gpu.VertexArray) {
	if t.s.VertexArray.set(v) {
		t.calls++
		t.dev.BindVertexArray(v)
	}
}

func (t *StateTracker) ActiveTexture(unit int) {
	if t.s.ActiveUnit.set(unit) {
		t.calls++
		t.dev.ActiveTexture(unit)
	}
}

// BindTexture binds tex to unit, switching the active unit only when the
// binding actually changes.
func (t *StateTracker) BindTexture(unit int, target gpu.TextureTarget, tex gpu.Texture) {
	if unit >= len(t.s.Textures) {
		t.s.Textures = append(t.s.Textures, make([]Cached[TextureBinding], unit+1-len(t.s.Textures))...)
	}
	b := TextureBinding{Target: target, Texture: tex}
	if t.s.Textures[unit].Valid && t.s.Textures[unit].Value == b {
		return
	}
	t.ActiveTexture(unit)
	t.s.Textures[unit].set(b)
	t.calls++
	t.dev.BindTexture(target, tex)
}

// ForgetTexture drops any binding of tex, e.g. after it was deleted.
func (t *StateTracker) ForgetTexture(tex gpu.Texture) {
	for i := range t.s.Textures {
		if t.s.Textures[i].Value.Texture == tex {
			t.s.Textures[i] = Cached[TextureBinding]{}
		}
	}
}

// ForgetProgram drops the program binding if it is p.
func (t *StateTracker) ForgetProgram(p gpu.Program) {
	if t.s.Program.Value == p {
		t.s.Program = Cached[gpu.Program]{}
	}
}

// ForgetVertexArray drops the vertex array binding if it is v.
func (t *StateTracker) ForgetVertexArray(v gpu.VertexArray) {
	if t.s.VertexArray.Value == v {
		t.s.VertexArray = Cached[gpu.VertexArray]{}
	}
}

// ForgetFramebuffer drops the framebuffer binding if it is f.
func (t *StateTracker) ForgetFramebuffer(f gpu.Framebuffer) {
	if t.s.Framebuffer.Value == f {
		t.s.Framebuffer = Cached[gpu.Framebuffer]{}
	}
}

// Blending applies a blend preset. Custom blending takes the material's
// explicit factors.
func (t *StateTracker) Blending(m *scene.Material) {
	if m.Blending == scene.NoBlending {
		t.Disable(gpu.Blend)
		return
	}
	t.Enable(gpu.Blend)

	if m.Blending == scene.CustomBlending {
		eqA := m.BlendEquation
		if m.BlendEquationAlpha != nil {
			eqA = *m.BlendEquationAlpha
		}
		srcA, dstA := m.BlendSrc, m.BlendDst
		if m.BlendSrcAlpha != nil {
			srcA = *m.BlendSrcAlpha
		}
		if m.BlendDstAlpha != nil {
			dstA = *m.BlendDstAlpha
		}
		t.BlendEquation(m.BlendEquation, eqA)
		t.BlendFunc(m.BlendSrc, m.BlendDst, srcA, dstA)
		t.BlendColor(m.BlendColor)
		return
	}

	t.BlendEquation(gpu.FuncAdd, gpu.FuncAdd)
	f := presetBlendFunc(m.Blending, m.PremultipliedAlpha)
	t.BlendFunc(f[0], f[1], f[2], f[3])
}

func presetBlendFunc(b scene.Blending, premultiplied bool) [4]gpu.BlendFactor {
	if premultiplied {
		switch b {
		case scene.AdditiveBlending:
			return [4]gpu.BlendFactor{gpu.One, gpu.One, gpu.One, gpu.One}
		case scene.SubtractiveBlending:
			return [4]gpu.BlendFactor{gpu.Zero, gpu.OneMinusSrcColor, gpu.Zero, gpu.One}
		case scene.MultiplyBlending:
			return [4]gpu.BlendFactor{gpu.Zero, gpu.SrcColor, gpu.Zero, gpu.SrcAlpha}
		}
		return [4]gpu.BlendFactor{gpu.One, gpu.OneMinusSrcAlpha, gpu.One, gpu.OneMinusSrcAlpha}
	}
	switch b {
	case scene.AdditiveBlending:
		return [4]gpu.BlendFactor{gpu.SrcAlpha, gpu.One, gpu.SrcAlpha, gpu.One}
	case scene.SubtractiveBlending:
		return [4]gpu.BlendFactor{gpu.Zero, gpu.OneMinusSrcColor, gpu.Zero, gpu.One}
	case scene.MultiplyBlending:
		return [4]gpu.BlendFactor{gpu.Zero, gpu.SrcColor, gpu.Zero, gpu.SrcAlpha}
	}
	return [4]gpu.BlendFactor{gpu.SrcAlpha, gpu.OneMinusSrcAlpha, gpu.One, gpu.OneMinusSrcAlpha}
}

// ApplyMaterialState sets every material-driven category. frontFaceCW is
// set for objects whose world transform mirrors geometry (negative
// determinant) so back-face culling stays correct.
func (t *StateTracker) ApplyMaterialState(m *scene.Material, frontFaceCW bool) {
	t.applySide(m.Side, frontFaceCW)

	if m.Blending == scene.NormalBlending && !m.Transparent {
		t.Disable(gpu.Blend)
	} else {
		t.Blending(m)
	}

	t.DepthFunc(m.DepthFunc)
	t.toggle(gpu.DepthTest, m.DepthTest)
	t.DepthMask(m.DepthWrite)
	t.ColorMask(m.ColorWrite)

	st := m.Stencil
	t.toggle(gpu.StencilTest, st.Write)
	if st.Write {
		t.StencilMask(st.WriteMask)
		t.StencilFunc(st.Func, st.Ref, st.FuncMask)
		t.StencilOp(st.Fail, st.ZFail, st.ZPass)
	}

	t.PolygonOffset(m.PolygonOffset, m.PolygonOffsetFactor, m.PolygonOffsetUnits)
	t.toggle(gpu.SampleAlphaToCoverage, m.AlphaToCoverage)
}

func (t *StateTracker) applySide(side scene.Side, frontFaceCW bool) {
	if side == scene.DoubleSide {
		t.Disable(gpu.CullFace)
	} else {
		t.Enable(gpu.CullFace)
		t.CullFace(gpu.FaceBack)
	}
	flip := side == scene.BackSide
	if frontFaceCW {
		flip = !flip
	}
	if flip {
		t.FrontFace(gpu.CW)
	} else {
		t.FrontFace(gpu.CCW)
	}
}
