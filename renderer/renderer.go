// Package renderer draws scene graphs through a gpu.Device.
//
// A Renderer owns every device object it creates. It caches programs,
// buffers, textures and framebuffers across frames and tracks pipeline
// state so unchanged state costs no device call. All methods must be called
// from the goroutine that owns the device context.
package renderer

import (
	"errors"
	"fmt"
	"time"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/scene"
)

type Renderer struct {
	dev  gpu.Device
	caps gpu.Capabilities
	opts Options

	info      *Info
	state     *StateTracker
	buffers   *BufferUploader
	bindings  *Bindings
	textures  *TextureUploader
	targets   *renderTargets
	programs  *ProgramCache
	materials *materialCache
	lists     *RenderLists
	lights    *LightsState
	shadows   *ShadowRenderer
	clip      clipping

	// ClippingPlanes are world-space planes applied to every material.
	ClippingPlanes []scene.Plane

	width, height int
	viewport      core.Rect
	scissor       core.Rect
	scissorTest   bool
	clearColor    core.Color
	drawHeight    float32

	// target is the user's render target, active the one currently bound.
	target      *RenderTarget
	targetFace  int
	targetLevel int
	active      *RenderTarget
	activeFace  int
	activeLevel int

	transmission *RenderTarget
	depth        int
	lost         bool
	// deviceLost is set when the loss was observed on the device rather
	// than reported through HandleContextLost.
	deviceLost bool
	animation    func(time.Duration)

	fallback  *scene.Material
	warned    map[string]bool
	skeletons map[*scene.Skeleton]uint64
	unit      int
	units     []int32
}

// New returns a renderer drawing to the default framebuffer of dev.
func New(dev gpu.Device, opts Options) (*Renderer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if dev.IsContextLost() {
		return nil, &ContextLostError{Op: "create renderer"}
	}
	caps := dev.Capabilities()
	r := &Renderer{
		dev:        dev,
		caps:       caps,
		opts:       opts,
		info:       &Info{AutoReset: true},
		lists:      NewRenderLists(),
		lights:     NewLightsState(),
		clearColor: core.ColorBlack,
		warned:     make(map[string]bool),
		skeletons:  make(map[*scene.Skeleton]uint64),
	}
	r.state = NewStateTracker(dev, caps.MaxTextureUnits)
	r.buffers = NewBufferUploader(dev, r.info)
	r.bindings = NewBindings(dev, r.state, r.buffers)
	r.textures = NewTextureUploader(dev, r.state, r.info)
	r.targets = newRenderTargets(dev, r.state, r.textures)
	r.programs = NewProgramCache(dev, r.info)
	r.materials = newMaterialCache(r.programs)
	r.shadows = newShadowRenderer(r, opts.ShadowMap)

	r.fallback = scene.NewBasicMaterial("fallback", core.ColorMagenta)
	r.fallback.Fog, r.fallback.ToneMapped = false, false
	return r, nil
}

// ── Frame ────────────────────────────────────────────────────────────────────

// Render draws s as seen by cam into the current render target.
func (r *Renderer) Render(s *scene.Scene, cam *scene.Camera) error {
	if err := r.checkContext("render"); err != nil {
		return err
	}
	if r.target != nil {
		if err := r.target.Validate(r.caps); err != nil {
			return fmt.Errorf("render target: %w", err)
		}
	}
	if r.info.AutoReset {
		r.info.reset()
	}
	r.info.Render.Frame++

	if s.AutoUpdate {
		s.Root.UpdateWorldMatrix(false)
	}
	for _, c := range append([]*scene.Camera{cam}, cam.SubCameras...) {
		if c.Node.Parent() == nil {
			c.Node.UpdateWorldMatrix(false)
		}
	}

	r.depth++
	defer func() { r.depth-- }()
	list := r.lists.Get(s, r.depth)
	proj := project(s, cam, list, r.opts.SortObjects, r.materials.batch)

	// ── Lights and shadow pass ───────────────────────────────────────────────
	r.lights.Setup(proj.lights, cam, r.shadows.Enabled)
	if err := r.shadows.Render(proj.shadows, s); err != nil {
		return fmt.Errorf("shadow pass: %w", err)
	}
	r.lights.updateShadows()

	// ── Main pass ────────────────────────────────────────────────────────────
	if err := r.bindTarget(r.target, r.targetFace, r.targetLevel); err != nil {
		return err
	}
	if r.opts.AutoClear {
		color := r.clearColor
		if s.Background != nil {
			color = *s.Background
		}
		r.clear(color, true, true, true)
	}

	if len(cam.SubCameras) == 0 {
		if err := r.renderScene(list, s, cam, nil); err != nil {
			return err
		}
	} else {
		for _, sub := range cam.SubCameras {
			v := sub.Viewport
			if err := r.renderScene(list, s, sub, &core.Rect{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height}); err != nil {
				return err
			}
		}
	}

	if r.target != nil {
		r.targets.resolve(r.target)
	}
	r.state.Enable(gpu.DepthTest)
	r.state.DepthMask(true)
	r.state.ColorMask(true)
	r.state.PolygonOffset(false, 0, 0)
	return nil
}

// renderScene draws the buckets of list for one camera. vp restricts the
// draws to a sub-camera viewport.
func (r *Renderer) renderScene(list *RenderList, s *scene.Scene, cam *scene.Camera, vp *core.Rect) error {
	view := cam.ViewMatrix()
	r.clip.begin(r.ClippingPlanes, view, view.Mat3().Inv().Transpose())

	var transmit *RenderTarget
	if len(list.Transmissive) > 0 {
		rt, err := r.transmissionPass(list, s, cam)
		if err != nil {
			return fmt.Errorf("transmission pass: %w", err)
		}
		transmit = rt
	}
	if vp != nil {
		r.applyViewport(*vp)
		r.state.Scissor(*vp)
		r.state.Enable(gpu.ScissorTest)
		defer r.state.Disable(gpu.ScissorTest)
	}

	dc := r.newDrawContext(cam, s)
	dc.transmit = transmit
	for _, bucket := range [][]int32{list.Opaque, list.Transmissive, list.Transparent} {
		if err := r.renderBucket(list, bucket, dc); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderBucket(list *RenderList, bucket []int32, dc *drawContext) error {
	for _, i := range bucket {
		it := list.Item(i)
		if !it.Node.Layers.Test(dc.camera.Layers) {
			continue
		}
		var g *scene.Group
		if it.HasGroup {
			g = &it.Group
		}
		m := it.Material
		if m.Transparent && m.Side == scene.DoubleSide {
			dc.cull = true
			dc.cullFace = gpu.FaceFront
			err := r.renderObject(it.Node, it.Geometry, m, g, dc)
			dc.cullFace = gpu.FaceBack
			if err == nil {
				err = r.renderObject(it.Node, it.Geometry, m, g, dc)
			}
			dc.cull = false
			if err != nil {
				return err
			}
			continue
		}
		if err := r.renderObject(it.Node, it.Geometry, m, g, dc); err != nil {
			return err
		}
	}
	return nil
}

// transmissionPass renders the opaque bucket into a mipmapped target the
// transmissive materials sample, then rebinds the previous target.
func (r *Renderer) transmissionPass(list *RenderList, s *scene.Scene, cam *scene.Camera) (*RenderTarget, error) {
	w, h := r.drawingBufferSize()
	if r.transmission == nil {
		typ := gpu.UnsignedByte
		if r.caps.HalfFloatTextures && r.caps.FloatRenderTargets {
			typ = gpu.HalfFloat
		}
		r.transmission = NewRenderTarget(w, h, RenderTargetOptions{
			Format:          gpu.RGBA,
			Type:            typ,
			MinFilter:       gpu.LinearMipmapLinear,
			MagFilter:       gpu.Linear,
			GenerateMipmaps: true,
			DepthBuffer:     true,
			Samples:         min(r.opts.Antialias, r.caps.MaxSamples),
		})
	}
	r.transmission.SetSize(w, h)

	prev, prevFace, prevLevel := r.active, r.activeFace, r.activeLevel
	if err := r.bindTarget(r.transmission, 0, 0); err != nil {
		return nil, err
	}
	color := r.clearColor
	if s.Background != nil {
		color = *s.Background
	}
	r.clear(color, true, true, true)

	dc := r.newDrawContext(cam, s)
	if err := r.renderBucket(list, list.Opaque, dc); err != nil {
		return nil, err
	}
	r.targets.resolve(r.transmission)
	return r.transmission, r.bindTarget(prev, prevFace, prevLevel)
}

// ── Render targets ───────────────────────────────────────────────────────────

func (r *Renderer) drawingBufferSize() (int, int) {
	if r.target != nil {
		return r.target.Width, r.target.Height
	}
	return max(r.width, 1), max(r.height, 1)
}

// SetRenderTarget directs later renders into rt, or the default
// framebuffer when rt is nil. face selects a cube face and level a mip
// level of the color attachments.
func (r *Renderer) SetRenderTarget(rt *RenderTarget, face, level int) error {
	if rt != nil {
		if err := rt.Validate(r.caps); err != nil {
			return err
		}
	}
	r.target, r.targetFace, r.targetLevel = rt, face, level
	if r.lost {
		return nil
	}
	return r.bindTarget(rt, face, level)
}

// RenderTarget returns the target set by SetRenderTarget.
func (r *Renderer) RenderTarget() *RenderTarget { return r.target }

func (r *Renderer) bindTarget(rt *RenderTarget, face, level int) error {
	r.active, r.activeFace, r.activeLevel = rt, face, level
	if rt == nil {
		r.state.BindFramebuffer(0)
		r.applyViewport(r.viewport)
		r.state.Scissor(r.scissor)
		r.toggleScissor(r.scissorTest)
		return nil
	}
	if _, err := r.targets.setup(rt, face, level); err != nil {
		return err
	}
	r.applyViewport(rt.Viewport)
	r.state.Scissor(rt.Scissor)
	r.toggleScissor(rt.ScissorTest)
	return nil
}

func (r *Renderer) applyViewport(v core.Rect) {
	r.state.Viewport(v)
	r.drawHeight = v.Height
}

func (r *Renderer) toggleScissor(on bool) {
	if on {
		r.state.Enable(gpu.ScissorTest)
	} else {
		r.state.Disable(gpu.ScissorTest)
	}
}

// ── Precompilation ───────────────────────────────────────────────────────────

// ProgramSet is the result of Compile.
type ProgramSet struct {
	cache    *ProgramCache
	programs []*Program
	errs     []error
}

// Programs lists the programs the scene needs.
func (s *ProgramSet) Programs() []*Program { return s.programs }

// Ready reports whether every program finished compiling. Compile failures
// are joined into the error.
func (s *ProgramSet) Ready() (bool, error) {
	ready := true
	errs := append([]error(nil), s.errs...)
	for _, p := range s.programs {
		ok, err := s.cache.Poll(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ready = ready && ok
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return ready, nil
}

// Compile starts compiling every program s needs for cam without drawing.
func (r *Renderer) Compile(s *scene.Scene, cam *scene.Camera) (*ProgramSet, error) {
	if err := r.checkContext("compile"); err != nil {
		return nil, err
	}
	if s.AutoUpdate {
		s.Root.UpdateWorldMatrix(false)
	}
	if cam.Node.Parent() == nil {
		cam.Node.UpdateWorldMatrix(false)
	}
	list := r.lists.Get(s, r.depth+1)
	proj := project(s, cam, list, false, nil)
	r.lights.Setup(proj.lights, cam, r.shadows.Enabled)

	view := cam.ViewMatrix()
	r.clip.begin(r.ClippingPlanes, view, view.Mat3().Inv().Transpose())
	dc := r.newDrawContext(cam, s)

	set := &ProgramSet{cache: r.programs}
	seen := make(map[*Program]bool)
	for _, bucket := range [][]int32{list.Opaque, list.Transmissive, list.Transparent} {
		for _, i := range bucket {
			it := list.Item(i)
			props := r.materials.get(it.Material)
			params := r.parameters(props.features, it.Node, it.Geometry, it.Material, dc)
			prog, err := r.materials.program(it.Material, props, &params)
			if err != nil {
				set.errs = append(set.errs, fmt.Errorf("material %q: %w", it.Material.Name, err))
				continue
			}
			if !seen[prog] {
				seen[prog] = true
				set.programs = append(set.programs, prog)
			}
		}
	}
	Logger().Debug("compile", "programs", len(set.programs), "errors", len(set.errs))
	return set, nil
}

// ── Animation loop and readback ──────────────────────────────────────────────

// SetAnimationLoop installs fn to be called by Tick. A nil fn stops the loop.
func (r *Renderer) SetAnimationLoop(fn func(time.Duration)) { r.animation = fn }

// Tick runs the animation callback with the elapsed time t. It does
// nothing while the context is lost.
func (r *Renderer) Tick(t time.Duration) {
	if r.animation == nil || r.lost {
		return
	}
	r.animation(t)
}

// ReadRenderTargetPixels copies a rectangle of rt's first attachment into
// out, laid out as the attachment's format and type.
func (r *Renderer) ReadRenderTargetPixels(rt *RenderTarget, x, y, w, h int, out []byte) error {
	if r.lost {
		return &ContextLostError{Op: "read pixels"}
	}
	if rt == nil {
		return &ResourceSizeMismatchError{Resource: "read pixels", Reason: "nil render target"}
	}
	if !rt.readable(r.caps) {
		t := rt.Texture()
		return &UnsupportedFeatureError{Feature: fmt.Sprintf("reading format %d type %d", t.Format, t.Type)}
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > rt.Width || y+h > rt.Height {
		return &ResourceSizeMismatchError{Resource: "read pixels", Reason: fmt.Sprintf("rect %d,%d %dx%d outside %dx%d", x, y, w, h, rt.Width, rt.Height)}
	}
	t := rt.Texture()
	if need := w * h * t.Format.Channels() * t.Type.Size(); len(out) < need {
		return &ResourceSizeMismatchError{Resource: "read pixels", Reason: fmt.Sprintf("buffer holds %d bytes, need %d", len(out), need)}
	}
	fb, ok := r.targets.readFramebuffer(rt)
	if !ok {
		return fmt.Errorf("read pixels: render target was never rendered")
	}
	r.dev.BindFramebuffer(gpu.ReadFramebuffer, fb)
	err := r.dev.ReadPixels(x, y, w, h, t.Format, t.Type, out)
	r.state.InvalidateFramebuffer()
	if err != nil {
		return fmt.Errorf("read pixels: %w", err)
	}
	return nil
}

// ── Viewport and clearing ────────────────────────────────────────────────────

// SetSize sets the size of the default framebuffer and resets the
// viewport and scissor to cover it.
func (r *Renderer) SetSize(width, height int) {
	r.width, r.height = width, height
	r.viewport = core.Rect{Width: float32(width), Height: float32(height)}
	r.scissor = r.viewport
	if r.active == nil && !r.lost {
		r.applyViewport(r.viewport)
		r.state.Scissor(r.scissor)
	}
}

func (r *Renderer) Size() (int, int) { return r.width, r.height }

func (r *Renderer) SetViewport(v core.Rect) {
	r.viewport = v
	if r.active == nil && !r.lost {
		r.applyViewport(v)
	}
}

func (r *Renderer) SetScissor(s core.Rect) {
	r.scissor = s
	if r.active == nil && !r.lost {
		r.state.Scissor(s)
	}
}

func (r *Renderer) SetScissorTest(on bool) {
	r.scissorTest = on
	if r.active == nil && !r.lost {
		r.toggleScissor(on)
	}
}

func (r *Renderer) SetClearColor(c core.Color) { r.clearColor = c }

// Clear clears the selected buffers of the bound target.
func (r *Renderer) Clear(color, depth, stencil bool) {
	if r.lost {
		return
	}
	r.clear(r.clearColor, color, depth, stencil)
}

func (r *Renderer) clear(c core.Color, color, depth, stencil bool) {
	var mask gpu.ClearMask
	if color {
		mask |= gpu.ClearColorBit
		r.state.ClearColor(c)
		r.state.ColorMask(true)
	}
	if depth {
		mask |= gpu.ClearDepthBit
		r.state.DepthMask(true)
	}
	if stencil {
		mask |= gpu.ClearStencilBit
		r.state.StencilMask(0xffffffff)
	}
	if mask != 0 {
		r.dev.Clear(mask)
	}
}

// ── Accessors ────────────────────────────────────────────────────────────────

func (r *Renderer) Info() *Info { return r.info }

// Programs lists the cached programs ordered by ID.
func (r *Renderer) Programs() []*Program { return r.programs.Programs() }

func (r *Renderer) State() *StateTracker { return r.state }

func (r *Renderer) Lights() *LightsState { return r.lights }

func (r *Renderer) Shadows() *ShadowRenderer { return r.shadows }

func (r *Renderer) Options() Options { return r.opts }

// MaterialError returns the error of m's last draw, if it failed.
func (r *Renderer) MaterialError(m *scene.Material) error {
	if p := r.materials.props[m]; p != nil {
		return p.err
	}
	return nil
}

// ── Context loss ─────────────────────────────────────────────────────────────

// checkContext fails op while the context is lost. A loss seen on the
// device is handled here; once the device reports the context back, the
// renderer restores itself before op proceeds.
func (r *Renderer) checkContext(op string) error {
	if r.dev.IsContextLost() {
		r.HandleContextLost()
		r.deviceLost = true
		return &ContextLostError{Op: op}
	}
	if r.lost && r.deviceLost {
		r.RestoreContext()
	}
	if r.lost {
		return &ContextLostError{Op: op}
	}
	return nil
}

// HandleContextLost marks the context lost. Renders fail with
// ContextLostError until RestoreContext.
func (r *Renderer) HandleContextLost() {
	if r.lost {
		return
	}
	r.lost = true
	Logger().Info("graphics context lost")
}

// RestoreContext forgets every device object and cached state. Resources
// are recreated on the next render.
func (r *Renderer) RestoreContext() {
	r.caps = r.dev.Capabilities()
	r.forget()
	r.lost, r.deviceLost = false, false
	Logger().Info("graphics context restored")
}

func (r *Renderer) forget() {
	r.materials.forget()
	r.programs.forget()
	r.bindings.forget()
	r.buffers.forget()
	r.textures.forget()
	r.targets.forget()
	r.shadows.forget()
	r.state.Reset()
	r.lights.seen = false
	clear(r.skeletons)
	r.active = nil
}

// ── Teardown ─────────────────────────────────────────────────────────────────

// Dispose releases every device object the renderer created.
func (r *Renderer) Dispose() {
	if r.lost {
		// The handles died with the context.
		r.forget()
		return
	}
	r.shadows.dispose()
	r.materials.dispose()
	r.programs.Dispose()
	r.bindings.Dispose()
	r.buffers.Dispose()
	r.textures.Dispose()
	if r.transmission != nil {
		r.transmission.Dispose()
		r.transmission = nil
	}
	r.targets.dispose()
	r.lists.Dispose()
	r.state.Reset()
}

// warnOnce logs err at Warn the first time key is seen.
func (r *Renderer) warnOnce(key string, err error) {
	if r.warned[key] {
		return
	}
	r.warned[key] = true
	Logger().Warn("renderer fallback", "err", err)
}
