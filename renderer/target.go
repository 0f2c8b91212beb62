package renderer

import (
	"fmt"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// RenderTargetOptions configure NewRenderTarget.
type RenderTargetOptions struct {
	// Count is the number of color attachments; 0 means 1.
	Count      int
	Format     gpu.Format
	Type       gpu.DataType
	ColorSpace scene.ColorSpace
	MinFilter  gpu.Filter
	MagFilter  gpu.Filter

	GenerateMipmaps bool
	DepthBuffer     bool
	StencilBuffer   bool
	// DepthTexture attaches a sampleable depth texture instead of a
	// depth renderbuffer.
	DepthTexture bool
	Samples      int
	IsCube       bool
}

// RenderTarget is an offscreen surface the renderer can draw into.
type RenderTarget struct {
	Width  int
	Height int

	Textures      []*scene.Texture
	DepthBuffer   bool
	StencilBuffer bool
	DepthTexture  *scene.Texture
	// Samples > 0 renders into a multisampled buffer resolved into Textures.
	Samples int
	IsCube  bool

	Viewport    core.Rect
	Scissor     core.Rect
	ScissorTest bool

	version  uint64
	disposed []func()
}

func NewRenderTarget(width, height int, opts RenderTargetOptions) *RenderTarget {
	count := max(opts.Count, 1)
	target := gpu.Texture2D
	if opts.IsCube {
		target = gpu.TextureCube
	}
	minFilter, magFilter := opts.MinFilter, opts.MagFilter
	if minFilter == 0 && magFilter == 0 {
		minFilter, magFilter = gpu.Linear, gpu.Linear
	}

	rt := &RenderTarget{
		Width:         width,
		Height:        height,
		DepthBuffer:   opts.DepthBuffer,
		StencilBuffer: opts.StencilBuffer,
		Samples:       opts.Samples,
		IsCube:        opts.IsCube,
		Viewport:      core.Rect{Width: float32(width), Height: float32(height)},
		Scissor:       core.Rect{Width: float32(width), Height: float32(height)},
		version:       1,
	}
	for i := range count {
		t := scene.NewDataTexture(fmt.Sprintf("rt-color%d", i), nil, width, height, opts.Format, opts.Type)
		t.Target = target
		t.Data = nil
		t.ColorSpace = opts.ColorSpace
		t.MinFilter, t.MagFilter = minFilter, magFilter
		t.GenerateMipmaps = opts.GenerateMipmaps
		t.IsRenderTarget = true
		rt.Textures = append(rt.Textures, t)
	}
	if opts.DepthTexture {
		format, typ := gpu.DepthComponent, gpu.UnsignedInt
		if opts.StencilBuffer {
			format, typ = gpu.DepthStencil, gpu.UnsignedInt248
		}
		t := scene.NewDataTexture("rt-depth", nil, width, height, format, typ)
		t.Data = nil
		t.IsRenderTarget = true
		rt.DepthTexture = t
	}
	return rt
}

// Texture returns the first color attachment.
func (rt *RenderTarget) Texture() *scene.Texture { return rt.Textures[0] }

// SetSize resizes the target and its attachments.
func (rt *RenderTarget) SetSize(width, height int) {
	if rt.Width == width && rt.Height == height {
		return
	}
	rt.Width, rt.Height = width, height
	for _, t := range rt.Textures {
		t.Width, t.Height = width, height
		t.NeedsUpdate()
	}
	if rt.DepthTexture != nil {
		rt.DepthTexture.Width, rt.DepthTexture.Height = width, height
		rt.DepthTexture.NeedsUpdate()
	}
	rt.Viewport = core.Rect{Width: float32(width), Height: float32(height)}
	rt.Scissor = rt.Viewport
	rt.version++
}

// OnDispose registers fn to run when the target is disposed.
func (rt *RenderTarget) OnDispose(fn func()) { rt.disposed = append(rt.disposed, fn) }

// Dispose releases the device objects of the target and its textures.
func (rt *RenderTarget) Dispose() {
	fns := rt.disposed
	rt.disposed = nil
	for _, fn := range fns {
		fn()
	}
	for _, t := range rt.Textures {
		t.Dispose()
	}
	if rt.DepthTexture != nil {
		rt.DepthTexture.Dispose()
	}
}

// Validate checks the configuration against the device limits.
func (rt *RenderTarget) Validate(caps gpu.Capabilities) error {
	if rt.Width <= 0 || rt.Height <= 0 {
		return &ResourceSizeMismatchError{Resource: "render target", Reason: fmt.Sprintf("size %dx%d is empty", rt.Width, rt.Height)}
	}
	limit := caps.MaxTextureSize
	if rt.IsCube {
		limit = caps.MaxCubeMapSize
		if rt.Width != rt.Height {
			return &ResourceSizeMismatchError{Resource: "render target", Reason: "cube faces must be square"}
		}
	}
	if limit > 0 && (rt.Width > limit || rt.Height > limit) {
		return &ResourceSizeMismatchError{Resource: "render target", Reason: fmt.Sprintf("size %dx%d exceeds %d", rt.Width, rt.Height, limit)}
	}
	if len(rt.Textures) == 0 {
		return &ResourceSizeMismatchError{Resource: "render target", Reason: "no color attachment"}
	}
	for i, t := range rt.Textures {
		if t.Width != rt.Width || t.Height != rt.Height {
			return &ResourceSizeMismatchError{
				Resource: "render target",
				Reason:   fmt.Sprintf("attachment %d is %dx%d, target is %dx%d", i, t.Width, t.Height, rt.Width, rt.Height),
			}
		}
		if t.Format == gpu.DepthComponent || t.Format == gpu.DepthStencil {
			return &UnsupportedFeatureError{Feature: fmt.Sprintf("depth format on color attachment %d", i)}
		}
		if t.Type.IsFloat() && !caps.FloatRenderTargets {
			return &UnsupportedFeatureError{Feature: "float render targets"}
		}
		if _, err := internalFormatFor(t.Format, t.Type, false); err != nil {
			return err
		}
	}
	if d := rt.DepthTexture; d != nil {
		if d.Width != rt.Width || d.Height != rt.Height {
			return &ResourceSizeMismatchError{Resource: "render target", Reason: "depth texture size differs from target"}
		}
		if d.Format != gpu.DepthComponent && d.Format != gpu.DepthStencil {
			return &UnsupportedFeatureError{Feature: "non-depth format on depth attachment"}
		}
	}
	if rt.Samples > caps.MaxSamples {
		return &UnsupportedFeatureError{Feature: fmt.Sprintf("%d samples (max %d)", rt.Samples, caps.MaxSamples)}
	}
	return nil
}

// readable reports whether the first attachment can be read back.
func (rt *RenderTarget) readable(caps gpu.Capabilities) bool {
	t := rt.Textures[0]
	if t.Format != gpu.RGBA {
		return false
	}
	switch t.Type {
	case gpu.UnsignedByte:
		return true
	case gpu.Float, gpu.HalfFloat:
		return caps.FloatRenderTargets
	}
	return false
}

type targetRecord struct {
	fb      gpu.Framebuffer
	depthRB gpu.Renderbuffer

	msaaFB    gpu.Framebuffer
	msaaColor []gpu.Renderbuffer
	msaaDepth gpu.Renderbuffer

	version uint64
	face    int
	level   int
}

// framebuffer returns the framebuffer draws go to.
func (r *targetRecord) framebuffer() gpu.Framebuffer {
	if r.msaaFB != 0 {
		return r.msaaFB
	}
	return r.fb
}

// renderTargets owns the framebuffers of every render target.
type renderTargets struct {
	dev       gpu.Device
	state     *StateTracker
	textures  *TextureUploader
	records   map[*RenderTarget]*targetRecord
	// listening survives forget so a target is subscribed once.
	listening map[*RenderTarget]bool
}

func newRenderTargets(dev gpu.Device, state *StateTracker, textures *TextureUploader) *renderTargets {
	return &renderTargets{
		dev:       dev,
		state:     state,
		textures:  textures,
		records:   make(map[*RenderTarget]*targetRecord),
		listening: make(map[*RenderTarget]bool),
	}
}

// setup creates or rebuilds the device objects of rt and leaves its draw
// framebuffer bound.
func (r *renderTargets) setup(rt *RenderTarget, face, level int) (*targetRecord, error) {
	rec := r.records[rt]
	if rec != nil && rec.version == rt.version {
		r.state.BindFramebuffer(rec.framebuffer())
		if rec.face != face || rec.level != level {
			r.attachColor(rt, rec, face, level)
		}
		return rec, nil
	}
	if rec != nil {
		r.release(rt, rec)
	} else if !r.listening[rt] {
		r.listening[rt] = true
		rt.OnDispose(func() {
			delete(r.listening, rt)
			r.remove(rt)
		})
	}

	rec = &targetRecord{fb: r.dev.CreateFramebuffer(), version: rt.version, face: -1}
	r.records[rt] = rec
	r.state.BindFramebuffer(rec.fb)

	for _, t := range rt.Textures {
		internal, err := internalFormatFor(t.Format, t.Type, t.ColorSpace == scene.SRGBColorSpace)
		if err != nil {
			return nil, err
		}
		r.textures.allocate(t, rt.Width, rt.Height, 1, internal)
	}
	r.attachColor(rt, rec, face, level)

	switch {
	case rt.DepthTexture != nil:
		internal, err := internalFormatFor(rt.DepthTexture.Format, rt.DepthTexture.Type, false)
		if err != nil {
			return nil, err
		}
		dr := r.textures.allocate(rt.DepthTexture, rt.Width, rt.Height, 1, internal)
		att := gpu.DepthAttachment
		if rt.DepthTexture.Format == gpu.DepthStencil {
			att = gpu.DepthStencilAttachment
		}
		r.dev.FramebufferTexture(att, gpu.Texture2D, 0, dr.tex, 0, 0)
	case rt.DepthBuffer:
		rec.depthRB = r.dev.CreateRenderbuffer()
		format, att := depthStorage(rt.StencilBuffer)
		r.dev.RenderbufferStorage(rec.depthRB, format, 0, rt.Width, rt.Height)
		r.dev.FramebufferRenderbuffer(att, rec.depthRB)
	}
	r.dev.DrawBuffers(len(rt.Textures))
	if err := r.dev.CheckFramebufferStatus(); err != nil {
		return nil, fmt.Errorf("render target %dx%d: %w", rt.Width, rt.Height, err)
	}

	if rt.Samples > 0 && !rt.IsCube {
		rec.msaaFB = r.dev.CreateFramebuffer()
		r.state.BindFramebuffer(rec.msaaFB)
		for i, t := range rt.Textures {
			internal, _ := internalFormatFor(t.Format, t.Type, t.ColorSpace == scene.SRGBColorSpace)
			rb := r.dev.CreateRenderbuffer()
			r.dev.RenderbufferStorage(rb, internal, rt.Samples, rt.Width, rt.Height)
			r.dev.FramebufferRenderbuffer(gpu.ColorAttachment0+gpu.Attachment(i), rb)
			rec.msaaColor = append(rec.msaaColor, rb)
		}
		if rt.DepthBuffer || rt.DepthTexture != nil {
			rec.msaaDepth = r.dev.CreateRenderbuffer()
			format, att := depthStorage(rt.StencilBuffer)
			r.dev.RenderbufferStorage(rec.msaaDepth, format, rt.Samples, rt.Width, rt.Height)
			r.dev.FramebufferRenderbuffer(att, rec.msaaDepth)
		}
		r.dev.DrawBuffers(len(rt.Textures))
		if err := r.dev.CheckFramebufferStatus(); err != nil {
			return nil, fmt.Errorf("multisampled render target: %w", err)
		}
	}
	Logger().Debug("render target created", "width", rt.Width, "height", rt.Height, "samples", rt.Samples, "cube", rt.IsCube)
	return rec, nil
}

func depthStorage(stencil bool) (gpu.InternalFormat, gpu.Attachment) {
	if stencil {
		return gpu.Depth24Stencil8, gpu.DepthStencilAttachment
	}
	return gpu.Depth24, gpu.DepthAttachment
}

// attachColor points the color attachments at a cube face and mip level.
func (r *renderTargets) attachColor(rt *RenderTarget, rec *targetRecord, face, level int) {
	if rec.msaaFB != 0 {
		// Draws go to the multisampled buffer; the resolve target keeps level 0.
		rec.face, rec.level = face, level
		return
	}
	for i, t := range rt.Textures {
		tex, _ := r.textures.Handle(t)
		r.dev.FramebufferTexture(gpu.ColorAttachment0+gpu.Attachment(i), t.Target, face, tex, level, 0)
	}
	rec.face, rec.level = face, level
}

// resolve blits the multisampled buffer into the textures and refreshes
// their mipmaps.
func (r *renderTargets) resolve(rt *RenderTarget) {
	rec := r.records[rt]
	if rec == nil {
		return
	}
	if rec.msaaFB != 0 {
		mask := gpu.ClearColorBit
		if rt.DepthTexture != nil {
			mask |= gpu.ClearDepthBit
		}
		r.dev.BindFramebuffer(gpu.ReadFramebuffer, rec.msaaFB)
		r.dev.BindFramebuffer(gpu.DrawFramebuffer, rec.fb)
		r.dev.BlitFramebuffer(rt.Width, rt.Height, mask, gpu.Nearest)
		r.state.InvalidateFramebuffer()
	}
	for _, t := range rt.Textures {
		if !t.GenerateMipmaps || !t.MinFilter.UsesMipmaps() {
			continue
		}
		tex, ok := r.textures.Handle(t)
		if !ok {
			continue
		}
		r.state.BindTexture(0, t.Target, tex)
		r.dev.GenerateMipmap(t.Target)
	}
}

// readFramebuffer binds the single-sampled framebuffer of rt.
func (r *renderTargets) readFramebuffer(rt *RenderTarget) (gpu.Framebuffer, bool) {
	rec := r.records[rt]
	if rec == nil {
		return 0, false
	}
	return rec.fb, true
}

func (r *renderTargets) release(rt *RenderTarget, rec *targetRecord) {
	for _, fb := range []gpu.Framebuffer{rec.fb, rec.msaaFB} {
		if fb != 0 {
			r.state.ForgetFramebuffer(fb)
			r.dev.DeleteFramebuffer(fb)
		}
	}
	for _, rb := range append([]gpu.Renderbuffer{rec.depthRB, rec.msaaDepth}, rec.msaaColor...) {
		if rb != 0 {
			r.dev.DeleteRenderbuffer(rb)
		}
	}
	delete(r.records, rt)
}

func (r *renderTargets) remove(rt *RenderTarget) {
	if rec := r.records[rt]; rec != nil {
		r.release(rt, rec)
	}
}

func (r *renderTargets) dispose() {
	for rt, rec := range r.records {
		r.release(rt, rec)
	}
}

func (r *renderTargets) forget() { clear(r.records) }
