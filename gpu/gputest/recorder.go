// Package gputest provides a recording gpu.Device for tests.
package gputest

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"render-pipeline/gpu"
)

// Call is one recorded device call.
type Call struct {
	Name string
	Args []any
	// Framebuffer is the draw framebuffer bound when the call was made.
	Framebuffer gpu.Framebuffer
	Program     gpu.Program
}

// State mirrors the pipeline state the device believes is current.
type State struct {
	Enabled         [gpu.NumCapabilities]bool
	BlendEquation   [2]gpu.BlendEquation
	BlendFunc       [4]gpu.BlendFactor
	DepthFunc       gpu.CompareFunc
	DepthMask       bool
	CullFace        gpu.Face
	FrontFace       gpu.Winding
	ColorMask       [4]bool
	Viewport        [4]int32
	Scissor         [4]int32
	Program         gpu.Program
	Framebuffer     gpu.Framebuffer
	ReadFramebuffer gpu.Framebuffer
	VertexArray     gpu.VertexArray
	ActiveUnit      int
	Textures        map[int]gpu.Texture
}

type program struct {
	status   gpu.ProgramStatus
	uniforms []gpu.ActiveUniform
	attribs  []gpu.ActiveAttrib
	polls    int
}

// Recorder is a fake gpu.Device that records every call. Handles are never
// reused, so a handle from before a context loss is detected when used after
// restore.
type Recorder struct {
	Caps  gpu.Capabilities
	Calls []Call
	State State

	// FailCompile returns a non-empty info log to make a shader stage fail.
	FailCompile func(stage gpu.ShaderStage, source string) string
	// CompileLatency is how many ProgramReady polls report false per program.
	CompileLatency int
	// StaleUses lists uses of handles that are not alive.
	StaleUses []string

	lost     bool
	next     uint32
	alive    map[uint32]string
	programs map[gpu.Program]*program
	sources  map[gpu.Program][2]string
}

// NewRecorder returns a Recorder with desktop-class capabilities.
func NewRecorder() *Recorder {
	return &Recorder{
		Caps: gpu.Capabilities{
			MaxTextureSize:       4096,
			MaxCubeMapSize:       4096,
			MaxTextureUnits:      16,
			MaxVertexAttribs:     16,
			MaxVertexUniforms:    1024,
			MaxSamples:           4,
			MaxAnisotropy:        16,
			FloatTextures:        true,
			HalfFloatTextures:    true,
			FloatRenderTargets:   true,
			FloatLinearFiltering: true,
		},
		State:    State{DepthMask: true, ColorMask: [4]bool{true, true, true, true}, Textures: map[int]gpu.Texture{}},
		alive:    make(map[uint32]string),
		programs: make(map[gpu.Program]*program),
		sources:  make(map[gpu.Program][2]string),
	}
}

// LoseContext simulates a lost device: every handle dies and calls become no-ops.
func (r *Recorder) LoseContext() {
	r.lost = true
	clear(r.alive)
	clear(r.programs)
	clear(r.sources)
}

// RestoreContext brings the device back with default state and no objects.
func (r *Recorder) RestoreContext() {
	r.lost = false
	r.State = State{DepthMask: true, ColorMask: [4]bool{true, true, true, true}, Textures: map[int]gpu.Texture{}}
}

// ResetCalls forgets recorded calls.
func (r *Recorder) ResetCalls() { r.Calls = r.Calls[:0] }

// Count returns how many calls named name were recorded.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Named returns the calls named name in order.
func (r *Recorder) Named(name string) []Call {
	var out []Call
	for _, c := range r.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Draws returns every draw call in order.
func (r *Recorder) Draws() []Call {
	var out []Call
	for _, c := range r.Calls {
		if strings.HasPrefix(c.Name, "Draw") && c.Name != "DrawBuffers" {
			out = append(out, c)
		}
	}
	return out
}

// LiveObjects returns how many handles of kind are alive.
func (r *Recorder) LiveObjects(kind string) int {
	n := 0
	for _, k := range r.alive {
		if k == kind {
			n++
		}
	}
	return n
}

// Sources returns the vertex and fragment source of a program.
func (r *Recorder) Sources(p gpu.Program) (string, string) {
	s := r.sources[p]
	return s[0], s[1]
}

func (r *Recorder) record(name string, args ...any) {
	if r.lost {
		return
	}
	r.Calls = append(r.Calls, Call{Name: name, Args: args, Framebuffer: r.State.Framebuffer, Program: r.State.Program})
}

func (r *Recorder) create(kind string) uint32 {
	if r.lost {
		return 0
	}
	r.next++
	r.alive[r.next] = kind
	return r.next
}

func (r *Recorder) use(kind string, h uint32) {
	if h == 0 || r.lost {
		return
	}
	if k, ok := r.alive[h]; !ok || k != kind {
		r.StaleUses = append(r.StaleUses, fmt.Sprintf("%s %d", kind, h))
	}
}

func (r *Recorder) destroy(kind string, h uint32) {
	r.use(kind, h)
	delete(r.alive, h)
}

func (r *Recorder) Capabilities() gpu.Capabilities { return r.Caps }

func (r *Recorder) IsContextLost() bool { return r.lost }

func (r *Recorder) Enable(c gpu.Capability) {
	r.record("Enable", c)
	r.State.Enabled[c] = true
}

func (r *Recorder) Disable(c gpu.Capability) {
	r.record("Disable", c)
	r.State.Enabled[c] = false
}

func (r *Recorder) BlendEquationSeparate(rgb, alpha gpu.BlendEquation) {
	r.record("BlendEquationSeparate", rgb, alpha)
	r.State.BlendEquation = [2]gpu.BlendEquation{rgb, alpha}
}

func (r *Recorder) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha gpu.BlendFactor) {
	r.record("BlendFuncSeparate", srcRGB, dstRGB, srcAlpha, dstAlpha)
	r.State.BlendFunc = [4]gpu.BlendFactor{srcRGB, dstRGB, srcAlpha, dstAlpha}
}

func (r *Recorder) BlendColor(cr, cg, cb, ca float32) { r.record("BlendColor", cr, cg, cb, ca) }

func (r *Recorder) DepthFunc(f gpu.CompareFunc) {
	r.record("DepthFunc", f)
	r.State.DepthFunc = f
}

func (r *Recorder) DepthMask(write bool) {
	r.record("DepthMask", write)
	r.State.DepthMask = write
}

func (r *Recorder) StencilFunc(f gpu.CompareFunc, ref int32, mask uint32) {
	r.record("StencilFunc", f, ref, mask)
}

func (r *Recorder) StencilMask(mask uint32) { r.record("StencilMask", mask) }

func (r *Recorder) StencilOp(fail, zfail, zpass gpu.StencilOp) {
	r.record("StencilOp", fail, zfail, zpass)
}

func (r *Recorder) CullFace(f gpu.Face) {
	r.record("CullFace", f)
	r.State.CullFace = f
}

func (r *Recorder) FrontFace(w gpu.Winding) {
	r.record("FrontFace", w)
	r.State.FrontFace = w
}

func (r *Recorder) PolygonOffset(factor, units float32) { r.record("PolygonOffset", factor, units) }

func (r *Recorder) ColorMask(cr, cg, cb, ca bool) {
	r.record("ColorMask", cr, cg, cb, ca)
	r.State.ColorMask = [4]bool{cr, cg, cb, ca}
}

func (r *Recorder) Scissor(x, y, w, h int32) {
	r.record("Scissor", x, y, w, h)
	r.State.Scissor = [4]int32{x, y, w, h}
}

func (r *Recorder) Viewport(x, y, w, h int32) {
	r.record("Viewport", x, y, w, h)
	r.State.Viewport = [4]int32{x, y, w, h}
}

func (r *Recorder) ClearColor(cr, cg, cb, ca float32) { r.record("ClearColor", cr, cg, cb, ca) }

func (r *Recorder) Clear(mask gpu.ClearMask) { r.record("Clear", mask) }

func (r *Recorder) LineWidth(w float32) { r.record("LineWidth", w) }

func (r *Recorder) CreateBuffer() gpu.Buffer {
	r.record("CreateBuffer")
	return gpu.Buffer(r.create("buffer"))
}

func (r *Recorder) DeleteBuffer(b gpu.Buffer) {
	r.record("DeleteBuffer", b)
	r.destroy("buffer", uint32(b))
}

func (r *Recorder) BufferData(kind gpu.BufferKind, b gpu.Buffer, data []byte, usage gpu.Usage) {
	r.use("buffer", uint32(b))
	r.record("BufferData", kind, b, len(data), usage)
}

func (r *Recorder) BufferSubData(kind gpu.BufferKind, b gpu.Buffer, offset int, data []byte) {
	r.use("buffer", uint32(b))
	r.record("BufferSubData", kind, b, offset, len(data))
}

func (r *Recorder) CreateVertexArray() gpu.VertexArray {
	r.record("CreateVertexArray")
	return gpu.VertexArray(r.create("vertexarray"))
}

func (r *Recorder) DeleteVertexArray(v gpu.VertexArray) {
	r.record("DeleteVertexArray", v)
	r.destroy("vertexarray", uint32(v))
}

func (r *Recorder) BindVertexArray(v gpu.VertexArray) {
	r.use("vertexarray", uint32(v))
	r.record("BindVertexArray", v)
	r.State.VertexArray = v
}

func (r *Recorder) VertexAttrib(location uint32, layout gpu.AttribLayout) {
	r.use("buffer", uint32(layout.Buffer))
	r.record("VertexAttrib", location, layout)
}

func (r *Recorder) DisableVertexAttrib(location uint32) { r.record("DisableVertexAttrib", location) }

func (r *Recorder) BindIndexBuffer(b gpu.Buffer) {
	r.use("buffer", uint32(b))
	r.record("BindIndexBuffer", b)
}

func (r *Recorder) CreateTexture() gpu.Texture {
	r.record("CreateTexture")
	return gpu.Texture(r.create("texture"))
}

func (r *Recorder) DeleteTexture(t gpu.Texture) {
	r.record("DeleteTexture", t)
	r.destroy("texture", uint32(t))
}

func (r *Recorder) ActiveTexture(unit int) {
	r.record("ActiveTexture", unit)
	r.State.ActiveUnit = unit
}

func (r *Recorder) BindTexture(target gpu.TextureTarget, t gpu.Texture) {
	r.use("texture", uint32(t))
	r.record("BindTexture", target, t)
	r.State.Textures[r.State.ActiveUnit] = t
}

func (r *Recorder) TexImage(img gpu.Image) {
	r.record("TexImage", img.Target, img.Face, img.Level, img.Internal, img.Width, img.Height, img.Depth)
}

func (r *Recorder) TexSubImage(img gpu.Image) {
	r.record("TexSubImage", img.Target, img.Face, img.Level, img.Z, img.Width, img.Height, img.Depth)
}

func (r *Recorder) TexParameters(target gpu.TextureTarget, p gpu.SamplerParams) {
	r.record("TexParameters", target, p)
}

func (r *Recorder) GenerateMipmap(target gpu.TextureTarget) { r.record("GenerateMipmap", target) }

var (
	uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*(?:\[\s*(\w+)\s*\])?\s*;`)
	defineDecl  = regexp.MustCompile(`(?m)^\s*#define\s+(\w+)\s+(\d+)\s*$`)
	inDecl      = regexp.MustCompile(`(?m)^\s*in\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*;`)
)

var uniformTypes = map[string]gpu.UniformType{
	"float":           gpu.UniformFloat,
	"vec2":            gpu.UniformVec2,
	"vec3":            gpu.UniformVec3,
	"vec4":            gpu.UniformVec4,
	"int":             gpu.UniformInt,
	"ivec2":           gpu.UniformIVec2,
	"ivec3":           gpu.UniformIVec3,
	"ivec4":           gpu.UniformIVec4,
	"bool":            gpu.UniformBool,
	"mat3":            gpu.UniformMat3,
	"mat4":            gpu.UniformMat4,
	"sampler2D":       gpu.UniformSampler2D,
	"samplerCube":     gpu.UniformSamplerCube,
	"sampler2DArray":  gpu.UniformSampler2DArray,
	"sampler3D":       gpu.UniformSampler3D,
	"sampler2DShadow": gpu.UniformSampler2DShadow,
}

// CreateProgram reflects uniforms by scanning declarations in both sources,
// ignoring preprocessor conditionals.
func (r *Recorder) CreateProgram(vertex, fragment string, attribs map[string]uint32) gpu.Program {
	r.record("CreateProgram")
	p := gpu.Program(r.create("program"))
	if p == 0 {
		return 0
	}
	st := gpu.ProgramStatus{VertexOK: true, FragmentOK: true, Linked: true}
	if r.FailCompile != nil {
		if log := r.FailCompile(gpu.VertexStage, vertex); log != "" {
			st.VertexOK, st.Linked, st.VertexLog = false, false, log
		}
		if log := r.FailCompile(gpu.FragmentStage, fragment); log != "" {
			st.FragmentOK, st.Linked, st.FragmentLog = false, false, log
		}
	}
	prog := &program{status: st}
	if st.OK() {
		prog.uniforms = reflectUniforms(vertex, fragment)
		for _, m := range inDecl.FindAllStringSubmatch(vertex, -1) {
			if loc, ok := attribs[m[1]]; ok {
				prog.attribs = append(prog.attribs, gpu.ActiveAttrib{Name: m[1], Location: int32(loc)})
			}
		}
	}
	r.programs[p] = prog
	r.sources[p] = [2]string{vertex, fragment}
	return p
}

func reflectUniforms(sources ...string) []gpu.ActiveUniform {
	var out []gpu.ActiveUniform
	seen := map[string]bool{}
	for _, src := range sources {
		defines := map[string]int{}
		for _, m := range defineDecl.FindAllStringSubmatch(src, -1) {
			n, _ := strconv.Atoi(m[2])
			defines[m[1]] = n
		}
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			typ, ok := uniformTypes[m[1]]
			if !ok || seen[m[2]] {
				continue
			}
			size := 1
			if m[3] != "" {
				if n, err := strconv.Atoi(m[3]); err == nil {
					size = n
				} else if n, ok := defines[m[3]]; ok {
					size = n
				}
			}
			if size == 0 {
				continue
			}
			seen[m[2]] = true
			out = append(out, gpu.ActiveUniform{Name: m[2], Type: typ, Size: size, Location: int32(len(out))})
		}
	}
	return out
}

func (r *Recorder) ProgramReady(p gpu.Program) bool {
	r.use("program", uint32(p))
	prog := r.programs[p]
	if prog == nil {
		return false
	}
	if prog.polls < r.CompileLatency {
		prog.polls++
		return false
	}
	return true
}

func (r *Recorder) ProgramStatus(p gpu.Program) gpu.ProgramStatus {
	r.use("program", uint32(p))
	if prog := r.programs[p]; prog != nil {
		return prog.status
	}
	return gpu.ProgramStatus{}
}

func (r *Recorder) ActiveUniforms(p gpu.Program) []gpu.ActiveUniform {
	if prog := r.programs[p]; prog != nil {
		return slices.Clone(prog.uniforms)
	}
	return nil
}

func (r *Recorder) ActiveAttribs(p gpu.Program) []gpu.ActiveAttrib {
	if prog := r.programs[p]; prog != nil {
		return slices.Clone(prog.attribs)
	}
	return nil
}

func (r *Recorder) DeleteProgram(p gpu.Program) {
	r.record("DeleteProgram", p)
	r.destroy("program", uint32(p))
	delete(r.programs, p)
}

func (r *Recorder) UseProgram(p gpu.Program) {
	r.use("program", uint32(p))
	r.record("UseProgram", p)
	r.State.Program = p
}

func (r *Recorder) UniformFloats(location int32, typ gpu.UniformType, v []float32) {
	r.record("UniformFloats", location, typ, slices.Clone(v))
}

func (r *Recorder) UniformInts(location int32, typ gpu.UniformType, v []int32) {
	r.record("UniformInts", location, typ, slices.Clone(v))
}

func (r *Recorder) CreateFramebuffer() gpu.Framebuffer {
	r.record("CreateFramebuffer")
	return gpu.Framebuffer(r.create("framebuffer"))
}

func (r *Recorder) DeleteFramebuffer(f gpu.Framebuffer) {
	r.record("DeleteFramebuffer", f)
	r.destroy("framebuffer", uint32(f))
}

func (r *Recorder) BindFramebuffer(target gpu.FramebufferTarget, f gpu.Framebuffer) {
	r.use("framebuffer", uint32(f))
	switch target {
	case gpu.DrawFramebuffer:
		r.State.Framebuffer = f
	case gpu.ReadFramebuffer:
		r.State.ReadFramebuffer = f
	default:
		r.State.Framebuffer, r.State.ReadFramebuffer = f, f
	}
	r.record("BindFramebuffer", target, f)
}

func (r *Recorder) FramebufferTexture(att gpu.Attachment, target gpu.TextureTarget, face int, t gpu.Texture, level, layer int) {
	r.use("texture", uint32(t))
	r.record("FramebufferTexture", att, target, face, t, level, layer)
}

func (r *Recorder) CreateRenderbuffer() gpu.Renderbuffer {
	r.record("CreateRenderbuffer")
	return gpu.Renderbuffer(r.create("renderbuffer"))
}

func (r *Recorder) DeleteRenderbuffer(rb gpu.Renderbuffer) {
	r.record("DeleteRenderbuffer", rb)
	r.destroy("renderbuffer", uint32(rb))
}

func (r *Recorder) RenderbufferStorage(rb gpu.Renderbuffer, format gpu.InternalFormat, samples, width, height int) {
	r.use("renderbuffer", uint32(rb))
	r.record("RenderbufferStorage", rb, format, samples, width, height)
}

func (r *Recorder) FramebufferRenderbuffer(att gpu.Attachment, rb gpu.Renderbuffer) {
	r.use("renderbuffer", uint32(rb))
	r.record("FramebufferRenderbuffer", att, rb)
}

func (r *Recorder) DrawBuffers(n int) { r.record("DrawBuffers", n) }

func (r *Recorder) CheckFramebufferStatus() error {
	r.record("CheckFramebufferStatus")
	return nil
}

func (r *Recorder) BlitFramebuffer(width, height int, mask gpu.ClearMask, filter gpu.Filter) {
	r.record("BlitFramebuffer", width, height, mask, filter)
}

// ReadPixels fills out with zeros.
func (r *Recorder) ReadPixels(x, y, w, h int, format gpu.Format, typ gpu.DataType, out []byte) error {
	r.record("ReadPixels", x, y, w, h, format, typ)
	need := w * h * format.Channels() * typ.Size()
	if len(out) < need {
		return fmt.Errorf("read pixels: buffer holds %d bytes, need %d", len(out), need)
	}
	clear(out[:need])
	return nil
}

func (r *Recorder) DrawArrays(mode gpu.Primitive, first, count int) {
	r.record("DrawArrays", mode, first, count)
}

func (r *Recorder) DrawElements(mode gpu.Primitive, count, offset int) {
	r.record("DrawElements", mode, count, offset)
}

func (r *Recorder) DrawArraysInstanced(mode gpu.Primitive, first, count, instances int) {
	r.record("DrawArraysInstanced", mode, first, count, instances)
}

func (r *Recorder) DrawElementsInstanced(mode gpu.Primitive, count, offset, instances int) {
	r.record("DrawElementsInstanced", mode, count, offset, instances)
}

var _ gpu.Device = (*Recorder)(nil)
