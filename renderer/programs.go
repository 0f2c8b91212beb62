package renderer

import (
	"cmp"
	"fmt"
	"slices"

	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// Program is a linked shader program shared by every material whose
// parameters produce the same key.
type Program struct {
	ID     int
	Key    string
	Handle gpu.Program
	Params ProgramParameters

	uniforms *uniformTable
	attribs  map[string]int32

	usedTimes int
	ready     bool
	err       *ShaderCompileError

	vertex, fragment string
}

// UsedTimes returns how many acquirers hold the program.
func (p *Program) UsedTimes() int { return p.usedTimes }

// Ready reports whether the program finished compiling successfully.
func (p *Program) Ready() bool { return p.ready && p.err == nil }

// Sources returns the assembled vertex and fragment source.
func (p *Program) Sources() (string, string) { return p.vertex, p.fragment }

// ProgramCache compiles programs on demand and shares them by key.
type ProgramCache struct {
	dev  gpu.Device
	info *Info

	programs map[string]*Program
	// failed remembers compile failures by key so a broken variant is not
	// recompiled every frame.
	failed map[string]*ShaderCompileError
	nextID int
}

func NewProgramCache(dev gpu.Device, info *Info) *ProgramCache {
	return &ProgramCache{
		dev:      dev,
		info:     info,
		programs: make(map[string]*Program),
		failed:   make(map[string]*ShaderCompileError),
	}
}

// Acquire returns the program for params, compiling it on first use. The
// usage count is incremented; pair every Acquire with a Release.
func (c *ProgramCache) Acquire(params *ProgramParameters, custom *scene.ShaderSource) (*Program, error) {
	key := params.Key()
	if p, ok := c.programs[key]; ok {
		p.usedTimes++
		return p, nil
	}
	if err, ok := c.failed[key]; ok {
		return nil, err
	}

	vbody, fbody := templateFor(custom)
	vs, fs, err := programSources(params, vbody, fbody)
	if err != nil {
		cerr := &ShaderCompileError{Key: key, Log: err.Error()}
		c.failed[key] = cerr
		return nil, cerr
	}
	p := c.create(key, vs, fs)
	p.Params = *params
	p.usedTimes = 1
	Logger().Debug("program compile", "key", key, "id", p.ID)
	return p, nil
}

// create compiles a program from complete sources.
func (c *ProgramCache) create(key, vs, fs string) *Program {
	c.nextID++
	p := &Program{
		ID:       c.nextID,
		Key:      key,
		Handle:   c.dev.CreateProgram(vs, fs, attribLocations),
		vertex:   vs,
		fragment: fs,
	}
	c.programs[key] = p
	c.info.Memory.Programs++
	return p
}

// Poll reports whether p can be used. A program that finished compiling
// has its status checked once: failures are cached by key, the handle is
// deleted and the compile error returned.
func (c *ProgramCache) Poll(p *Program) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if p.ready {
		return true, nil
	}
	if !c.dev.ProgramReady(p.Handle) {
		return false, nil
	}
	st := c.dev.ProgramStatus(p.Handle)
	if !st.OK() {
		p.err = statusError(p, st)
		c.failed[p.Key] = p.err
		c.drop(p)
		return false, p.err
	}
	p.ready = true
	p.uniforms = newUniformTable(c.dev, c.dev.ActiveUniforms(p.Handle))
	p.attribs = make(map[string]int32)
	for _, a := range c.dev.ActiveAttribs(p.Handle) {
		p.attribs[a.Name] = a.Location
	}
	return true, nil
}

func statusError(p *Program, st gpu.ProgramStatus) *ShaderCompileError {
	switch {
	case !st.VertexOK:
		return newCompileError(gpu.VertexStage, p.Key, p.vertex, st.VertexLog)
	case !st.FragmentOK:
		return newCompileError(gpu.FragmentStage, p.Key, p.fragment, st.FragmentLog)
	}
	err := newCompileError(gpu.FragmentStage, p.Key, p.fragment, st.LinkLog)
	err.Link = true
	return err
}

// Release decrements the usage count of p and deletes it at zero.
func (c *ProgramCache) Release(p *Program) {
	if p == nil || p.usedTimes == 0 {
		return
	}
	p.usedTimes--
	if p.usedTimes == 0 {
		c.drop(p)
	}
}

func (c *ProgramCache) drop(p *Program) {
	if c.programs[p.Key] != p {
		return
	}
	delete(c.programs, p.Key)
	c.dev.DeleteProgram(p.Handle)
	c.info.Memory.Programs--
}

// Failure returns the cached compile error of key, if any.
func (c *ProgramCache) Failure(key string) (*ShaderCompileError, bool) {
	err, ok := c.failed[key]
	return err, ok
}

// Len returns the number of live programs.
func (c *ProgramCache) Len() int { return len(c.programs) }

// Programs returns the live programs in creation order.
func (c *ProgramCache) Programs() []*Program {
	out := make([]*Program, 0, len(c.programs))
	for _, p := range c.programs {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Program) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// internal returns a renderer-owned program built from library chunks. It
// is never released by materials.
func (c *ProgramCache) internal(key, vertexChunk, fragmentChunk string, defines ...string) (*Program, error) {
	if p, ok := c.programs[key]; ok {
		return p, nil
	}
	if err, ok := c.failed[key]; ok {
		return nil, err
	}
	params := &ProgramParameters{Precision: "highp"}
	vs, fs, err := programSources(params, chunks[vertexChunk], chunks[fragmentChunk])
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", key, err)
	}
	var prefix string
	for _, d := range defines {
		prefix += "#define " + d + "\n"
	}
	p := c.create(key, injectDefines(vs, prefix), injectDefines(fs, prefix))
	p.usedTimes = 1
	return p, nil
}

// injectDefines inserts extra define lines after the version and precision
// lines.
func injectDefines(src, defines string) string {
	if defines == "" {
		return src
	}
	n := 0
	for i := range src {
		if src[i] == '\n' {
			n++
			if n == 2 {
				return src[:i+1] + defines + src[i+1:]
			}
		}
	}
	return src + "\n" + defines
}

// Dispose deletes every program and forgets cached failures.
func (c *ProgramCache) Dispose() {
	for _, p := range c.programs {
		c.dev.DeleteProgram(p.Handle)
	}
	clear(c.programs)
	clear(c.failed)
	c.info.Memory.Programs = 0
}

// forget drops every record without device calls; the handles died with
// the context.
func (c *ProgramCache) forget() {
	clear(c.programs)
	clear(c.failed)
	c.info.Memory.Programs = 0
}
