package renderer

import "render-pipeline/scene"

// materialProperties is the renderer's bookkeeping for one material.
type materialProperties struct {
	version  uint64
	derived  bool
	features MaterialFeatures

	// programs holds every variant the material acquired, by key.
	programs map[string]*Program
	// params and program are the variant used by the last draw.
	params  ProgramParameters
	program *Program

	// failedVersion is the material version whose failure was logged.
	failedVersion uint64
	failureLogged bool
	// err is the failure of the last draw, nil once a program is usable.
	err error
}

// materialCache derives features once per material version and releases
// the material's programs when it is disposed.
type materialCache struct {
	programs  *ProgramCache
	props     map[*scene.Material]*materialProperties
	// listening survives forget; a material is subscribed once until it fires.
	listening map[*scene.Material]bool
}

func newMaterialCache(programs *ProgramCache) *materialCache {
	return &materialCache{
		programs:  programs,
		props:     make(map[*scene.Material]*materialProperties),
		listening: make(map[*scene.Material]bool),
	}
}

func (c *materialCache) get(m *scene.Material) *materialProperties {
	p := c.props[m]
	if p == nil {
		p = &materialProperties{programs: make(map[string]*Program)}
		c.props[m] = p
		if !c.listening[m] {
			c.listening[m] = true
			m.OnDispose(func() {
				delete(c.listening, m)
				c.release(m)
			})
		}
	}
	if !p.derived || p.version != m.Version {
		p.features = deriveFeatures(m)
		p.version, p.derived = m.Version, true
		p.program = nil
	}
	return p
}

// program returns the material's program for params, acquiring it from the
// cache the first time this material needs the variant.
func (c *materialCache) program(m *scene.Material, p *materialProperties, params *ProgramParameters) (*Program, error) {
	if p.program != nil && p.params == *params {
		return p.program, nil
	}
	key := params.Key()
	prog := p.programs[key]
	if prog == nil || prog.err != nil {
		var src *scene.ShaderSource
		if m.Kind == scene.KindShader {
			src = m.Shader
		}
		var err error
		if prog, err = c.programs.Acquire(params, src); err != nil {
			return nil, err
		}
		p.programs[key] = prog
	}
	p.params, p.program = *params, prog
	return prog, nil
}

// batch returns the ID of the program m drew with last, or zero.
func (c *materialCache) batch(m *scene.Material) int {
	if p := c.props[m]; p != nil && p.program != nil && p.version == m.Version {
		return p.program.ID
	}
	return 0
}

// logFailure reports whether the failure of m at its current version
// still needs logging, and marks it logged.
func (p *materialProperties) logFailure(m *scene.Material) bool {
	if p.failureLogged && p.failedVersion == m.Version {
		return false
	}
	p.failureLogged, p.failedVersion = true, m.Version
	return true
}

// release returns every program held by m to the cache.
func (c *materialCache) release(m *scene.Material) {
	p := c.props[m]
	if p == nil {
		return
	}
	for _, prog := range p.programs {
		c.programs.Release(prog)
	}
	delete(c.props, m)
}

// Dispose releases the programs of every material.
func (c *materialCache) dispose() {
	for m := range c.props {
		c.release(m)
	}
}

func (c *materialCache) forget() { clear(c.props) }
