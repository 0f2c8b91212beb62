package renderer

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
	"render-pipeline/gpu"
)

type uniform struct {
	gpu.ActiveUniform
	floats []float32
	ints   []int32
	set    bool
}

// uniformTable maps uniform names to locations and remembers the last
// value uploaded to each, so unchanged values cost no device call.
type uniformTable struct {
	dev    gpu.Device
	byName map[string]*uniform
	// scratch backs the small fixed-size setters.
	scratch [16]float32
}

func newUniformTable(dev gpu.Device, active []gpu.ActiveUniform) *uniformTable {
	t := &uniformTable{dev: dev, byName: make(map[string]*uniform, len(active))}
	for _, a := range active {
		t.byName[a.Name] = &uniform{ActiveUniform: a}
	}
	return t
}

func (t *uniformTable) has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

func (t *uniformTable) lookup(name string) *uniform {
	return t.byName[name]
}

// floats uploads v to name when it differs from the cached value. Values
// longer than the declared array are truncated.
func (t *uniformTable) floats(name string, v []float32) {
	u := t.byName[name]
	if u == nil || u.Type.IsSampler() {
		return
	}
	if n := u.Size * u.Type.Components(); len(v) > n {
		v = v[:n]
	}
	if u.set && slices.Equal(u.floats, v) {
		return
	}
	u.floats = append(u.floats[:0], v...)
	u.set = true
	t.dev.UniformFloats(u.Location, u.Type, v)
}

func (t *uniformTable) ints(name string, v []int32) {
	u := t.byName[name]
	if u == nil {
		return
	}
	if len(v) > u.Size*u.Type.Components() {
		v = v[:u.Size*u.Type.Components()]
	}
	if u.set && slices.Equal(u.ints, v) {
		return
	}
	u.ints = append(u.ints[:0], v...)
	u.set = true
	t.dev.UniformInts(u.Location, u.Type, v)
}

func (t *uniformTable) float(name string, v float32) {
	t.scratch[0] = v
	t.floats(name, t.scratch[:1])
}

func (t *uniformTable) vec2(name string, v mgl32.Vec2) {
	copy(t.scratch[:], v[:])
	t.floats(name, t.scratch[:2])
}

func (t *uniformTable) vec3(name string, v mgl32.Vec3) {
	copy(t.scratch[:], v[:])
	t.floats(name, t.scratch[:3])
}

func (t *uniformTable) vec4(name string, v mgl32.Vec4) {
	copy(t.scratch[:], v[:])
	t.floats(name, t.scratch[:4])
}

func (t *uniformTable) color(name string, c core.Color) {
	t.vec3(name, c.Vec3())
}

func (t *uniformTable) mat3(name string, m mgl32.Mat3) {
	copy(t.scratch[:], m[:])
	t.floats(name, t.scratch[:9])
}

func (t *uniformTable) mat4(name string, m mgl32.Mat4) {
	copy(t.scratch[:], m[:])
	t.floats(name, t.scratch[:16])
}

func (t *uniformTable) boolean(name string, v bool) {
	var i [1]int32
	if v {
		i[0] = 1
	}
	t.ints(name, i[:])
}

// setAny uploads a user-supplied shader material value.
func (t *uniformTable) setAny(name string, v any) bool {
	switch x := v.(type) {
	case float32:
		t.float(name, x)
	case float64:
		t.float(name, float32(x))
	case int:
		if u := t.lookup(name); u != nil && u.Type == gpu.UniformFloat {
			t.float(name, float32(x))
		} else {
			t.ints(name, []int32{int32(x)})
		}
	case int32:
		t.ints(name, []int32{x})
	case bool:
		t.boolean(name, x)
	case mgl32.Vec2:
		t.vec2(name, x)
	case mgl32.Vec3:
		t.vec3(name, x)
	case mgl32.Vec4:
		t.vec4(name, x)
	case mgl32.Mat3:
		t.mat3(name, x)
	case mgl32.Mat4:
		t.mat4(name, x)
	case core.Color:
		t.color(name, x)
	case []float32:
		t.floats(name, x)
	case []int32:
		t.ints(name, x)
	default:
		return false
	}
	return true
}
