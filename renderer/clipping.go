package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/scene"
)

// clipping turns global and material clipping planes into the view-space
// vec4 array the shaders test against. Global planes come first; material
// planes in intersection mode come last.
type clipping struct {
	global []float32
	values []float32
}

// begin transforms the global planes for a camera.
func (c *clipping) begin(planes []scene.Plane, view mgl32.Mat4, viewNormal mgl32.Mat3) {
	c.global = c.global[:0]
	for _, p := range planes {
		v := p.ApplyMatrix(view, viewNormal).Vec4()
		c.global = append(c.global, v[:]...)
	}
}

// planes returns the values for a material along with the total plane
// count and how many of them are tested as a union.
func (c *clipping) planes(m *scene.Material, local bool, view mgl32.Mat4, viewNormal mgl32.Mat3) ([]float32, int, int) {
	c.values = append(c.values[:0], c.global...)
	n := len(c.global) / 4
	if !local || len(m.ClippingPlanes) == 0 {
		return c.values, n, n
	}
	for _, p := range m.ClippingPlanes {
		v := p.ApplyMatrix(view, viewNormal).Vec4()
		c.values = append(c.values, v[:]...)
	}
	total := n + len(m.ClippingPlanes)
	if m.ClipIntersection {
		return c.values, total, n
	}
	return c.values, total, total
}
