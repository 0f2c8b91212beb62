package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFrustumCullsSpheres(t *testing.T) {
	cam := NewPerspectiveCamera(60, 1, 0.1, 100)
	cam.LookAt(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := cam.Frustum()

	assert.True(t, f.IntersectsSphere(Sphere{Center: mgl32.Vec3{}, Radius: 1}))
	assert.False(t, f.IntersectsSphere(Sphere{Center: mgl32.Vec3{0, 0, 20}, Radius: 1}), "behind the camera")
	assert.False(t, f.IntersectsSphere(Sphere{Center: mgl32.Vec3{100, 0, 0}, Radius: 1}))
	assert.True(t, f.IntersectsSphere(Sphere{Center: mgl32.Vec3{100, 0, 0}, Radius: 200}))
	assert.False(t, f.IntersectsSphere(Sphere{Center: mgl32.Vec3{0, 0, -200}, Radius: 1}), "past the far plane")
}

func TestFrustumBox(t *testing.T) {
	cam := NewOrthographicCamera(-1, 1, 1, -1, 0.1, 10)
	f := cam.Frustum()
	assert.True(t, f.IntersectsBox(Box3{Min: mgl32.Vec3{-0.5, -0.5, -2}, Max: mgl32.Vec3{0.5, 0.5, -1}}))
	assert.False(t, f.IntersectsBox(Box3{Min: mgl32.Vec3{2, 2, -2}, Max: mgl32.Vec3{3, 3, -1}}))
}

func TestSphereApplyMatrix(t *testing.T) {
	s := Sphere{Center: mgl32.Vec3{1, 0, 0}, Radius: 1}
	m := mgl32.Translate3D(0, 5, 0).Mul4(mgl32.Scale3D(1, 3, 2))
	out := s.ApplyMatrix(m)
	assert.True(t, out.Center.ApproxEqual(mgl32.Vec3{1, 5, 0}))
	assert.InDelta(t, 3, out.Radius, 1e-5)
}

func TestPlaneApplyMatrix(t *testing.T) {
	p := Plane{Normal: mgl32.Vec3{0, 1, 0}, D: 0}
	m := mgl32.Translate3D(0, 2, 0)
	out := p.ApplyMatrix(m, m.Inv().Transpose().Mat3())
	assert.InDelta(t, -2, out.D, 1e-5)
	assert.InDelta(t, 1, out.DistanceTo(mgl32.Vec3{0, 3, 0}), 1e-5)
}
