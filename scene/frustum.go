package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a half-space: normal·p + D = 0.
// Normal points into the "inside" of the frustum.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// DistanceTo returns the signed distance from a point to the plane.
// Positive means on the "inside" (same side as Normal).
func (p Plane) DistanceTo(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Vec4 packs the plane as (normal, D) for uniform upload.
func (p Plane) Vec4() mgl32.Vec4 {
	return mgl32.Vec4{p.Normal[0], p.Normal[1], p.Normal[2], p.D}
}

// ApplyMatrix transforms the plane by m; normalMatrix must be the
// inverse-transpose of m's upper 3x3.
func (p Plane) ApplyMatrix(m mgl32.Mat4, normalMatrix mgl32.Mat3) Plane {
	ref := mgl32.TransformCoordinate(p.Normal.Mul(-p.D), m)
	n := normalMatrix.Mul3x1(p.Normal).Normalize()
	return Plane{Normal: n, D: -ref.Dot(n)}
}

// Frustum holds the six clip planes of a view frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumFromMatrix extracts the six planes from a projection * view matrix
// (Gribb/Hartmann). mgl32 matrices are column-major, so Row(i) is the i-th
// row of the clip transform.
func FrustumFromMatrix(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)

	var f Frustum
	f.Planes[0] = normalizePlane(r3.Add(r0))
	f.Planes[1] = normalizePlane(r3.Sub(r0))
	f.Planes[2] = normalizePlane(r3.Add(r1))
	f.Planes[3] = normalizePlane(r3.Sub(r1))
	f.Planes[4] = normalizePlane(r3.Add(r2))
	f.Planes[5] = normalizePlane(r3.Sub(r2))
	return f
}

func normalizePlane(v mgl32.Vec4) Plane {
	l := v.Vec3().Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: v.Vec3().Mul(1 / l), D: v[3] / l}
}

// IntersectsSphere returns false if the sphere is completely outside.
func (f *Frustum) IntersectsSphere(s Sphere) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceTo(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// IntersectsBox returns false if the box is completely outside the frustum.
// Uses the "p-vertex" test: the corner most aligned with each plane normal.
func (f *Frustum) IntersectsBox(box Box3) bool {
	for i := range f.Planes {
		p := f.Planes[i]
		pv := box.Max
		if p.Normal[0] < 0 {
			pv[0] = box.Min[0]
		}
		if p.Normal[1] < 0 {
			pv[1] = box.Min[1]
		}
		if p.Normal[2] < 0 {
			pv[2] = box.Min[2]
		}
		if p.DistanceTo(pv) < 0 {
			return false
		}
	}
	return true
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Empty reports a sphere that encloses nothing.
func (s Sphere) Empty() bool { return s.Radius < 0 }

// ApplyMatrix transforms the center and scales the radius by the largest axis scale.
func (s Sphere) ApplyMatrix(m mgl32.Mat4) Sphere {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	return Sphere{
		Center: mgl32.TransformCoordinate(s.Center, m),
		Radius: s.Radius * math32.Max(sx, math32.Max(sy, sz)),
	}
}

// Box3 is an axis-aligned bounding box.
type Box3 struct {
	Min, Max mgl32.Vec3
}

// EmptyBox returns an inverted box that any point expands.
func EmptyBox() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b Box3) IsEmpty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

func (b *Box3) ExpandByPoint(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
}

func (b Box3) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// ApplyMatrix transforms the 8 corners and returns their bounds.
func (b Box3) ApplyMatrix(m mgl32.Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}
	mn, mx := b.Min, b.Max
	corners := [8]mgl32.Vec3{
		{mn[0], mn[1], mn[2]},
		{mx[0], mn[1], mn[2]},
		{mn[0], mx[1], mn[2]},
		{mx[0], mx[1], mn[2]},
		{mn[0], mn[1], mx[2]},
		{mx[0], mn[1], mx[2]},
		{mn[0], mx[1], mx[2]},
		{mx[0], mx[1], mx[2]},
	}
	out := EmptyBox()
	for _, c := range corners {
		out.ExpandByPoint(mgl32.TransformCoordinate(c, m))
	}
	return out
}
