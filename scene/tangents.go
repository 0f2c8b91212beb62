package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ComputeTangents generates a vec4 tangent stream (xyz tangent, w handedness)
// for tangent-space normal mapping. The geometry needs position, normal and
// uv streams; triangles with a degenerate UV area are skipped.
func ComputeTangents(g *Geometry) {
	pos, nrm, uv := g.Attributes[AttrPosition], g.Attributes[AttrNormal], g.Attributes[AttrUV]
	if pos == nil || nrm == nil || uv == nil {
		return
	}
	n := pos.Count()
	tan := make([]mgl32.Vec3, n)
	bit := make([]mgl32.Vec3, n)

	uvAt := func(i uint32) (float32, float32) { return uv.Float[i*2], uv.Float[i*2+1] }

	accum := func(i0, i1, i2 uint32) {
		p0, p1, p2 := pos.XYZ(int(i0)), pos.XYZ(int(i1)), pos.XYZ(int(i2))
		e1, e2 := p1.Sub(p0), p2.Sub(p0)

		u0, v0 := uvAt(i0)
		u1, v1 := uvAt(i1)
		u2, v2 := uvAt(i2)
		du1, dv1 := u1-u0, v1-v0
		du2, dv2 := u2-u0, v2-v0

		denom := du1*dv2 - du2*dv1
		if denom == 0 {
			return
		}
		r := 1 / denom

		t := e1.Mul(dv2 * r).Sub(e2.Mul(dv1 * r))
		b := e2.Mul(du1 * r).Sub(e1.Mul(du2 * r))
		for _, i := range [3]uint32{i0, i1, i2} {
			tan[i] = tan[i].Add(t)
			bit[i] = bit[i].Add(b)
		}
	}

	if g.Index != nil {
		idx := g.Index.Uint
		for i := 0; i+2 < len(idx); i += 3 {
			accum(idx[i], idx[i+1], idx[i+2])
		}
	} else {
		for i := 0; i+2 < n; i += 3 {
			accum(uint32(i), uint32(i+1), uint32(i+2))
		}
	}

	out := make([]float32, 4*n)
	for i := 0; i < n; i++ {
		nv := nrm.XYZ(i)
		// Gram-Schmidt against the normal.
		t := tan[i].Sub(nv.Mul(nv.Dot(tan[i])))
		if t.Dot(t) < 1e-8 {
			if math32.Abs(nv[0]) < 0.9 {
				t = mgl32.Vec3{1, 0, 0}.Sub(nv.Mul(nv[0]))
			} else {
				t = mgl32.Vec3{0, 1, 0}.Sub(nv.Mul(nv[1]))
			}
		}
		t = t.Normalize()
		w := float32(1)
		if nv.Cross(t).Dot(bit[i]) < 0 {
			w = -1
		}
		out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = t[0], t[1], t[2], w
	}
	g.SetAttribute(AttrTangent, NewFloatAttribute(out, 4))
}
