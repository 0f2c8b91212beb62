package scene

import (
	"github.com/chewxy/math32"
)

// geometryBuilder accumulates interleaved-free vertex streams.
type geometryBuilder struct {
	pos, nrm, uv []float32
	idx          []uint32
}

func (b *geometryBuilder) vertex(px, py, pz, nx, ny, nz, u, v float32) uint32 {
	i := uint32(len(b.pos) / 3)
	b.pos = append(b.pos, px, py, pz)
	b.nrm = append(b.nrm, nx, ny, nz)
	b.uv = append(b.uv, u, v)
	return i
}

func (b *geometryBuilder) build(name string) *Geometry {
	g := NewGeometry(name)
	g.SetAttribute(AttrPosition, NewFloatAttribute(b.pos, 3))
	g.SetAttribute(AttrNormal, NewFloatAttribute(b.nrm, 3))
	g.SetAttribute(AttrUV, NewFloatAttribute(b.uv, 2))
	g.SetIndex(b.idx)
	g.ComputeBoundingSphere()
	return g
}

// NewBoxGeometry builds an axis-aligned box centred at the origin with one
// group per face (+X, -X, +Y, -Y, +Z, -Z), so six materials may be assigned.
func NewBoxGeometry(width, height, depth float32) *Geometry {
	var b geometryBuilder
	hx, hy, hz := width/2, height/2, depth/2

	faces := [6]struct {
		n, u, v [3]float32
	}{
		{n: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
		{n: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
		{n: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	}
	half := [3]float32{hx, hy, hz}

	for _, f := range faces {
		var corner [4]uint32
		for ci, uv := range [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
			su, sv := uv[0]*2-1, uv[1]*2-1
			var p [3]float32
			for a := 0; a < 3; a++ {
				p[a] = (f.n[a] + f.u[a]*su + f.v[a]*sv) * half[a]
			}
			corner[ci] = b.vertex(p[0], p[1], p[2], f.n[0], f.n[1], f.n[2], uv[0], uv[1])
		}
		b.idx = append(b.idx, corner[0], corner[1], corner[2], corner[2], corner[3], corner[0])
	}

	g := b.build("Box")
	for fi := 0; fi < 6; fi++ {
		g.AddGroup(fi*6, 6, fi)
	}
	return g
}

// NewPlaneGeometry builds a plane in the XY plane facing +Z.
func NewPlaneGeometry(width, height float32, segments int) *Geometry {
	if segments < 1 {
		segments = 1
	}
	var b geometryBuilder
	row := uint32(segments + 1)
	for iy := 0; iy <= segments; iy++ {
		v := float32(iy) / float32(segments)
		for ix := 0; ix <= segments; ix++ {
			u := float32(ix) / float32(segments)
			b.vertex((u-0.5)*width, (v-0.5)*height, 0, 0, 0, 1, u, v)
		}
	}
	for iy := uint32(0); iy < uint32(segments); iy++ {
		for ix := uint32(0); ix < uint32(segments); ix++ {
			a := iy*row + ix
			c := a + row
			b.idx = append(b.idx, a, a+1, c+1, c+1, c, a)
		}
	}
	return b.build("Plane")
}

// NewSphereGeometry builds a UV sphere.
func NewSphereGeometry(radius float32, segments, rings int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	var b geometryBuilder
	for ring := 0; ring <= rings; ring++ {
		phi := float32(ring) * math32.Pi / float32(rings)
		sinPhi, cosPhi := math32.Sincos(phi)
		for seg := 0; seg <= segments; seg++ {
			theta := float32(seg) * 2 * math32.Pi / float32(segments)
			sinTheta, cosTheta := math32.Sincos(theta)
			nx, ny, nz := sinPhi*cosTheta, cosPhi, sinPhi*sinTheta
			b.vertex(nx*radius, ny*radius, nz*radius, nx, ny, nz,
				float32(seg)/float32(segments), 1-float32(ring)/float32(rings))
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)
			b.idx = append(b.idx, current, current+1, next)
			b.idx = append(b.idx, current+1, next+1, next)
		}
	}
	return b.build("Sphere")
}
