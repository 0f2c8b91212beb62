package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/gpu"
)

// DrawMode selects the primitive topology used when rendering a mesh.
type DrawMode int

const (
	DrawTriangles DrawMode = iota
	DrawLines
	DrawLineStrip
	DrawLineLoop
	DrawPoints
)

// Primitive maps the draw mode to a device primitive.
func (d DrawMode) Primitive() gpu.Primitive {
	switch d {
	case DrawLines:
		return gpu.Lines
	case DrawLineStrip:
		return gpu.LineStrip
	case DrawLineLoop:
		return gpu.LineLoop
	case DrawPoints:
		return gpu.Points
	}
	return gpu.Triangles
}

// AttrInstanceMatrix is the per-instance transform stream.
const AttrInstanceMatrix = "instanceMatrix"

// AttrInstanceColor is the optional per-instance colour stream.
const AttrInstanceColor = "instanceColor"

// Mesh pairs a geometry with one material per geometry group. A mesh
// without groups draws with Materials[0].
type Mesh struct {
	Geometry  *Geometry
	Materials []*Material
	Mode      DrawMode

	// InstanceMatrix holds 16 floats per instance; nil for a plain mesh.
	InstanceMatrix *Attribute
	InstanceColor  *Attribute
	InstanceCount  int

	Skeleton   *Skeleton
	BindMatrix mgl32.Mat4

	// MorphTargetInfluences weights the geometry's morph targets.
	MorphTargetInfluences []float32
}

func NewMesh(geometry *Geometry, materials ...*Material) *Mesh {
	return &Mesh{Geometry: geometry, Materials: materials, BindMatrix: mgl32.Ident4()}
}

// NewInstancedMesh returns a mesh drawn count times with identity transforms.
func NewInstancedMesh(geometry *Geometry, material *Material, count int) *Mesh {
	m := NewMesh(geometry, material)
	data := make([]float32, 16*count)
	ident := mgl32.Ident4()
	for i := 0; i < count; i++ {
		copy(data[i*16:], ident[:])
	}
	m.InstanceMatrix = NewFloatAttribute(data, 16)
	m.InstanceMatrix.Divisor = 1
	m.InstanceMatrix.Usage = gpu.DynamicDraw
	m.InstanceMatrix.Version = 1
	m.InstanceCount = count
	return m
}

// Material returns the first material.
func (m *Mesh) Material() *Material {
	if len(m.Materials) == 0 {
		return nil
	}
	return m.Materials[0]
}

// MaterialFor returns the material of a group, or nil if the slot is empty.
func (m *Mesh) MaterialFor(g Group) *Material {
	if g.MaterialIndex < 0 || g.MaterialIndex >= len(m.Materials) {
		return nil
	}
	return m.Materials[g.MaterialIndex]
}

func (m *Mesh) IsInstanced() bool { return m.InstanceMatrix != nil }

// SetMatrixAt writes the transform of instance i. Call
// InstanceMatrix.NeedsUpdate once after a batch of writes.
func (m *Mesh) SetMatrixAt(i int, mat mgl32.Mat4) {
	copy(m.InstanceMatrix.Float[i*16:i*16+16], mat[:])
}

func (m *Mesh) MatrixAt(i int) mgl32.Mat4 {
	var mat mgl32.Mat4
	copy(mat[:], m.InstanceMatrix.Float[i*16:i*16+16])
	return mat
}

// SetColorAt writes the colour of instance i, allocating the stream on first use.
func (m *Mesh) SetColorAt(i int, c mgl32.Vec3) {
	if m.InstanceColor == nil {
		data := make([]float32, 3*m.InstanceCount)
		for j := range data {
			data[j] = 1
		}
		m.InstanceColor = NewFloatAttribute(data, 3)
		m.InstanceColor.Divisor = 1
	}
	copy(m.InstanceColor.Float[i*3:i*3+3], c[:])
}

// ActiveMorphTargets returns the number of morph targets with non-zero weight.
func (m *Mesh) ActiveMorphTargets() int {
	n := 0
	for _, w := range m.MorphTargetInfluences {
		if w != 0 {
			n++
		}
	}
	return n
}

// Skeleton binds a set of bone nodes to a skinned mesh.
type Skeleton struct {
	Bones        []*Node
	BoneInverses []mgl32.Mat4
	// BoneMatrices holds 16 floats per bone, refreshed by Update.
	BoneMatrices []float32
}

// NewSkeleton computes inverse bind matrices from the bones' current world
// matrices when inverses is nil.
func NewSkeleton(bones []*Node, inverses []mgl32.Mat4) *Skeleton {
	s := &Skeleton{Bones: bones, BoneInverses: inverses, BoneMatrices: make([]float32, 16*len(bones))}
	if s.BoneInverses == nil {
		s.BoneInverses = make([]mgl32.Mat4, len(bones))
		for i, b := range bones {
			s.BoneInverses[i] = b.WorldMatrix().Inv()
		}
	}
	return s
}

// Update refreshes BoneMatrices from the bones' world matrices.
func (s *Skeleton) Update() {
	for i, b := range s.Bones {
		m := mgl32.Ident4()
		if b != nil {
			m = b.WorldMatrix().Mul4(s.BoneInverses[i])
		}
		copy(s.BoneMatrices[i*16:], m[:])
	}
}
