package scene

import (
	"fmt"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/gpu"
)

// Well-known attribute names. Renderers bind them to fixed locations.
const (
	AttrPosition   = "position"
	AttrNormal     = "normal"
	AttrUV         = "uv"
	AttrColor      = "color"
	AttrTangent    = "tangent"
	AttrSkinIndex  = "skinIndex"
	AttrSkinWeight = "skinWeight"
)

// UpdateRange is a sub-region of an attribute in elements (not items).
type UpdateRange struct {
	Start int
	Count int
}

// Attribute is one vertex (or index) stream. Exactly one of Float or Uint
// holds data. Version must be bumped (NeedsUpdate) after mutating data.
type Attribute struct {
	Float      []float32
	Uint       []uint32
	ItemSize   int
	Normalized bool
	// Usage hints how often the stream is rewritten.
	Usage gpu.Usage
	// Divisor > 0 advances the attribute per instance instead of per vertex.
	Divisor int

	Version      uint64
	UpdateRanges []UpdateRange
}

func NewFloatAttribute(data []float32, itemSize int) *Attribute {
	return &Attribute{Float: data, ItemSize: itemSize}
}

func NewIndexAttribute(data []uint32) *Attribute {
	return &Attribute{Uint: data, ItemSize: 1}
}

// Len returns the number of scalar elements.
func (a *Attribute) Len() int {
	if a.Uint != nil {
		return len(a.Uint)
	}
	return len(a.Float)
}

// Count returns the number of items (vertices for vertex streams).
func (a *Attribute) Count() int {
	if a.ItemSize <= 0 {
		return 0
	}
	return a.Len() / a.ItemSize
}

// ByteLen returns the size of the data in bytes.
func (a *Attribute) ByteLen() int { return a.Len() * 4 }

// IsInteger reports whether the stream carries uint32 data.
func (a *Attribute) IsInteger() bool { return a.Uint != nil }

// NeedsUpdate marks the data as changed so the next upload sends it.
func (a *Attribute) NeedsUpdate() { a.Version++ }

// AddUpdateRange restricts the next upload to [start, start+count) elements.
// Several ranges may be registered before one upload.
func (a *Attribute) AddUpdateRange(start, count int) {
	a.UpdateRanges = append(a.UpdateRanges, UpdateRange{Start: start, Count: count})
}

func (a *Attribute) ClearUpdateRanges() { a.UpdateRanges = a.UpdateRanges[:0] }

// XYZ reads item i of a float stream with item size >= 3.
func (a *Attribute) XYZ(i int) mgl32.Vec3 {
	o := i * a.ItemSize
	return mgl32.Vec3{a.Float[o], a.Float[o+1], a.Float[o+2]}
}

// SetXYZ writes item i of a float stream with item size >= 3.
func (a *Attribute) SetXYZ(i int, x, y, z float32) {
	o := i * a.ItemSize
	a.Float[o], a.Float[o+1], a.Float[o+2] = x, y, z
}

// Group maps an index (or vertex) range to a material slot.
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// DrawRange limits drawing to a sub-range; Count < 0 means to the end.
type DrawRange struct {
	Start int
	Count int
}

var geometryIDCounter atomic.Uint32

// Geometry holds named vertex streams, an optional index, material groups
// and morph targets. It is shared between meshes; Dispose releases GPU copies.
type Geometry struct {
	ID   uint32
	Name string

	Attributes      map[string]*Attribute
	Index           *Attribute
	MorphAttributes map[string][]*Attribute
	Groups          []Group
	DrawRange       DrawRange

	BoundingSphere *Sphere
	BoundingBox    *Box3

	disposer
}

func NewGeometry(name string) *Geometry {
	return &Geometry{
		ID:              geometryIDCounter.Add(1),
		Name:            name,
		Attributes:      make(map[string]*Attribute),
		MorphAttributes: make(map[string][]*Attribute),
		DrawRange:       DrawRange{Start: 0, Count: -1},
	}
}

func (g *Geometry) SetAttribute(name string, a *Attribute) *Geometry {
	g.Attributes[name] = a
	return g
}

func (g *Geometry) Attribute(name string) *Attribute { return g.Attributes[name] }

func (g *Geometry) SetIndex(indices []uint32) *Geometry {
	g.Index = NewIndexAttribute(indices)
	return g
}

func (g *Geometry) AddGroup(start, count, materialIndex int) {
	g.Groups = append(g.Groups, Group{Start: start, Count: count, MaterialIndex: materialIndex})
}

func (g *Geometry) ClearGroups() { g.Groups = nil }

// AddMorphTarget appends a morph target for the named attribute.
func (g *Geometry) AddMorphTarget(name string, a *Attribute) {
	g.MorphAttributes[name] = append(g.MorphAttributes[name], a)
}

// MorphTargetCount returns the number of position morph targets.
func (g *Geometry) MorphTargetCount() int { return len(g.MorphAttributes[AttrPosition]) }

// Validate checks that all vertex streams agree on the vertex count.
func (g *Geometry) Validate() error {
	pos := g.Attributes[AttrPosition]
	if pos == nil {
		return fmt.Errorf("geometry %q: no %s attribute", g.Name, AttrPosition)
	}
	n := pos.Count()
	for name, a := range g.Attributes {
		if a.Divisor == 0 && a.Count() != n {
			return fmt.Errorf("geometry %q: attribute %s has %d items, want %d", g.Name, name, a.Count(), n)
		}
	}
	if g.Index != nil {
		for _, idx := range g.Index.Uint {
			if int(idx) >= n {
				return fmt.Errorf("geometry %q: index %d out of range", g.Name, idx)
			}
		}
	}
	return nil
}

// ComputeBoundingBox computes the local-space bounds of the position stream.
func (g *Geometry) ComputeBoundingBox() Box3 {
	box := EmptyBox()
	if pos := g.Attributes[AttrPosition]; pos != nil {
		for i := 0; i < pos.Count(); i++ {
			box.ExpandByPoint(pos.XYZ(i))
		}
	}
	g.BoundingBox = &box
	return box
}

// ComputeBoundingSphere computes a sphere centred on the bounding box.
func (g *Geometry) ComputeBoundingSphere() Sphere {
	box := g.ComputeBoundingBox()
	if box.IsEmpty() {
		s := Sphere{Radius: -1}
		g.BoundingSphere = &s
		return s
	}
	center := box.Center()
	var maxSq float32
	pos := g.Attributes[AttrPosition]
	for i := 0; i < pos.Count(); i++ {
		d := pos.XYZ(i).Sub(center)
		maxSq = math32.Max(maxSq, d.Dot(d))
	}
	s := Sphere{Center: center, Radius: math32.Sqrt(maxSq)}
	g.BoundingSphere = &s
	return s
}

// Dispose notifies renderers to free their GPU copies of the geometry.
func (g *Geometry) Dispose() { g.fire() }
