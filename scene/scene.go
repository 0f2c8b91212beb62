package scene

import (
	"github.com/chewxy/math32"

	"render-pipeline/core"
)

type FogKind int

const (
	LinearFog FogKind = iota
	ExpFog2
)

// Fog blends distant fragments towards Color.
type Fog struct {
	Kind    FogKind
	Color   core.Color
	Near    float32
	Far     float32
	Density float32
}

func NewFog(color core.Color, near, far float32) *Fog {
	return &Fog{Kind: LinearFog, Color: color, Near: near, Far: far}
}

func NewFogExp2(color core.Color, density float32) *Fog {
	return &Fog{Kind: ExpFog2, Color: color, Density: density}
}

// Factor returns the fog amount at view distance d, matching the shader.
func (f *Fog) Factor(d float32) float32 {
	if f.Kind == ExpFog2 {
		return 1 - math32.Exp(-f.Density*f.Density*d*d)
	}
	if f.Far <= f.Near {
		return 0
	}
	t := (d - f.Near) / (f.Far - f.Near)
	return math32.Min(math32.Max(t, 0), 1)
}

// Scene is the root of a renderable graph.
type Scene struct {
	Root       *Node
	Background *core.Color
	Fog        *Fog
	// OverrideMaterial replaces every mesh material when set.
	OverrideMaterial *Material
	// AutoUpdate recomputes stale world matrices before each render.
	AutoUpdate bool
}

func NewScene() *Scene {
	return &Scene{Root: NewNode("Root"), AutoUpdate: true}
}

func (s *Scene) Add(nodes ...*Node) {
	for _, n := range nodes {
		s.Root.AddChild(n)
	}
}

func (s *Scene) Remove(node *Node) {
	s.Root.RemoveChild(node)
}

// Traverse visits every node depth-first.
func (s *Scene) Traverse(fn func(*Node)) { s.Root.Traverse(fn) }

// Meshes returns all mesh nodes, visible or not.
func (s *Scene) Meshes() []*Node {
	var out []*Node
	s.Root.Traverse(func(n *Node) {
		if n.Mesh != nil {
			out = append(out, n)
		}
	})
	return out
}

// Lights returns all lights reachable through visible nodes.
func (s *Scene) Lights() []*Light {
	var out []*Light
	s.Root.TraverseVisible(func(n *Node) {
		if n.Light != nil {
			out = append(out, n.Light)
		}
	})
	return out
}
