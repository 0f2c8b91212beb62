package scene

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Node represents an object in the scene graph.
// A parent owns its children; the parent pointer is a back reference
// maintained by AddChild/RemoveChild only.
type Node struct {
	Name     string
	ID       uint32
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	Visible       bool
	Layers        Layers
	CastShadow    bool
	ReceiveShadow bool
	FrustumCulled bool
	RenderOrder   int
	// IsGroup makes RenderOrder the group order of every descendant.
	IsGroup bool

	// Optional payloads.
	Mesh   *Mesh
	Light  *Light
	Camera *Camera

	// MatrixAutoUpdate recomposes the local matrix from Position/Rotation/Scale.
	MatrixAutoUpdate bool

	parent   *Node
	children []*Node

	localMatrix      mgl32.Mat4
	worldMatrix      mgl32.Mat4
	worldMatrixDirty bool
}

var nodeIDCounter atomic.Uint32

func NewNode(name string) *Node {
	return &Node{
		Name:             name,
		ID:               nodeIDCounter.Add(1),
		Rotation:         mgl32.QuatIdent(),
		Scale:            mgl32.Vec3{1, 1, 1},
		Visible:          true,
		Layers:           DefaultLayers,
		FrustumCulled:    true,
		MatrixAutoUpdate: true,
		localMatrix:      mgl32.Ident4(),
		worldMatrix:      mgl32.Ident4(),
		worldMatrixDirty: true,
	}
}

// NewMeshNode wraps a mesh in a node.
func NewMeshNode(name string, mesh *Mesh) *Node {
	n := NewNode(name)
	n.Mesh = mesh
	return n
}

// NewLightNode wraps a light in a node.
func NewLightNode(name string, light *Light) *Node {
	n := NewNode(name)
	n.Light = light
	return n
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

func (n *Node) AddChild(child *Node) {
	if child == n {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	child.MarkWorldMatrixDirty()
}

func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			child.MarkWorldMatrixDirty()
			return
		}
	}
}

// LocalMatrix returns translation * rotation * scale.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	if n.MatrixAutoUpdate {
		n.localMatrix = mgl32.Translate3D(n.Position[0], n.Position[1], n.Position[2]).
			Mul4(n.Rotation.Normalize().Mat4()).
			Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))
	}
	return n.localMatrix
}

// SetLocalMatrix replaces the local matrix and disables auto composition.
func (n *Node) SetLocalMatrix(m mgl32.Mat4) {
	n.localMatrix = m
	n.MatrixAutoUpdate = false
	n.MarkWorldMatrixDirty()
}

// WorldMatrix returns the cached world matrix, recomputing the dirty chain.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	if n.worldMatrixDirty {
		local := n.LocalMatrix()
		if n.parent != nil {
			n.worldMatrix = n.parent.WorldMatrix().Mul4(local)
		} else {
			n.worldMatrix = local
		}
		n.worldMatrixDirty = false
	}
	return n.worldMatrix
}

// WorldMatrixDirty reports whether the world matrix is stale.
func (n *Node) WorldMatrixDirty() bool { return n.worldMatrixDirty }

// UpdateWorldMatrix recomputes world matrices for the subtree.
// Stale nodes are recomputed; force recomputes all of them.
func (n *Node) UpdateWorldMatrix(force bool) {
	if force || n.worldMatrixDirty {
		local := n.LocalMatrix()
		if n.parent != nil {
			n.worldMatrix = n.parent.WorldMatrix().Mul4(local)
		} else {
			n.worldMatrix = local
		}
		n.worldMatrixDirty = false
		force = true
	}
	for _, child := range n.children {
		child.UpdateWorldMatrix(force)
	}
}

func (n *Node) MarkWorldMatrixDirty() {
	n.worldMatrixDirty = true
	for _, child := range n.children {
		child.MarkWorldMatrixDirty()
	}
}

func (n *Node) SetPosition(pos mgl32.Vec3) {
	n.Position = pos
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetRotation(rot mgl32.Quat) {
	n.Rotation = rot
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetScale(scale mgl32.Vec3) {
	n.Scale = scale
	n.MarkWorldMatrixDirty()
}

func (n *Node) Translate(delta mgl32.Vec3) {
	n.Position = n.Position.Add(delta)
	n.MarkWorldMatrixDirty()
}

func (n *Node) Rotate(axis mgl32.Vec3, angle float32) {
	n.Rotation = n.Rotation.Mul(mgl32.QuatRotate(angle, axis.Normalize())).Normalize()
	n.MarkWorldMatrixDirty()
}

// LookAt orients the node so its -Z axis points at target.
func (n *Node) LookAt(target, up mgl32.Vec3) {
	m := mgl32.LookAtV(n.Position, target, up).Inv()
	n.Rotation = mgl32.Mat4ToQuat(m).Normalize()
	n.MarkWorldMatrixDirty()
}

// WorldPosition returns the translation column of the world matrix.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// Traverse visits every node depth-first.
func (n *Node) Traverse(callback func(*Node)) {
	callback(n)
	for _, child := range n.children {
		child.Traverse(callback)
	}
}

// TraverseVisible visits nodes, skipping invisible subtrees.
func (n *Node) TraverseVisible(callback func(*Node)) {
	if !n.Visible {
		return
	}
	callback(n)
	for _, child := range n.children {
		child.TraverseVisible(callback)
	}
}

// Find finds a node by name.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, child := range n.children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}
