package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldMatrixFollowsParent(t *testing.T) {
	parent := NewNode("parent")
	child := NewNode("child")
	parent.AddChild(child)

	parent.SetPosition(mgl32.Vec3{1, 0, 0})
	child.SetPosition(mgl32.Vec3{0, 2, 0})
	parent.UpdateWorldMatrix(false)

	assert.False(t, child.WorldMatrixDirty())
	assert.True(t, child.WorldPosition().ApproxEqual(mgl32.Vec3{1, 2, 0}))

	parent.SetPosition(mgl32.Vec3{5, 0, 0})
	assert.True(t, child.WorldMatrixDirty(), "moving a parent marks descendants stale")
	assert.True(t, child.WorldPosition().ApproxEqual(mgl32.Vec3{5, 2, 0}), "lazy read recomputes the chain")
}

func TestAddChildReparents(t *testing.T) {
	a, b, c := NewNode("a"), NewNode("b"), NewNode("c")
	a.AddChild(c)
	b.AddChild(c)

	assert.Empty(t, a.Children())
	require.Len(t, b.Children(), 1)
	assert.Same(t, b, c.Parent())

	b.RemoveChild(c)
	assert.Nil(t, c.Parent())
}

func TestTraverseVisibleSkipsSubtree(t *testing.T) {
	root := NewNode("root")
	hidden := NewNode("hidden")
	inner := NewNode("inner")
	root.AddChild(hidden)
	hidden.AddChild(inner)
	hidden.Visible = false

	var seen []string
	root.TraverseVisible(func(n *Node) { seen = append(seen, n.Name) })
	assert.Equal(t, []string{"root"}, seen)
	assert.Same(t, inner, root.Find("inner"))
}

func TestLayers(t *testing.T) {
	var l Layers
	l.Set(3)
	assert.True(t, l.IsEnabled(3))
	assert.False(t, l.IsEnabled(0))
	l.Enable(0)
	assert.True(t, l.Test(DefaultLayers))
	l.Disable(0)
	assert.False(t, l.Test(DefaultLayers))
}

func TestTranslateAndRotateAccumulate(t *testing.T) {
	n := NewNode("n")
	n.Translate(mgl32.Vec3{1, 0, 0})
	n.Translate(mgl32.Vec3{0, 2, 0})
	assert.True(t, n.WorldPosition().ApproxEqual(mgl32.Vec3{1, 2, 0}))

	n.Rotate(mgl32.Vec3{0, 2, 0}, mgl32.DegToRad(45))
	n.Rotate(mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(45))
	forward := n.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
	assert.True(t, forward.ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5), "got %v", forward)
}
