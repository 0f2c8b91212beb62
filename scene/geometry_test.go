package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryValidate(t *testing.T) {
	g := NewGeometry("tri")
	assert.Error(t, g.Validate(), "position is required")

	g.SetAttribute(AttrPosition, NewFloatAttribute([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, 3))
	g.SetAttribute(AttrUV, NewFloatAttribute([]float32{0, 0, 1, 0}, 2))
	assert.Error(t, g.Validate(), "uv has two items for three vertices")

	g.SetAttribute(AttrUV, NewFloatAttribute([]float32{0, 0, 1, 0, 0, 1}, 2))
	g.SetIndex([]uint32{0, 1, 3})
	assert.Error(t, g.Validate())

	g.SetIndex([]uint32{0, 1, 2})
	assert.NoError(t, g.Validate())
}

func TestAttributeUpdateRanges(t *testing.T) {
	a := NewFloatAttribute(make([]float32, 30), 3)
	assert.Equal(t, 10, a.Count())
	assert.Equal(t, 120, a.ByteLen())

	a.AddUpdateRange(3, 3)
	a.AddUpdateRange(12, 6)
	a.NeedsUpdate()
	assert.Equal(t, uint64(1), a.Version)
	assert.Equal(t, []UpdateRange{{3, 3}, {12, 6}}, a.UpdateRanges)

	a.ClearUpdateRanges()
	assert.Empty(t, a.UpdateRanges)
}

func TestBoundingSphere(t *testing.T) {
	g := NewSphereGeometry(2, 16, 8)
	require.NotNil(t, g.BoundingSphere)
	assert.InDelta(t, 2, g.BoundingSphere.Radius, 1e-3)
	assert.True(t, g.BoundingSphere.Center.ApproxEqualThreshold(mgl32.Vec3{}, 1e-4))

	empty := NewGeometry("empty")
	empty.SetAttribute(AttrPosition, NewFloatAttribute(nil, 3))
	assert.True(t, empty.ComputeBoundingSphere().Empty())
}

func TestBoxGeometryGroups(t *testing.T) {
	g := NewBoxGeometry(1, 2, 3)
	require.NoError(t, g.Validate())
	assert.Len(t, g.Groups, 6)
	assert.Equal(t, 24, g.Attributes[AttrPosition].Count())

	box := g.ComputeBoundingBox()
	assert.True(t, box.Min.ApproxEqual(mgl32.Vec3{-0.5, -1, -1.5}))
	assert.True(t, box.Max.ApproxEqual(mgl32.Vec3{0.5, 1, 1.5}))
}

func TestComputeTangents(t *testing.T) {
	g := NewPlaneGeometry(1, 1, 1)
	ComputeTangents(g)
	tan := g.Attributes[AttrTangent]
	require.NotNil(t, tan)
	assert.Equal(t, 4, tan.ItemSize)
	for i := 0; i < tan.Count(); i++ {
		assert.InDelta(t, 1, tan.Float[i*4], 1e-5, "plane tangent follows +u = +x")
		assert.InDelta(t, 1, tan.Float[i*4+3], 1e-5)
	}
}

func TestDisposeFiresOnce(t *testing.T) {
	g := NewGeometry("g")
	calls := 0
	g.OnDispose(func() { calls++ })
	g.Dispose()
	g.Dispose()
	assert.Equal(t, 1, calls)
}
