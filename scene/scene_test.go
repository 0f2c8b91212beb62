package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"render-pipeline/core"
)

func TestFogFactor(t *testing.T) {
	linear := NewFog(core.ColorWhite, 10, 20)
	assert.Zero(t, linear.Factor(5))
	assert.InDelta(t, 0.5, linear.Factor(15), 1e-6)
	assert.Equal(t, float32(1), linear.Factor(50))

	degenerate := NewFog(core.ColorWhite, 10, 10)
	assert.Zero(t, degenerate.Factor(100))

	exp := NewFogExp2(core.ColorWhite, 0.1)
	assert.Zero(t, exp.Factor(0))
	assert.InDelta(t, 0.6321, exp.Factor(10), 1e-4)
}

func TestSceneAddRemoveAndMeshes(t *testing.T) {
	s := NewScene()
	box := NewMeshNode("box", NewMesh(NewBoxGeometry(1, 1, 1), NewBasicMaterial("m", core.ColorRed)))
	group := NewNode("group")
	group.AddChild(box)
	s.Add(group, NewAmbientLight(core.ColorWhite, 1).Node)

	assert.Equal(t, []*Node{box}, s.Meshes())
	s.Remove(group)
	assert.Empty(t, s.Meshes())
}
