package scene

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"render-pipeline/core"
)

func TestMaterialClone(t *testing.T) {
	m := NewLambertMaterial("a", core.ColorRed)
	m.ClippingPlanes = []Plane{{D: 1}}
	m.OnDispose(func() {})

	c := m.Clone()
	assert.NotEqual(t, m.ID, c.ID)
	assert.Equal(t, m.Color, c.Color)
	c.ClippingPlanes[0].D = 2
	assert.Equal(t, float32(1), m.ClippingPlanes[0].D)
}

func TestMaterialTextures(t *testing.T) {
	m := NewStandardMaterial("pbr", core.ColorWhite, 1, 0.5)
	assert.Empty(t, m.Textures())
	m.Map = NewSolidTexture("white", 255, 255, 255, 255)
	m.NormalMap = NewSolidTexture("flat", 128, 128, 255, 255)
	assert.Len(t, m.Textures(), 2)
	assert.True(t, m.Kind.Lit())
	assert.False(t, KindBasic.Lit())
}

func TestTextureReady(t *testing.T) {
	pending := NewTexture("pending", nil)
	assert.False(t, pending.Ready())

	pending.SetSources(image.NewRGBA(image.Rect(0, 0, 4, 2)))
	assert.True(t, pending.Ready())
	assert.Equal(t, 4, pending.Width)
	assert.Equal(t, 2, pending.Height)

	cube := NewCubeTexture("cube", [6]image.Image{})
	assert.False(t, cube.Ready(), "faces not loaded")
}
