package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHex(t *testing.T) {
	c := ColorHex(0xff8000)
	assert.Equal(t, float32(1), c.R)
	assert.InDelta(t, 0.50196, c.G, 1e-4)
	assert.Equal(t, float32(0), c.B)
	assert.Equal(t, float32(1), c.A)
}

func TestColorLinear(t *testing.T) {
	assert.Equal(t, ColorWhite, ColorWhite.Linear())
	assert.Equal(t, ColorBlack, ColorBlack.Linear())

	mid := Color{0.5, 0.5, 0.5, 1}.Linear()
	assert.InDelta(t, 0.214, mid.R, 1e-3)
	assert.Equal(t, float32(1), mid.A)
}
