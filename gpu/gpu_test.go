package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32Bytes(t *testing.T) {
	assert.Nil(t, Float32Bytes(nil))

	b := Float32Bytes([]float32{1, -2})
	require.Len(t, b, 8)
	assert.Equal(t, math.Float32bits(1), binary.NativeEndian.Uint32(b[0:4]))
	assert.Equal(t, math.Float32bits(-2), binary.NativeEndian.Uint32(b[4:8]))
}

func TestUint32Bytes(t *testing.T) {
	b := Uint32Bytes([]uint32{7, 9, 11})
	require.Len(t, b, 12)
	assert.Equal(t, uint32(11), binary.NativeEndian.Uint32(b[8:]))
}

func TestUniformTypeComponents(t *testing.T) {
	assert.Equal(t, 16, UniformMat4.Components())
	assert.Equal(t, 9, UniformMat3.Components())
	assert.Equal(t, 3, UniformVec3.Components())
	assert.Equal(t, 1, UniformSampler2D.Components())
	assert.True(t, UniformSamplerCube.IsSampler())
	assert.False(t, UniformMat4.IsSampler())
}

func TestFormatAndType(t *testing.T) {
	assert.Equal(t, 4, RGBA.Channels())
	assert.Equal(t, 2, RG.Channels())
	assert.Equal(t, 2, HalfFloat.Size())
	assert.True(t, Float.IsFloat())
	assert.False(t, UnsignedByte.IsFloat())
	assert.True(t, LinearMipmapLinear.UsesMipmaps())
	assert.False(t, Linear.UsesMipmaps())
}
