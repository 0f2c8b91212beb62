package renderer

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/gpu"
	"render-pipeline/gpu/gputest"
	"render-pipeline/scene"
)

func newTestTextures(rec *gputest.Recorder) (*TextureUploader, *Info) {
	info := &Info{}
	return NewTextureUploader(rec, NewStateTracker(rec, rec.Caps.MaxTextureUnits), info), info
}

func TestTextureUploadsOncePerVersion(t *testing.T) {
	rec := gputest.NewRecorder()
	u, info := newTestTextures(rec)
	tex := scene.NewTexture("checker", image.NewRGBA(image.Rect(0, 0, 8, 8)))

	u.Bind(tex, gpu.Texture2D, 0)
	assert.Equal(t, 1, rec.Count("TexImage"))
	assert.Equal(t, 1, info.Memory.Textures)

	rec.ResetCalls()
	u.Bind(tex, gpu.Texture2D, 0)
	assert.Zero(t, rec.Count("TexImage"))
	assert.Zero(t, rec.Count("TexSubImage"))
	assert.Zero(t, rec.Count("BindTexture"))

	tex.NeedsUpdate()
	u.Bind(tex, gpu.Texture2D, 0)
	assert.Equal(t, 1, rec.Count("TexSubImage"))
	assert.Zero(t, rec.Count("TexImage"))
}

func TestOversizedImagesAreDownscaled(t *testing.T) {
	rec := gputest.NewRecorder()
	rec.Caps.MaxTextureSize = 64
	u, _ := newTestTextures(rec)

	img := image.NewRGBA(image.Rect(0, 0, 256, 128))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	tex := scene.NewTexture("big", img)
	_, err := u.Update(tex, 0)
	require.NoError(t, err)

	up := rec.Named("TexImage")
	require.Len(t, up, 1)
	assert.Equal(t, 64, up[0].Args[4])
	assert.Equal(t, 32, up[0].Args[5])
}

func TestUnsupportedTypeFallsBackToPlaceholder(t *testing.T) {
	rec := gputest.NewRecorder()
	rec.Caps.FloatTextures = false
	u, _ := newTestTextures(rec)
	tex := scene.NewDataTexture("heights", make([]byte, 4*4*16), 4, 4, gpu.RGBA, gpu.Float)

	_, err := u.Update(tex, 0)
	var unsupported *UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)

	rec.ResetCalls()
	u.Bind(tex, gpu.Texture2D, 0)
	// The placeholder is a fresh 1x1 texture; the failed version is not retried.
	up := rec.Named("TexImage")
	require.Len(t, up, 1)
	assert.Equal(t, 1, up[0].Args[4])

	rec.ResetCalls()
	u.Bind(tex, gpu.Texture2D, 0)
	assert.Zero(t, rec.Count("TexImage"))
	assert.Zero(t, rec.Count("CreateTexture"))
}

func TestShortPixelDataIsRejected(t *testing.T) {
	rec := gputest.NewRecorder()
	u, _ := newTestTextures(rec)
	tex := scene.NewDataTexture("short", make([]byte, 10), 4, 4, gpu.RGBA, gpu.UnsignedByte)

	_, err := u.Update(tex, 0)
	var size *ResourceSizeMismatchError
	require.ErrorAs(t, err, &size)
	assert.Zero(t, rec.Count("TexImage"))
}

func TestArrayLayerUpdatesSendOnlyThoseLayers(t *testing.T) {
	rec := gputest.NewRecorder()
	u, _ := newTestTextures(rec)
	layers := [][]byte{make([]byte, 16), make([]byte, 16), make([]byte, 16)}
	tex := scene.NewArrayTexture("atlas", layers, 2, 2, gpu.RGBA, gpu.UnsignedByte)

	_, err := u.Update(tex, 0)
	require.NoError(t, err)
	up := rec.Named("TexImage")
	require.Len(t, up, 1)
	assert.Equal(t, 3, up[0].Args[6])

	tex.AddLayerUpdate(1)
	tex.NeedsUpdate()
	rec.ResetCalls()
	_, err = u.Update(tex, 0)
	require.NoError(t, err)
	sub := rec.Named("TexSubImage")
	require.Len(t, sub, 1)
	assert.Equal(t, 1, sub[0].Args[3])
	assert.Empty(t, tex.LayerUpdates)
}

func TestDisposedTextureIsDeleted(t *testing.T) {
	rec := gputest.NewRecorder()
	u, info := newTestTextures(rec)
	tex := scene.NewTexture("t", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	u.Bind(tex, gpu.Texture2D, 0)
	require.Equal(t, 1, info.Memory.Textures)

	tex.Dispose()
	assert.Zero(t, info.Memory.Textures)
	assert.Equal(t, 1, rec.Count("DeleteTexture"))
	_, ok := u.Handle(tex)
	assert.False(t, ok)
}

func TestFlipRowsReversesRows(t *testing.T) {
	assert.Equal(t, []byte{3, 4, 1, 2}, flipRows([]byte{1, 2, 3, 4}, 2))
}

func TestPremultiplyScalesByAlpha(t *testing.T) {
	assert.Equal(t, []byte{40, 20, 0, 51}, premultiply([]byte{200, 100, 0, 51}))
}
