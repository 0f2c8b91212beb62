package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/gpu"
	"render-pipeline/gpu/gputest"
	"render-pipeline/scene"
)

func newTestUploader() (*BufferUploader, *gputest.Recorder, *Info) {
	rec := gputest.NewRecorder()
	info := &Info{}
	return NewBufferUploader(rec, info), rec, info
}

func TestUnchangedVersionUploadsNothing(t *testing.T) {
	u, rec, info := newTestUploader()
	a := scene.NewFloatAttribute(make([]float32, 300), 3)

	buf, err := u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count("BufferData"))
	assert.Equal(t, 1, info.Memory.Buffers)

	rec.ResetCalls()
	again, err := u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)
	assert.Equal(t, buf, again)
	assert.Zero(t, rec.Count("BufferData"))
	assert.Zero(t, rec.Count("BufferSubData"))
	assert.Zero(t, rec.Count("CreateBuffer"))
}

func TestUpdateRangeSendsOnlyTheRange(t *testing.T) {
	u, rec, _ := newTestUploader()
	a := scene.NewFloatAttribute(make([]float32, 300), 3)
	buf, err := u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)

	a.Float[30] = 1
	a.AddUpdateRange(30, 12)
	a.NeedsUpdate()
	rec.ResetCalls()

	_, err = u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)
	assert.Zero(t, rec.Count("BufferData"))
	sub := rec.Named("BufferSubData")
	require.Len(t, sub, 1)
	assert.Equal(t, []any{gpu.ArrayBuffer, buf, 30 * 4, 12 * 4}, sub[0].Args)
	assert.Empty(t, a.UpdateRanges)

	v, ok := u.Version(a)
	require.True(t, ok)
	assert.Equal(t, a.Version, v)
}

func TestChangeWithoutRangeSendsEverything(t *testing.T) {
	u, rec, _ := newTestUploader()
	a := scene.NewFloatAttribute(make([]float32, 12), 3)
	_, err := u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)

	a.NeedsUpdate()
	rec.ResetCalls()
	_, err = u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)
	sub := rec.Named("BufferSubData")
	require.Len(t, sub, 1)
	assert.Equal(t, 0, sub[0].Args[2])
	assert.Equal(t, 48, sub[0].Args[3])
}

func TestResizedAttributeIsReallocated(t *testing.T) {
	u, rec, _ := newTestUploader()
	a := scene.NewFloatAttribute(make([]float32, 12), 3)
	_, err := u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)

	a.Float = make([]float32, 24)
	a.AddUpdateRange(0, 3)
	a.NeedsUpdate()
	rec.ResetCalls()
	_, err = u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count("BufferData"))
	assert.Zero(t, rec.Count("BufferSubData"))
	assert.Zero(t, rec.Count("CreateBuffer"))
}

func TestMalformedAttributesAreRejected(t *testing.T) {
	u, rec, _ := newTestUploader()

	ragged := scene.NewFloatAttribute(make([]float32, 10), 3)
	_, err := u.Update(ragged, gpu.ArrayBuffer)
	var size *ResourceSizeMismatchError
	require.ErrorAs(t, err, &size)

	a := scene.NewFloatAttribute(make([]float32, 9), 3)
	a.AddUpdateRange(6, 6)
	_, err = u.Update(a, gpu.ArrayBuffer)
	require.ErrorAs(t, err, &size)
	assert.Zero(t, rec.Count("CreateBuffer"))
	assert.Zero(t, u.Len())
}

func TestRemoveAndDisposeDeleteBuffers(t *testing.T) {
	u, rec, info := newTestUploader()
	a := scene.NewFloatAttribute(make([]float32, 3), 3)
	b := scene.NewIndexAttribute([]uint32{0, 1, 2})
	_, err := u.Update(a, gpu.ArrayBuffer)
	require.NoError(t, err)
	_, err = u.Update(b, gpu.ElementArrayBuffer)
	require.NoError(t, err)

	u.Remove(a)
	assert.Equal(t, 1, rec.Count("DeleteBuffer"))
	_, ok := u.Buffer(a)
	assert.False(t, ok)

	u.Dispose()
	assert.Zero(t, u.Len())
	assert.Zero(t, info.Memory.Buffers)
	assert.Zero(t, rec.LiveObjects("buffer"))
}
