package renderer

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/gpu/gputest"
	"render-pipeline/scene"
)

func randomMaterial(rng *rand.Rand) *scene.Material {
	m := scene.NewMaterial("m", scene.KindBasic)
	m.Side = scene.Side(rng.IntN(3))
	m.Transparent = rng.IntN(2) == 0
	m.Blending = scene.Blending(rng.IntN(6))
	m.PremultipliedAlpha = rng.IntN(4) == 0
	m.BlendSrc = gpu.BlendFactor(rng.IntN(4))
	m.BlendDst = gpu.BlendFactor(rng.IntN(4))
	m.BlendColor = core.Color{R: float32(rng.IntN(2))}
	m.DepthTest = rng.IntN(3) != 0
	m.DepthWrite = rng.IntN(2) == 0
	m.DepthFunc = gpu.CompareFunc(rng.IntN(8))
	m.ColorWrite = rng.IntN(5) != 0
	m.Stencil.Write = rng.IntN(3) == 0
	m.Stencil.Ref = int32(rng.IntN(2))
	m.Stencil.ZPass = gpu.StencilOp(rng.IntN(3))
	m.PolygonOffset = rng.IntN(3) == 0
	m.PolygonOffsetFactor = float32(rng.IntN(2))
	m.PolygonOffsetUnits = float32(rng.IntN(2))
	m.AlphaToCoverage = rng.IntN(4) == 0
	return m
}

func TestStateTrackerCallsMatchChangedCategories(t *testing.T) {
	rec := gputest.NewRecorder()
	st := NewStateTracker(rec, 16)
	rng := rand.New(rand.NewPCG(7, 11))

	for i := range 500 {
		m := randomMaterial(rng)
		cw := rng.IntN(4) == 0

		before := st.Snapshot()
		n := len(rec.Calls)
		st.ApplyMaterialState(m, cw)
		after := st.Snapshot()

		require.Equal(t, before.Diff(after), len(rec.Calls)-n, "iteration %d", i)

		// The device agrees with the tracker.
		for c := range gpu.NumCapabilities {
			if after.Enabled[c].Valid {
				assert.Equal(t, after.Enabled[c].Value, rec.State.Enabled[c])
			}
		}
		assert.Equal(t, after.DepthMask.Value, rec.State.DepthMask)
		assert.Equal(t, after.FrontFace.Value, rec.State.FrontFace)

		// Re-applying the same material is free.
		n = len(rec.Calls)
		st.ApplyMaterialState(m, cw)
		require.Equal(t, n, len(rec.Calls), "iteration %d re-apply", i)
	}
}

func TestStateTrackerOpaqueDisablesBlend(t *testing.T) {
	rec := gputest.NewRecorder()
	st := NewStateTracker(rec, 16)

	m := scene.NewBasicMaterial("opaque", core.ColorWhite)
	st.ApplyMaterialState(m, false)
	assert.False(t, rec.State.Enabled[gpu.Blend])
	assert.Zero(t, rec.Count("BlendFuncSeparate"))
	assert.Zero(t, rec.Count("StencilFunc"))

	m.Transparent = true
	rec.ResetCalls()
	st.ApplyMaterialState(m, false)
	require.Len(t, rec.Calls, 3)
	assert.Equal(t, "Enable", rec.Calls[0].Name)
	assert.Equal(t, []any{gpu.SrcAlpha, gpu.OneMinusSrcAlpha, gpu.One, gpu.OneMinusSrcAlpha}, rec.Named("BlendFuncSeparate")[0].Args)
}

func TestStateTrackerSideAndMirroring(t *testing.T) {
	rec := gputest.NewRecorder()
	st := NewStateTracker(rec, 16)

	m := scene.NewBasicMaterial("back", core.ColorWhite)
	m.Side = scene.BackSide
	st.ApplyMaterialState(m, false)
	assert.Equal(t, gpu.CW, rec.State.FrontFace)
	assert.True(t, rec.State.Enabled[gpu.CullFace])

	// A mirrored transform flips it back.
	st.ApplyMaterialState(m, true)
	assert.Equal(t, gpu.CCW, rec.State.FrontFace)

	m.Side = scene.DoubleSide
	st.ApplyMaterialState(m, false)
	assert.False(t, rec.State.Enabled[gpu.CullFace])
}

func TestStateTrackerTextureBindings(t *testing.T) {
	rec := gputest.NewRecorder()
	st := NewStateTracker(rec, 4)

	st.BindTexture(2, gpu.Texture2D, 5)
	st.BindTexture(2, gpu.Texture2D, 5)
	assert.Equal(t, 1, rec.Count("ActiveTexture"))
	assert.Equal(t, 1, rec.Count("BindTexture"))

	// Same unit, new texture: no unit switch.
	st.BindTexture(2, gpu.Texture2D, 6)
	assert.Equal(t, 1, rec.Count("ActiveTexture"))
	assert.Equal(t, 2, rec.Count("BindTexture"))
	assert.Equal(t, gpu.Texture(6), rec.State.Textures[2])

	// Units beyond the initial size grow the table.
	st.BindTexture(9, gpu.TextureCube, 7)
	assert.Equal(t, gpu.Texture(7), rec.State.Textures[9])
}

func TestStateTrackerReset(t *testing.T) {
	rec := gputest.NewRecorder()
	st := NewStateTracker(rec, 4)

	st.ApplyMaterialState(scene.NewBasicMaterial("m", core.ColorWhite), false)
	st.UseProgram(3)
	st.Viewport(core.Rect{Width: 10, Height: 10})
	require.False(t, st.Snapshot().Empty())

	st.Reset()
	assert.True(t, st.Snapshot().Empty())

	rec.ResetCalls()
	assert.True(t, st.UseProgram(3), "program is re-applied after reset")
	assert.Equal(t, 1, rec.Count("UseProgram"))
}

func TestStateSnapshotDiff(t *testing.T) {
	rec := gputest.NewRecorder()
	st := NewStateTracker(rec, 2)
	a := st.Snapshot()
	st.DepthMask(false)
	st.ClearColor(core.ColorRed)
	b := st.Snapshot()
	assert.Equal(t, 2, a.Diff(b))
	assert.Equal(t, 0, b.Diff(b))
}
