package renderer

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/gpu/gputest"
	"render-pipeline/scene"
)

func newTestRenderer(t *testing.T, opts Options) (*Renderer, *gputest.Recorder) {
	t.Helper()
	rec := gputest.NewRecorder()
	r, err := New(rec, opts)
	require.NoError(t, err)
	r.SetSize(800, 600)
	return r, rec
}

func testCamera(eye mgl32.Vec3) *scene.Camera {
	cam := scene.NewPerspectiveCamera(60, 800.0/600.0, 0.1, 100)
	cam.LookAt(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return cam
}

func meshNode(name string, geo *scene.Geometry, m *scene.Material, pos mgl32.Vec3) *scene.Node {
	n := scene.NewMeshNode(name, scene.NewMesh(geo, m))
	n.SetPosition(pos)
	return n
}

// cubesAndGlass builds two opaque cubes sharing a material, added far one
// first, and a transparent plane in front of them.
func cubesAndGlass() (s *scene.Scene, near, far, plane *scene.Node, glass *scene.Material) {
	s = scene.NewScene()
	box := scene.NewBoxGeometry(1, 1, 1)
	solid := scene.NewLambertMaterial("solid", core.ColorRed)
	far = meshNode("far", box, solid, mgl32.Vec3{0, 0, -5})
	near = meshNode("near", box, solid, mgl32.Vec3{0, 0, 0})

	glass = scene.NewBasicMaterial("glass", core.ColorBlue)
	glass.Transparent = true
	glass.Opacity = 0.5
	plane = meshNode("plane", scene.NewPlaneGeometry(4, 4, 1), glass, mgl32.Vec3{0, 0, 2})

	s.Add(far, near, plane)
	return s, near, far, plane, glass
}

func TestRenderOpaqueFrontToBackThenTransparent(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, near, far, plane, _ := cubesAndGlass()

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	list := r.lists.Get(s, 1)
	require.Len(t, list.Opaque, 2)
	require.Len(t, list.Transparent, 1)
	assert.Same(t, near, list.Item(list.Opaque[0]).Node)
	assert.Same(t, far, list.Item(list.Opaque[1]).Node)
	assert.Same(t, plane, list.Item(list.Transparent[0]).Node)

	draws := rec.Draws()
	require.Len(t, draws, 3)
	assert.Equal(t, draws[0].Program, draws[1].Program)
	assert.NotEqual(t, draws[1].Program, draws[2].Program)
	assert.Len(t, r.Programs(), 2)

	info := r.Info()
	assert.Equal(t, 3, info.Render.Calls)
	assert.Equal(t, 2*12+2, info.Render.Triangles)
	assert.Equal(t, 2, info.Memory.Programs)
}

func TestDistinctOpaqueMaterialsStillSortFrontToBack(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s := scene.NewScene()
	box := scene.NewBoxGeometry(1, 1, 1)
	// The far cube's material is created first, so it has the lower ID.
	red := scene.NewLambertMaterial("red", core.ColorRed)
	green := scene.NewLambertMaterial("green", core.ColorGreen)
	far := meshNode("far", box, red, mgl32.Vec3{0, 0, -5})
	near := meshNode("near", box, green, mgl32.Vec3{0, 0, 0})
	glass := scene.NewBasicMaterial("glass", core.ColorBlue)
	glass.Transparent = true
	plane := meshNode("plane", scene.NewPlaneGeometry(4, 4, 1), glass, mgl32.Vec3{0, 0, 2})
	s.Add(far, near, plane)
	cam := testCamera(mgl32.Vec3{0, 0, 10})

	for frame := range 2 {
		require.NoError(t, r.Render(s, cam))
		list := r.lists.Get(s, 1)
		require.Len(t, list.Opaque, 2)
		require.Len(t, list.Transparent, 1)
		assert.Same(t, near, list.Item(list.Opaque[0]).Node, "frame %d", frame)
		assert.Same(t, far, list.Item(list.Opaque[1]).Node, "frame %d", frame)
	}
	// Both lambert materials share one program.
	assert.Len(t, r.Programs(), 2)
	assert.Equal(t, 2, rec.Count("CreateProgram"))
}

func TestRenderIsIncrementalAcrossFrames(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	cam := testCamera(mgl32.Vec3{0, 0, 10})

	require.NoError(t, r.Render(s, cam))
	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))

	assert.Len(t, rec.Draws(), 3)
	assert.Zero(t, rec.Count("CreateProgram"))
	assert.Zero(t, rec.Count("BufferData"))
	assert.Zero(t, rec.Count("BufferSubData"))
	assert.Zero(t, rec.Count("CreateVertexArray"))
}

func TestDoubleSidedTransparentDrawsBackFacesFirst(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, glass := cubesAndGlass()
	glass.Side = scene.DoubleSide
	glass.NeedsUpdate()

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 4)
	var faces []gpu.Face
	for _, c := range rec.Named("CullFace") {
		faces = append(faces, c.Args[0].(gpu.Face))
	}
	require.GreaterOrEqual(t, len(faces), 2)
	assert.Equal(t, []gpu.Face{gpu.FaceFront, gpu.FaceBack}, faces[len(faces)-2:])
	assert.Equal(t, draws[2].Program, draws[3].Program)
}

func TestShadowPassPrecedesMainPass(t *testing.T) {
	opts := DefaultOptions()
	opts.ShadowMap.Enabled = true
	r, rec := newTestRenderer(t, opts)
	var states []ShadowState
	r.Shadows().OnState = func(st ShadowState) { states = append(states, st) }

	s := scene.NewScene()
	sun := scene.NewDirectionalLight(core.ColorWhite, 1)
	sun.Node.CastShadow = true
	sun.Node.SetPosition(mgl32.Vec3{2, 10, 2})
	cube := meshNode("cube", scene.NewBoxGeometry(1, 1, 1), scene.NewStandardMaterial("cube", core.ColorWhite, 0, 0.5), mgl32.Vec3{})
	cube.CastShadow = true
	floor := meshNode("floor", scene.NewBoxGeometry(8, 0.1, 8), scene.NewStandardMaterial("floor", core.ColorWhite, 0, 1), mgl32.Vec3{0, -1, 0})
	floor.ReceiveShadow = true
	s.Add(sun.Node, cube, floor)

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 3, 10})))

	draws := rec.Draws()
	first := -1
	for i, d := range draws {
		if d.Framebuffer == 0 {
			first = i
			break
		}
	}
	require.Greater(t, first, 0, "no shadow draws before the main pass")
	for i, d := range draws {
		if i < first {
			assert.NotZero(t, d.Framebuffer, "draw %d", i)
		} else {
			assert.Zero(t, d.Framebuffer, "draw %d", i)
		}
	}
	assert.Len(t, draws[first:], 2)

	assert.Equal(t, []ShadowState{ShadowCollecting, ShadowDepthPass, ShadowCollecting, ShadowIdle}, states)
	assert.Equal(t, ShadowIdle, r.Shadows().State())
	assert.Equal(t, 1, r.Lights().Counts.DirectionalShadows)
	_, ok := r.Shadows().Map(sun)
	assert.True(t, ok)
}

func TestPointLightShadowRendersSixViewports(t *testing.T) {
	opts := DefaultOptions()
	opts.ShadowMap.Enabled = true
	r, rec := newTestRenderer(t, opts)

	s := scene.NewScene()
	bulb := scene.NewPointLight(core.ColorWhite, 1, 20)
	bulb.Node.CastShadow = true
	bulb.Node.SetPosition(mgl32.Vec3{0, 0, 0})
	// A large box surrounds the light so every face sees it.
	room := meshNode("room", scene.NewBoxGeometry(10, 10, 10), scene.NewLambertMaterial("room", core.ColorWhite), mgl32.Vec3{})
	room.Mesh.Material().Side = scene.BackSide
	room.CastShadow = true
	s.Add(bulb.Node, room)

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 4})))

	shadowDraws := 0
	for _, d := range rec.Draws() {
		if d.Framebuffer != 0 {
			shadowDraws++
		}
	}
	assert.Equal(t, 6, shadowDraws)
	rt, ok := r.Shadows().Map(bulb)
	require.True(t, ok)
	assert.Equal(t, 4*bulb.Shadow.MapWidth, rt.Width)
	assert.Equal(t, 2*bulb.Shadow.MapHeight, rt.Height)
}

func TestVSMFallsBackToPCFWithoutFloatTargets(t *testing.T) {
	opts := DefaultOptions()
	opts.ShadowMap.Enabled = true
	opts.ShadowMap.Type = VSMShadow
	rec := gputest.NewRecorder()
	rec.Caps.FloatRenderTargets = false
	r, err := New(rec, opts)
	require.NoError(t, err)

	assert.Equal(t, PCFShadow, r.Shadows().effectiveType())
}

func TestShadowMapsFreedWhenLightsStopCasting(t *testing.T) {
	opts := DefaultOptions()
	opts.ShadowMap.Enabled = true
	r, rec := newTestRenderer(t, opts)
	cam := testCamera(mgl32.Vec3{0, 3, 10})

	s := scene.NewScene()
	cube := meshNode("cube", scene.NewBoxGeometry(1, 1, 1), scene.NewLambertMaterial("cube", core.ColorWhite), mgl32.Vec3{})
	cube.CastShadow = true
	s.Add(cube)
	require.NoError(t, r.Render(s, cam))
	require.Zero(t, rec.LiveObjects("framebuffer"))

	var lights []*scene.Light
	for i := range 5 {
		l := scene.NewDirectionalLight(core.ColorWhite, 0.2)
		l.Node.CastShadow = true
		l.Node.SetPosition(mgl32.Vec3{float32(i), 10, 2})
		lights = append(lights, l)
		s.Add(l.Node)
	}
	require.NoError(t, r.Render(s, cam))
	assert.Len(t, r.shadows.maps, 5)
	assert.Equal(t, 5, rec.LiveObjects("framebuffer"))
	textures := rec.LiveObjects("texture")

	lights[0].Node.CastShadow = false
	require.NoError(t, r.Render(s, cam))
	assert.Len(t, r.shadows.maps, 4)
	_, ok := r.Shadows().Map(lights[0])
	assert.False(t, ok)
	assert.Equal(t, 4, rec.LiveObjects("framebuffer"))

	for _, l := range lights {
		s.Remove(l.Node)
	}
	require.NoError(t, r.Render(s, cam))
	assert.Empty(t, r.shadows.maps)
	assert.Zero(t, rec.LiveObjects("framebuffer"))
	assert.Zero(t, rec.LiveObjects("renderbuffer"))
	assert.Equal(t, textures-5, rec.LiveObjects("texture"))
}

func TestDisablingShadowsFreesMaps(t *testing.T) {
	opts := DefaultOptions()
	opts.ShadowMap.Enabled = true
	r, rec := newTestRenderer(t, opts)
	cam := testCamera(mgl32.Vec3{0, 3, 10})

	s := scene.NewScene()
	sun := scene.NewDirectionalLight(core.ColorWhite, 1)
	sun.Node.CastShadow = true
	sun.Node.SetPosition(mgl32.Vec3{2, 10, 2})
	cube := meshNode("cube", scene.NewBoxGeometry(1, 1, 1), scene.NewLambertMaterial("cube", core.ColorWhite), mgl32.Vec3{})
	cube.CastShadow = true
	s.Add(sun.Node, cube)

	require.NoError(t, r.Render(s, cam))
	require.Equal(t, 1, rec.LiveObjects("framebuffer"))

	r.Shadows().Enabled = false
	require.NoError(t, r.Render(s, cam))
	assert.Empty(t, r.shadows.maps)
	assert.Zero(t, rec.LiveObjects("framebuffer"))
}

func TestContextLostAndRestore(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	cam := testCamera(mgl32.Vec3{0, 0, 10})
	require.NoError(t, r.Render(s, cam))

	rec.LoseContext()
	r.HandleContextLost()
	err := r.Render(s, cam)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContextLost))
	var lost *ContextLostError
	require.ErrorAs(t, err, &lost)
	assert.Equal(t, "render", lost.Op)

	rec.RestoreContext()
	r.RestoreContext()
	assert.Zero(t, r.programs.Len())
	assert.Zero(t, r.buffers.Len())
	assert.True(t, r.State().Snapshot().Empty())

	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))
	assert.Empty(t, rec.StaleUses)
	assert.Len(t, rec.Draws(), 3)
	assert.Equal(t, 2, rec.Count("CreateProgram"))
	assert.Equal(t, 2, r.programs.Len())
}

func TestDeviceLossIsHandledWithoutExplicitCalls(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	cam := testCamera(mgl32.Vec3{0, 0, 10})
	require.NoError(t, r.Render(s, cam))

	rec.LoseContext()
	err := r.Render(s, cam)
	require.ErrorIs(t, err, ErrContextLost)
	_, err = r.Compile(s, cam)
	require.ErrorIs(t, err, ErrContextLost)

	rec.RestoreContext()
	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))
	assert.Empty(t, rec.StaleUses)
	assert.Len(t, rec.Draws(), 3)
	assert.Equal(t, 2, rec.Count("CreateProgram"))
	assert.Equal(t, 2, r.programs.Len())
}

func TestReportedLossWaitsForRestoreContext(t *testing.T) {
	r, _ := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	cam := testCamera(mgl32.Vec3{0, 0, 10})

	r.HandleContextLost()
	require.ErrorIs(t, r.Render(s, cam), ErrContextLost)
	require.ErrorIs(t, r.Render(s, cam), ErrContextLost)
	r.RestoreContext()
	require.NoError(t, r.Render(s, cam))
}

func TestRestoreDoesNotStackDisposeListeners(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	geo := scene.NewBoxGeometry(1, 1, 1)
	mat := scene.NewLambertMaterial("crate", core.ColorWhite)
	mat.Map = scene.NewSolidTexture("white", 255, 255, 255, 255)
	s := scene.NewScene()
	s.Add(meshNode("crate", geo, mat, mgl32.Vec3{}))
	cam := testCamera(mgl32.Vec3{0, 0, 10})
	rt := NewRenderTarget(64, 64, RenderTargetOptions{Format: gpu.RGBA, Type: gpu.UnsignedByte, DepthBuffer: true})

	draw := func() {
		t.Helper()
		require.NoError(t, r.SetRenderTarget(rt, 0, 0))
		require.NoError(t, r.Render(s, cam))
		require.NoError(t, r.SetRenderTarget(nil, 0, 0))
		require.NoError(t, r.Render(s, cam))
	}
	draw()
	for range 3 {
		rec.LoseContext()
		r.HandleContextLost()
		rec.RestoreContext()
		r.RestoreContext()
		draw()
	}
	assert.Equal(t, 1, mat.Listeners())
	assert.Equal(t, 1, geo.Listeners())
	assert.Equal(t, 1, mat.Map.Listeners())
	assert.Len(t, rt.disposed, 1)

	programs := r.programs.Len()
	require.Positive(t, programs)
	mat.Dispose()
	assert.Zero(t, r.programs.Len())
	assert.Zero(t, mat.Listeners())
	assert.Empty(t, r.materials.listening)

	// A disposed material drawn again subscribes once more.
	draw()
	assert.Equal(t, 1, mat.Listeners())
	assert.Equal(t, programs, r.programs.Len())
}

func TestRenderTargetValidatedBeforeDrawing(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()

	rt := NewRenderTarget(64, 64, RenderTargetOptions{Format: gpu.RGBA, Type: gpu.UnsignedByte, DepthBuffer: true})
	require.NoError(t, r.SetRenderTarget(rt, 0, 0))
	rt.Samples = 64

	err := r.Render(s, testCamera(mgl32.Vec3{0, 0, 10}))
	var unsupported *UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)
	assert.Empty(t, rec.Draws())

	bad := NewRenderTarget(0, 16, RenderTargetOptions{})
	var size *ResourceSizeMismatchError
	assert.ErrorAs(t, r.SetRenderTarget(bad, 0, 0), &size)
}

func TestRenderIntoTargetAndReadPixels(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	rt := NewRenderTarget(4, 4, RenderTargetOptions{Format: gpu.RGBA, Type: gpu.UnsignedByte, DepthBuffer: true})
	require.NoError(t, r.SetRenderTarget(rt, 0, 0))
	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	for _, d := range rec.Draws() {
		assert.NotZero(t, d.Framebuffer)
	}

	out := make([]byte, 4*4*4)
	require.NoError(t, r.ReadRenderTargetPixels(rt, 0, 0, 4, 4, out))
	assert.Equal(t, 1, rec.Count("ReadPixels"))

	var size *ResourceSizeMismatchError
	assert.ErrorAs(t, r.ReadRenderTargetPixels(rt, 2, 2, 4, 4, out), &size)
	assert.ErrorAs(t, r.ReadRenderTargetPixels(rt, 0, 0, 4, 4, out[:8]), &size)

	float := NewRenderTarget(4, 4, RenderTargetOptions{Format: gpu.RG, Type: gpu.Float})
	var unsupported *UnsupportedFeatureError
	assert.ErrorAs(t, r.ReadRenderTargetPixels(float, 0, 0, 4, 4, out), &unsupported)
}

func TestReadPixelsWithoutTarget(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	out := make([]byte, 16)

	var size *ResourceSizeMismatchError
	require.NotPanics(t, func() {
		require.ErrorAs(t, r.ReadRenderTargetPixels(nil, 0, 0, 2, 2, out), &size)
	})
	assert.Equal(t, "read pixels: nil render target", size.Error())
	assert.Zero(t, rec.Count("ReadPixels"))
}

func TestFailedMaterialDrawsFallback(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	rec.FailCompile = func(stage gpu.ShaderStage, src string) string {
		if stage == gpu.FragmentStage && strings.Contains(src, "#define SHADING_LAMBERT") {
			return "ERROR: 0:12: 'lambert' : syntax error"
		}
		return ""
	}
	s, _, _, _, _ := cubesAndGlass()
	cam := testCamera(mgl32.Vec3{0, 0, 10})

	require.NoError(t, r.Render(s, cam))
	draws := rec.Draws()
	require.Len(t, draws, 3)
	// Both cubes draw with the fallback program.
	assert.Equal(t, draws[0].Program, draws[1].Program)
	assert.NotEqual(t, draws[1].Program, draws[2].Program)

	solid := s.Root.Find("near").Mesh.Material()
	var cerr *ShaderCompileError
	require.ErrorAs(t, r.MaterialError(solid), &cerr)
	assert.Equal(t, gpu.FragmentStage, cerr.Stage)
	assert.Equal(t, 12, cerr.Line)
	assert.Contains(t, cerr.Excerpt, ">  12:")

	created := rec.Count("CreateProgram")
	require.NoError(t, r.Render(s, cam))
	assert.Equal(t, created, rec.Count("CreateProgram"), "failed program recompiled")
}

func TestUnreadyProgramsAreSkippedUntilCompiled(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	rec.CompileLatency = 2
	s := scene.NewScene()
	s.Add(meshNode("cube", scene.NewBoxGeometry(1, 1, 1), scene.NewBasicMaterial("cube", core.ColorGreen), mgl32.Vec3{}))
	cam := testCamera(mgl32.Vec3{0, 0, 5})

	for range 2 {
		require.NoError(t, r.Render(s, cam))
		assert.Empty(t, rec.Draws())
	}
	require.NoError(t, r.Render(s, cam))
	assert.Len(t, rec.Draws(), 1)
}

func TestWaitForProgramsWhenNotSkipping(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipUnreadyPrograms = false
	r, rec := newTestRenderer(t, opts)
	rec.CompileLatency = 3
	s := scene.NewScene()
	s.Add(meshNode("cube", scene.NewBoxGeometry(1, 1, 1), scene.NewBasicMaterial("cube", core.ColorGreen), mgl32.Vec3{}))

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 5})))
	assert.Len(t, rec.Draws(), 1)
}

func TestWaitForProgramsGivesUpAfterDeadline(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipUnreadyPrograms = false
	opts.ProgramWaitMillis = 20
	r, rec := newTestRenderer(t, opts)
	rec.CompileLatency = math.MaxInt
	s := scene.NewScene()
	s.Add(meshNode("cube", scene.NewBoxGeometry(1, 1, 1), scene.NewBasicMaterial("cube", core.ColorGreen), mgl32.Vec3{}))
	cam := testCamera(mgl32.Vec3{0, 0, 5})

	start := time.Now()
	require.NoError(t, r.Render(s, cam))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, rec.Draws())

	rec.CompileLatency = 0
	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))
	assert.Len(t, rec.Draws(), 1)
}

func TestCompileReportsReadiness(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	rec.CompileLatency = 1
	s, _, _, _, _ := cubesAndGlass()

	set, err := r.Compile(s, testCamera(mgl32.Vec3{0, 0, 10}))
	require.NoError(t, err)
	assert.Len(t, set.Programs(), 2)
	assert.Empty(t, rec.Draws())

	ready, err := set.Ready()
	require.NoError(t, err)
	assert.False(t, ready)
	ready, err = set.Ready()
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestMaterialDisposeReleasesPrograms(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, plane, glass := cubesAndGlass()
	cam := testCamera(mgl32.Vec3{0, 0, 10})
	require.NoError(t, r.Render(s, cam))
	require.Equal(t, 2, r.programs.Len())

	s.Remove(plane)
	glass.Dispose()
	assert.Equal(t, 1, r.programs.Len())
	assert.Equal(t, 1, rec.Count("DeleteProgram"))
	assert.Equal(t, 1, rec.LiveObjects("program"))

	plane.Mesh.Geometry.Dispose()
	assert.Equal(t, 1, rec.Count("DeleteVertexArray"))
}

func TestSubCamerasDrawIntoTheirViewports(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	left := testCamera(mgl32.Vec3{0, 0, 10})
	left.Viewport = core.Viewport{Width: 400, Height: 600}
	right := testCamera(mgl32.Vec3{0, 0, 10})
	right.Viewport = core.Viewport{X: 400, Width: 400, Height: 600}
	array := scene.NewArrayCamera(left, right)
	array.LookAt(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	require.NoError(t, r.Render(s, array))
	assert.Len(t, rec.Draws(), 6)
	var xs []int32
	for _, c := range rec.Named("Viewport") {
		xs = append(xs, c.Args[0].(int32))
	}
	assert.Contains(t, xs, int32(400))
}

func TestAnimationLoopPausesWhileContextLost(t *testing.T) {
	r, _ := newTestRenderer(t, DefaultOptions())
	var ticks int
	r.SetAnimationLoop(func(time.Duration) { ticks++ })

	r.Tick(16 * time.Millisecond)
	r.HandleContextLost()
	r.Tick(32 * time.Millisecond)
	r.RestoreContext()
	r.Tick(48 * time.Millisecond)
	assert.Equal(t, 2, ticks)

	r.SetAnimationLoop(nil)
	r.Tick(64 * time.Millisecond)
	assert.Equal(t, 2, ticks)
}

func TestDisposeDeletesEverything(t *testing.T) {
	opts := DefaultOptions()
	opts.ShadowMap.Enabled = true
	r, rec := newTestRenderer(t, opts)
	s, near, _, _, _ := cubesAndGlass()
	near.CastShadow = true
	sun := scene.NewDirectionalLight(core.ColorWhite, 1)
	sun.Node.CastShadow = true
	s.Add(sun.Node)
	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	r.Dispose()
	for _, kind := range []string{"program", "buffer", "vertexarray", "framebuffer", "renderbuffer"} {
		assert.Zero(t, rec.LiveObjects(kind), kind)
	}
	assert.Empty(t, rec.StaleUses)
}
