package renderer

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/gpu/gputest"
	"render-pipeline/scene"
)

// source returns both stages of the program a draw used.
func source(rec *gputest.Recorder, d gputest.Call) string {
	vs, fs := rec.Sources(d.Program)
	return vs + fs
}

// floatUploads returns the values written to uniform name while prog was bound.
func floatUploads(rec *gputest.Recorder, prog gpu.Program, name string) [][]float32 {
	loc := int32(-1)
	for _, u := range rec.ActiveUniforms(prog) {
		if u.Name == name {
			loc = u.Location
		}
	}
	var out [][]float32
	for _, c := range rec.Named("UniformFloats") {
		if c.Program == prog && c.Args[0] == loc {
			out = append(out, c.Args[2].([]float32))
		}
	}
	return out
}

// layoutAt returns the last pointer recorded for an attribute location.
func layoutAt(t *testing.T, rec *gputest.Recorder, loc uint32) gpu.AttribLayout {
	t.Helper()
	var found *gpu.AttribLayout
	for _, c := range rec.Named("VertexAttrib") {
		if c.Args[0] == loc {
			l := c.Args[1].(gpu.AttribLayout)
			found = &l
		}
	}
	require.NotNil(t, found, "no pointer at location %d", loc)
	return *found
}

func TestTransmissionRendersOpaqueIntoMipmappedTarget(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s := scene.NewScene()
	box := scene.NewBoxGeometry(1, 1, 1)
	wall := meshNode("wall", box, scene.NewLambertMaterial("wall", core.ColorRed), mgl32.Vec3{0, 0, -3})
	jade := scene.NewPhysicalMaterial("jade", core.ColorGreen)
	jade.Transmission = 0.7
	gem := meshNode("gem", box, jade, mgl32.Vec3{})
	s.Add(wall, gem)

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 3)
	assert.NotZero(t, draws[0].Framebuffer, "opaque copy goes to the transmission target")
	assert.Zero(t, draws[1].Framebuffer)
	assert.Zero(t, draws[2].Framebuffer)
	assert.NotContains(t, source(rec, draws[0]), "#define SRGB_OUTPUT\n", "the copy stays linear")
	assert.Contains(t, source(rec, draws[1]), "#define SRGB_OUTPUT\n")

	assert.Contains(t, source(rec, draws[2]), "#define USE_TRANSMISSION\n")
	assert.NotContains(t, source(rec, draws[1]), "#define USE_TRANSMISSION\n")
	assert.Equal(t, 1, rec.Count("GenerateMipmap"))
	assert.Equal(t, 1, rec.LiveObjects("framebuffer"))
	assert.NotEmpty(t, floatUploads(rec, draws[2].Program, "transmissionSamplerSize"))

	// Without a transmissive item the pass is skipped.
	s.Remove(gem)
	rec.ResetCalls()
	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))
	require.Len(t, rec.Draws(), 1)
	assert.Zero(t, rec.Draws()[0].Framebuffer)
	assert.Zero(t, rec.Count("GenerateMipmap"))
}

func TestInstancedMeshDrawsOnceForAllInstances(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s := scene.NewScene()
	mesh := scene.NewInstancedMesh(scene.NewBoxGeometry(1, 1, 1), scene.NewBasicMaterial("crowd", core.ColorWhite), 5)
	for i := range 5 {
		mesh.SetMatrixAt(i, mgl32.Translate3D(float32(i)*2, 0, 0))
	}
	mesh.SetColorAt(2, mgl32.Vec3{1, 0, 0})
	s.Add(scene.NewMeshNode("crowd", mesh))

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "DrawElementsInstanced", draws[0].Name)
	assert.Equal(t, []any{gpu.Triangles, 36, 0, 5}, draws[0].Args)
	src := source(rec, draws[0])
	assert.Contains(t, src, "#define USE_INSTANCING\n")
	assert.Contains(t, src, "#define USE_INSTANCING_COLOR\n")

	for col := range 4 {
		l := layoutAt(t, rec, uint32(locInstanceMatrix+col))
		assert.Equal(t, 4, l.Size)
		assert.Equal(t, 64, l.Stride)
		assert.Equal(t, col*16, l.Offset)
		assert.Equal(t, 1, l.Divisor)
	}
	assert.Equal(t, 1, layoutAt(t, rec, locInstanceColor).Divisor)
	assert.Equal(t, 60, r.Info().Render.Triangles)

	mesh.InstanceCount = 0
	rec.ResetCalls()
	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))
	assert.Empty(t, rec.Draws())
}

func TestWireframeDrawsTriangleEdgesAsLines(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s := scene.NewScene()
	mat := scene.NewBasicMaterial("wire", core.ColorWhite)
	mat.Wireframe = true
	mat.WireframeLinewidth = 2
	s.Add(meshNode("cube", scene.NewBoxGeometry(1, 1, 1), mat, mgl32.Vec3{}))
	cam := testCamera(mgl32.Vec3{0, 0, 10})

	require.NoError(t, r.Render(s, cam))

	draws := rec.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "DrawElements", draws[0].Name)
	assert.Equal(t, []any{gpu.Lines, 72, 0}, draws[0].Args)
	require.Equal(t, 1, rec.Count("LineWidth"))
	assert.Equal(t, []any{float32(2)}, rec.Named("LineWidth")[0].Args)
	assert.Equal(t, 36, r.Info().Render.Lines)

	mat.Wireframe = false
	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))
	draws = rec.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, []any{gpu.Triangles, 36, 0}, draws[0].Args)
	assert.Equal(t, 1, rec.Count("CreateVertexArray"), "solid and wireframe use separate vertex arrays")
	assert.Zero(t, rec.Count("CreateProgram"))
}

func TestGlobalClippingPlanesReachTheShader(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s, _, _, _, _ := cubesAndGlass()
	r.ClippingPlanes = []scene.Plane{{Normal: mgl32.Vec3{0, 1, 0}}}

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 3)
	for _, d := range draws {
		src := source(rec, d)
		assert.Contains(t, src, "#define NUM_CLIPPING_PLANES 1\n")
		assert.Contains(t, src, "#define UNION_CLIPPING_PLANES 1\n")
	}
	// The view only translates along z, so the plane keeps its normal.
	uploads := floatUploads(rec, draws[0].Program, "clippingPlanes")
	require.NotEmpty(t, uploads)
	assert.InDeltaSlice(t, []float32{0, 1, 0, 0}, uploads[0], 1e-5)
}

func TestLocalClippingIntersectionCountsUnionSeparately(t *testing.T) {
	opts := DefaultOptions()
	opts.LocalClippingEnabled = true
	r, rec := newTestRenderer(t, opts)
	r.ClippingPlanes = []scene.Plane{{Normal: mgl32.Vec3{0, 1, 0}}}

	mat := scene.NewBasicMaterial("cut", core.ColorWhite)
	mat.ClippingPlanes = []scene.Plane{{Normal: mgl32.Vec3{1, 0, 0}}, {Normal: mgl32.Vec3{0, 0, 1}, D: 1}}
	mat.ClipIntersection = true
	s := scene.NewScene()
	s.Add(meshNode("cube", scene.NewBoxGeometry(1, 1, 1), mat, mgl32.Vec3{}))

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 1)
	src := source(rec, draws[0])
	assert.Contains(t, src, "#define NUM_CLIPPING_PLANES 3\n")
	assert.Contains(t, src, "#define UNION_CLIPPING_PLANES 1\n")
	uploads := floatUploads(rec, draws[0].Program, "clippingPlanes")
	require.NotEmpty(t, uploads)
	assert.Len(t, uploads[0], 12)
}

func skinnedBox() *scene.Geometry {
	geo := scene.NewBoxGeometry(1, 1, 1)
	n := geo.Attributes[scene.AttrPosition].Count()
	weights := make([]float32, 4*n)
	for i := range n {
		weights[4*i] = 1
	}
	geo.SetAttribute(scene.AttrSkinIndex, &scene.Attribute{Uint: make([]uint32, 4*n), ItemSize: 4})
	geo.SetAttribute(scene.AttrSkinWeight, scene.NewFloatAttribute(weights, 4))
	return geo
}

func TestSkinnedMeshUploadsBonesAndIntegerJoints(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s := scene.NewScene()
	bone := scene.NewNode("bone")
	s.Add(bone)
	n := meshNode("body", skinnedBox(), scene.NewBasicMaterial("skin", core.ColorWhite), mgl32.Vec3{})
	n.Mesh.Skeleton = scene.NewSkeleton([]*scene.Node{bone}, nil)
	s.Add(n)

	bone.SetPosition(mgl32.Vec3{0, 2, 0})
	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 1)
	src := source(rec, draws[0])
	assert.Contains(t, src, "#define USE_SKINNING\n")
	assert.Contains(t, src, "#define MAX_BONES 64\n")

	joints := layoutAt(t, rec, locSkinIndex)
	assert.True(t, joints.Integer)
	assert.Equal(t, gpu.UnsignedInt, joints.Type)
	assert.False(t, layoutAt(t, rec, locSkinWeight).Integer)

	bones := floatUploads(rec, draws[0].Program, "boneMatrices")
	require.NotEmpty(t, bones)
	require.Len(t, bones[0], 16)
	assert.InDelta(t, 2, bones[0][13], 1e-5, "bone moved after binding")

	// Without joints the skeleton is ignored.
	plain := meshNode("plain", scene.NewBoxGeometry(1, 1, 1), scene.NewBasicMaterial("plain", core.ColorWhite), mgl32.Vec3{3, 0, 0})
	plain.Mesh.Skeleton = n.Mesh.Skeleton
	s.Add(plain)
	rec.ResetCalls()
	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))
	for _, d := range rec.Draws() {
		if d.Program != draws[0].Program {
			assert.NotContains(t, source(rec, d), "#define USE_SKINNING\n")
		}
	}
}

func TestMorphTargetsBindStreamsAndInfluences(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	geo := scene.NewBoxGeometry(1, 1, 1)
	n := geo.Attributes[scene.AttrPosition].Count()
	geo.AddMorphTarget(scene.AttrPosition, scene.NewFloatAttribute(make([]float32, 3*n), 3))
	geo.AddMorphTarget(scene.AttrPosition, scene.NewFloatAttribute(make([]float32, 3*n), 3))

	node := meshNode("blob", geo, scene.NewBasicMaterial("blob", core.ColorWhite), mgl32.Vec3{})
	node.Mesh.MorphTargetInfluences = []float32{0.25, 0.5}
	s := scene.NewScene()
	s.Add(node)

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 1)
	src := source(rec, draws[0])
	assert.Contains(t, src, "#define USE_MORPHTARGETS\n")
	assert.Contains(t, src, "#define MORPHTARGETS_COUNT 2\n")
	assert.Equal(t, 3, layoutAt(t, rec, locMorphTarget).Size)
	assert.Equal(t, 3, layoutAt(t, rec, locMorphTarget+1).Size)

	w := floatUploads(rec, draws[0].Program, "morphTargetInfluences")
	require.NotEmpty(t, w)
	assert.Equal(t, []float32{0.25, 0.5}, w[0])
}

func TestMorphTargetsClampToOption(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxMorphTargets = 1
	r, rec := newTestRenderer(t, opts)
	geo := scene.NewBoxGeometry(1, 1, 1)
	n := geo.Attributes[scene.AttrPosition].Count()
	for range 3 {
		geo.AddMorphTarget(scene.AttrPosition, scene.NewFloatAttribute(make([]float32, 3*n), 3))
	}
	node := meshNode("blob", geo, scene.NewBasicMaterial("blob", core.ColorWhite), mgl32.Vec3{})
	node.Mesh.MorphTargetInfluences = []float32{1, 1, 1}
	s := scene.NewScene()
	s.Add(node)

	require.NoError(t, r.Render(s, testCamera(mgl32.Vec3{0, 0, 10})))

	draws := rec.Draws()
	require.Len(t, draws, 1)
	assert.Contains(t, source(rec, draws[0]), "#define MORPHTARGETS_COUNT 1\n")
	w := floatUploads(rec, draws[0].Program, "morphTargetInfluences")
	require.NotEmpty(t, w)
	assert.Len(t, w[0], 1)
}

func TestFogDefinesFollowSceneAndMaterial(t *testing.T) {
	r, rec := newTestRenderer(t, DefaultOptions())
	s := scene.NewScene()
	box := scene.NewBoxGeometry(1, 1, 1)
	hazy := scene.NewLambertMaterial("hazy", core.ColorWhite)
	clear := scene.NewLambertMaterial("clear", core.ColorRed)
	clear.Fog = false
	s.Add(meshNode("hazy", box, hazy, mgl32.Vec3{-2, 0, 0}), meshNode("clear", box, clear, mgl32.Vec3{2, 0, 0}))
	cam := testCamera(mgl32.Vec3{0, 0, 10})

	require.NoError(t, r.Render(s, cam))
	require.Len(t, rec.Draws(), 2)
	for _, d := range rec.Draws() {
		assert.NotContains(t, source(rec, d), "#define USE_FOG\n")
	}

	s.Fog = scene.NewFogExp2(core.ColorWhite, 0.05)
	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))
	draws := rec.Draws()
	require.Len(t, draws, 2)
	byFog := map[bool]gputest.Call{}
	for _, d := range draws {
		byFog[hasDefine(rec, d, "USE_FOG")] = d
	}
	foggy, ok := byFog[true]
	require.True(t, ok, "no draw compiled with fog")
	assert.True(t, hasDefine(rec, foggy, "FOG_EXP2"))
	_, ok = byFog[false]
	assert.True(t, ok, "material without fog still compiled with it")
	density := floatUploads(rec, foggy.Program, "fogDensity")
	require.NotEmpty(t, density)
	assert.InDelta(t, 0.05, density[0][0], 1e-6)

	s.Fog = scene.NewFog(core.ColorWhite, 1, 50)
	rec.ResetCalls()
	require.NoError(t, r.Render(s, cam))
	assert.Equal(t, 1, rec.Count("CreateProgram"), "only the fogged material changes program")
	for _, d := range rec.Draws() {
		if hasDefine(rec, d, "USE_FOG") {
			assert.False(t, hasDefine(rec, d, "FOG_EXP2"))
			near := floatUploads(rec, d.Program, "fogNear")
			require.NotEmpty(t, near)
			assert.InDelta(t, 1, near[0][0], 1e-6)
		}
	}
}

func hasDefine(rec *gputest.Recorder, d gputest.Call, name string) bool {
	return strings.Contains(source(rec, d), "#define "+name+"\n")
}
