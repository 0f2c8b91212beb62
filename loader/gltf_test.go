package loader

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/scene"
)

func writeTriangle(t *testing.T) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})

	doc.Materials = []*gltf.Material{{
		Name: "leaf",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{0.2, 0.8, 0.2, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(0.6),
		},
		AlphaMode:   gltf.AlphaMask,
		AlphaCutoff: gltf.Float(0.3),
		DoubleSided: true,
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Material:   gltf.Index(0),
			Attributes: map[string]int{"POSITION": pos, "NORMAL": nrm},
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Children: []int{1}, Translation: [3]float64{0, 2, 0}},
		{Name: "leaf", Mesh: gltf.Index(0), Translation: [3]float64{1, 0, 0}},
	}
	doc.Scenes[0].Nodes = []int{0}

	path := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestLoadBuildsHierarchyGeometryAndMaterials(t *testing.T) {
	res, err := Load(writeTriangle(t))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.Roots, 1)
	root := res.Roots[0]
	assert.Equal(t, "root", root.Name)
	leaf := root.Find("leaf")
	require.NotNil(t, leaf)
	require.NotNil(t, leaf.Mesh)

	root.UpdateWorldMatrix(true)
	assert.True(t, leaf.WorldPosition().ApproxEqual(mgl32.Vec3{1, 2, 0}))

	geo := leaf.Mesh.Geometry
	require.NoError(t, geo.Validate())
	assert.Equal(t, 3, geo.Attribute(scene.AttrPosition).Count())
	assert.Equal(t, []uint32{0, 1, 2}, geo.Index.Uint)
	assert.NotNil(t, geo.Attribute(scene.AttrNormal))
	assert.NotNil(t, geo.BoundingSphere)

	require.Len(t, res.Materials, 1)
	m := res.Materials[0]
	assert.Same(t, m, leaf.Mesh.Material())
	assert.Equal(t, scene.KindStandard, m.Kind)
	assert.InDelta(t, 0.8, m.Color.G, 1e-6)
	assert.InDelta(t, 0.6, m.Roughness, 1e-6)
	assert.Zero(t, m.Metalness)
	assert.InDelta(t, 0.3, m.AlphaTest, 1e-6)
	assert.Equal(t, scene.DoubleSide, m.Side)
	assert.False(t, m.Transparent)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.glb"))
	assert.Error(t, err)
}
