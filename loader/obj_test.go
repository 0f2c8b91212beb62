package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/scene"
)

const quadOBJ = `# two triangles sharing an edge
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
o quad
usemtl red
f 1/1 2/2 3/3 4/4
o tri
usemtl missing
f -4 -3 -2
`

const quadMTL = `newmtl red
Kd 1 0 0
Ks 0.5 0.5 0.5
Ns 64
d 0.5
map_Kd nothere.png
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestLoadOBJGroupsMaterialsAndNormals(t *testing.T) {
	dir := writeFiles(t, map[string]string{"model.obj": quadOBJ, "quad.mtl": quadMTL})
	res, err := LoadFile(filepath.Join(dir, "model.obj"))
	require.NoError(t, err)

	require.Len(t, res.Roots, 1)
	root := res.Roots[0]
	assert.Equal(t, "model", root.Name)
	require.Len(t, root.Children(), 2)
	require.Len(t, res.Geometries, 2)

	quad := root.Find("quad")
	require.NotNil(t, quad)
	geo := quad.Mesh.Geometry
	require.NoError(t, geo.Validate())
	assert.Equal(t, 4, geo.Attribute(scene.AttrPosition).Count())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, geo.Index.Uint)
	n := geo.Attribute(scene.AttrNormal).XYZ(0)
	assert.InDelta(t, 1, n.Z(), 1e-6)

	red := quad.Mesh.Material()
	assert.Equal(t, "red", red.Name)
	assert.Equal(t, scene.KindPhong, red.Kind)
	assert.InDelta(t, 1, red.Color.R, 1e-6)
	assert.InDelta(t, 64, red.Shininess, 1e-6)
	assert.True(t, red.Transparent)
	assert.Nil(t, red.Map)

	tri := root.Find("tri")
	require.NotNil(t, tri)
	assert.Equal(t, "default", tri.Mesh.Material().Name)
	assert.Equal(t, 3, tri.Mesh.Geometry.Attribute(scene.AttrPosition).Count())

	// The missing diffuse map is reported, not fatal.
	require.Len(t, res.Warnings, 1)
	assert.Len(t, res.Materials, 2)
}

func TestLoadOBJRejectsBadFaces(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.obj": "v 0 0 0\nf 1 2 3\n"})
	_, err := LoadOBJ(filepath.Join(dir, "bad.obj"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.obj:2")

	dir = writeFiles(t, map[string]string{"empty.obj": "v 0 0 0\n"})
	_, err = LoadOBJ(filepath.Join(dir, "empty.obj"))
	assert.Error(t, err)
}

func TestLoadFileUnknownExtension(t *testing.T) {
	_, err := LoadFile("model.fbx")
	assert.Error(t, err)
}
