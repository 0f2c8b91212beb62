// Package loader builds scene graphs from glTF 2.0 and Wavefront OBJ files.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"render-pipeline/core"
	"render-pipeline/scene"
)

// Result is the content of one glTF file. Roots are ready to add to a
// scene; the other slices let callers share or dispose what was created.
type Result struct {
	Roots      []*scene.Node
	Materials  []*scene.Material
	Geometries []*scene.Geometry
	Textures   []*scene.Texture
	Skeletons  []*scene.Skeleton

	// Warnings lists parts that were skipped. The rest of the file loads.
	Warnings []error
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
}

// Load opens a .glb or .gltf file. Materials map onto the standard
// (metallic-roughness) kind; primitives with several targets keep their
// position morph targets; skins become skeletons bound to the node tree.
func Load(path string) (*Result, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	b := &builder{doc: doc, dir: filepath.Dir(path), res: &Result{}}
	b.textures()
	b.materials()
	b.meshes()
	if err := b.nodes(); err != nil {
		return nil, err
	}
	return b.res, nil
}

type builder struct {
	doc *gltf.Document
	dir string
	res *Result

	textureCache  []*scene.Texture
	materialCache []*scene.Material
	// primitives[mesh] holds one scene mesh per glTF primitive.
	primitives [][]*scene.Mesh
	nodeCache  []*scene.Node
}

func (b *builder) textures() {
	b.textureCache = make([]*scene.Texture, len(b.doc.Textures))
	for i, gt := range b.doc.Textures {
		if gt.Source == nil || *gt.Source >= len(b.doc.Images) {
			continue
		}
		img := b.doc.Images[*gt.Source]
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("gltf_img_%d", *gt.Source)
		}

		var tex *scene.Texture
		var err error
		switch {
		case img.BufferView != nil:
			var raw []byte
			raw, err = modeler.ReadBufferView(b.doc, b.doc.BufferViews[*img.BufferView])
			if err == nil {
				tex, err = decode(name, raw)
			}
		case img.IsEmbeddedResource():
			var raw []byte
			raw, err = img.MarshalData()
			if err == nil {
				tex, err = decode(name, raw)
			}
		case img.URI != "":
			tex, err = scene.LoadTexture(filepath.Join(b.dir, img.URI))
		default:
			err = errors.New("no image source")
		}
		if err != nil {
			b.res.warn("image %d: %w", *gt.Source, err)
			continue
		}
		// glTF images are stored top row first, which is what the UV
		// convention of the format expects.
		tex.FlipY = false
		b.textureCache[i] = tex
		b.res.Textures = append(b.res.Textures, tex)
	}
}

func decode(name string, data []byte) (*scene.Texture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	t := scene.NewTexture(name, img)
	t.ColorSpace = scene.SRGBColorSpace
	return t, nil
}

// texture returns the cached texture at index, or nil.
func (b *builder) texture(index int) *scene.Texture {
	if index < 0 || index >= len(b.textureCache) {
		return nil
	}
	return b.textureCache[index]
}

// linear marks a texture as holding non-colour data.
func linear(t *scene.Texture) *scene.Texture {
	if t != nil {
		t.ColorSpace = scene.LinearSRGBColorSpace
	}
	return t
}

func (b *builder) materials() {
	b.materialCache = make([]*scene.Material, len(b.doc.Materials))
	for i, gm := range b.doc.Materials {
		m := scene.NewStandardMaterial(gm.Name, core.ColorWhite, 1, 1)
		if m.Name == "" {
			m.Name = fmt.Sprintf("gltf_mat_%d", i)
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			m.Color = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: 1}
			m.Opacity = float32(cf[3])
			m.Metalness = float32(pbr.MetallicFactorOrDefault())
			m.Roughness = float32(pbr.RoughnessFactorOrDefault())
			if pbr.BaseColorTexture != nil {
				m.Map = b.texture(pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				// One texture feeds both: roughness in G, metalness in B.
				t := linear(b.texture(pbr.MetallicRoughnessTexture.Index))
				m.RoughnessMap, m.MetalnessMap = t, t
			}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			m.NormalMap = linear(b.texture(*gm.NormalTexture.Index))
			s := float32(gm.NormalTexture.ScaleOrDefault())
			m.NormalScale = mgl32.Vec2{s, s}
		}
		if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
			m.AOMap = linear(b.texture(*gm.OcclusionTexture.Index))
		}
		if gm.EmissiveTexture != nil {
			m.EmissiveMap = b.texture(gm.EmissiveTexture.Index)
		}
		ef := gm.EmissiveFactor
		m.Emissive = core.Color{R: float32(ef[0]), G: float32(ef[1]), B: float32(ef[2]), A: 1}

		switch gm.AlphaMode {
		case gltf.AlphaBlend:
			m.Transparent = true
			m.DepthWrite = false
		case gltf.AlphaMask:
			m.AlphaTest = float32(gm.AlphaCutoffOrDefault())
		}
		if gm.DoubleSided {
			m.Side = scene.DoubleSide
		}
		b.materialCache[i] = m
		b.res.Materials = append(b.res.Materials, m)
	}
}

func (b *builder) meshes() {
	b.primitives = make([][]*scene.Mesh, len(b.doc.Meshes))
	var fallback *scene.Material
	for mi, gm := range b.doc.Meshes {
		for pi, prim := range gm.Primitives {
			geo, err := b.geometry(gm.Name, pi, prim)
			if err != nil {
				b.res.warn("mesh %d primitive %d: %w", mi, pi, err)
				continue
			}
			var mat *scene.Material
			if prim.Material != nil && *prim.Material < len(b.materialCache) {
				mat = b.materialCache[*prim.Material]
			} else {
				if fallback == nil {
					fallback = scene.NewStandardMaterial("gltf_default", core.ColorWhite, 1, 1)
					b.res.Materials = append(b.res.Materials, fallback)
				}
				mat = fallback
			}
			mesh := scene.NewMesh(geo, mat)
			mesh.Mode = drawMode(prim.Mode)
			if n := geo.MorphTargetCount(); n > 0 {
				mesh.MorphTargetInfluences = make([]float32, n)
				for i, w := range gm.Weights {
					if i < n {
						mesh.MorphTargetInfluences[i] = float32(w)
					}
				}
			}
			b.primitives[mi] = append(b.primitives[mi], mesh)
			b.res.Geometries = append(b.res.Geometries, geo)
		}
	}
}

func drawMode(m gltf.PrimitiveMode) scene.DrawMode {
	switch m {
	case gltf.PrimitivePoints:
		return scene.DrawPoints
	case gltf.PrimitiveLines:
		return scene.DrawLines
	case gltf.PrimitiveLineStrip:
		return scene.DrawLineStrip
	case gltf.PrimitiveLineLoop:
		return scene.DrawLineLoop
	}
	return scene.DrawTriangles
}

// geometry converts one primitive into vertex streams.
func (b *builder) geometry(meshName string, index int, prim *gltf.Primitive) (*scene.Geometry, error) {
	name := fmt.Sprintf("%s_p%d", meshName, index)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", index)
	}
	doc := b.doc

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, errors.New("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	geo := scene.NewGeometry(name)
	geo.SetAttribute(scene.AttrPosition, vec3Attribute(positions))

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
		geo.SetAttribute(scene.AttrNormal, vec3Attribute(normals))
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
		flat := make([]float32, 0, len(uvs)*2)
		for _, uv := range uvs {
			flat = append(flat, uv[0], uv[1])
		}
		geo.SetAttribute(scene.AttrUV, scene.NewFloatAttribute(flat, 2))
	}
	if idx, ok := prim.Attributes["TANGENT"]; ok {
		tangents, err := modeler.ReadTangent(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("tangents: %w", err)
		}
		geo.SetAttribute(scene.AttrTangent, vec4Attribute(tangents))
	}
	if idx, ok := prim.Attributes["JOINTS_0"]; ok {
		joints, err := modeler.ReadJoints(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
		flat := make([]uint32, 0, len(joints)*4)
		for _, j := range joints {
			flat = append(flat, uint32(j[0]), uint32(j[1]), uint32(j[2]), uint32(j[3]))
		}
		geo.SetAttribute(scene.AttrSkinIndex, &scene.Attribute{Uint: flat, ItemSize: 4})
	}
	if idx, ok := prim.Attributes["WEIGHTS_0"]; ok {
		weights, err := modeler.ReadWeights(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		geo.SetAttribute(scene.AttrSkinWeight, vec4Attribute(weights))
	}
	for ti, target := range prim.Targets {
		idx, ok := target["POSITION"]
		if !ok {
			continue
		}
		deltas, err := modeler.ReadPosition(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("morph target %d: %w", ti, err)
		}
		geo.AddMorphTarget(scene.AttrPosition, vec3Attribute(deltas))
	}

	if prim.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		geo.SetIndex(indices)
	}
	if geo.Attribute(scene.AttrTangent) == nil {
		scene.ComputeTangents(geo)
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	for _, a := range geo.Attributes {
		a.Version = 1
	}
	if geo.Index != nil {
		geo.Index.Version = 1
	}
	geo.ComputeBoundingSphere()
	return geo, nil
}

func vec3Attribute(v [][3]float32) *scene.Attribute {
	flat := make([]float32, 0, len(v)*3)
	for _, p := range v {
		flat = append(flat, p[0], p[1], p[2])
	}
	return scene.NewFloatAttribute(flat, 3)
}

func vec4Attribute(v [][4]float32) *scene.Attribute {
	flat := make([]float32, 0, len(v)*4)
	for _, p := range v {
		flat = append(flat, p[0], p[1], p[2], p[3])
	}
	return scene.NewFloatAttribute(flat, 4)
}

func (b *builder) nodes() error {
	doc := b.doc
	b.nodeCache = make([]*scene.Node, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		name := gn.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		n := scene.NewNode(name)
		b.transform(n, gn)

		if gn.Mesh != nil && *gn.Mesh < len(b.primitives) {
			prims := b.primitives[*gn.Mesh]
			switch len(prims) {
			case 0:
			case 1:
				n.Mesh = prims[0]
			default:
				for pi, p := range prims {
					n.AddChild(scene.NewMeshNode(fmt.Sprintf("%s_prim%d", name, pi), p))
				}
			}
		}
		b.nodeCache[i] = n
	}

	hasParent := make([]bool, len(b.nodeCache))
	for i, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c >= len(b.nodeCache) || hasParent[c] || c == i {
				return fmt.Errorf("gltf: node %d has an invalid child %d", i, c)
			}
			hasParent[c] = true
			b.nodeCache[i].AddChild(b.nodeCache[c])
		}
	}

	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		for _, root := range doc.Scenes[*doc.Scene].Nodes {
			if root < len(b.nodeCache) {
				b.res.Roots = append(b.res.Roots, b.nodeCache[root])
			}
		}
	} else {
		for i, n := range b.nodeCache {
			if !hasParent[i] {
				b.res.Roots = append(b.res.Roots, n)
			}
		}
	}

	// Skins need the final hierarchy for their bind pose.
	for _, root := range b.res.Roots {
		root.UpdateWorldMatrix(true)
	}
	for i, gn := range doc.Nodes {
		if gn.Skin == nil || *gn.Skin >= len(doc.Skins) {
			continue
		}
		sk, err := b.skeleton(doc.Skins[*gn.Skin])
		if err != nil {
			b.res.warn("skin %d: %w", *gn.Skin, err)
			continue
		}
		b.bindSkeleton(b.nodeCache[i], sk)
	}
	return nil
}

var identity = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func (b *builder) transform(n *scene.Node, gn *gltf.Node) {
	if m := gn.MatrixOrDefault(); m != identity {
		var local mgl32.Mat4
		for i, v := range m {
			local[i] = float32(v)
		}
		n.SetLocalMatrix(local)
		return
	}
	t := gn.TranslationOrDefault()
	n.SetPosition(mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])})
	s := gn.ScaleOrDefault()
	n.SetScale(mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])})
	r := gn.RotationOrDefault()
	n.SetRotation(mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}})
}

func (b *builder) skeleton(skin *gltf.Skin) (*scene.Skeleton, error) {
	bones := make([]*scene.Node, len(skin.Joints))
	for i, j := range skin.Joints {
		if j >= len(b.nodeCache) {
			return nil, fmt.Errorf("joint %d out of range", j)
		}
		bones[i] = b.nodeCache[j]
	}
	var inverses []mgl32.Mat4
	if skin.InverseBindMatrices != nil {
		data, err := modeler.ReadAccessor(b.doc, b.doc.Accessors[*skin.InverseBindMatrices], nil)
		if err != nil {
			return nil, fmt.Errorf("inverse bind matrices: %w", err)
		}
		mats, ok := data.([][4][4]float32)
		if !ok || len(mats) < len(bones) {
			return nil, errors.New("inverse bind matrices: unexpected accessor layout")
		}
		inverses = make([]mgl32.Mat4, len(bones))
		for i := range bones {
			for c := range 4 {
				for r := range 4 {
					inverses[i][c*4+r] = mats[i][c][r]
				}
			}
		}
	}
	sk := scene.NewSkeleton(bones, inverses)
	b.res.Skeletons = append(b.res.Skeletons, sk)
	return sk, nil
}

// bindSkeleton attaches sk to every skinned mesh of n.
func (b *builder) bindSkeleton(n *scene.Node, sk *scene.Skeleton) {
	attach := func(m *scene.Mesh) {
		if m == nil || m.Geometry.Attribute(scene.AttrSkinIndex) == nil {
			return
		}
		m.Skeleton = sk
		m.BindMatrix = n.WorldMatrix()
	}
	attach(n.Mesh)
	for _, c := range n.Children() {
		attach(c.Mesh)
	}
}
