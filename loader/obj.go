package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
	"render-pipeline/scene"
)

// LoadFile picks the loader from the file extension.
func LoadFile(path string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path)
	case ".gltf", ".glb":
		return Load(path)
	default:
		return nil, fmt.Errorf("load %q: unknown model format", path)
	}
}

type objCorner struct{ v, vt, vn int }

type objGroup struct {
	name     string
	material string
	corners  []objCorner // three per triangle
}

type objReader struct {
	path string
	dir  string
	res  *Result

	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2

	materials map[string]*scene.Material
	groups    []*objGroup
	cur       *objGroup
}

// LoadOBJ parses a Wavefront .obj file into one mesh node per object or
// group, all under a single root. Materials from referenced .mtl files map
// onto the phong kind. Polygons are fan-triangulated.
func LoadOBJ(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	r := &objReader{
		path:      path,
		dir:       filepath.Dir(path),
		res:       &Result{},
		materials: map[string]*scene.Material{},
	}
	r.cur = &objGroup{name: "default"}

	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		if err := r.line(strings.Fields(sc.Text())); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read obj %q: %w", path, err)
	}
	r.flush()
	if len(r.groups) == 0 {
		return nil, fmt.Errorf("obj %q: no faces", path)
	}

	root := scene.NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, g := range r.groups {
		geo := r.geometry(g)
		mat, ok := r.materials[g.material]
		if !ok {
			mat = scene.NewPhongMaterial("default", core.ColorWhite)
			r.materials[g.material] = mat
			r.res.Materials = append(r.res.Materials, mat)
		}
		root.AddChild(scene.NewMeshNode(g.name, scene.NewMesh(geo, mat)))
		r.res.Geometries = append(r.res.Geometries, geo)
	}
	r.res.Roots = []*scene.Node{root}
	return r.res, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range out {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func (r *objReader) line(fields []string) error {
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "v":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		r.positions = append(r.positions, mgl32.Vec3{v[0], v[1], v[2]})
	case "vn":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		r.normals = append(r.normals, mgl32.Vec3{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		r.uvs = append(r.uvs, mgl32.Vec2{v[0], v[1]})
	case "o", "g":
		r.flush()
		name := "default"
		if len(args) > 0 {
			name = args[0]
		}
		r.cur = &objGroup{name: name, material: r.cur.material}
	case "usemtl":
		if len(args) > 0 {
			if len(r.cur.corners) > 0 {
				name := r.cur.name
				r.flush()
				r.cur = &objGroup{name: name}
			}
			r.cur.material = args[0]
		}
	case "mtllib":
		for _, name := range args {
			if err := r.loadMTL(filepath.Join(r.dir, name)); err != nil {
				r.res.warn("mtllib %q: %w", name, err)
			}
		}
	case "f":
		if len(args) < 3 {
			return fmt.Errorf("face with %d vertices", len(args))
		}
		corners := make([]objCorner, len(args))
		for i, tok := range args {
			c, err := r.corner(tok)
			if err != nil {
				return err
			}
			corners[i] = c
		}
		for i := 1; i+1 < len(corners); i++ {
			r.cur.corners = append(r.cur.corners, corners[0], corners[i], corners[i+1])
		}
	}
	return nil
}

func (r *objReader) flush() {
	if r.cur != nil && len(r.cur.corners) > 0 {
		r.groups = append(r.groups, r.cur)
	}
}

// corner parses "v", "v/vt", "v//vn" or "v/vt/vn" into 0-based indices,
// -1 when absent. Negative indices count back from the latest element.
func (r *objReader) corner(tok string) (objCorner, error) {
	c := objCorner{-1, -1, -1}
	counts := [3]int{len(r.positions), len(r.uvs), len(r.normals)}
	out := [3]*int{&c.v, &c.vt, &c.vn}
	for i, part := range strings.SplitN(tok, "/", 3) {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return c, fmt.Errorf("face index %q: %w", tok, err)
		}
		if n < 0 {
			n += counts[i]
		} else {
			n--
		}
		if n < 0 || n >= counts[i] {
			return c, fmt.Errorf("face index %q out of range", tok)
		}
		*out[i] = n
	}
	if c.v < 0 {
		return c, fmt.Errorf("face vertex %q has no position", tok)
	}
	return c, nil
}

// geometry deduplicates corners into an indexed geometry. Groups without
// normals get area-weighted vertex normals.
func (r *objReader) geometry(g *objGroup) *scene.Geometry {
	seen := map[objCorner]uint32{}
	var pos, nrm, uv []float32
	index := make([]uint32, 0, len(g.corners))
	hasNormals := true
	for _, c := range g.corners {
		if i, ok := seen[c]; ok {
			index = append(index, i)
			continue
		}
		i := uint32(len(pos) / 3)
		seen[c] = i
		index = append(index, i)

		p := r.positions[c.v]
		pos = append(pos, p[0], p[1], p[2])
		var n mgl32.Vec3
		if c.vn >= 0 {
			n = r.normals[c.vn]
		} else {
			hasNormals = false
		}
		nrm = append(nrm, n[0], n[1], n[2])
		var t mgl32.Vec2
		if c.vt >= 0 {
			t = r.uvs[c.vt]
		}
		uv = append(uv, t[0], t[1])
	}
	if !hasNormals {
		nrm = vertexNormals(pos, index)
	}

	geo := scene.NewGeometry(g.name)
	geo.SetAttribute(scene.AttrPosition, scene.NewFloatAttribute(pos, 3))
	geo.SetAttribute(scene.AttrNormal, scene.NewFloatAttribute(nrm, 3))
	geo.SetAttribute(scene.AttrUV, scene.NewFloatAttribute(uv, 2))
	geo.SetIndex(index)
	geo.ComputeBoundingSphere()
	return geo
}

func vertexNormals(pos []float32, index []uint32) []float32 {
	at := func(i uint32) mgl32.Vec3 { return mgl32.Vec3{pos[3*i], pos[3*i+1], pos[3*i+2]} }
	acc := make([]mgl32.Vec3, len(pos)/3)
	for i := 0; i+2 < len(index); i += 3 {
		a, b, c := index[i], index[i+1], index[i+2]
		n := at(b).Sub(at(a)).Cross(at(c).Sub(at(a)))
		acc[a], acc[b], acc[c] = acc[a].Add(n), acc[b].Add(n), acc[c].Add(n)
	}
	out := make([]float32, 0, len(pos))
	for _, n := range acc {
		if n.Len() > 0 {
			n = n.Normalize()
		} else {
			n = mgl32.Vec3{0, 1, 0}
		}
		out = append(out, n[0], n[1], n[2])
	}
	return out
}

func (r *objReader) loadMTL(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var cur *scene.Material
	color := func(args []string) (core.Color, bool) {
		v, err := parseFloats(args, 3)
		if err != nil {
			return core.Color{}, false
		}
		return core.Color{R: v[0], G: v[1], B: v[2], A: 1}, true
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		args := fields[1:]
		if fields[0] == "newmtl" {
			if len(args) == 0 {
				continue
			}
			cur = scene.NewPhongMaterial(args[0], core.ColorWhite)
			r.materials[args[0]] = cur
			r.res.Materials = append(r.res.Materials, cur)
			continue
		}
		if cur == nil || len(args) == 0 {
			continue
		}
		switch fields[0] {
		case "Kd":
			if c, ok := color(args); ok {
				cur.Color = c
			}
		case "Ks":
			if c, ok := color(args); ok {
				cur.Specular = c
			}
		case "Ke":
			if c, ok := color(args); ok {
				cur.Emissive = c
			}
		case "Ns":
			if v, err := parseFloats(args, 1); err == nil {
				cur.Shininess = math32.Max(1, v[0])
			}
		case "d":
			if v, err := parseFloats(args, 1); err == nil && v[0] < 1 {
				cur.Opacity, cur.Transparent = v[0], true
			}
		case "map_Kd", "map_Bump", "bump", "map_Ke":
			tex, err := scene.LoadTexture(filepath.Join(r.dir, args[len(args)-1]))
			if err != nil {
				r.res.warn("mtl %q texture: %w", cur.Name, err)
				continue
			}
			switch fields[0] {
			case "map_Kd":
				cur.Map = tex
			case "map_Ke":
				cur.EmissiveMap = tex
			default:
				tex.ColorSpace = scene.LinearSRGBColorSpace
				cur.NormalMap = tex
			}
			r.res.Textures = append(r.res.Textures, tex)
		}
	}
	return sc.Err()
}
