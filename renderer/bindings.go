package renderer

import (
	"fmt"
	"slices"

	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// Fixed attribute locations shared by every program.
const (
	locPosition       = 0
	locNormal         = 1
	locUV             = 2
	locColor          = 3
	locTangent        = 4
	locSkinIndex      = 5
	locSkinWeight     = 6
	locInstanceColor  = 7
	locMorphTarget    = 8 // 8..11
	locInstanceMatrix = 12
	maxMorphBindings  = 4
)

var geometryLocations = map[string]uint32{
	scene.AttrPosition:   locPosition,
	scene.AttrNormal:     locNormal,
	scene.AttrUV:         locUV,
	scene.AttrColor:      locColor,
	scene.AttrTangent:    locTangent,
	scene.AttrSkinIndex:  locSkinIndex,
	scene.AttrSkinWeight: locSkinWeight,
}

// attribLocations is passed to every program link.
var attribLocations = map[string]uint32{
	scene.AttrPosition:       locPosition,
	scene.AttrNormal:         locNormal,
	scene.AttrUV:             locUV,
	scene.AttrColor:          locColor,
	scene.AttrTangent:        locTangent,
	scene.AttrSkinIndex:      locSkinIndex,
	scene.AttrSkinWeight:     locSkinWeight,
	scene.AttrInstanceColor:  locInstanceColor,
	"morphTarget0":           locMorphTarget,
	"morphTarget1":           locMorphTarget + 1,
	"morphTarget2":           locMorphTarget + 2,
	"morphTarget3":           locMorphTarget + 3,
	scene.AttrInstanceMatrix: locInstanceMatrix,
}

type vertexBinding struct {
	loc    uint32
	layout gpu.AttribLayout
}

type vaoKey struct {
	geo       *scene.Geometry
	instances *scene.Attribute
	colors    *scene.Attribute
	wireframe bool
}

type vertexArray struct {
	vao      gpu.VertexArray
	bindings []vertexBinding
	index    gpu.Buffer
}

type wireframeIndex struct {
	attr    *scene.Attribute
	version uint64
	count   int
}

// Bindings owns one vertex array per geometry (and instancing/wireframe
// variant) and keeps its attribute pointers in sync with the uploaded
// buffers.
type Bindings struct {
	dev     gpu.Device
	state   *StateTracker
	buffers *BufferUploader

	arrays     map[vaoKey]*vertexArray
	wireframes map[*scene.Geometry]*wireframeIndex
	watched    map[*scene.Geometry]bool
	// listening survives forget and Dispose so a geometry is subscribed once.
	listening  map[*scene.Geometry]bool

	scratch []vertexBinding
}

func NewBindings(dev gpu.Device, state *StateTracker, buffers *BufferUploader) *Bindings {
	return &Bindings{
		dev:        dev,
		state:      state,
		buffers:    buffers,
		arrays:     make(map[vaoKey]*vertexArray),
		wireframes: make(map[*scene.Geometry]*wireframeIndex),
		watched:    make(map[*scene.Geometry]bool),
		listening:  make(map[*scene.Geometry]bool),
	}
}

// Setup uploads every stream the mesh draws with, binds its vertex array
// and returns the index stream to draw with (nil for non-indexed drawing).
func (b *Bindings) Setup(mesh *scene.Mesh, geo *scene.Geometry, wireframe bool) (*scene.Attribute, error) {
	b.watch(geo)
	b.scratch = b.scratch[:0]

	for name, a := range geo.Attributes {
		loc, ok := geometryLocations[name]
		if !ok {
			continue
		}
		if err := b.bind(loc, a, a.ItemSize, 0, 0); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
	}
	for i, a := range geo.MorphAttributes[scene.AttrPosition] {
		if i == maxMorphBindings {
			break
		}
		if err := b.bind(uint32(locMorphTarget+i), a, a.ItemSize, 0, 0); err != nil {
			return nil, fmt.Errorf("morph target %d: %w", i, err)
		}
	}
	if mesh.InstanceMatrix != nil {
		for col := range 4 {
			if err := b.bind(uint32(locInstanceMatrix+col), mesh.InstanceMatrix, 4, 64, col*16); err != nil {
				return nil, fmt.Errorf("instance matrix: %w", err)
			}
		}
	}
	if mesh.InstanceColor != nil {
		if err := b.bind(locInstanceColor, mesh.InstanceColor, 3, 0, 0); err != nil {
			return nil, fmt.Errorf("instance color: %w", err)
		}
	}
	slices.SortFunc(b.scratch, func(x, y vertexBinding) int { return int(x.loc) - int(y.loc) })

	index := geo.Index
	if wireframe {
		index = b.wireframeIndex(geo)
	}
	var ibuf gpu.Buffer
	if index != nil {
		var err error
		if ibuf, err = b.buffers.Update(index, gpu.ElementArrayBuffer); err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
	}

	key := vaoKey{geo: geo, instances: mesh.InstanceMatrix, colors: mesh.InstanceColor, wireframe: wireframe}
	va := b.arrays[key]
	if va == nil {
		va = &vertexArray{vao: b.dev.CreateVertexArray()}
		b.arrays[key] = va
	}
	b.state.BindVertexArray(va.vao)
	b.sync(va, ibuf)
	return index, nil
}

// bind uploads a and queues a pointer at loc.
func (b *Bindings) bind(loc uint32, a *scene.Attribute, size, stride, offset int) error {
	buf, err := b.buffers.Update(a, gpu.ArrayBuffer)
	if err != nil {
		return err
	}
	typ := gpu.Float
	if a.IsInteger() {
		typ = gpu.UnsignedInt
	}
	b.scratch = append(b.scratch, vertexBinding{loc: loc, layout: gpu.AttribLayout{
		Buffer:     buf,
		Size:       size,
		Type:       typ,
		Normalized: a.Normalized,
		Integer:    a.IsInteger() && !a.Normalized,
		Stride:     stride,
		Offset:     offset,
		Divisor:    a.Divisor,
	}})
	return nil
}

// sync re-points the bound vertex array when its streams changed.
func (b *Bindings) sync(va *vertexArray, index gpu.Buffer) {
	if !slices.Equal(va.bindings, b.scratch) {
		for _, old := range va.bindings {
			if !slices.ContainsFunc(b.scratch, func(v vertexBinding) bool { return v.loc == old.loc }) {
				b.dev.DisableVertexAttrib(old.loc)
			}
		}
		for _, v := range b.scratch {
			b.dev.VertexAttrib(v.loc, v.layout)
		}
		va.bindings = append(va.bindings[:0], b.scratch...)
	}
	if va.index != index {
		b.dev.BindIndexBuffer(index)
		va.index = index
	}
}

// wireframeIndex returns a line list covering every triangle edge,
// rebuilt when the triangle index changes.
func (b *Bindings) wireframeIndex(geo *scene.Geometry) *scene.Attribute {
	var version uint64
	count := 0
	if geo.Index != nil {
		version, count = geo.Index.Version, geo.Index.Len()
	} else if pos := geo.Attributes[scene.AttrPosition]; pos != nil {
		version, count = pos.Version, pos.Count()
	}

	w := b.wireframes[geo]
	if w != nil && w.version == version && w.count == count {
		return w.attr
	}

	tri := func(i int) uint32 { return uint32(i) }
	if geo.Index != nil {
		tri = func(i int) uint32 { return geo.Index.Uint[i] }
	}
	lines := make([]uint32, 0, count*2)
	for i := 0; i+2 < count; i += 3 {
		a, c, d := tri(i), tri(i+1), tri(i+2)
		lines = append(lines, a, c, c, d, d, a)
	}

	if w == nil {
		w = &wireframeIndex{attr: scene.NewIndexAttribute(nil)}
		b.wireframes[geo] = w
	}
	w.attr.Uint = lines
	w.attr.NeedsUpdate()
	w.version, w.count = version, count
	return w.attr
}

func (b *Bindings) watch(geo *scene.Geometry) {
	if b.watched[geo] {
		return
	}
	b.watched[geo] = true
	if b.listening[geo] {
		return
	}
	b.listening[geo] = true
	geo.OnDispose(func() {
		delete(b.listening, geo)
		b.release(geo)
	})
}

// release frees every buffer and vertex array of geo.
func (b *Bindings) release(geo *scene.Geometry) {
	if !b.watched[geo] {
		return
	}
	delete(b.watched, geo)
	for key, va := range b.arrays {
		if key.geo != geo {
			continue
		}
		b.state.ForgetVertexArray(va.vao)
		b.dev.DeleteVertexArray(va.vao)
		delete(b.arrays, key)
	}
	for _, a := range geo.Attributes {
		b.buffers.Remove(a)
	}
	for _, targets := range geo.MorphAttributes {
		for _, a := range targets {
			b.buffers.Remove(a)
		}
	}
	if geo.Index != nil {
		b.buffers.Remove(geo.Index)
	}
	if w := b.wireframes[geo]; w != nil {
		b.buffers.Remove(w.attr)
		delete(b.wireframes, geo)
	}
	Logger().Debug("geometry released", "geometry", geo.Name)
}

// Dispose deletes every vertex array. Buffers belong to the uploader.
func (b *Bindings) Dispose() {
	for key, va := range b.arrays {
		b.dev.DeleteVertexArray(va.vao)
		delete(b.arrays, key)
	}
	clear(b.wireframes)
	clear(b.watched)
}

func (b *Bindings) forget() {
	clear(b.arrays)
	clear(b.wireframes)
	clear(b.watched)
}
