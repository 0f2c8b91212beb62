package renderer

import (
	"cmp"
	"slices"

	"render-pipeline/scene"
)

// RenderItem is one draw of a mesh: a node, its geometry and one material,
// optionally restricted to a geometry group.
type RenderItem struct {
	ID          int
	Node        *scene.Node
	Geometry    *scene.Geometry
	Material    *scene.Material
	Group       scene.Group
	HasGroup    bool
	Z           float32
	RenderOrder int
	GroupOrder  int
	// Batch is the ID of the program the material last drew with, zero
	// before its first draw. Opaque items sharing a program sort together.
	Batch int
}

// RenderList holds the items of one frame for one camera. Items live in an
// arena reused across frames; the buckets index into it.
type RenderList struct {
	items []RenderItem
	n     int

	Opaque       []int32
	Transmissive []int32
	Transparent  []int32

	// batch looks up RenderItem.Batch for a material. Nil leaves it zero.
	batch func(*scene.Material) int
}

// Init empties the list, keeping its storage.
func (l *RenderList) Init() {
	l.n = 0
	l.Opaque = l.Opaque[:0]
	l.Transmissive = l.Transmissive[:0]
	l.Transparent = l.Transparent[:0]
}

// Push appends an item to the bucket its material belongs in.
func (l *RenderList) Push(node *scene.Node, geo *scene.Geometry, mat *scene.Material, group *scene.Group, groupOrder int, z float32) {
	if l.n == len(l.items) {
		l.items = append(l.items, RenderItem{})
	}
	it := &l.items[l.n]
	*it = RenderItem{
		ID:          int(node.ID),
		Node:        node,
		Geometry:    geo,
		Material:    mat,
		Z:           z,
		RenderOrder: node.RenderOrder,
		GroupOrder:  groupOrder,
	}
	if group != nil {
		it.Group, it.HasGroup = *group, true
	}
	if l.batch != nil {
		it.Batch = l.batch(mat)
	}
	idx := int32(l.n)
	l.n++

	switch {
	case mat.Transmission > 0:
		l.Transmissive = append(l.Transmissive, idx)
	case mat.Transparent:
		l.Transparent = append(l.Transparent, idx)
	default:
		l.Opaque = append(l.Opaque, idx)
	}
}

// Item returns the item at arena index i.
func (l *RenderList) Item(i int32) *RenderItem { return &l.items[i] }

// Len returns the number of items pushed since Init.
func (l *RenderList) Len() int { return l.n }

// Finish drops references held by arena slots unused this frame.
func (l *RenderList) Finish() {
	for i := l.n; i < len(l.items); i++ {
		if l.items[i].Node == nil {
			break
		}
		l.items[i] = RenderItem{}
	}
}

// Sort orders the buckets. Opaque items go front to back grouped by
// program; blended items go back to front. The sort is stable.
func (l *RenderList) Sort() {
	slices.SortStableFunc(l.Opaque, func(a, b int32) int {
		x, y := &l.items[a], &l.items[b]
		if c := cmp.Compare(x.GroupOrder, y.GroupOrder); c != 0 {
			return c
		}
		if c := cmp.Compare(x.RenderOrder, y.RenderOrder); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Batch, y.Batch); c != 0 {
			return c
		}
		return cmp.Compare(x.Z, y.Z)
	})
	back := func(a, b int32) int {
		x, y := &l.items[a], &l.items[b]
		if c := cmp.Compare(x.GroupOrder, y.GroupOrder); c != 0 {
			return c
		}
		if c := cmp.Compare(x.RenderOrder, y.RenderOrder); c != 0 {
			return c
		}
		return cmp.Compare(y.Z, x.Z)
	}
	slices.SortStableFunc(l.Transmissive, back)
	slices.SortStableFunc(l.Transparent, back)
}

// listKey identifies a render list by scene and nesting depth.
type listKey struct {
	scene *scene.Scene
	depth int
}

// RenderLists keeps one list per scene and nesting depth, so a render
// started from inside another render does not clobber the outer list.
type RenderLists struct {
	lists map[listKey]*RenderList
}

func NewRenderLists() *RenderLists {
	return &RenderLists{lists: make(map[listKey]*RenderList)}
}

// Get returns the list for s at depth, creating it on first use.
func (r *RenderLists) Get(s *scene.Scene, depth int) *RenderList {
	k := listKey{s, depth}
	l := r.lists[k]
	if l == nil {
		l = &RenderList{}
		r.lists[k] = l
	}
	return l
}

func (r *RenderLists) Dispose() { clear(r.lists) }
