package renderer

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/scene"
)

type pushed struct {
	node *scene.Node
	mat  *scene.Material
	z    float32
}

func names(l *RenderList, bucket []int32) []string {
	out := make([]string, len(bucket))
	for i, idx := range bucket {
		out[i] = l.Item(idx).Node.Name
	}
	return out
}

func TestPushAssignsBuckets(t *testing.T) {
	geo := scene.NewBoxGeometry(1, 1, 1)
	opaque := scene.NewBasicMaterial("opaque", core.ColorWhite)
	glass := scene.NewBasicMaterial("glass", core.ColorWhite)
	glass.Transparent = true
	jade := scene.NewPhysicalMaterial("jade", core.ColorGreen)
	jade.Transmission = 0.8
	jade.Transparent = true

	var l RenderList
	l.Init()
	l.Push(scene.NewNode("a"), geo, opaque, nil, 0, 1)
	l.Push(scene.NewNode("b"), geo, glass, nil, 0, 1)
	l.Push(scene.NewNode("c"), geo, jade, nil, 0, 1)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"a"}, names(&l, l.Opaque))
	assert.Equal(t, []string{"b"}, names(&l, l.Transparent))
	assert.Equal(t, []string{"c"}, names(&l, l.Transmissive))

	l.Init()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Opaque)
}

func TestSortIsStableUnderShuffledInput(t *testing.T) {
	geo := scene.NewBoxGeometry(1, 1, 1)
	a := scene.NewBasicMaterial("a", core.ColorWhite)
	b := scene.NewBasicMaterial("b", core.ColorWhite)
	glass := scene.NewBasicMaterial("glass", core.ColorWhite)
	glass.Transparent = true

	var items []pushed
	for i, z := range []float32{3, 1, 2} {
		items = append(items, pushed{scene.NewNode("a" + string(rune('0'+i))), a, z})
		items = append(items, pushed{scene.NewNode("b" + string(rune('0'+i))), b, z})
		items = append(items, pushed{scene.NewNode("t" + string(rune('0'+i))), glass, z})
	}
	// Equal keys: only push order can separate these.
	items = append(items,
		pushed{scene.NewNode("tie1"), glass, 5},
		pushed{scene.NewNode("tie2"), glass, 5},
	)

	// a and b stand for two different programs.
	l := RenderList{batch: func(m *scene.Material) int {
		if m == a {
			return 1
		}
		return 2
	}}
	fill := func(in []pushed) {
		l.Init()
		for _, p := range in {
			l.Push(p.node, geo, p.mat, nil, 0, p.z)
		}
		l.Sort()
	}

	fill(items)
	opaque := names(&l, l.Opaque)
	transparent := names(&l, l.Transparent)
	assert.Equal(t, []string{"a1", "a2", "a0", "b1", "b2", "b0"}, opaque)
	assert.Equal(t, []string{"tie1", "tie2", "t0", "t2", "t1"}, transparent)

	rng := rand.New(rand.NewPCG(7, 11))
	for range 20 {
		shuffled := append([]pushed(nil), items...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		fill(shuffled)
		assert.Equal(t, opaque, names(&l, l.Opaque))

		// The ties come back in the order they were pushed.
		got := names(&l, l.Transparent)
		require.Len(t, got, 5)
		assert.Equal(t, transparent[2:], got[2:])
		tie1 := indexOf(shuffled, "tie1")
		tie2 := indexOf(shuffled, "tie2")
		if tie1 < tie2 {
			assert.Equal(t, []string{"tie1", "tie2"}, got[:2])
		} else {
			assert.Equal(t, []string{"tie2", "tie1"}, got[:2])
		}
	}
}

func indexOf(items []pushed, name string) int {
	for i, p := range items {
		if p.node.Name == name {
			return i
		}
	}
	return -1
}

func TestRenderOrderOverridesDepth(t *testing.T) {
	geo := scene.NewBoxGeometry(1, 1, 1)
	m := scene.NewBasicMaterial("m", core.ColorWhite)
	near, far := scene.NewNode("near"), scene.NewNode("far")
	far.RenderOrder = -1

	var l RenderList
	l.Init()
	l.Push(near, geo, m, nil, 0, 1)
	l.Push(far, geo, m, nil, 0, 9)
	l.Sort()
	assert.Equal(t, []string{"far", "near"}, names(&l, l.Opaque))
}

func TestOpaqueWithoutBatchSortsByDepthAlone(t *testing.T) {
	geo := scene.NewBoxGeometry(1, 1, 1)
	first := scene.NewLambertMaterial("first", core.ColorRed)
	second := scene.NewLambertMaterial("second", core.ColorBlue)
	require.Less(t, first.ID, second.ID)

	var l RenderList
	l.Init()
	l.Push(scene.NewNode("far"), geo, first, nil, 0, 0.9)
	l.Push(scene.NewNode("near"), geo, second, nil, 0, 0.2)
	l.Sort()
	assert.Equal(t, []string{"near", "far"}, names(&l, l.Opaque))
}

func TestListsAreKeyedByDepth(t *testing.T) {
	s := scene.NewScene()
	lists := NewRenderLists()
	outer := lists.Get(s, 0)
	assert.Same(t, outer, lists.Get(s, 0))
	assert.NotSame(t, outer, lists.Get(s, 1))
	assert.NotSame(t, outer, lists.Get(scene.NewScene(), 0))
}
