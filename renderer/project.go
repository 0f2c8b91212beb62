package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/scene"
)

// projection is what one traversal of a scene collects for a camera.
type projection struct {
	list    *RenderList
	lights  []*scene.Light
	shadows []*scene.Light

	camera   *scene.Camera
	frustum  scene.Frustum
	viewProj mgl32.Mat4
	sort     bool
	override *scene.Material
}

// project walks s once. Invisible nodes hide their subtree; layer tests
// apply per node. Meshes outside the camera frustum are culled.
func project(s *scene.Scene, cam *scene.Camera, list *RenderList, sortObjects bool, batch func(*scene.Material) int) *projection {
	p := &projection{
		list:     list,
		camera:   cam,
		viewProj: cam.ViewProjection(),
		sort:     sortObjects,
		override: s.OverrideMaterial,
	}
	p.frustum = scene.FrustumFromMatrix(p.viewProj)
	list.Init()
	list.batch = batch
	p.visit(s.Root, 0)
	list.Finish()
	if sortObjects {
		list.Sort()
	}
	return p
}

func (p *projection) visit(n *scene.Node, groupOrder int) {
	if !n.Visible {
		return
	}
	if n.IsGroup {
		groupOrder = n.RenderOrder
	}
	if n.Layers.Test(p.camera.Layers) {
		switch {
		case n.Light != nil:
			p.lights = append(p.lights, n.Light)
			if n.Light.CastsShadow() {
				p.shadows = append(p.shadows, n.Light)
			}
		case n.Mesh != nil:
			p.mesh(n, groupOrder)
		}
	}
	for _, c := range n.Children() {
		p.visit(c, groupOrder)
	}
}

func (p *projection) mesh(n *scene.Node, groupOrder int) {
	mesh := n.Mesh
	geo := mesh.Geometry
	if geo == nil || len(mesh.Materials) == 0 {
		return
	}
	sphere := geo.BoundingSphere
	if sphere == nil {
		s := geo.ComputeBoundingSphere()
		sphere = &s
	}
	world := sphere.ApplyMatrix(n.WorldMatrix())
	// Instances may lie anywhere, so instanced meshes are never culled.
	if n.FrustumCulled && !mesh.IsInstanced() && !sphere.Empty() && !p.frustum.IntersectsSphere(world) {
		return
	}

	var z float32
	if p.sort {
		clip := p.viewProj.Mul4x1(world.Center.Vec4(1))
		if clip[3] != 0 {
			z = clip[2] / clip[3]
		}
	}

	if p.override != nil {
		p.list.Push(n, geo, p.override, nil, groupOrder, z)
		return
	}
	if len(mesh.Materials) > 1 && len(geo.Groups) > 0 {
		for i := range geo.Groups {
			g := &geo.Groups[i]
			if m := mesh.MaterialFor(*g); m != nil && m.Visible {
				p.list.Push(n, geo, m, g, groupOrder, z)
			}
		}
		return
	}
	if m := mesh.Material(); m != nil && m.Visible {
		p.list.Push(n, geo, m, nil, groupOrder, z)
	}
}
