package scene

import "render-pipeline/core"

// NewGridGeometry builds a flat grid on the XZ plane for DrawLines with a
// per-vertex colour stream.
//
//	size      - total world-space extent (grid goes from -size/2 to +size/2)
//	divisions - number of cells along each axis
//
// The X-axis centre line is red, the Z-axis centre line is blue, and all
// other lines are dark gray.
func NewGridGeometry(size float32, divisions int) *Geometry {
	if divisions < 1 {
		divisions = 1
	}

	half := size / 2
	step := size / float32(divisions)

	gray := core.Color{R: 0.35, G: 0.35, B: 0.35, A: 1}
	red := core.Color{R: 0.8, G: 0.15, B: 0.15, A: 1}
	blue := core.Color{R: 0.15, G: 0.35, B: 0.9, A: 1}

	var pos, col []float32
	addLine := func(x0, z0, x1, z1 float32, c core.Color) {
		pos = append(pos, x0, 0, z0, x1, 0, z1)
		col = append(col, c.R, c.G, c.B, c.R, c.G, c.B)
	}

	for i := 0; i <= divisions; i++ {
		x := -half + float32(i)*step
		c := gray
		if i == divisions/2 {
			c = blue
		}
		addLine(x, -half, x, half, c)
	}
	for i := 0; i <= divisions; i++ {
		z := -half + float32(i)*step
		c := gray
		if i == divisions/2 {
			c = red
		}
		addLine(-half, z, half, z, c)
	}

	g := NewGeometry("Grid")
	g.SetAttribute(AttrPosition, NewFloatAttribute(pos, 3))
	g.SetAttribute(AttrColor, NewFloatAttribute(col, 3))
	g.ComputeBoundingSphere()
	return g
}

// NewGrid returns a grid node drawn with an unlit vertex-coloured material.
func NewGrid(size float32, divisions int) *Node {
	mat := NewBasicMaterial("GridMaterial", core.ColorWhite)
	mat.VertexColors = true
	mesh := NewMesh(NewGridGeometry(size, divisions), mat)
	mesh.Mode = DrawLines
	return NewMeshNode("Grid", mesh)
}
