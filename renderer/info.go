package renderer

import "render-pipeline/gpu"

type MemoryInfo struct {
	Buffers  int
	Textures int
	Programs int
}

// RenderInfo counts the work of the current frame.
type RenderInfo struct {
	Frame     uint64
	Calls     int
	Triangles int
	Lines     int
	Points    int
}

// Info holds renderer statistics.
type Info struct {
	Memory MemoryInfo
	Render RenderInfo
	// AutoReset clears Render at the start of each Render call.
	AutoReset bool
}

func (i *Info) reset() {
	i.Render.Calls, i.Render.Triangles, i.Render.Lines, i.Render.Points = 0, 0, 0, 0
}

func (i *Info) update(count int, mode gpu.Primitive, instances int) {
	i.Render.Calls++
	n := count * max(instances, 1)
	switch mode {
	case gpu.Triangles:
		i.Render.Triangles += n / 3
	case gpu.TriangleStrip, gpu.TriangleFan:
		i.Render.Triangles += max(n-2, 0)
	case gpu.Lines:
		i.Render.Lines += n / 2
	case gpu.LineStrip:
		i.Render.Lines += max(n-1, 0)
	case gpu.LineLoop:
		i.Render.Lines += n
	case gpu.Points:
		i.Render.Points += n
	}
}
