package main

import (
	"fmt"
	"strings"
	"time"

	"render-pipeline/renderer"
)

// statsOverlay accumulates frame statistics and formats them for the
// window title, refreshed at most every interval.
type statsOverlay struct {
	interval time.Duration
	last     time.Duration
	frames   int
	lines    []string
}

func newStatsOverlay(interval time.Duration) *statsOverlay {
	return &statsOverlay{interval: interval}
}

func (o *statsOverlay) addf(format string, args ...any) {
	o.lines = append(o.lines, fmt.Sprintf(format, args...))
}

// Frame counts one frame at elapsed. It returns the title text and true
// once per interval.
func (o *statsOverlay) Frame(elapsed time.Duration, title string, info *renderer.Info, clock string) (string, bool) {
	o.frames++
	window := elapsed - o.last
	if window < o.interval {
		return "", false
	}
	fps := float64(o.frames) / window.Seconds()
	o.last, o.frames = elapsed, 0

	o.lines = o.lines[:0]
	o.addf("%s", title)
	o.addf("%.0f fps", fps)
	o.addf("%d calls", info.Render.Calls)
	o.addf("%d tris", info.Render.Triangles)
	o.addf("%d programs", info.Memory.Programs)
	o.addf("%d textures", info.Memory.Textures)
	o.addf("%s", clock)
	return strings.Join(o.lines, " | "), true
}
