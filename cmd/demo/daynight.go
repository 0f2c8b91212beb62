package main

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
	"render-pipeline/scene"
)

// dayPalette holds the sky and light values for one key time of day.
type dayPalette struct {
	t            float32 // 0..1
	sky          core.Color
	ground       core.Color
	fogDensity   float32
	sunColor     core.Color
	sunIntensity float32
	ambient      float32
}

// palettes are ordered by t and wrap from the last key back to noon.
var palettes = []dayPalette{
	{ // noon
		t:            0.00,
		sky:          core.Color{R: 0.58, G: 0.75, B: 0.95, A: 1},
		ground:       core.Color{R: 0.12, G: 0.10, B: 0.08, A: 1},
		fogDensity:   0.011,
		sunColor:     core.Color{R: 1.00, G: 0.98, B: 0.92, A: 1},
		sunIntensity: 1.20,
		ambient:      0.45,
	},
	{ // golden hour
		t:            0.22,
		sky:          core.Color{R: 0.90, G: 0.52, B: 0.18, A: 1},
		ground:       core.Color{R: 0.08, G: 0.07, B: 0.06, A: 1},
		fogDensity:   0.018,
		sunColor:     core.Color{R: 1.00, G: 0.65, B: 0.25, A: 1},
		sunIntensity: 0.90,
		ambient:      0.30,
	},
	{ // dusk
		t:            0.30,
		sky:          core.Color{R: 0.50, G: 0.22, B: 0.28, A: 1},
		ground:       core.Color{R: 0.04, G: 0.03, B: 0.04, A: 1},
		fogDensity:   0.020,
		sunColor:     core.Color{R: 0.70, G: 0.40, B: 0.55, A: 1},
		sunIntensity: 0.25,
		ambient:      0.18,
	},
	{ // midnight, the sun stands in for the moon
		t:            0.50,
		sky:          core.Color{R: 0.04, G: 0.04, B: 0.08, A: 1},
		ground:       core.Color{R: 0.01, G: 0.01, B: 0.02, A: 1},
		fogDensity:   0.010,
		sunColor:     core.Color{R: 0.40, G: 0.45, B: 0.65, A: 1},
		sunIntensity: 0.12,
		ambient:      0.08,
	},
	{ // pre-dawn
		t:            0.70,
		sky:          core.Color{R: 0.40, G: 0.18, B: 0.24, A: 1},
		ground:       core.Color{R: 0.03, G: 0.03, B: 0.04, A: 1},
		fogDensity:   0.020,
		sunColor:     core.Color{R: 0.75, G: 0.42, B: 0.60, A: 1},
		sunIntensity: 0.20,
		ambient:      0.15,
	},
	{ // sunrise
		t:            0.78,
		sky:          core.Color{R: 0.88, G: 0.45, B: 0.22, A: 1},
		ground:       core.Color{R: 0.08, G: 0.06, B: 0.05, A: 1},
		fogDensity:   0.015,
		sunColor:     core.Color{R: 1.00, G: 0.60, B: 0.28, A: 1},
		sunIntensity: 0.70,
		ambient:      0.25,
	},
}

// DayNight drives the animated day/night cycle.
type DayNight struct {
	Time   float32 // 0 noon, 0.25 sunset, 0.5 midnight, 0.75 sunrise
	Length float32 // seconds per full cycle
	Active bool

	// SunDistance is how far from the origin the sun node orbits.
	SunDistance float32
}

func NewDayNight(length float32) *DayNight {
	if length <= 0 {
		length = 120
	}
	return &DayNight{Length: length, Active: true, SunDistance: 40}
}

func (dn *DayNight) Update(dt float32) {
	if !dn.Active {
		return
	}
	dn.Time += dt / dn.Length
	dn.Time -= math32.Floor(dn.Time)
}

func lerpColor(a, b core.Color, t float32) core.Color {
	return a.Scale(1 - t).Add(b.Scale(t))
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// samplePalette interpolates between the two keys surrounding t.
func samplePalette(t float32) dayPalette {
	t -= math32.Floor(t)
	n := len(palettes)
	i := n - 1
	for k := range palettes {
		if palettes[k].t > t {
			i = k - 1
			break
		}
	}
	if i < 0 {
		i = n - 1
	}
	a, b := palettes[i], palettes[(i+1)%n]
	span := b.t - a.t
	local := t - a.t
	if span <= 0 {
		span += 1
	}
	if local < 0 {
		local += 1
	}
	f := local / span
	return dayPalette{
		t:            t,
		sky:          lerpColor(a.sky, b.sky, f),
		ground:       lerpColor(a.ground, b.ground, f),
		fogDensity:   lerp(a.fogDensity, b.fogDensity, f),
		sunColor:     lerpColor(a.sunColor, b.sunColor, f),
		sunIntensity: lerp(a.sunIntensity, b.sunIntensity, f),
		ambient:      lerp(a.ambient, b.ambient, f),
	}
}

// SunPosition returns where the sun node sits at the current time. The sun
// circles in the XY plane, overhead at noon, with a fixed tilt along Z.
func (dn *DayNight) SunPosition() mgl32.Vec3 {
	angle := dn.Time * 2 * math32.Pi
	dir := mgl32.Vec3{math32.Sin(angle), math32.Cos(angle), 0.35}.Normalize()
	if dir.Y() < 0 {
		// Below the horizon the same light plays the moon on the opposite side.
		dir = mgl32.Vec3{-dir.X(), -dir.Y(), dir.Z()}
	}
	return dir.Mul(dn.SunDistance)
}

// Apply writes the current sky and light state into the scene.
func (dn *DayNight) Apply(s *scene.Scene, sun, hemi *scene.Light) {
	p := samplePalette(dn.Time)

	bg := p.sky
	s.Background = &bg
	if s.Fog == nil || s.Fog.Kind != scene.ExpFog2 {
		s.Fog = scene.NewFogExp2(p.sky, p.fogDensity)
	}
	s.Fog.Color, s.Fog.Density = p.sky, p.fogDensity

	if sun != nil {
		sun.Node.SetPosition(dn.SunPosition())
		sun.Color = p.sunColor
		sun.Intensity = p.sunIntensity
	}
	if hemi != nil {
		hemi.Color = p.sky
		hemi.GroundColor = p.ground
		hemi.Intensity = p.ambient
	}
}

// TimeOfDay formats the cycle position as a 12-hour clock, noon at Time 0.
func (dn *DayNight) TimeOfDay() string {
	minutes := int(dn.Time*24*60+12*60) % (24 * 60)
	h, m := minutes/60, minutes%60
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h, m, period)
}
