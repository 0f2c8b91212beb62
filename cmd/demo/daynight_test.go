package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

func TestSamplePaletteHitsKeysAndWraps(t *testing.T) {
	for _, key := range palettes {
		p := samplePalette(key.t)
		assert.InDelta(t, key.sunIntensity, p.sunIntensity, 1e-5, "t=%v", key.t)
		assert.InDelta(t, key.fogDensity, p.fogDensity, 1e-5, "t=%v", key.t)
	}

	last, first := palettes[len(palettes)-1], palettes[0]
	mid := (last.t + 1) / 2
	p := samplePalette(mid)
	assert.InDelta(t, (last.sunIntensity+first.sunIntensity)/2, p.sunIntensity, 1e-5)
	assert.InDelta(t, samplePalette(0.1).ambient, samplePalette(1.1).ambient, 1e-6)
}

func TestDayNightUpdateWrapsAndPauses(t *testing.T) {
	dn := NewDayNight(10)
	dn.Update(12)
	assert.InDelta(t, 0.2, dn.Time, 1e-5)

	dn.Active = false
	dn.Update(5)
	assert.InDelta(t, 0.2, dn.Time, 1e-5)

	assert.Equal(t, float32(120), NewDayNight(0).Length)
}

func TestSunStaysAboveHorizon(t *testing.T) {
	dn := NewDayNight(60)
	for i := range 24 {
		dn.Time = float32(i) / 24
		pos := dn.SunPosition()
		assert.GreaterOrEqual(t, pos.Y(), float32(0), "t=%v", dn.Time)
		assert.InDelta(t, dn.SunDistance, pos.Len(), 1e-3)
	}
}

func TestApplyUpdatesSceneAndLights(t *testing.T) {
	s := scene.NewScene()
	sun := scene.NewDirectionalLight(core.ColorWhite, 1)
	hemi := scene.NewHemisphereLight(core.ColorWhite, core.ColorBlack, 1)

	dn := NewDayNight(60)
	dn.Time = 0.5
	dn.Apply(s, sun, hemi)

	key := palettes[3]
	require.NotNil(t, s.Background)
	require.NotNil(t, s.Fog)
	assert.Equal(t, scene.ExpFog2, s.Fog.Kind)
	assert.InDelta(t, key.fogDensity, s.Fog.Density, 1e-5)
	assert.InDelta(t, key.sky.B, s.Background.B, 1e-5)
	assert.InDelta(t, key.sunIntensity, sun.Intensity, 1e-5)
	assert.InDelta(t, key.ambient, hemi.Intensity, 1e-5)
	assert.InDelta(t, key.ground.R, hemi.GroundColor.R, 1e-5)

	fog := s.Fog
	dn.Time = 0.1
	dn.Apply(s, sun, hemi)
	assert.Same(t, fog, s.Fog)
}

func TestTimeOfDay(t *testing.T) {
	dn := NewDayNight(60)
	assert.Equal(t, "12:00 PM", dn.TimeOfDay())
	dn.Time = 0.5
	assert.Equal(t, "12:00 AM", dn.TimeOfDay())
	dn.Time = 0.75
	assert.Equal(t, "06:00 AM", dn.TimeOfDay())
}

func TestStatsOverlayRefreshesPerInterval(t *testing.T) {
	o := newStatsOverlay(time.Second)
	info := &renderer.Info{}
	info.Render.Calls = 7
	info.Memory.Programs = 3

	_, ok := o.Frame(500*time.Millisecond, "demo", info, "noon")
	assert.False(t, ok)
	title, ok := o.Frame(time.Second, "demo", info, "noon")
	require.True(t, ok)
	assert.Equal(t, "demo | 2 fps | 7 calls | 0 tris | 3 programs | 0 textures | noon", title)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 640\n[scene]\nparticles = 0\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Zero(t, cfg.Scene.Particles)
	assert.Equal(t, float32(120), cfg.Scene.DayLength)
	assert.True(t, cfg.Renderer.SortObjects)

	cfg, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}
