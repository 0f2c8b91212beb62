// Command demo opens a window and renders a small lit scene with shadows,
// transparency, particles and a day/night cycle. An optional glTF or OBJ model is
// added when the config names one.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"

	"render-pipeline/core"
	"render-pipeline/internal/opengl"
	"render-pipeline/loader"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

// ── Config ───────────────────────────────────────────────────────────────────

type sceneConfig struct {
	Model     string  `toml:"model"`
	DayLength float32 `toml:"day_length"`
	Particles int     `toml:"particles"`
}

type config struct {
	LogLevel string            `toml:"log_level"`
	Window   core.WindowConfig `toml:"window"`
	Renderer renderer.Options  `toml:"renderer"`
	Scene    sceneConfig       `toml:"scene"`
}

func defaultConfig() config {
	w := core.DefaultWindowConfig()
	w.Title = "Render Pipeline Demo"
	w.Samples = 4
	return config{
		LogLevel: "info",
		Window:   w,
		Renderer: renderer.DefaultOptions(),
		Scene:    sceneConfig{DayLength: 120, Particles: 300},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// ── Entry point ──────────────────────────────────────────────────────────────

func main() {
	configPath := flag.String("config", "demo.toml", "path to the demo config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	renderer.SetLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error("demo failed", "err", err)
		os.Exit(1)
	}
}

type demo struct {
	log *slog.Logger
	win *core.Window
	r   *renderer.Renderer

	scene   *scene.Scene
	camera  *scene.Camera
	orbit   *scene.OrbitControl
	sun     *scene.Light
	hemi    *scene.Light
	fire    *scene.ParticleEmitter
	spinner *scene.Node

	cycle *DayNight
	stats *statsOverlay

	width, height int
	last          time.Duration
	pauseHeld     bool
}

func run(cfg config, log *slog.Logger) error {
	win, err := core.NewWindow(cfg.Window)
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := opengl.New(log)
	if err != nil {
		return err
	}
	r, err := renderer.New(dev, cfg.Renderer)
	if err != nil {
		return err
	}
	defer r.Dispose()

	d := &demo{
		log:   log,
		win:   win,
		r:     r,
		cycle: NewDayNight(cfg.Scene.DayLength),
		stats: newStatsOverlay(500 * time.Millisecond),
	}
	d.build(cfg.Scene)

	if cfg.Scene.Model != "" {
		if err := d.addModel(cfg.Scene.Model); err != nil {
			log.Warn("model not loaded", "path", cfg.Scene.Model, "err", err)
		}
	}

	if set, err := r.Compile(d.scene, d.camera); err != nil {
		log.Warn("precompile failed", "err", err)
	} else {
		log.Info("precompiling", "programs", len(set.Programs()))
	}

	r.SetAnimationLoop(d.frame)
	win.Run(r.Tick)
	return nil
}

// ── Scene setup ──────────────────────────────────────────────────────────────

func (d *demo) build(sc sceneConfig) {
	s := scene.NewScene()
	d.scene = s

	d.camera = scene.NewPerspectiveCamera(60, 16.0/9.0, 0.1, 500)
	d.orbit = scene.NewOrbitControl(d.camera, mgl32.Vec3{0, 1, 0}, 14)

	ground := scene.NewMeshNode("Ground", scene.NewMesh(
		scene.NewPlaneGeometry(80, 80, 1),
		scene.NewStandardMaterial("Ground", core.Color{R: 0.62, G: 0.58, B: 0.52, A: 1}, 0, 0.9),
	))
	ground.SetRotation(mgl32.QuatRotate(-math32.Pi/2, mgl32.Vec3{1, 0, 0}))
	ground.ReceiveShadow = true
	grid := scene.NewGrid(80, 40)
	grid.SetPosition(mgl32.Vec3{0, 0.01, 0})
	s.Add(ground, grid)

	box := scene.NewBoxGeometry(1, 1, 1)
	sphere := scene.NewSphereGeometry(0.5, 32, 16)

	stone := scene.NewLambertMaterial("Stone", core.Color{R: 0.58, G: 0.55, B: 0.50, A: 1})
	brick := scene.NewPhongMaterial("Brick", core.ColorHex(0xb36e4d))
	metal := scene.NewStandardMaterial("Metal", core.Color{R: 0.80, G: 0.80, B: 0.78, A: 1}, 0.95, 0.15)
	marble := scene.NewStandardMaterial("Marble", core.Color{R: 0.92, G: 0.90, B: 0.86, A: 1}, 0, 0.25)
	glass := scene.NewPhysicalMaterial("Glass", core.Color{R: 0.30, G: 0.55, B: 0.80, A: 1})
	glass.Transparent = true
	glass.Opacity = 0.4
	glass.DepthWrite = false

	add := func(name string, geo *scene.Geometry, mat *scene.Material, pos, scale mgl32.Vec3) *scene.Node {
		n := scene.NewMeshNode(name, scene.NewMesh(geo, mat))
		n.SetPosition(pos)
		n.SetScale(scale)
		n.CastShadow = true
		n.ReceiveShadow = true
		s.Add(n)
		return n
	}
	add("Tower", box, stone, mgl32.Vec3{-6, 3, -6}, mgl32.Vec3{3, 6, 3})
	add("Block", box, brick, mgl32.Vec3{6, 1.5, -5}, mgl32.Vec3{4, 3, 3})
	add("Ball", sphere, metal, mgl32.Vec3{-3, 1, 3}, mgl32.Vec3{2, 2, 2})
	add("Column", box, marble, mgl32.Vec3{4, 2, 4}, mgl32.Vec3{0.8, 4, 0.8})
	d.spinner = add("Glass", box, glass, mgl32.Vec3{0, 1.5, 0}, mgl32.Vec3{1.5, 1.5, 1.5})

	d.sun = scene.NewDirectionalLight(core.ColorWhite, 1.2)
	d.sun.Node.CastShadow = true
	d.sun.Shadow.MapWidth, d.sun.Shadow.MapHeight = 2048, 2048
	d.sun.Shadow.Camera = scene.NewOrthographicCamera(-25, 25, 25, -25, 0.5, 120)
	d.sun.Shadow.Bias = -0.0005
	d.hemi = scene.NewHemisphereLight(core.Color{R: 0.6, G: 0.75, B: 0.95, A: 1}, core.Color{R: 0.12, G: 0.1, B: 0.08, A: 1}, 0.45)
	lamp := scene.NewPointLight(core.ColorHex(0xffb34d), 4, 12)
	lamp.Node.SetPosition(mgl32.Vec3{3.5, 1.2, 3.5})
	s.Add(d.sun.Node, d.hemi.Node, lamp.Node)

	if sc.Particles > 0 {
		d.fire = scene.NewParticleEmitter(sc.Particles, uint64(time.Now().UnixNano()))
		d.fire.Position = mgl32.Vec3{3.5, 0.1, 3.5}
		s.Add(d.fire.Node)
	}

	d.cycle.Apply(s, d.sun, d.hemi)
}

func (d *demo) addModel(path string) error {
	res, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		d.log.Warn("model", "path", path, "warning", w)
	}
	for _, root := range res.Roots {
		root.Traverse(func(n *scene.Node) {
			if n.Mesh != nil {
				n.CastShadow, n.ReceiveShadow = true, true
			}
		})
		d.scene.Add(root)
	}
	d.log.Info("model loaded", "path", path, "roots", len(res.Roots), "materials", len(res.Materials), "textures", len(res.Textures))
	return nil
}

// ── Frame loop ───────────────────────────────────────────────────────────────

func (d *demo) frame(elapsed time.Duration) {
	dt := float32((elapsed - d.last).Seconds())
	d.last = elapsed

	if w, h := d.win.GetFramebufferSize(); w != d.width || h != d.height {
		d.width, d.height = w, h
		d.r.SetSize(w, h)
		d.camera.UpdateAspectRatio(float32(w), float32(h))
	}

	d.input(dt)

	d.cycle.Update(dt)
	d.cycle.Apply(d.scene, d.sun, d.hemi)
	if d.fire != nil {
		d.fire.Update(dt)
	}
	d.spinner.Rotate(mgl32.Vec3{0, 1, 0}, 0.5*dt)
	d.spinner.SetPosition(mgl32.Vec3{0, 1.5 + 0.25*math32.Sin(float32(elapsed.Seconds())), 0})

	if err := d.r.Render(d.scene, d.camera); err != nil {
		d.log.Error("render", "err", err)
	}

	if title, ok := d.stats.Frame(elapsed, d.win.Title, d.r.Info(), d.cycle.TimeOfDay()); ok {
		d.win.Handle.SetTitle(title)
	}
}

// ── Input ────────────────────────────────────────────────────────────────────

const orbitSpeed = 1.5

func (d *demo) input(dt float32) {
	if d.win.IsKeyPressed(core.KeyEscape) {
		d.win.Close()
	}
	var yaw, pitch float32
	if d.win.IsKeyPressed(core.KeyLeft) {
		yaw -= orbitSpeed * dt
	}
	if d.win.IsKeyPressed(core.KeyRight) {
		yaw += orbitSpeed * dt
	}
	if d.win.IsKeyPressed(core.KeyUp) {
		pitch += orbitSpeed * dt
	}
	if d.win.IsKeyPressed(core.KeyDown) {
		pitch -= orbitSpeed * dt
	}
	if d.win.IsKeyPressed(core.KeyEqual) {
		d.orbit.Distance -= 8 * dt
	}
	if d.win.IsKeyPressed(core.KeyMinus) {
		d.orbit.Distance += 8 * dt
	}
	d.orbit.Orbit(yaw, pitch)

	held := d.win.IsKeyPressed(core.KeyP)
	if held && !d.pauseHeld {
		d.cycle.Active = !d.cycle.Active
	}
	d.pauseHeld = held
}
