package scene

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
	"render-pipeline/gpu"
)

// Particle is a single live particle instance.
type Particle struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
	Life     float32 // remaining lifetime in seconds
	MaxLife  float32
	Color    core.Color
}

// ParticleEmitter spawns and simulates CPU particles and mirrors them into
// a points geometry. Only the live prefix of the streams is re-uploaded
// each frame.
type ParticleEmitter struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3 // mean emission direction, normalised
	Spread    float32    // half-angle cone spread in radians

	Rate int // particles per second

	MinLife, MaxLife   float32
	MinSpeed, MaxSpeed float32

	StartColor core.Color
	EndColor   core.Color

	Gravity mgl32.Vec3
	Active  bool

	Particles []Particle
	Node      *Node

	pool       int
	spawnAccum float32
	rng        *rand.Rand
	geometry   *Geometry
}

// NewParticleEmitter returns a fire-like emitter rendered with additive
// blending. Adjust fields before the first Update to customise behaviour.
func NewParticleEmitter(maxParticles int, seed uint64) *ParticleEmitter {
	e := &ParticleEmitter{
		Direction:  mgl32.Vec3{0, 1, 0},
		Spread:     0.4,
		Rate:       80,
		MinLife:    0.6,
		MaxLife:    1.8,
		MinSpeed:   2.0,
		MaxSpeed:   5.0,
		StartColor: core.Color{R: 1.0, G: 0.7, B: 0.15, A: 1.0},
		EndColor:   core.Color{R: 0.8, G: 0.05, B: 0.0, A: 0.0},
		Gravity:    mgl32.Vec3{0, 0.3, 0},
		Active:     true,
		Particles:  make([]Particle, 0, maxParticles),
		pool:       maxParticles,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}

	g := NewGeometry("Particles")
	pos := NewFloatAttribute(make([]float32, 3*maxParticles), 3)
	pos.Usage = gpu.DynamicDraw
	col := NewFloatAttribute(make([]float32, 3*maxParticles), 3)
	col.Usage = gpu.DynamicDraw
	g.SetAttribute(AttrPosition, pos)
	g.SetAttribute(AttrColor, col)
	g.DrawRange = DrawRange{Start: 0, Count: 0}
	e.geometry = g

	mat := NewMaterial("ParticleMaterial", KindPoints)
	mat.Size = 0.15
	mat.VertexColors = true
	mat.Transparent = true
	mat.Blending = AdditiveBlending
	mat.DepthWrite = false

	mesh := NewMesh(g, mat)
	mesh.Mode = DrawPoints
	e.Node = NewMeshNode("Particles", mesh)
	e.Node.FrustumCulled = false
	return e
}

// Update advances the simulation by dt seconds and refreshes the geometry.
func (e *ParticleEmitter) Update(dt float32) {
	if e.Active {
		e.spawnAccum += float32(e.Rate) * dt
		for e.spawnAccum >= 1.0 && len(e.Particles) < e.pool {
			e.spawnParticle()
			e.spawnAccum -= 1.0
		}
	}

	write := 0
	for i := range e.Particles {
		p := &e.Particles[i]
		p.Life -= dt
		if p.Life <= 0 {
			continue
		}
		p.Velocity = p.Velocity.Add(e.Gravity.Mul(dt))
		p.Position = p.Position.Add(p.Velocity.Mul(dt))

		t := 1.0 - p.Life/p.MaxLife
		p.Color = lerpColor(e.StartColor, e.EndColor, t)

		e.Particles[write] = *p
		write++
	}
	e.Particles = e.Particles[:write]
	e.sync()
}

// sync copies live particles into the streams and queues the live range.
func (e *ParticleEmitter) sync() {
	pos := e.geometry.Attributes[AttrPosition]
	col := e.geometry.Attributes[AttrColor]
	for i, p := range e.Particles {
		pos.SetXYZ(i, p.Position[0], p.Position[1], p.Position[2])
		// Fade by scaling colour; additive blending ignores alpha.
		col.SetXYZ(i, p.Color.R*p.Color.A, p.Color.G*p.Color.A, p.Color.B*p.Color.A)
	}
	n := len(e.Particles)
	e.geometry.DrawRange.Count = n
	if n == 0 {
		return
	}
	pos.AddUpdateRange(0, n*3)
	col.AddUpdateRange(0, n*3)
	pos.NeedsUpdate()
	col.NeedsUpdate()
}

// Count returns the number of live particles.
func (e *ParticleEmitter) Count() int { return len(e.Particles) }

func (e *ParticleEmitter) spawnParticle() {
	life := e.MinLife + e.rng.Float32()*(e.MaxLife-e.MinLife)
	speed := e.MinSpeed + e.rng.Float32()*(e.MaxSpeed-e.MinSpeed)
	dir := randomInCone(e.Direction, e.Spread, e.rng)
	e.Particles = append(e.Particles, Particle{
		Position: e.Position,
		Velocity: dir.Mul(speed),
		Life:     life,
		MaxLife:  life,
		Color:    e.StartColor,
	})
}

// randomInCone returns a uniformly distributed unit vector within a cone of
// half-angle spread around axis.
func randomInCone(axis mgl32.Vec3, spread float32, rng *rand.Rand) mgl32.Vec3 {
	phi := rng.Float32() * 2 * math32.Pi
	cosMin := math32.Cos(spread)
	cosTheta := cosMin + rng.Float32()*(1-cosMin)
	sinTheta := math32.Sqrt(1 - cosTheta*cosTheta)

	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(axis.Dot(up)) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}
	right := axis.Cross(up).Normalize()
	up = right.Cross(axis).Normalize()

	sinPhi, cosPhi := math32.Sincos(phi)
	return axis.Mul(cosTheta).
		Add(right.Mul(sinTheta * cosPhi)).
		Add(up.Mul(sinTheta * sinPhi)).
		Normalize()
}

func lerpColor(a, b core.Color, t float32) core.Color {
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}
