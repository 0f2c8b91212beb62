package renderer

import (
	"cmp"
	"slices"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
	"render-pipeline/scene"
)

// LightsState is the per-frame light aggregate: flat per-type arrays in
// view space ready for upload. Shadow-casting lights come first within
// each type, matching the shadow sampler arrays.
type LightsState struct {
	// Version increases whenever the light counts change, never for value
	// changes alone.
	Version uint64
	Counts  LightCounts

	Ambient core.Color

	// Shadowed lights per type, in sampler order.
	DirectionalShadows []*scene.Light
	SpotShadows        []*scene.Light
	PointShadows       []*scene.Light

	sorted []*scene.Light
	seen   bool
	values map[string][]float32
}

func NewLightsState() *LightsState {
	return &LightsState{values: make(map[string][]float32)}
}

func (s *LightsState) buf(name string) []float32 {
	return s.values[name][:0]
}

func (s *LightsState) put(name string, v []float32) { s.values[name] = v }

// Setup aggregates lights for a camera. Shadows count only when enabled.
func (s *LightsState) Setup(lights []*scene.Light, cam *scene.Camera, shadows bool) {
	s.sorted = append(s.sorted[:0], lights...)
	slices.SortStableFunc(s.sorted, func(a, b *scene.Light) int {
		return cmp.Compare(shadowRank(b, shadows), shadowRank(a, shadows))
	})

	view := cam.ViewMatrix()
	view3 := view.Mat3()

	var counts LightCounts
	s.Ambient = core.Color{A: 1}
	s.DirectionalShadows = s.DirectionalShadows[:0]
	s.SpotShadows = s.SpotShadows[:0]
	s.PointShadows = s.PointShadows[:0]

	dirDir, dirColor := s.buf("directionalLightDirection"), s.buf("directionalLightColor")
	pointPos, pointColor, pointDD := s.buf("pointLightPosition"), s.buf("pointLightColor"), s.buf("pointLightDistanceDecay")
	spotPos, spotDir, spotColor := s.buf("spotLightPosition"), s.buf("spotLightDirection"), s.buf("spotLightColor")
	spotDD, spotCone := s.buf("spotLightDistanceDecay"), s.buf("spotLightCone")
	hemiDir, hemiSky, hemiGround := s.buf("hemisphereLightDirection"), s.buf("hemisphereLightSkyColor"), s.buf("hemisphereLightGroundColor")
	rectPos, rectColor := s.buf("rectAreaLightPosition"), s.buf("rectAreaLightColor")
	rectW, rectH := s.buf("rectAreaLightHalfWidth"), s.buf("rectAreaLightHalfHeight")

	for _, l := range s.sorted {
		color := l.Color.Scale(l.Intensity).Vec3()
		pos := mgl32.TransformCoordinate(l.Node.WorldPosition(), view)
		switch l.Kind {
		case scene.AmbientLight:
			s.Ambient = s.Ambient.Add(l.Color.Scale(l.Intensity))
		case scene.DirectionalLight:
			dir := view3.Mul3x1(l.Direction()).Normalize()
			dirDir = append(dirDir, dir[:]...)
			dirColor = append(dirColor, color[:]...)
			counts.Directional++
			if shadows && l.CastsShadow() {
				s.DirectionalShadows = append(s.DirectionalShadows, l)
			}
		case scene.PointLight:
			pointPos = append(pointPos, pos[:]...)
			pointColor = append(pointColor, color[:]...)
			pointDD = append(pointDD, l.Distance, l.Decay)
			counts.Point++
			if shadows && l.CastsShadow() {
				s.PointShadows = append(s.PointShadows, l)
			}
		case scene.SpotLight:
			dir := view3.Mul3x1(l.Direction()).Normalize()
			spotPos = append(spotPos, pos[:]...)
			spotDir = append(spotDir, dir[:]...)
			spotColor = append(spotColor, color[:]...)
			spotDD = append(spotDD, l.Distance, l.Decay)
			spotCone = append(spotCone, math32.Cos(l.Angle), math32.Cos(l.Angle*(1-l.Penumbra)))
			counts.Spot++
			if shadows && l.CastsShadow() {
				s.SpotShadows = append(s.SpotShadows, l)
			}
		case scene.HemisphereLight:
			dir := view3.Mul3x1(l.Node.WorldPosition()).Normalize()
			sky, ground := color, l.GroundColor.Scale(l.Intensity).Vec3()
			hemiDir = append(hemiDir, dir[:]...)
			hemiSky = append(hemiSky, sky[:]...)
			hemiGround = append(hemiGround, ground[:]...)
			counts.Hemisphere++
		case scene.RectAreaLight:
			world := l.Node.WorldMatrix()
			hw := view3.Mul3x1(world.Col(0).Vec3().Mul(l.Width / 2))
			hh := view3.Mul3x1(world.Col(1).Vec3().Mul(l.Height / 2))
			rectPos = append(rectPos, pos[:]...)
			rectColor = append(rectColor, color[:]...)
			rectW = append(rectW, hw[:]...)
			rectH = append(rectH, hh[:]...)
			counts.RectArea++
		}
	}
	counts.DirectionalShadows = len(s.DirectionalShadows)
	counts.SpotShadows = len(s.SpotShadows)
	counts.PointShadows = len(s.PointShadows)

	s.put("directionalLightDirection", dirDir)
	s.put("directionalLightColor", dirColor)
	s.put("pointLightPosition", pointPos)
	s.put("pointLightColor", pointColor)
	s.put("pointLightDistanceDecay", pointDD)
	s.put("spotLightPosition", spotPos)
	s.put("spotLightDirection", spotDir)
	s.put("spotLightColor", spotColor)
	s.put("spotLightDistanceDecay", spotDD)
	s.put("spotLightCone", spotCone)
	s.put("hemisphereLightDirection", hemiDir)
	s.put("hemisphereLightSkyColor", hemiSky)
	s.put("hemisphereLightGroundColor", hemiGround)
	s.put("rectAreaLightPosition", rectPos)
	s.put("rectAreaLightColor", rectColor)
	s.put("rectAreaLightHalfWidth", rectW)
	s.put("rectAreaLightHalfHeight", rectH)

	if !s.seen || counts != s.Counts {
		s.Version++
		s.seen = true
	}
	s.Counts = counts
}

// shadowRank sorts shadow casters ahead of other lights.
func shadowRank(l *scene.Light, shadows bool) int {
	if shadows && l.CastsShadow() {
		return 1
	}
	return 0
}

// updateShadows fills the shadow matrices and parameters once the shadow
// pass has aimed every shadow camera.
func (s *LightsState) updateShadows() {
	fill := func(prefix string, lights []*scene.Light) {
		matrices, params, sizes := s.buf(prefix+"ShadowMatrix"), s.buf(prefix+"ShadowParams"), s.buf(prefix+"ShadowMapSize")
		for _, l := range lights {
			sh := l.Shadow
			matrices = append(matrices, sh.Matrix[:]...)
			params = append(params, sh.Bias, sh.NormalBias, sh.Radius, sh.Intensity)
			sizes = append(sizes, float32(sh.MapWidth), float32(sh.MapHeight))
		}
		s.put(prefix+"ShadowMatrix", matrices)
		s.put(prefix+"ShadowParams", params)
		s.put(prefix+"ShadowMapSize", sizes)
	}
	fill("directional", s.DirectionalShadows)
	fill("spot", s.SpotShadows)
	fill("point", s.PointShadows)

	nearFar := s.buf("pointShadowNearFar")
	for _, l := range s.PointShadows {
		nearFar = append(nearFar, l.Shadow.Camera.Near, l.Shadow.Camera.Far)
	}
	s.put("pointShadowNearFar", nearFar)
}

// upload sends the light uniforms a program declares.
func (s *LightsState) upload(u *uniformTable) {
	u.color("ambientLightColor", s.Ambient)
	for name, v := range s.values {
		if len(v) > 0 {
			u.floats(name, v)
		}
	}
}

// Values returns the flat array uploaded to the named uniform.
func (s *LightsState) Values(name string) []float32 { return s.values[name] }
