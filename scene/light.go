package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
)

type LightKind int

const (
	AmbientLight LightKind = iota
	DirectionalLight
	PointLight
	SpotLight
	HemisphereLight
	RectAreaLight
)

func (k LightKind) String() string {
	switch k {
	case AmbientLight:
		return "ambient"
	case DirectionalLight:
		return "directional"
	case PointLight:
		return "point"
	case SpotLight:
		return "spot"
	case HemisphereLight:
		return "hemisphere"
	}
	return "rectarea"
}

// Light is a light source attached to Node. Directional and spot lights aim
// at Target (world space).
type Light struct {
	Node      *Node
	Kind      LightKind
	Color     core.Color
	Intensity float32

	// Point and spot attenuation; Distance 0 means infinite range.
	Distance float32
	Decay    float32
	// Spot cone half-angle in radians and soft edge fraction.
	Angle    float32
	Penumbra float32

	GroundColor core.Color // hemisphere
	Width       float32    // rect area
	Height      float32

	Target mgl32.Vec3
	Shadow *LightShadow
}

func newLight(kind LightKind, color core.Color, intensity float32) *Light {
	l := &Light{Kind: kind, Color: color, Intensity: intensity, Decay: 2}
	l.Node = NewLightNode(kind.String()+" light", l)
	l.Node.CastShadow = false
	return l
}

func NewAmbientLight(color core.Color, intensity float32) *Light {
	return newLight(AmbientLight, color, intensity)
}

// NewDirectionalLight returns a light shining from (0,1,0) towards the origin.
func NewDirectionalLight(color core.Color, intensity float32) *Light {
	l := newLight(DirectionalLight, color, intensity)
	l.Node.SetPosition(mgl32.Vec3{0, 1, 0})
	l.Shadow = NewLightShadow(NewOrthographicCamera(-5, 5, 5, -5, 0.5, 500))
	return l
}

func NewPointLight(color core.Color, intensity, distance float32) *Light {
	l := newLight(PointLight, color, intensity)
	l.Distance = distance
	l.Shadow = NewLightShadow(NewPerspectiveCamera(90, 1, 0.5, 500))
	return l
}

func NewSpotLight(color core.Color, intensity, distance, angle, penumbra float32) *Light {
	l := newLight(SpotLight, color, intensity)
	l.Distance, l.Angle, l.Penumbra = distance, angle, penumbra
	l.Node.SetPosition(mgl32.Vec3{0, 1, 0})
	l.Shadow = NewLightShadow(NewPerspectiveCamera(50, 1, 0.5, 500))
	return l
}

func NewHemisphereLight(sky, ground core.Color, intensity float32) *Light {
	l := newLight(HemisphereLight, sky, intensity)
	l.GroundColor = ground
	l.Node.SetPosition(mgl32.Vec3{0, 1, 0})
	return l
}

func NewRectAreaLight(color core.Color, intensity, width, height float32) *Light {
	l := newLight(RectAreaLight, color, intensity)
	l.Width, l.Height = width, height
	return l
}

// CastsShadow reports whether the light renders a shadow map this frame.
func (l *Light) CastsShadow() bool {
	return l.Node.CastShadow && l.Shadow != nil &&
		(l.Kind == DirectionalLight || l.Kind == PointLight || l.Kind == SpotLight)
}

// Direction returns the world-space unit vector from the target to the light.
func (l *Light) Direction() mgl32.Vec3 {
	d := l.Node.WorldPosition().Sub(l.Target)
	if d.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return d.Normalize()
}

// LightShadow holds the shadow camera and sampling parameters of a light.
type LightShadow struct {
	Camera     *Camera
	Bias       float32
	NormalBias float32
	Radius     float32
	// BlurSamples is the kernel size of the VSM blur.
	BlurSamples int
	Intensity   float32
	MapWidth    int
	MapHeight   int

	AutoUpdate  bool
	NeedsUpdate bool

	// Matrix maps world space into shadow map texture space.
	Matrix mgl32.Mat4
	// Viewports are (x, y, w, h) regions of the map; point lights use six.
	Viewports []mgl32.Vec4
}

func NewLightShadow(cam *Camera) *LightShadow {
	return &LightShadow{
		Camera:      cam,
		Radius:      1,
		BlurSamples: 8,
		Intensity:   1,
		MapWidth:    512,
		MapHeight:   512,
		AutoUpdate:  true,
		Matrix:      mgl32.Ident4(),
		Viewports:   []mgl32.Vec4{{0, 0, 1, 1}},
	}
}

// FrameExtents is the map layout in viewports: 4x2 for point lights.
func (s *LightShadow) FrameExtents(kind LightKind) (int, int) {
	if kind == PointLight {
		return 4, 2
	}
	return 1, 1
}

// ViewportCount returns how many depth passes the light needs.
func (s *LightShadow) ViewportCount(kind LightKind) int {
	if kind == PointLight {
		return 6
	}
	return 1
}

var cubeDirections = [6]mgl32.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {0, -1, 0}}
var cubeUps = [6]mgl32.Vec3{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 0, 1}, {0, 0, -1}}

// pointViewports places the six cube faces in a 4x2 grid.
var pointViewports = [6][2]float32{{2, 1}, {0, 1}, {3, 1}, {1, 1}, {3, 0}, {1, 0}}

// UpdateMatrices aims the shadow camera for viewport vp of the light and
// refreshes Matrix. For non-point lights vp must be 0.
func (s *LightShadow) UpdateMatrices(l *Light, vp int) {
	cam := s.Camera
	pos := l.Node.WorldPosition()

	switch l.Kind {
	case PointLight:
		cam.Aspect = 1
		cam.FOV = 90
		if l.Distance > 0 {
			cam.Far = l.Distance
		}
		cam.LookAt(pos, pos.Add(cubeDirections[vp]), cubeUps[vp])
		cam.Node.UpdateWorldMatrix(false)

		s.Viewports = s.Viewports[:0]
		for _, v := range pointViewports {
			s.Viewports = append(s.Viewports, mgl32.Vec4{v[0], v[1], 1, 1})
		}
		// Distance maps sample a cube direction, so the matrix only recentres.
		s.Matrix = mgl32.Translate3D(-pos[0], -pos[1], -pos[2])
		return

	case SpotLight:
		cam.FOV = mgl32.RadToDeg(2 * l.Angle)
		cam.Aspect = float32(s.MapWidth) / float32(s.MapHeight)
		if l.Distance > 0 {
			cam.Far = l.Distance
		}
	}

	cam.LookAt(pos, l.Target, up(pos, l.Target))
	cam.Node.UpdateWorldMatrix(false)

	s.Viewports = append(s.Viewports[:0], mgl32.Vec4{0, 0, 1, 1})
	bias := mgl32.Mat4{
		0.5, 0, 0, 0,
		0, 0.5, 0, 0,
		0, 0, 0.5, 0,
		0.5, 0.5, 0.5, 1,
	}
	s.Matrix = bias.Mul4(cam.ViewProjection())
}

// up picks a world up vector that is not parallel to the view direction.
func up(eye, target mgl32.Vec3) mgl32.Vec3 {
	d := target.Sub(eye)
	if math32.Abs(d[0]) < 1e-6 && math32.Abs(d[2]) < 1e-6 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{0, 1, 0}
}
