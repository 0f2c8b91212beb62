package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"render-pipeline/core"
)

type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

// Camera represents a view camera. Its transform lives in Node; the view
// matrix is the inverse of the node's world matrix.
type Camera struct {
	Node       *Node
	Projection Projection

	FOV    float32 // vertical, degrees
	Aspect float32
	Near   float32
	Far    float32
	Zoom   float32

	Left, Right, Top, Bottom float32

	// Layers selects which node layers the camera sees.
	Layers Layers

	// SubCameras render the same lists into their own viewports.
	SubCameras []*Camera
	// Viewport is used when the camera is a sub-camera.
	Viewport core.Viewport
}

func newCamera(p Projection) *Camera {
	c := &Camera{Projection: p, Near: 0.1, Far: 1000, Zoom: 1, Aspect: 1, Layers: DefaultLayers}
	c.Node = NewNode("camera")
	c.Node.Camera = c
	return c
}

func NewPerspectiveCamera(fov, aspect, near, far float32) *Camera {
	c := newCamera(Perspective)
	c.FOV, c.Aspect, c.Near, c.Far = fov, aspect, near, far
	return c
}

func NewOrthographicCamera(left, right, top, bottom, near, far float32) *Camera {
	c := newCamera(Orthographic)
	c.Left, c.Right, c.Top, c.Bottom, c.Near, c.Far = left, right, top, bottom, near, far
	return c
}

// NewArrayCamera groups sub-cameras that each draw into their viewport.
func NewArrayCamera(subs ...*Camera) *Camera {
	c := newCamera(Perspective)
	c.FOV = 50
	c.SubCameras = subs
	return c
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.Aspect = width / height
	}
}

// ProjectionMatrix returns the OpenGL-convention clip transform.
func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	if c.Projection == Orthographic {
		z := c.Zoom
		if z == 0 {
			z = 1
		}
		cx, cy := (c.Left+c.Right)/2, (c.Top+c.Bottom)/2
		dx, dy := (c.Right-c.Left)/(2*z), (c.Top-c.Bottom)/(2*z)
		return mgl32.Ortho(cx-dx, cx+dx, cy-dy, cy+dy, c.Near, c.Far)
	}
	fov := 2 * math32.Atan(math32.Tan(mgl32.DegToRad(c.FOV)/2)/c.zoom())
	return mgl32.Perspective(fov, c.Aspect, c.Near, c.Far)
}

func (c *Camera) zoom() float32 {
	if c.Zoom == 0 {
		return 1
	}
	return c.Zoom
}

// ViewMatrix returns the inverse of the camera's world matrix.
func (c *Camera) ViewMatrix() mgl32.Mat4 { return c.Node.WorldMatrix().Inv() }

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

func (c *Camera) Frustum() Frustum { return FrustumFromMatrix(c.ViewProjection()) }

// Position returns the world-space eye position.
func (c *Camera) Position() mgl32.Vec3 { return c.Node.WorldPosition() }

// LookAt places the camera at eye looking at target.
func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.Node.SetPosition(eye)
	c.Node.LookAt(target, up)
}

// OrbitControl keeps a camera on a sphere around a target.
type OrbitControl struct {
	Camera   *Camera
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitControl(cam *Camera, target mgl32.Vec3, distance float32) *OrbitControl {
	o := &OrbitControl{Camera: cam, Target: target, Distance: distance, Pitch: 0.3}
	o.Update()
	return o
}

// Update moves the camera to the orbit position.
func (o *OrbitControl) Update() {
	o.Pitch = mgl32.Clamp(o.Pitch, -1.5, 1.5)
	if o.Distance < 0.1 {
		o.Distance = 0.1
	}

	cosPitch, sinPitch := math32.Cos(o.Pitch), math32.Sin(o.Pitch)
	cosYaw, sinYaw := math32.Cos(o.Yaw), math32.Sin(o.Yaw)
	offset := mgl32.Vec3{
		o.Distance * cosPitch * sinYaw,
		o.Distance * sinPitch,
		o.Distance * cosPitch * cosYaw,
	}
	o.Camera.LookAt(o.Target.Add(offset), o.Target, mgl32.Vec3{0, 1, 0})
}

func (o *OrbitControl) Orbit(deltaYaw, deltaPitch float32) {
	o.Yaw += deltaYaw
	o.Pitch += deltaPitch
	o.Update()
}
