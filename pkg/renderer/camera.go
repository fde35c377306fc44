package renderer

import (
	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

// Controller speeds used by Camera.Control
const (
	MoveSpeed   float32 = 10.0 // world units per second
	RotateSpeed float32 = 2.5  // radians per second
)

// WorldUp is the reference up direction used when a camera is rebuilt
var WorldUp = core.NewVec3(0, 1, 0)

// Camera is a pinhole camera described by a location and a right-handed
// orthonormal basis {Forward, Right, Up}.
type Camera struct {
	Location core.Vec3 `json:"location"`
	Forward  core.Vec3 `json:"forward"`
	Right    core.Vec3 `json:"right"`
	Up       core.Vec3 `json:"up"`
}

// NewCamera builds a camera from a location, a unit forward direction and an
// approximate up direction
func NewCamera(location, forward, approxUp core.Vec3) Camera {
	right := forward.Cross(approxUp).Normalize()
	up := right.Cross(forward).Normalize()

	return Camera{
		Location: location,
		Forward:  forward,
		Right:    right,
		Up:       up,
	}
}

// DefaultCamera looks down -Z from (0, 0, 4)
func DefaultCamera() Camera {
	return Camera{
		Location: core.NewVec3(0, 0, 4),
		Forward:  core.NewVec3(0, 0, -1),
		Right:    core.NewVec3(1, 0, 0),
		Up:       core.NewVec3(0, 1, 0),
	}
}

// Move translates the camera along its own axes: X forward, Y right, Z up
func (c Camera) Move(delta core.Vec3) Camera {
	c.Location = c.Location.
		Add(c.Forward.Multiply(delta.X)).
		Add(c.Right.Multiply(delta.Y)).
		Add(c.Up.Multiply(delta.Z))
	return c
}

// Rotate turns the camera by yaw around the world up axis and by pitch
// towards it. The polar angle is kept away from the poles.
func (c Camera) Rotate(yaw, pitch float32) Camera {
	dir := c.Forward

	azimuth := math32.Acos(clampUnit(dir.Y))

	var elevation float32
	if horizontal := math32.Sqrt(dir.X*dir.X + dir.Z*dir.Z); horizontal > 0 {
		elevation = math32.Acos(clampUnit(dir.X / horizontal))
		if dir.Z < 0 {
			elevation = -elevation
		}
	}

	elevation += yaw
	azimuth = min(max(azimuth+pitch, 0.01), math32.Pi-0.01)

	forward := core.NewVec3(
		math32.Sin(azimuth)*math32.Cos(elevation),
		math32.Cos(azimuth),
		math32.Sin(azimuth)*math32.Sin(elevation),
	)
	return NewCamera(c.Location, forward, WorldUp)
}

// Control applies one frame of controller input. move holds the
// forward/right/up axes and yaw/pitch the rotation axes, each in [-1, 1];
// dt is the frame time in seconds. It reports whether the camera changed.
func (c Camera) Control(move core.Vec3, yaw, pitch, dt float32) (Camera, bool) {
	changed := false

	if move.LengthSquared() >= 0.01 {
		c = c.Move(move.Multiply(dt * MoveSpeed))
		changed = true
	}

	if yaw*yaw+pitch*pitch >= 0.01 {
		c = c.Rotate(yaw*dt*RotateSpeed, pitch*dt*RotateSpeed)
		changed = true
	}

	return c, changed
}

// PrimaryRay returns the ray through normalized screen coordinates (xf, yf)
// where the visible frame spans [-xScale, xScale] × [-yScale, yScale]
func (c Camera) PrimaryRay(xf, yf float32) core.Ray {
	dir := c.Forward.Add(c.Up.Multiply(yf)).Add(c.Right.Multiply(xf)).Normalize()
	return core.NewRay(c.Location, dir)
}

func clampUnit(v float32) float32 {
	return min(max(v, -1), 1)
}
