package renderer

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

func assertVecNear(t *testing.T, expected, actual core.Vec3, tolerance float32) {
	t.Helper()
	if expected.Subtract(actual).Length() > tolerance {
		t.Errorf("Expected %v, got %v", expected, actual)
	}
}

func assertOrthonormal(t *testing.T, c Camera) {
	t.Helper()
	const tolerance = 1e-5
	for name, v := range map[string]core.Vec3{"forward": c.Forward, "right": c.Right, "up": c.Up} {
		assert.InDelta(t, 1, v.Length(), tolerance, "%s must be unit length", name)
	}
	assert.InDelta(t, 0, c.Forward.Dot(c.Right), tolerance)
	assert.InDelta(t, 0, c.Forward.Dot(c.Up), tolerance)
	assert.InDelta(t, 0, c.Right.Dot(c.Up), tolerance)
	// Right-handed: right × up points backwards
	assertVecNear(t, c.Forward.Negate(), c.Right.Cross(c.Up), tolerance)
}

func TestNewCamera_Basis(t *testing.T) {
	c := NewCamera(core.NewVec3(0, 0, 4), core.NewVec3(0, 0, -1), core.NewVec3(0, 1, 0))
	assert.Equal(t, DefaultCamera(), c)
	assertOrthonormal(t, c)

	diag := NewCamera(core.NewVec3(10, 10, 10), core.NewVec3(-1, -1, -1).Normalize(), WorldUp)
	assertOrthonormal(t, diag)
	assert.Greater(t, diag.Up.Y, float32(0), "up should lean towards world up")
}

func TestCamera_Move(t *testing.T) {
	c := DefaultCamera().Move(core.NewVec3(1, 2, 3))
	// forward -Z, right +X, up +Y
	assertVecNear(t, core.NewVec3(2, 3, 3), c.Location, 1e-6)
	assert.Equal(t, DefaultCamera().Forward, c.Forward)
}

func TestCamera_Rotate(t *testing.T) {
	c := DefaultCamera()

	same := c.Rotate(0, 0)
	assertVecNear(t, c.Forward, same.Forward, 1e-5)

	// A quarter turn of yaw swings -Z towards +X
	turned := c.Rotate(math32.Pi/2, 0)
	assertVecNear(t, core.NewVec3(1, 0, 0), turned.Forward, 1e-5)
	assertOrthonormal(t, turned)

	// Pitching far past the pole is clamped
	up := c.Rotate(0, -10)
	assert.InDelta(t, math32.Cos(0.01), up.Forward.Y, 1e-5)
	assertOrthonormal(t, up)
}

func TestCamera_Control(t *testing.T) {
	c := DefaultCamera()

	same, changed := c.Control(core.Vec3{}, 0, 0, 0.1)
	assert.False(t, changed)
	assert.Equal(t, c, same)

	moved, changed := c.Control(core.NewVec3(1, 0, 0), 0, 0, 0.1)
	assert.True(t, changed)
	assertVecNear(t, core.NewVec3(0, 0, 3), moved.Location, 1e-5)

	_, changed = c.Control(core.Vec3{}, 1, 0, 0.1)
	assert.True(t, changed)
}

func TestCamera_PrimaryRay(t *testing.T) {
	c := DefaultCamera()
	ray := c.PrimaryRay(0, 0)
	assert.Equal(t, c.Location, ray.Origin)
	assertVecNear(t, core.NewVec3(0, 0, -1), ray.Direction, 1e-6)

	corner := c.PrimaryRay(1, 1)
	assertVecNear(t, core.NewVec3(1, 1, -1).Normalize(), corner.Direction, 1e-6)
}
