package renderer

import "github.com/df07/go-interactive-raytracer/pkg/core"

// SkyFunc maps a unit ray direction that hit nothing to a linear colour.
// It is called concurrently from every worker and must be pure.
type SkyFunc func(direction core.Vec3) core.Vec3

// DefaultSkyColor is returned by DefaultSky for every direction
var DefaultSkyColor = core.NewVec3(0.30, 0.47, 0.80)

// DefaultSky is a flat sky
func DefaultSky(core.Vec3) core.Vec3 {
	return DefaultSkyColor
}

// ConstantSky returns a sky of a single colour
func ConstantSky(color core.Vec3) SkyFunc {
	return func(core.Vec3) core.Vec3 { return color }
}

// GradientSky blends from bottom to top with the direction's Y component
func GradientSky(top, bottom core.Vec3) SkyFunc {
	return func(direction core.Vec3) core.Vec3 {
		// Map y from [-1,1] to [0,1]
		t := 0.5 * (direction.Y + 1.0)
		return bottom.Multiply(1.0 - t).Add(top.Multiply(t))
	}
}
