package scene

import (
	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
	"github.com/df07/go-interactive-raytracer/pkg/material"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
)

// Built-in scene identifiers
const (
	DefaultName      = "default"
	SingleSphereName = "single-sphere"
	SphereGridName   = "sphere-grid"
)

// builtins maps scene IDs to their constructors in listing order
var builtins = []struct {
	info  SceneInfo
	build func() *Scene
}{
	{
		info: SceneInfo{
			ID:          DefaultName,
			Name:        "Default Scene",
			Description: "Blue sphere with a small grey companion over an orange ground plane",
		},
		build: NewDefaultScene,
	},
	{
		info: SceneInfo{
			ID:          SingleSphereName,
			Name:        "Single Sphere",
			Description: "Red unit sphere at the origin seen from +Z",
		},
		build: NewSingleSphereScene,
	},
	{
		info: SceneInfo{
			ID:          SphereGridName,
			Name:        "Sphere Grid",
			Description: "Grid of rainbow-coloured spheres in nested groups",
		},
		build: NewSphereGridScene,
	},
}

// NewDefaultScene creates the startup scene: a blue unit sphere at the
// origin, a small grey sphere, and an orange ground plane, seen from
// (10, 10, 10)
func NewDefaultScene() *Scene {
	blue := material.NewMaterial(core.NewVec3(0.30, 0.47, 0.80))
	grey := material.NewMaterial(core.NewVec3(0.5, 0.5, 0.5))
	ground := material.NewMaterial(core.NewVec3(0.8, 0.47, 0.3))

	root := geometry.NewGroup(
		geometry.NewSphere(core.NewVec3(0, 0, 0), 1, blue),
		geometry.NewSphere(core.NewVec3(1.4, 1.4, 1.4), 0.3, grey),
		geometry.NewPlane(core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0), ground),
	)

	return &Scene{
		Name:   DefaultName,
		Root:   root,
		Camera: renderer.NewCamera(core.NewVec3(10, 10, 10), core.NewVec3(-1, -1, -1).Normalize(), renderer.WorldUp),
		Sky:    renderer.DefaultSky,
	}
}

// NewSingleSphereScene creates a red unit sphere seen from the default camera
func NewSingleSphereScene() *Scene {
	red := material.NewMaterial(core.NewVec3(1, 0, 0))

	return &Scene{
		Name:   SingleSphereName,
		Root:   geometry.NewSphere(core.Vec3{}, 1, red),
		Camera: renderer.DefaultCamera(),
		Sky:    renderer.DefaultSky,
	}
}

// NewSphereGridScene creates a 10x10 grid of spheres on a grey ground. Each
// grid row is its own group inside the grid group, so intersection goes
// through two levels of group dispatch.
func NewSphereGridScene() *Scene {
	const (
		gridSize   = 10
		targetArea = float32(9.0)
	)

	spacing := targetArea / float32(gridSize-1)
	radius := spacing * 0.35

	// OKLCH parameters for colour variation
	const (
		lightness = 0.65
		minChroma = 0.05
		maxChroma = 0.25
	)

	grid := geometry.NewGroup()
	for i := range gridSize {
		row := geometry.NewGroup()
		for j := range gridSize {
			x := float32(i)*spacing - targetArea/2
			z := float32(j)*spacing - targetArea/2

			// Hue follows X, chroma follows Z
			hue := float32(i) / float32(gridSize-1) * 360
			chroma := minChroma + float32(j)/float32(gridSize-1)*(maxChroma-minChroma)

			mat := material.NewMaterial(oklchToRGB(lightness, chroma, hue))
			row.Add(geometry.NewSphere(core.NewVec3(x, radius, z), radius, mat))
		}
		grid.Add(row)
	}

	ground := material.NewMaterial(core.NewVec3(0.5, 0.5, 0.5))
	root := geometry.NewGroup(
		grid,
		geometry.NewPlane(core.Vec3{}, core.NewVec3(0, 1, 0), ground),
	)

	location := core.NewVec3(0, 6, 13.5)
	lookAt := core.NewVec3(0, 0.8, 0)

	return &Scene{
		Name:   SphereGridName,
		Root:   root,
		Camera: renderer.NewCamera(location, lookAt.Subtract(location).Normalize(), renderer.WorldUp),
		Sky:    renderer.GradientSky(core.NewVec3(0.5, 0.7, 1.0), core.NewVec3(1.0, 1.0, 1.0)),
	}
}

// oklchToRGB converts OKLCH colour values to linear RGB clamped to [0,1].
// L: lightness (0-1), C: chroma (0-0.4), H: hue in degrees.
func oklchToRGB(l, c, h float32) core.Vec3 {
	hRad := h * math32.Pi / 180

	// OKLCH to OKLAB
	a := c * math32.Cos(hRad)
	b := c * math32.Sin(hRad)

	// OKLAB to LMS
	lp := l + 0.3963377774*a + 0.2158037573*b
	mp := l - 0.1055613458*a - 0.0638541728*b
	sp := l - 0.0894841775*a - 1.2914855480*b

	lp = lp * lp * lp
	mp = mp * mp * mp
	sp = sp * sp * sp

	// LMS to linear RGB
	rgb := core.NewVec3(
		+4.0767416621*lp-3.3077115913*mp+0.2309699292*sp,
		-1.2684380046*lp+2.6097574011*mp-0.3413193965*sp,
		-0.0041960863*lp-0.7034186147*mp+1.7076147010*sp,
	)
	return rgb.Clamp(0, 1)
}
