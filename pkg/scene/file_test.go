package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
)

const tinyScene = `
materials:
  red: {color: [1, 0, 0]}
shapes:
  - {type: sphere, center: [0, 0, 0], radius: 1, material: red}
`

const fullScene = `
name: Two Spheres
description: A pair of spheres over a floor
group: Examples
camera:
  location: [0, 0, 5]
  look_at: [0, 0, 0]
sky:
  type: gradient
  top: [0.5, 0.7, 1.0]
  bottom: [1, 1, 1]
materials:
  red: {color: [1, 0, 0]}
  floor: {color: [0.5, 0.5, 0.5]}
shapes:
  - type: group
    shapes:
      - {type: sphere, center: [-1, 0, 0], radius: 0.5, material: red}
      - {type: sphere, center: [1, 0, 0], radius: 0.5, material: red}
  - {type: plane, point: [0, -0.5, 0], normal: [0, 2, 0], material: floor}
`

func TestParse_FullScene(t *testing.T) {
	s, err := Parse(strings.NewReader(fullScene))
	require.NoError(t, err)

	assert.Equal(t, "Two Spheres", s.Name)
	assert.Equal(t, "A pair of spheres over a floor", s.Description)
	assertVecNear(t, core.NewVec3(0, 0, 5), s.Camera.Location)
	assertVecNear(t, core.NewVec3(0, 0, -1), s.Camera.Forward)
	assertVecNear(t, core.NewVec3(0, 1, 0), s.Camera.Up)
	assertVecNear(t, core.NewVec3(0.5, 0.7, 1.0), s.Sky(core.NewVec3(0, 1, 0)))

	root := s.Root.(*geometry.Group)
	require.Equal(t, 2, root.Len())
	pair := root.Shapes()[0].(*geometry.Group)
	require.Equal(t, 2, pair.Len())

	// Both spheres share the one named material
	left := pair.Shapes()[0].(*geometry.Sphere)
	right := pair.Shapes()[1].(*geometry.Sphere)
	assert.Same(t, left.Material, right.Material)

	// Plane normals are normalised on load
	floor := root.Shapes()[1].(*geometry.Plane)
	assertVecNear(t, core.NewVec3(0, 1, 0), floor.Normal)

	hit := geometry.NewIntersection()
	require.True(t, s.Root.ClosestHit(core.NewRay(core.NewVec3(1, 5, 0), core.NewVec3(0, -1, 0)), &hit))
	assert.InDelta(t, 4.5, hit.Distance, 1e-5)
}

func TestParse_Defaults(t *testing.T) {
	s, err := Parse(strings.NewReader(tinyScene))
	require.NoError(t, err)

	assert.Equal(t, renderer.DefaultCamera(), s.Camera)
	assert.Equal(t, renderer.DefaultSkyColor, s.Sky(core.NewVec3(0, 1, 0)))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		message string
	}{
		{"empty", "", "empty document"},
		{"no shapes", "materials: {}\nshapes: []", "no shapes"},
		{"unknown key", tinyScene + "lights: []\n", "lights"},
		{"unknown shape", "shapes: [{type: cube}]", `unknown shape type "cube"`},
		{"missing type", "shapes: [{radius: 1}]", "missing shape type"},
		{"unknown material", "shapes: [{type: sphere, center: [0,0,0], radius: 1, material: gold}]", `unknown material "gold"`},
		{"missing material", "shapes: [{type: sphere, center: [0,0,0], radius: 1}]", "missing material"},
		{"zero radius", "materials: {m: {color: [1,1,1]}}\nshapes: [{type: sphere, center: [0,0,0], radius: 0, material: m}]", "radius"},
		{"short vector", "materials: {m: {color: [1,1]}}\nshapes: [{type: group}]", "expected 3 components"},
		{"zero normal", "materials: {m: {color: [1,1,1]}}\nshapes: [{type: plane, normal: [0,0,0], material: m}]", "must not be zero"},
		{"nested error path", "shapes: [{type: group, shapes: [{type: cone}]}]", "shapes[0].shapes[0].type"},
		{"camera both directions", tinyScene + "camera: {location: [0,0,1], forward: [0,0,-1], look_at: [0,0,0]}", "mutually exclusive"},
		{"camera no direction", tinyScene + "camera: {location: [0,0,1]}", "forward or look_at"},
		{"camera up parallel", tinyScene + "camera: {location: [0,0,0], forward: [0,1,0]}", "parallel"},
		{"unknown sky", tinyScene + "sky: {type: stars}", `unknown sky type "stars"`},
		{"constant sky without colour", tinyScene + "sky: {type: constant}", "sky.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScene)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "two-spheres.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullScene), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Two Spheres", s.Name)
	assert.Equal(t, path, s.Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("shapes: [{type: cube}]"), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalidScene)
	assert.Contains(t, err.Error(), bad)
}
