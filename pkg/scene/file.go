package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
	"github.com/df07/go-interactive-raytracer/pkg/material"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
)

// File is the YAML layout of a scene file
//
//	name: Two spheres
//	camera: {location: [0, 1, 5], look_at: [0, 0, 0]}
//	sky: {type: gradient, top: [0.5, 0.7, 1], bottom: [1, 1, 1]}
//	materials:
//	  red: {color: [1, 0, 0]}
//	shapes:
//	  - {type: sphere, center: [0, 0, 0], radius: 1, material: red}
//	  - {type: plane, point: [0, -1, 0], normal: [0, 1, 0], material: red}
type File struct {
	Name        string                  `yaml:"name,omitempty"`
	Description string                  `yaml:"description,omitempty"`
	Group       string                  `yaml:"group,omitempty"`
	Camera      *CameraSpec             `yaml:"camera,omitempty"`
	Sky         *SkySpec                `yaml:"sky,omitempty"`
	Materials   map[string]MaterialSpec `yaml:"materials"`
	Shapes      []ShapeSpec             `yaml:"shapes"`
}

// CameraSpec places the camera. Exactly one of Forward and LookAt is used.
type CameraSpec struct {
	Location []float32 `yaml:"location"`
	Forward  []float32 `yaml:"forward,omitempty"`
	LookAt   []float32 `yaml:"look_at,omitempty"`
	Up       []float32 `yaml:"up,omitempty"`
}

// SkySpec selects a sky function: "constant" uses Color, "gradient" blends
// Bottom to Top
type SkySpec struct {
	Type   string    `yaml:"type"`
	Color  []float32 `yaml:"color,omitempty"`
	Top    []float32 `yaml:"top,omitempty"`
	Bottom []float32 `yaml:"bottom,omitempty"`
}

// MaterialSpec is a named flat colour
type MaterialSpec struct {
	Color []float32 `yaml:"color"`
}

// ShapeSpec is a sphere, plane or group entry
type ShapeSpec struct {
	Type     string      `yaml:"type"`
	Center   []float32   `yaml:"center,omitempty"`
	Radius   float32     `yaml:"radius,omitempty"`
	Point    []float32   `yaml:"point,omitempty"`
	Normal   []float32   `yaml:"normal,omitempty"`
	Material string      `yaml:"material,omitempty"`
	Shapes   []ShapeSpec `yaml:"shapes,omitempty"`
}

// Load reads and validates a scene file
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes a YAML scene. Unknown keys are rejected.
func Parse(r io.Reader) (*Scene, error) {
	var file File

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScene)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}

	return file.Build()
}

// Build validates the file and constructs the scene
func (f *File) Build() (*Scene, error) {
	if len(f.Shapes) == 0 {
		return nil, invalid("shapes", "scene has no shapes")
	}

	materials := make(map[string]*material.Material, len(f.Materials))
	for name, spec := range f.Materials {
		color, err := toVec("materials."+name+".color", spec.Color)
		if err != nil {
			return nil, err
		}
		materials[name] = material.NewMaterial(color)
	}

	b := builder{materials: materials}
	root := geometry.NewGroup()
	for i, spec := range f.Shapes {
		shape, err := b.shape(fmt.Sprintf("shapes[%d]", i), spec)
		if err != nil {
			return nil, err
		}
		root.Add(shape)
	}

	cam, err := f.Camera.build()
	if err != nil {
		return nil, err
	}
	sky, err := f.Sky.build()
	if err != nil {
		return nil, err
	}

	return &Scene{
		Name:        f.Name,
		Description: f.Description,
		Root:        root,
		Camera:      cam,
		Sky:         sky,
	}, nil
}

type builder struct {
	materials map[string]*material.Material
}

func (b builder) shape(field string, spec ShapeSpec) (geometry.Shape, error) {
	switch spec.Type {
	case "sphere":
		mat, err := b.material(field, spec.Material)
		if err != nil {
			return nil, err
		}
		center, err := toVec(field+".center", spec.Center)
		if err != nil {
			return nil, err
		}
		if !(spec.Radius > 0) || math32.IsInf(spec.Radius, 0) {
			return nil, invalid(field+".radius", "must be a positive number, got %v", spec.Radius)
		}
		return geometry.NewSphere(center, spec.Radius, mat), nil

	case "plane":
		mat, err := b.material(field, spec.Material)
		if err != nil {
			return nil, err
		}
		point := core.Vec3{}
		if spec.Point != nil {
			if point, err = toVec(field+".point", spec.Point); err != nil {
				return nil, err
			}
		}
		normal, err := toVec(field+".normal", spec.Normal)
		if err != nil {
			return nil, err
		}
		if normal.LengthSquared() == 0 {
			return nil, invalid(field+".normal", "must not be zero")
		}
		return geometry.NewPlane(point, normal, mat), nil

	case "group":
		group := geometry.NewGroup()
		for i, child := range spec.Shapes {
			shape, err := b.shape(fmt.Sprintf("%s.shapes[%d]", field, i), child)
			if err != nil {
				return nil, err
			}
			group.Add(shape)
		}
		return group, nil

	case "":
		return nil, invalid(field+".type", "missing shape type")
	default:
		return nil, invalid(field+".type", "unknown shape type %q", spec.Type)
	}
}

func (b builder) material(field, name string) (*material.Material, error) {
	if name == "" {
		return nil, invalid(field+".material", "missing material")
	}
	mat, ok := b.materials[name]
	if !ok {
		return nil, invalid(field+".material", "unknown material %q", name)
	}
	return mat, nil
}

func (c *CameraSpec) build() (renderer.Camera, error) {
	if c == nil {
		return renderer.DefaultCamera(), nil
	}

	location, err := toVec("camera.location", c.Location)
	if err != nil {
		return renderer.Camera{}, err
	}

	var forward core.Vec3
	switch {
	case c.Forward != nil && c.LookAt != nil:
		return renderer.Camera{}, invalid("camera", "forward and look_at are mutually exclusive")
	case c.Forward != nil:
		if forward, err = toVec("camera.forward", c.Forward); err != nil {
			return renderer.Camera{}, err
		}
	case c.LookAt != nil:
		target, err := toVec("camera.look_at", c.LookAt)
		if err != nil {
			return renderer.Camera{}, err
		}
		forward = target.Subtract(location)
	default:
		return renderer.Camera{}, invalid("camera", "one of forward or look_at is required")
	}
	if forward.LengthSquared() == 0 {
		return renderer.Camera{}, invalid("camera", "view direction must not be zero")
	}
	forward = forward.Normalize()

	up := renderer.WorldUp
	if c.Up != nil {
		if up, err = toVec("camera.up", c.Up); err != nil {
			return renderer.Camera{}, err
		}
	}
	if forward.Cross(up.Normalize()).LengthSquared() < 1e-8 {
		return renderer.Camera{}, invalid("camera.up", "must not be parallel to the view direction")
	}

	return renderer.NewCamera(location, forward, up), nil
}

func (s *SkySpec) build() (renderer.SkyFunc, error) {
	if s == nil {
		return renderer.DefaultSky, nil
	}

	switch s.Type {
	case "default":
		return renderer.DefaultSky, nil
	case "constant":
		color, err := toVec("sky.color", s.Color)
		if err != nil {
			return nil, err
		}
		return renderer.ConstantSky(color), nil
	case "gradient":
		top, err := toVec("sky.top", s.Top)
		if err != nil {
			return nil, err
		}
		bottom, err := toVec("sky.bottom", s.Bottom)
		if err != nil {
			return nil, err
		}
		return renderer.GradientSky(top, bottom), nil
	default:
		return nil, invalid("sky.type", "unknown sky type %q", s.Type)
	}
}

// toVec converts a YAML sequence to a finite vector
func toVec(field string, v []float32) (core.Vec3, error) {
	if len(v) != 3 {
		return core.Vec3{}, invalid(field, "expected 3 components, got %d", len(v))
	}
	vec := core.NewVec3(v[0], v[1], v[2])
	if !vec.IsFinite() {
		return core.Vec3{}, invalid(field, "components must be finite")
	}
	return vec, nil
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidScene, field, fmt.Sprintf(format, args...))
}
