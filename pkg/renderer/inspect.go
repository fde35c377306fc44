package renderer

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
)

// InspectResult describes what the pixel-centre ray at (X, Y) sees with the
// current camera, plus the accumulation state of its row
type InspectResult struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Direction core.Vec3 `json:"direction"`
	Hit       bool      `json:"hit"`
	Distance  float32   `json:"distance,omitempty"`
	Point     core.Vec3 `json:"point"`
	Normal    core.Vec3 `json:"normal"`
	Shape     string    `json:"shape,omitempty"`
	Material  string    `json:"material,omitempty"` // Base colour as #rrggbb
	Shade     float32   `json:"shade,omitempty"`
	Color     core.Vec3 `json:"color"` // Colour of a single un-jittered sample

	Samples     uint32 `json:"samples"`
	RowRevision uint32 `json:"rowRevision"`
	Revision    uint32 `json:"revision"`
}

// Inspect traces the ray through the centre of pixel (x, y)
func (e *Engine) Inspect(x, y int) (InspectResult, error) {
	f := e.frame.Load()
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return InspectResult{}, fmt.Errorf("%w: pixel (%d,%d) of %dx%d", ErrOutOfRange, x, y, f.width, f.height)
	}

	ds := e.state.Load()
	ray := ds.Camera.PrimaryRay(f.screenX(x, 0.5), f.screenY(y, 0.5))

	result := InspectResult{
		X:         x,
		Y:         y,
		Direction: ray.Direction,
		Revision:  ds.Revision,
	}
	result.Samples, result.RowRevision = f.rows[y].Snapshot()

	hit := geometry.NewIntersection()
	result.Color = f.trace(ray, &hit)
	if math32.IsInf(hit.Distance, 1) {
		return result, nil
	}

	result.Hit = true
	result.Distance = hit.Distance
	result.Point = ray.At(hit.Distance)
	result.Normal = hit.Normal
	result.Shape = shapeName(hit.Shape)
	result.Shade = Shade(hit.Normal)
	if hit.Material != nil {
		result.Material = hit.Material.Hex()
	}
	return result, nil
}

func shapeName(s geometry.Shape) string {
	switch s.(type) {
	case *geometry.Sphere:
		return "sphere"
	case *geometry.Plane:
		return "plane"
	case *geometry.Group:
		return "group"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%T", s)
	}
}
