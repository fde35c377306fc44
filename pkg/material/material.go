package material

import (
	"fmt"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

// Material is a flat diffuse surface description. Materials are immutable
// after construction and may be shared by any number of shapes.
type Material struct {
	Color core.Vec3 // Linear base colour in [0,1]³
}

// NewMaterial creates a material with the given base colour
func NewMaterial(color core.Vec3) *Material {
	return &Material{Color: color}
}

// Hex returns the base colour as an sRGB-agnostic #rrggbb string
func (m *Material) Hex() string {
	c := m.Color.Clamp(0, 1)
	return fmt.Sprintf("#%02x%02x%02x", int(c.X*255), int(c.Y*255), int(c.Z*255))
}
