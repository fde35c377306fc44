package geometry

import (
	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/material"
)

// Intersection describes the closest surface point found along a ray
type Intersection struct {
	Distance float32            // Ray parameter of the hit, +Inf until something is hit
	Normal   core.Vec3          // Unit outward surface normal
	Material *material.Material // Material of the hit surface, nil if nothing was hit
	Shape    Shape              // Primitive that produced the hit
}

// NewIntersection returns an empty record with Distance set to +Inf
func NewIntersection() Intersection {
	return Intersection{Distance: math32.Inf(1)}
}

// Shape is anything a ray can be tested against. Ray directions passed to
// a Shape must be unit length.
type Shape interface {
	// AnyHit reports whether the ray hits the shape at any distance >= 0
	AnyHit(ray core.Ray) bool
	// ClosestHit reports whether the ray hits the shape and on success fills
	// hit with the smallest non-negative distance
	ClosestHit(ray core.Ray, hit *Intersection) bool
}

// validDistance rejects negative, NaN and infinite ray parameters
func validDistance(t float32) bool {
	return t >= 0 && !math32.IsInf(t, 0)
}
