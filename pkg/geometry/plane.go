package geometry

import (
	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/material"
)

// Plane represents an infinite plane defined by a point and normal
type Plane struct {
	Normal   core.Vec3          // Unit normal, returned unchanged for every hit
	Offset   float32            // Normal · point on the plane
	Material *material.Material // Material of the plane
}

// NewPlane creates a new plane through point with the given normal
func NewPlane(point, normal core.Vec3, mat *material.Material) *Plane {
	normal = normal.Normalize()
	return &Plane{
		Normal:   normal,
		Offset:   normal.Dot(point),
		Material: mat,
	}
}

// distance returns the ray parameter of the plane crossing. Rays parallel
// to the plane produce ±Inf or NaN, which callers reject.
func (p *Plane) distance(ray core.Ray) float32 {
	return (p.Offset - p.Normal.Dot(ray.Origin)) / p.Normal.Dot(ray.Direction)
}

// AnyHit tests if the ray crosses the plane in front of its origin
func (p *Plane) AnyHit(ray core.Ray) bool {
	return validDistance(p.distance(ray))
}

// ClosestHit tests if the ray crosses the plane and records the crossing
func (p *Plane) ClosestHit(ray core.Ray, hit *Intersection) bool {
	t := p.distance(ray)
	if !validDistance(t) {
		return false
	}

	hit.Distance = t
	hit.Normal = p.Normal
	hit.Material = p.Material
	hit.Shape = p
	return true
}
