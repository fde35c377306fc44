package geometry

import (
	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/material"
)

// Sphere represents a sphere shape
type Sphere struct {
	Center    core.Vec3
	Radius    float32
	Material  *material.Material
	radius2   float32
	invRadius float32
}

// NewSphere creates a new sphere. The radius must be positive.
func NewSphere(center core.Vec3, radius float32, mat *material.Material) *Sphere {
	return &Sphere{
		Center:    center,
		Radius:    radius,
		Material:  mat,
		radius2:   radius * radius,
		invRadius: 1 / radius,
	}
}

// discriminant returns the projection of the centre onto the ray and the
// squared half chord length
func (s *Sphere) discriminant(ray core.Ray) (proj, d float32) {
	delta := s.Center.Subtract(ray.Origin)
	proj = delta.Dot(ray.Direction)
	d = s.radius2 - delta.LengthSquared() + proj*proj
	return proj, d
}

// AnyHit tests if the ray hits the sphere in front of its origin
func (s *Sphere) AnyHit(ray core.Ray) bool {
	proj, d := s.discriminant(ray)
	if !(d >= 0) {
		return false
	}
	return validDistance(proj + math32.Sqrt(d))
}

// ClosestHit finds the nearest non-negative intersection with the sphere
func (s *Sphere) ClosestHit(ray core.Ray, hit *Intersection) bool {
	proj, d := s.discriminant(ray)
	if !(d >= 0) {
		return false
	}
	sqrtD := math32.Sqrt(d)

	// Try the front intersection first, then the back one (origin inside)
	t := proj - sqrtD
	if !validDistance(t) {
		t = proj + sqrtD
		if !validDistance(t) {
			return false
		}
	}

	hit.Distance = t
	hit.Normal = ray.At(t).Subtract(s.Center).Multiply(s.invRadius)
	hit.Material = s.Material
	hit.Shape = s
	return true
}
