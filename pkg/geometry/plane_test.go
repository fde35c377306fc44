package geometry

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/material"
)

func TestPlane_Hit_BasicIntersection(t *testing.T) {
	mat := material.NewMaterial(core.NewVec3(0.8, 0.47, 0.3))
	plane := NewPlane(core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0), mat)

	// Ray shooting down from above
	ray := core.NewRay(core.NewVec3(0, 5, 0), core.NewVec3(0, -1, 0))

	hit := NewIntersection()
	if !plane.ClosestHit(ray, &hit) {
		t.Fatal("Expected hit, but got miss")
	}
	if hit.Distance != 5 {
		t.Errorf("Expected t=5, got t=%f", hit.Distance)
	}
	if hit.Normal != core.NewVec3(0, 1, 0) {
		t.Errorf("Expected normal (0,1,0), got %v", hit.Normal)
	}
	if hit.Material != mat {
		t.Error("Expected hit to carry the plane material")
	}
	if !plane.AnyHit(ray) {
		t.Error("Expected AnyHit to agree with ClosestHit")
	}
}

func TestPlane_Hit_Rejections(t *testing.T) {
	plane := NewPlane(core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0), nil)

	tests := []struct {
		name   string
		origin core.Vec3
		dir    core.Vec3
	}{
		{"parallel above", core.NewVec3(0, 1, 0), core.NewVec3(1, 0, 0)},   // -Inf
		{"parallel inside", core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0)},  // NaN
		{"behind ray", core.NewVec3(0, 1, 0), core.NewVec3(0, 1, 0)},       // negative
		{"nan direction", core.NewVec3(0, 1, 0), core.NewVec3(0, math32.NaN(), 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := core.NewRay(tt.origin, tt.dir)
			hit := NewIntersection()
			if plane.ClosestHit(ray, &hit) {
				t.Errorf("Expected miss, got hit at t=%f", hit.Distance)
			}
			if plane.AnyHit(ray) {
				t.Error("Expected AnyHit to miss")
			}
		})
	}
}

func TestPlane_Hit_NoNormalFlip(t *testing.T) {
	plane := NewPlane(core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0), nil)

	// Ray hitting the plane from below keeps the stored normal
	ray := core.NewRay(core.NewVec3(0, -2, 0), core.NewVec3(0, 1, 0))
	hit := NewIntersection()
	if !plane.ClosestHit(ray, &hit) {
		t.Fatal("Expected hit from below")
	}
	if hit.Distance != 2 {
		t.Errorf("Expected t=2, got t=%f", hit.Distance)
	}
	if hit.Normal != core.NewVec3(0, 1, 0) {
		t.Errorf("Expected unflipped normal (0,1,0), got %v", hit.Normal)
	}
}

func TestPlane_NormalizesNormal(t *testing.T) {
	plane := NewPlane(core.NewVec3(0, 2, 0), core.NewVec3(0, 3, 0), nil)
	if plane.Normal != core.NewVec3(0, 1, 0) {
		t.Errorf("Expected normalized normal, got %v", plane.Normal)
	}
	if plane.Offset != 2 {
		t.Errorf("Expected offset 2, got %f", plane.Offset)
	}
}
