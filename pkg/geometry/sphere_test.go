package geometry

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/material"
)

func vecNear(a, b core.Vec3, tolerance float32) bool {
	return a.Subtract(b).Length() <= tolerance
}

func TestSphere_Hit_Miss(t *testing.T) {
	sphere := NewSphere(core.NewVec3(0, 0, 0), 1.0, nil)
	ray := core.NewRay(core.NewVec3(2, 0, 0), core.NewVec3(0, 1, 0))

	hit := NewIntersection()
	if sphere.ClosestHit(ray, &hit) {
		t.Errorf("Expected miss, but got hit at t=%f", hit.Distance)
	}
	if sphere.AnyHit(ray) {
		t.Error("Expected AnyHit to miss")
	}
}

func TestSphere_Hit_FrontAndBack(t *testing.T) {
	mat := material.NewMaterial(core.NewVec3(1, 0, 0))
	sphere := NewSphere(core.NewVec3(0, 0, 0), 1.0, mat)

	tests := []struct {
		name           string
		rayOrigin      core.Vec3
		rayDirection   core.Vec3
		expectedT      float32
		expectedNormal core.Vec3
	}{
		{
			name:           "outside through center",
			rayOrigin:      core.NewVec3(0, 0, 4),
			rayDirection:   core.NewVec3(0, 0, -1),
			expectedT:      3.0, // |center - origin| - radius
			expectedNormal: core.NewVec3(0, 0, 1),
		},
		{
			name:           "inside at center",
			rayOrigin:      core.NewVec3(0, 0, 0),
			rayDirection:   core.NewVec3(0, 0, 1),
			expectedT:      1.0,
			expectedNormal: core.NewVec3(0, 0, 1),
		},
		{
			name:           "inside through center",
			rayOrigin:      core.NewVec3(0, 0, 0.5),
			rayDirection:   core.NewVec3(0, 0, -1),
			expectedT:      1.5, // |center - origin| + radius
			expectedNormal: core.NewVec3(0, 0, -1),
		},
		{
			name:           "glancing",
			rayOrigin:      core.NewVec3(1, 0, 2),
			rayDirection:   core.NewVec3(0, 0, -1),
			expectedT:      2.0,
			expectedNormal: core.NewVec3(1, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := core.NewRay(tt.rayOrigin, tt.rayDirection)
			hit := NewIntersection()

			if !sphere.ClosestHit(ray, &hit) {
				t.Fatal("Expected hit, but got miss")
			}
			if !sphere.AnyHit(ray) {
				t.Error("Expected AnyHit to agree with ClosestHit")
			}
			if math32.Abs(hit.Distance-tt.expectedT) > 1e-5 {
				t.Errorf("Expected t=%f, got t=%f", tt.expectedT, hit.Distance)
			}
			if !vecNear(hit.Normal, tt.expectedNormal, 1e-5) {
				t.Errorf("Expected normal %v, got %v", tt.expectedNormal, hit.Normal)
			}
			if hit.Material != mat {
				t.Error("Expected hit to carry the sphere material")
			}
			if hit.Shape != sphere {
				t.Error("Expected hit to reference the sphere")
			}
		})
	}
}

func TestSphere_Hit_Behind(t *testing.T) {
	sphere := NewSphere(core.NewVec3(0, 0, 0), 1.0, nil)
	ray := core.NewRay(core.NewVec3(0, 0, 4), core.NewVec3(0, 0, 1))

	hit := NewIntersection()
	if sphere.ClosestHit(ray, &hit) {
		t.Errorf("Expected miss for sphere behind ray, got t=%f", hit.Distance)
	}
	if sphere.AnyHit(ray) {
		t.Error("Expected AnyHit to miss sphere behind ray")
	}
}

func TestSphere_Hit_OffsetCenter(t *testing.T) {
	center := core.NewVec3(1, 2, 3)
	sphere := NewSphere(center, 2.0, nil)
	origin := core.NewVec3(1, 2, 10)
	ray := core.NewRay(origin, center.Subtract(origin).Normalize())

	hit := NewIntersection()
	if !sphere.ClosestHit(ray, &hit) {
		t.Fatal("Expected hit, but got miss")
	}

	expected := center.Subtract(origin).Length() - 2.0
	if math32.Abs(hit.Distance-expected) > 1e-5 {
		t.Errorf("Expected t=%f, got t=%f", expected, hit.Distance)
	}
	if math32.Abs(hit.Normal.Length()-1) > 1e-5 {
		t.Errorf("Expected unit normal, got length %f", hit.Normal.Length())
	}
}

func TestSphere_Hit_NaNRay(t *testing.T) {
	sphere := NewSphere(core.NewVec3(0, 0, 0), 1.0, nil)
	ray := core.NewRay(core.NewVec3(0, 0, 4), core.NewVec3(math32.NaN(), 0, -1))

	hit := NewIntersection()
	if sphere.ClosestHit(ray, &hit) || sphere.AnyHit(ray) {
		t.Error("Expected NaN direction to be rejected")
	}
}
