package geometry

import "github.com/df07/go-interactive-raytracer/pkg/core"

// Group is an ordered collection of shapes intersected as one. A group owns
// its children; groups may be nested.
type Group struct {
	shapes []Shape
}

// NewGroup creates a group holding the given shapes in order
func NewGroup(shapes ...Shape) *Group {
	return &Group{shapes: shapes}
}

// Add appends a shape to the group and returns the group for chaining
func (g *Group) Add(shape Shape) *Group {
	g.shapes = append(g.shapes, shape)
	return g
}

// Shapes returns the children in iteration order
func (g *Group) Shapes() []Shape {
	return g.shapes
}

// Len returns the number of direct children
func (g *Group) Len() int {
	return len(g.shapes)
}

// AnyHit returns true as soon as one child reports a hit
func (g *Group) AnyHit(ray core.Ray) bool {
	for _, shape := range g.shapes {
		if shape.AnyHit(ray) {
			return true
		}
	}
	return false
}

// ClosestHit returns the nearest hit over all children. On equal distances
// the child that comes first wins.
func (g *Group) ClosestHit(ray core.Ray, hit *Intersection) bool {
	best := NewIntersection()
	found := false

	for _, shape := range g.shapes {
		scratch := NewIntersection()
		if shape.ClosestHit(ray, &scratch) && scratch.Distance < best.Distance {
			best = scratch
			found = true
		}
	}

	if found {
		*hit = best
	}
	return found
}
