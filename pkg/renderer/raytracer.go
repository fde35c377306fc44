package renderer

import (
	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
)

// LightDirection is the fixed directional light used for shading
var LightDirection = core.NewVec3(0.30, 0.47, 0.80).Normalize()

// Shading bounds applied to the light term
const (
	MinShade float32 = 0.1
	MaxShade float32 = 1.0
)

// frame is the immutable render setup for one resolution and scene. A new
// frame is built whenever the grid or scene changes; rows are shared with
// the presenter.
type frame struct {
	rows          []*RenderRow
	width, height int
	root          geometry.Shape
	sky           SkyFunc

	xScale, yScale float32
	xMul, yMul     float32
}

// newFrame builds a frame for the given grid, computing the screen mapping
// from the aspect ratio so the longer axis spans the wider range
func newFrame(rows []*RenderRow, width, height int, root geometry.Shape, sky SkyFunc) *frame {
	f := &frame{
		rows:   rows,
		width:  width,
		height: height,
		root:   root,
		sky:    sky,
	}

	if width > height {
		f.xScale = float32(width) / float32(height)
		f.yScale = 1
	} else {
		f.xScale = 1
		f.yScale = float32(height) / float32(width)
	}
	f.xMul = 2 * f.xScale / float32(width)
	f.yMul = 2 * f.yScale / float32(height)

	return f
}

// screenX maps a jittered column to the horizontal screen coordinate
func (f *frame) screenX(x int, jitter float32) float32 {
	return (float32(x)+jitter)*f.xMul - f.xScale
}

// screenY maps a jittered row to the vertical screen coordinate
func (f *frame) screenY(y int, jitter float32) float32 {
	return f.yScale - (float32(y)+jitter)*f.yMul
}

// trace returns the colour seen along a single primary ray
func (f *frame) trace(ray core.Ray, hit *geometry.Intersection) core.Vec3 {
	*hit = geometry.NewIntersection()
	if !f.root.ClosestHit(ray, hit) {
		return f.sky(ray.Direction)
	}
	return surfaceColor(hit)
}

// surfaceColor applies the directional light to a hit
func surfaceColor(hit *geometry.Intersection) core.Vec3 {
	base := core.Splat(1)
	if hit.Material != nil {
		base = hit.Material.Color
	}
	return base.Multiply(Shade(hit.Normal))
}

// Shade returns the clamped light term for a surface normal.
// NaN normals shade at MinShade.
func Shade(normal core.Vec3) float32 {
	s := LightDirection.Dot(normal)
	if math32.IsNaN(s) {
		return MinShade
	}
	return min(max(s, MinShade), MaxShade)
}

// rowWorker holds the per-goroutine state for rendering rows. Each worker
// owns its generator and scratch intersection; nothing in it is shared.
type rowWorker struct {
	engine *Engine
	random *core.Xoshiro256pp
	hit    geometry.Intersection
}

func newRowWorker(e *Engine, seed uint64) *rowWorker {
	return &rowWorker{
		engine: e,
		random: core.NewXoshiro256pp(seed),
	}
}

// renderRow adds one sample to every pixel of row y and publishes it
func (w *rowWorker) renderRow(f *frame, y int) {
	row := f.rows[y]

	row.destinationLock.Lock()
	defer row.destinationLock.Unlock()

	// Writers hold both locks, so the counters are stable while we hold
	// destinationLock
	ds := w.engine.state.Load()
	cam := ds.Camera
	isNewRevision := row.frameRevision != ds.Revision

	src, dst := row.source, row.destination
	decay := float32(1)
	switch {
	case isNewRevision:
		clear(dst)
		src = dst
	case row.collectedCount >= w.engine.maxSamples:
		// Saturated: fold the new sample in as an exponential moving average
		n := float32(w.engine.maxSamples)
		decay = (n - 1) / n
	}

	yf := f.screenY(y, w.random.Float32())
	base := cam.Forward.Add(cam.Up.Multiply(yf))

	for x := range dst {
		xf := f.screenX(x, w.random.Float32())
		dir := base.Add(cam.Right.Multiply(xf)).Normalize()
		color := f.trace(core.NewRay(cam.Location, dir), &w.hit)
		dst[x] = src[x].Multiply(decay).Add(color)
	}

	row.sourceLock.Lock()
	if isNewRevision {
		row.collectedCount = 0
		row.frameRevision = ds.Revision
	}
	if row.collectedCount < w.engine.maxSamples {
		row.collectedCount++
	}
	row.source, row.destination = row.destination, row.source
	row.sourceLock.Unlock()
}
