package renderer

import (
	"sync"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

// DynamicState is the part of the render setup that may change while
// workers are running. A published DynamicState is never modified; edits
// publish a new value with the next revision.
type DynamicState struct {
	Camera   Camera
	Revision uint32
}

// RenderRow is the double-buffered accumulator for one scanline.
//
// source holds the published sum of collectedCount samples taken at
// frameRevision. destination is the buffer the owning worker writes during a
// pass. Workers always take destinationLock before sourceLock; the presenter
// only ever takes sourceLock.
type RenderRow struct {
	sourceLock      sync.Mutex // guards source, collectedCount, frameRevision
	destinationLock sync.Mutex // at most one worker per row

	source      []core.Vec3
	destination []core.Vec3

	collectedCount uint32
	frameRevision  uint32
}

// NewRenderRow allocates a zeroed row of the given width with no samples
func NewRenderRow(width int) *RenderRow {
	return &RenderRow{
		source:      make([]core.Vec3, width),
		destination: make([]core.Vec3, width),
	}
}

// Snapshot returns the sample count and revision of the published buffer
func (r *RenderRow) Snapshot() (collected, revision uint32) {
	r.sourceLock.Lock()
	defer r.sourceLock.Unlock()
	return r.collectedCount, r.frameRevision
}

// Average copies the averaged colour of the published buffer into dst,
// which must be at least as long as the row
func (r *RenderRow) Average(dst []core.Vec3) {
	r.sourceLock.Lock()
	defer r.sourceLock.Unlock()

	if r.collectedCount == 0 {
		clear(dst[:len(r.source)])
		return
	}
	inv := 1 / float32(r.collectedCount)
	for x, c := range r.source {
		dst[x] = c.Multiply(inv)
	}
}
