package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chewxy/math32"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
	"github.com/df07/go-interactive-raytracer/pkg/surface"
)

// Default engine settings
const (
	DefaultWidth      = 160
	DefaultHeight     = 100
	DefaultMaxSamples = 1 << 20
)

var (
	// ErrInvalidResolution is returned for a width or height below 1
	ErrInvalidResolution = errors.New("renderer: width and height must be at least 1")
	// ErrShortBuffer is returned when a destination surface cannot hold the frame
	ErrShortBuffer = errors.New("renderer: destination buffer too short")
	// ErrInvalidPitch is returned when the row stride is smaller than a row of pixels
	ErrInvalidPitch = errors.New("renderer: pitch smaller than a row of pixels")
	// ErrOutOfRange is returned for row or pixel coordinates outside the grid
	ErrOutOfRange = errors.New("renderer: coordinates out of range")
	// ErrNilShape is returned when the engine is given no root shape
	ErrNilShape = errors.New("renderer: root shape is nil")
	// ErrClosed is returned by operations on a closed engine
	ErrClosed = errors.New("renderer: engine closed")
)

// Config contains the settings an Engine is created with
type Config struct {
	Width, Height int     // Grid size (0 = default)
	Workers       int     // Number of render goroutines (0 = NumCPU-1, at least 1)
	TaskSeed      uint64  // Seed for the row shuffle
	MaxSamples    uint32  // Per-row count where accumulation becomes a moving average (0 = default)
	Sky           SkyFunc // Colour for rays that hit nothing (nil = DefaultSky)
	Camera        *Camera // Initial camera (nil = DefaultCamera)
	StartPaused   bool    // Build the grid but do not start workers
}

// DefaultConfig returns the settings used by the interactive viewer
func DefaultConfig() Config {
	return Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		TaskSeed:   DefaultTaskSeed,
		MaxSamples: DefaultMaxSamples,
	}
}

// DefaultWorkers leaves one CPU for the presenter
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// Engine is a progressive row-parallel renderer. Workers keep refining every
// row of the grid until stopped; camera edits are published without blocking
// and invalidate each row the next time a worker touches it.
type Engine struct {
	mu       sync.Mutex // serializes resolution, scene and lifecycle changes
	executor *Executor
	paused   bool
	closed   bool

	frame atomic.Pointer[frame]
	state atomic.Pointer[DynamicState]

	workers    int
	taskSeed   uint64
	maxSamples uint32

	manualMu sync.Mutex // taken after mu; frame swaps hold it
	manual   *rowWorker
}

// NewEngine creates an engine for root and starts rendering unless
// cfg.StartPaused is set
func NewEngine(root geometry.Shape, cfg Config) (*Engine, error) {
	if root == nil {
		return nil, ErrNilShape
	}

	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidResolution, cfg.Width, cfg.Height)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.MaxSamples == 0 {
		cfg.MaxSamples = DefaultMaxSamples
	}
	if cfg.Sky == nil {
		cfg.Sky = DefaultSky
	}
	cam := DefaultCamera()
	if cfg.Camera != nil {
		cam = *cfg.Camera
	}

	e := &Engine{
		workers:    cfg.Workers,
		taskSeed:   cfg.TaskSeed,
		maxSamples: cfg.MaxSamples,
		paused:     cfg.StartPaused,
	}
	e.state.Store(&DynamicState{Camera: cam})
	e.frame.Store(newFrame(newRows(cfg.Width, cfg.Height), cfg.Width, cfg.Height, root, cfg.Sky))
	e.manual = newRowWorker(e, uint64(cfg.Workers))

	core.Logger().Debug("engine created",
		"width", cfg.Width, "height", cfg.Height,
		"workers", cfg.Workers, "maxSamples", cfg.MaxSamples)

	if !e.paused {
		e.start()
	}
	return e, nil
}

func newRows(width, height int) []*RenderRow {
	rows := make([]*RenderRow, height)
	for y := range rows {
		rows[y] = NewRenderRow(width)
	}
	return rows
}

// start launches a fresh executor over the current frame. Callers hold mu.
func (e *Engine) start() {
	f := e.frame.Load()

	jobs := make([]Job, e.workers)
	for i := range jobs {
		w := newRowWorker(e, uint64(i))
		jobs[i] = func(y int) { w.renderRow(f, y) }
	}
	e.executor = NewExecutor(f.height, jobs, e.taskSeed)
}

// stop joins the executor if one is running. Callers hold mu.
func (e *Engine) stop() {
	if e.executor != nil {
		e.executor.Stop()
		e.executor = nil
	}
}

// SetResolution stops the workers, replaces the grid with a zeroed one of
// the given size and restarts them. The previous grid is kept on error.
func (e *Engine) SetResolution(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidResolution, width, height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.stop()
	e.manualMu.Lock()
	old := e.frame.Load()
	e.frame.Store(newFrame(newRows(width, height), width, height, old.root, old.sky))
	e.manualMu.Unlock()
	core.Logger().Debug("resolution changed", "width", width, "height", height)

	if !e.paused {
		e.start()
	}
	return nil
}

// SetScene stops the workers, swaps the root shape and sky and restarts
// them. The revision advances so every row restarts its accumulation.
// A nil sky keeps the current one.
func (e *Engine) SetScene(root geometry.Shape, sky SkyFunc) error {
	if root == nil {
		return ErrNilShape
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.stop()
	// Manual passes must see the new frame and the new revision together
	e.manualMu.Lock()
	old := e.frame.Load()
	if sky == nil {
		sky = old.sky
	}
	e.frame.Store(newFrame(old.rows, old.width, old.height, root, sky))
	revision := e.SetCamera(e.Camera())
	e.manualMu.Unlock()
	core.Logger().Debug("scene replaced", "revision", revision)

	if !e.paused {
		e.start()
	}
	return nil
}

// SetCamera publishes a new camera and returns its revision. It never
// blocks; rows still rendering with the previous camera are discarded the
// next time a worker reaches them.
func (e *Engine) SetCamera(cam Camera) uint32 {
	for {
		current := e.state.Load()
		next := &DynamicState{Camera: cam, Revision: current.Revision + 1}
		if e.state.CompareAndSwap(current, next) {
			return next.Revision
		}
	}
}

// Camera returns the most recently published camera
func (e *Engine) Camera() Camera {
	return e.state.Load().Camera
}

// Revision returns the current dynamic state revision
func (e *Engine) Revision() uint32 {
	return e.state.Load().Revision
}

// Resolution returns the current grid size
func (e *Engine) Resolution() (width, height int) {
	f := e.frame.Load()
	return f.width, f.height
}

// Workers returns the number of render goroutines
func (e *Engine) Workers() int {
	return e.workers
}

// Pause stops the workers without touching the grid
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused || e.closed {
		return
	}
	e.stop()
	e.paused = true
	core.Logger().Debug("engine paused")
}

// Resume restarts workers stopped by Pause or Config.StartPaused
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.paused {
		return nil
	}
	e.paused = false
	e.start()
	core.Logger().Debug("engine resumed")
	return nil
}

// Paused reports whether the workers are stopped
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused || e.closed
}

// Close stops the workers permanently. Closing twice is harmless.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.stop()
	e.closed = true
	core.Logger().Debug("engine closed")
	return nil
}

// RenderRow renders one pass of row y on the calling goroutine. It may run
// alongside the workers; the row locks keep passes on the same row apart.
func (e *Engine) RenderRow(y int) error {
	if e.isClosed() {
		return ErrClosed
	}

	e.manualMu.Lock()
	defer e.manualMu.Unlock()

	f := e.frame.Load()
	if y < 0 || y >= f.height {
		return fmt.Errorf("%w: row %d of %d", ErrOutOfRange, y, f.height)
	}
	e.manual.renderRow(f, y)
	return nil
}

// RenderPass renders one pass of every row, top to bottom, on the calling
// goroutine
func (e *Engine) RenderPass() error {
	if e.isClosed() {
		return ErrClosed
	}

	e.manualMu.Lock()
	defer e.manualMu.Unlock()

	f := e.frame.Load()
	for y := range f.rows {
		e.manual.renderRow(f, y)
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// DisplayFrame writes the averaged image into dst as 32-bit little-endian
// 0x00RRGGBB words, one row every pitch bytes. Each row is copied under its
// source lock only, so the presenter never waits on a pass in progress.
func (e *Engine) DisplayFrame(dst []byte, pitch int) error {
	f := e.frame.Load()
	rowBytes := f.width * surface.BytesPerPixel
	if pitch < rowBytes {
		return fmt.Errorf("%w: pitch %d, need %d", ErrInvalidPitch, pitch, rowBytes)
	}
	if need := (f.height-1)*pitch + rowBytes; len(dst) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(dst), need)
	}
	presentFrame(f, dst, pitch)
	return nil
}

// Image returns a new BGRX surface holding the current frame
func (e *Engine) Image() *surface.BGRX {
	f := e.frame.Load()
	img := surface.NewBGRX(f.width, f.height)
	presentFrame(f, img.Pix, img.Stride)
	return img
}

// presentFrame writes every row of f into dst, which the caller has sized
// for f's grid
func presentFrame(f *frame, dst []byte, pitch int) {
	rowBytes := f.width * surface.BytesPerPixel
	for y, row := range f.rows {
		presentRow(row, dst[y*pitch:y*pitch+rowBytes])
	}
}

// presentRow converts one row's published sum to pixels
func presentRow(row *RenderRow, out []byte) {
	row.sourceLock.Lock()
	defer row.sourceLock.Unlock()

	if row.collectedCount == 0 {
		clear(out)
		return
	}

	k := 255 / float32(row.collectedCount)
	for x, c := range row.source {
		word := uint32(clampByte(c.X*k))<<16 | uint32(clampByte(c.Y*k))<<8 | uint32(clampByte(c.Z*k))
		binary.LittleEndian.PutUint32(out[x*surface.BytesPerPixel:], word)
	}
}

// clampByte floors v and clamps it to [0, 255]. NaN maps to 0.
func clampByte(v float32) uint8 {
	v = math32.Floor(v)
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
