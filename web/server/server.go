package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
	"github.com/df07/go-interactive-raytracer/pkg/scene"
	"github.com/df07/go-interactive-raytracer/pkg/surface"
)

// Limits accepted from clients
const (
	MaxResolution = 4096
	MaxFPS        = 120
)

// Options configures the web presenter
type Options struct {
	Port        int
	FPS         int            // Default frame rate of streamed frames
	FrameFormat surface.Format // Default encoding of frames
	SceneDir    string         // Directory listed by /api/scenes
	StaticDir   string         // Served at / when set
	Console     *ConsoleHandler
}

// Server presents a running engine over HTTP, SSE and WebSocket and accepts
// camera and resolution commands
type Server struct {
	engine *renderer.Engine
	opts   Options

	mu    sync.Mutex // guards scene
	scene *scene.Scene
}

// NewServer creates a server for engine, which is rendering sc
func NewServer(engine *renderer.Engine, sc *scene.Scene, opts Options) *Server {
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	if opts.FrameFormat == "" {
		opts.FrameFormat = surface.PNG
	}
	return &Server{engine: engine, scene: sc, opts: opts}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.opts.StaticDir)))
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/scenes", s.handleScenes)
	mux.HandleFunc("POST /api/scene", s.handleSetScene)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/camera", s.handleGetCamera)
	mux.HandleFunc("POST /api/camera", s.handleSetCamera)
	mux.HandleFunc("POST /api/move", s.handleMove)
	mux.HandleFunc("POST /api/resolution", s.handleResolution)
	mux.HandleFunc("GET /api/inspect", s.handleInspect)
	mux.HandleFunc("GET /api/render", s.handleRender)
	mux.HandleFunc("GET /api/console", s.handleConsole)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		core.Logger().Info("starting web server", "addr", "http://localhost"+srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Scene returns the scene being rendered
func (s *Server) Scene() *scene.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// LoadScene resolves a built-in name or a scene file inside the scene
// directory and switches to it, including its camera
func (s *Server) LoadScene(nameOrPath string) (*scene.Scene, error) {
	sc, err := scene.ResolveIn(s.opts.SceneDir, nameOrPath)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyScene(sc, false); err != nil {
		return nil, err
	}
	return sc, nil
}

// ApplyScene switches the engine to sc. With keepCamera the current view is
// kept, which suits hot reloads of the file being edited.
func (s *Server) ApplyScene(sc *scene.Scene, keepCamera bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.SetScene(sc.Root, sc.Sky); err != nil {
		return err
	}
	if !keepCamera {
		s.engine.SetCamera(sc.Camera)
	}
	s.scene = sc
	core.Logger().Info("scene loaded", "name", sc.Name, "path", sc.Path)
	return nil
}

// ReloadScene applies a re-read scene file with the current camera kept. It
// reports false and leaves the engine alone when another scene has been
// selected since the file was loaded.
func (s *Server) ReloadScene(updated *scene.Scene) (bool, error) {
	s.mu.Lock()
	current := s.scene.Path
	s.mu.Unlock()

	if updated.Path == "" || !samePath(updated.Path, current) {
		core.Logger().Debug("ignoring reload of inactive scene", "path", updated.Path, "current", current)
		return false, nil
	}
	return true, s.ApplyScene(updated, true)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// CameraRequest sets a camera from a location and view direction
type CameraRequest struct {
	Location core.Vec3  `json:"location"`
	Forward  core.Vec3  `json:"forward"`
	Up       *core.Vec3 `json:"up,omitempty"` // Defaults to world up
}

// MoveRequest is one frame of controller input, see renderer.Camera.Control
type MoveRequest struct {
	Move  core.Vec3 `json:"move"` // forward, right, up in [-1, 1]
	Yaw   float32   `json:"yaw"`
	Pitch float32   `json:"pitch"`
	DT    float32   `json:"dt"` // Seconds
}

// CameraResponse reports the published camera
type CameraResponse struct {
	Camera   renderer.Camera `json:"camera"`
	Revision uint32          `json:"revision"`
	Changed  bool            `json:"changed"`
}

// ResolutionRequest resizes the grid
type ResolutionRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Server) cameraResponse(changed bool) CameraResponse {
	return CameraResponse{Camera: s.engine.Camera(), Revision: s.engine.Revision(), Changed: changed}
}

// setCamera validates and publishes a camera
func (s *Server) setCamera(req CameraRequest) (CameraResponse, error) {
	if !req.Location.IsFinite() || !req.Forward.IsFinite() {
		return CameraResponse{}, errors.New("camera vectors must be finite")
	}
	if req.Forward.LengthSquared() == 0 {
		return CameraResponse{}, errors.New("camera forward must not be zero")
	}
	up := renderer.WorldUp
	if req.Up != nil {
		up = *req.Up
	}
	forward := req.Forward.Normalize()
	if forward.Cross(up.Normalize()).LengthSquared() < 1e-8 {
		return CameraResponse{}, errors.New("camera up must not be parallel to forward")
	}

	s.engine.SetCamera(renderer.NewCamera(req.Location, forward, up))
	return s.cameraResponse(true), nil
}

// move applies controller input to the current camera
func (s *Server) move(req MoveRequest) (CameraResponse, error) {
	if req.DT < 0 || req.DT > 1 {
		return CameraResponse{}, fmt.Errorf("dt must be between 0 and 1, got %v", req.DT)
	}
	cam, changed := s.engine.Camera().Control(req.Move.Clamp(-1, 1), clampAxis(req.Yaw), clampAxis(req.Pitch), req.DT)
	if changed {
		s.engine.SetCamera(cam)
	}
	return s.cameraResponse(changed), nil
}

func (s *Server) setResolution(req ResolutionRequest) error {
	if req.Width < 1 || req.Width > MaxResolution || req.Height < 1 || req.Height > MaxResolution {
		return fmt.Errorf("resolution must be between 1x1 and %dx%d, got %dx%d", MaxResolution, MaxResolution, req.Width, req.Height)
	}
	return s.engine.SetResolution(req.Width, req.Height)
}

func clampAxis(v float32) float32 {
	return min(max(v, -1), 1)
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// ScenesListing is the /api/scenes response
type ScenesListing struct {
	scene.ScenesResponse
	Current string `json:"current"`
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	listing, err := scene.ListAllScenes(s.opts.SceneDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	current := ""
	if sc := s.Scene(); sc != nil {
		current = sc.Name
		if sc.Path != "" {
			current = sc.Path
		}
	}
	writeJSON(w, http.StatusOK, ScenesListing{ScenesResponse: listing, Current: current})
}

func (s *Server) handleSetScene(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing scene name")
		return
	}

	sc, err := s.LoadScene(name)
	switch {
	case errors.Is(err, scene.ErrUnknownScene):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, scene.ErrInvalidScene):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": sc.Name, "revision": s.engine.Revision()})
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cameraResponse(false))
}

func (s *Server) handleSetCamera(w http.ResponseWriter, r *http.Request) {
	var req CameraRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.setCamera(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.move(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolution(w http.ResponseWriter, r *http.Request) {
	width, height := s.engine.Resolution()

	var err error
	if width, err = parseIntParam(r.URL.Query(), "width", width, 1, MaxResolution); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if height, err = parseIntParam(r.URL.Query(), "height", height, 1, MaxResolution); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.setResolution(ResolutionRequest{Width: width, Height: height}); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ResolutionRequest{Width: width, Height: height})
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query(), "limit", 0, 0, 100000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	messages := []ConsoleMessage{}
	if s.opts.Console != nil {
		messages = append(messages, s.opts.Console.Messages(limit)...)
	}
	writeJSON(w, http.StatusOK, messages)
}

// frameParams are the query parameters shared by frame producing endpoints
type frameParams struct {
	format surface.Format
	width  int // 0 = native size
}

func (s *Server) parseFrameParams(values url.Values) (frameParams, error) {
	p := frameParams{format: s.opts.FrameFormat}
	if f := values.Get("format"); f != "" {
		format, err := surface.ParseFormat(f)
		if err != nil {
			return p, err
		}
		p.format = format
	}

	var err error
	p.width, err = parseIntParam(values, "width", 0, 0, MaxResolution)
	return p, err
}

// encodeFrame snapshots the engine and encodes it
func (s *Server) encodeFrame(p frameParams) ([]byte, error) {
	img := s.engine.Image()

	var buf bytes.Buffer
	var err error
	if p.width > 0 && p.width != img.Bounds().Dx() {
		err = surface.Encode(&buf, surface.Scale(img, p.width, 0), p.format)
	} else {
		err = surface.Encode(&buf, img, p.format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseFrameParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.encodeFrame(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", p.format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Render-Revision", strconv.FormatUint(uint64(s.engine.Revision()), 10))
	w.Write(data)
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// decodeJSON reads a JSON request body, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
