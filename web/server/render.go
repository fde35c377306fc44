package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
	"github.com/df07/go-interactive-raytracer/pkg/surface"
)

// FrameUpdate is a presented frame sent via SSE
type FrameUpdate struct {
	FrameNumber int                  `json:"frameNumber"`
	ImageData   string               `json:"imageData"` // Base64 encoded image
	Format      surface.Format       `json:"format"`
	ElapsedMs   int64                `json:"elapsedMs"`
	Stats       renderer.RenderStats `json:"stats"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "frame", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// RenderRequest holds the parameters of a frame stream
type RenderRequest struct {
	frameParams
	FPS    int
	Frames int // 0 = until the client disconnects
}

// handleRender streams presented frames and console messages via SSE. The
// engine keeps rendering between frames, so each frame shows the current
// state of accumulation.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	// Set SSE headers
	s.setSSEHeaders(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)

	var producers errgroup.Group
	producers.Go(func() error {
		defer cancel()
		return s.streamFrames(ctx, sseEventChan, req)
	})
	if s.opts.Console != nil {
		consoleChan, unsubscribe := s.opts.Console.Subscribe(50)
		producers.Go(func() error {
			defer unsubscribe()
			s.streamConsoleMessages(ctx, consoleChan, sseEventChan)
			return nil
		})
	}
	go func() {
		if err := producers.Wait(); err != nil {
			core.Logger().Warn("frame stream ended", "error", err)
		}
		close(sseEventChan)
	}()

	// Single writer, returns once every producer is done
	s.writeSSEEvents(w, cancel, sseEventChan)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes all SSE events from one goroutine until the channel
// is closed. After a failed write it cancels the producers and drains.
func (s *Server) writeSSEEvents(w http.ResponseWriter, cancel context.CancelFunc, sseEventChan <-chan SSEEvent) {
	failed := false
	for event := range sseEventChan {
		if failed {
			continue
		}

		_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
		if err != nil {
			// Client disconnected during write
			failed = true
			cancel()
			continue
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

// streamFrames sends a frame every 1/FPS seconds until the frame limit is
// reached or ctx is done
func (s *Server) streamFrames(ctx context.Context, sseEventChan chan<- SSEEvent, req *RenderRequest) error {
	startTime := time.Now()
	ticker := time.NewTicker(time.Second / time.Duration(req.FPS))
	defer ticker.Stop()

	for frame := 1; ; frame++ {
		data, err := s.encodeFrame(req.frameParams)
		if err != nil {
			s.handleError(ctx, sseEventChan, err.Error())
			return err
		}

		update := FrameUpdate{
			FrameNumber: frame,
			ImageData:   base64.StdEncoding.EncodeToString(data),
			Format:      req.format,
			ElapsedMs:   time.Since(startTime).Milliseconds(),
			Stats:       s.engine.Stats(),
		}
		if !sendEvent(ctx, sseEventChan, "frame", update) {
			return nil
		}

		if req.Frames > 0 && frame >= req.Frames {
			sendEvent(ctx, sseEventChan, "complete", update.Stats)
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// streamConsoleMessages forwards console messages to the SSE channel
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for {
		select {
		case consoleMsg, ok := <-consoleChan:
			if !ok {
				// Channel closed
				return
			}

			data, err := json.Marshal(consoleMsg)
			if err != nil {
				continue
			}

			// Send to unified SSE channel
			select {
			case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message to avoid blocking
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// parseRenderRequest parses and validates the stream parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	values := r.URL.Query()
	req := &RenderRequest{}

	var err error
	if req.frameParams, err = s.parseFrameParams(values); err != nil {
		return nil, err
	}
	if req.FPS, err = parseIntParam(values, "fps", s.opts.FPS, 1, MaxFPS); err != nil {
		return nil, err
	}
	if req.Frames, err = parseIntParam(values, "frames", 0, 0, 1000000); err != nil {
		return nil, err
	}
	return req, nil
}

// sendEvent marshals v and queues it, reporting false once ctx is done
func sendEvent(ctx context.Context, sseEventChan chan<- SSEEvent, eventType string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case sseEventChan <- SSEEvent{Type: eventType, Data: string(data)}:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
