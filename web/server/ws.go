package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	// Same policy as the JSON endpoints, which allow any origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Command is a client message on the WebSocket channel. Type selects which
// of the other fields is read.
//
//	{"type": "move", "move": {"move": {"x": 1, "y": 0, "z": 0}, "dt": 0.016}}
//	{"type": "resolution", "resolution": {"width": 320, "height": 200}}
type Command struct {
	Type       string             `json:"type"` // camera, move, resolution, scene, inspect, pause, resume, stats
	Camera     *CameraRequest     `json:"camera,omitempty"`
	Move       *MoveRequest       `json:"move,omitempty"`
	Resolution *ResolutionRequest `json:"resolution,omitempty"`
	Scene      string             `json:"scene,omitempty"`
	X          int                `json:"x,omitempty"`
	Y          int                `json:"y,omitempty"`
}

// Message is a JSON text message sent to the client. Frames travel as
// binary messages holding the encoded image.
type Message struct {
	Type       string                  `json:"type"` // stats, camera, resolution, scene, inspect, error
	Stats      *renderer.RenderStats   `json:"stats,omitempty"`
	Camera     *CameraResponse         `json:"camera,omitempty"`
	Resolution *ResolutionRequest      `json:"resolution,omitempty"`
	Scene      string                  `json:"scene,omitempty"`
	Inspect    *renderer.InspectResult `json:"inspect,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// handleWebSocket runs an interactive session: the client sends commands
// and receives a frame followed by a stats message every 1/FPS seconds
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.Logger().Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	core.Logger().Info("websocket session started", "remote", r.RemoteAddr)

	replies := make(chan Message, 16)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.readCommands(ctx, conn, replies)
	})
	g.Go(func() error {
		// Closing unblocks the reader
		defer conn.Close()
		defer cancel()
		return s.writeFrames(ctx, conn, replies, req)
	})

	if err := g.Wait(); err != nil {
		core.Logger().Warn("websocket session failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	core.Logger().Info("websocket session ended", "remote", r.RemoteAddr)
}

// readCommands applies client commands and queues their replies
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, replies chan<- Message) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd Command
		var reply Message
		if err := json.Unmarshal(data, &cmd); err != nil {
			reply = Message{Type: "error", Error: "invalid command: " + err.Error()}
		} else {
			reply = s.applyCommand(cmd)
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return nil
		}
	}
}

// applyCommand executes one command against the engine
func (s *Server) applyCommand(cmd Command) Message {
	fail := func(err error) Message {
		return Message{Type: "error", Error: fmt.Sprintf("%s: %v", cmd.Type, err)}
	}

	switch cmd.Type {
	case "camera":
		if cmd.Camera == nil {
			return fail(errors.New("missing camera"))
		}
		resp, err := s.setCamera(*cmd.Camera)
		if err != nil {
			return fail(err)
		}
		return Message{Type: "camera", Camera: &resp}

	case "move":
		if cmd.Move == nil {
			return fail(errors.New("missing move"))
		}
		resp, err := s.move(*cmd.Move)
		if err != nil {
			return fail(err)
		}
		return Message{Type: "camera", Camera: &resp}

	case "resolution":
		if cmd.Resolution == nil {
			return fail(errors.New("missing resolution"))
		}
		if err := s.setResolution(*cmd.Resolution); err != nil {
			return fail(err)
		}
		return Message{Type: "resolution", Resolution: cmd.Resolution}

	case "scene":
		sc, err := s.LoadScene(cmd.Scene)
		if err != nil {
			return fail(err)
		}
		return Message{Type: "scene", Scene: sc.Name}

	case "inspect":
		result, err := s.engine.Inspect(cmd.X, cmd.Y)
		if err != nil {
			return fail(err)
		}
		return Message{Type: "inspect", Inspect: &result}

	case "pause":
		s.engine.Pause()
	case "resume":
		if err := s.engine.Resume(); err != nil {
			return fail(err)
		}
	case "stats":
	default:
		return fail(errors.New("unknown command"))
	}

	stats := s.engine.Stats()
	return Message{Type: "stats", Stats: &stats}
}

// writeFrames is the only writer on conn. It sends command replies as they
// arrive and a frame plus stats on every tick.
func (s *Server) writeFrames(ctx context.Context, conn *websocket.Conn, replies <-chan Message, req *RenderRequest) error {
	ticker := time.NewTicker(time.Second / time.Duration(req.FPS))
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case reply := <-replies:
			if err := writeJSONMessage(conn, reply); err != nil {
				return err
			}

		case <-ticker.C:
			data, err := s.encodeFrame(req.frameParams)
			if err != nil {
				return err
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			stats := s.engine.Stats()
			if err := writeJSONMessage(conn, Message{Type: "stats", Stats: &stats}); err != nil {
				return err
			}

			sent++
			if req.Frames > 0 && sent >= req.Frames {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "frame limit reached"))
				return nil
			}

		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

func writeJSONMessage(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}
