package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/orchestrator"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/telemetry"
	"github.com/angelocurti/Agentic-Playlist-Generator/pkg/response"
)

const streamPingInterval = 15 * time.Second

type StreamHandler struct {
	orch *orchestrator.Orchestrator
}

func NewStreamHandler(orch *orchestrator.Orchestrator) *StreamHandler {
	return &StreamHandler{orch: orch}
}

// Stream handles GET /stream/:jobId as Server-Sent Events. The first event
// is always the current job snapshot, so late subscribers never miss the
// terminal state. The stream ends after a terminal event.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	sub, job, err := h.orch.Subscribe(jobID)
	if err != nil {
		return mapJobError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	snapshot := model.EventFromJob(&job)
	orch := h.orch

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		telemetry.StreamSubscribers.Inc()
		defer telemetry.StreamSubscribers.Dec()
		defer orch.Unsubscribe(sub)

		if err := writeSSE(w, snapshot); err != nil {
			return
		}
		if snapshot.Terminal() {
			return
		}

		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				if ev.Terminal() {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func writeSSE(w *bufio.Writer, ev model.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
		return err
	}
	return w.Flush()
}

// HandleWS serves one WebSocket subscriber for a job. Mirrors the SSE
// stream: snapshot first, then live events until terminal.
func (h *StreamHandler) HandleWS(c *websocket.Conn, jobID string) {
	sub, job, err := h.orch.Subscribe(jobID)
	if err != nil {
		msg, _ := json.Marshal(fiber.Map{"error": "job not found"})
		c.WriteMessage(websocket.TextMessage, msg)
		c.Close()
		return
	}
	defer h.orch.Unsubscribe(sub)

	telemetry.StreamSubscribers.Inc()
	defer telemetry.StreamSubscribers.Dec()

	done := make(chan struct{})
	pongs := make(chan struct{}, 1)

	// Writer goroutine. Sole writer on the connection; the reader hands
	// ping replies over via the pongs channel.
	go func() {
		defer close(done)
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		if err := writeWS(c, model.EventFromJob(&job)); err != nil {
			return
		}
		if job.Status.Terminal() {
			c.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := writeWS(c, ev); err != nil {
					return
				}
				if ev.Terminal() {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			case <-pongs:
				pong, _ := json.Marshal(fiber.Map{"type": model.EventTypePong})
				if err := c.WriteMessage(websocket.TextMessage, pong); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop, keeps the connection alive and forwards pings to the
	// writer. It never writes to the connection itself.
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		signalPong(message, pongs)
	}
	<-done
}

// signalPong asks the writer goroutine for a pong reply when the client
// sent a ping. The send never blocks; a pending pong already covers it.
func signalPong(message []byte, pongs chan<- struct{}) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != model.EventTypePing {
		return
	}
	select {
	case pongs <- struct{}{}:
	default:
	}
}

func writeWS(c *websocket.Conn, ev model.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}
