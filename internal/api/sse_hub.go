package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"gonomen/domain/core"
	domevolution "gonomen/domain/evolution"
	"gonomen/internal"
)

// keepAlive is the idle interval after which a ping event is sent
var keepAlive = 30 * time.Second

// ProgressEvent is one evolution job update for SSE streaming
type ProgressEvent struct {
	JobID     core.JobID            `json:"job_id"`
	EventType string                `json:"event_type"`
	Progress  domevolution.Progress `json:"progress"`
	Timestamp time.Time             `json:"timestamp"`
}

// Terminal reports whether no further events follow for the job
func (e ProgressEvent) Terminal() bool {
	return e.EventType != "progress"
}

// SSEClient is one subscription to a job's events. Progress events go to
// Events and may be dropped when the client lags; the terminal event goes
// to Final, which always has room for it.
type SSEClient struct {
	JobID  core.JobID
	Events chan ProgressEvent
	Final  chan ProgressEvent
}

// SSEHub fans job events out to subscribed clients
type SSEHub struct {
	clients   map[core.JobID]map[*SSEClient]bool
	clientsMu sync.RWMutex
	broadcast chan ProgressEvent
	quit      chan struct{}
	closeOnce sync.Once
	logger    *internal.Logger
}

// NewSSEHub creates a new SSE hub and starts its loop
func NewSSEHub(logger *internal.Logger) *SSEHub {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	hub := &SSEHub{
		clients:   make(map[core.JobID]map[*SSEClient]bool),
		broadcast: make(chan ProgressEvent, 100),
		quit:      make(chan struct{}),
		logger:    logger.With("SSE"),
	}

	go hub.run()
	return hub
}

// Close stops the hub loop
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

func (h *SSEHub) run() {
	for {
		select {
		case <-h.quit:
			return

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for client := range h.clients[event.JobID] {
				select {
				case client.Events <- event:
				default:
					h.logger.Debug("client channel full for job %s, skipping event", event.JobID)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Subscribe registers a client for jobID. The client receives every
// terminal event broadcast after Subscribe returns.
func (h *SSEHub) Subscribe(jobID core.JobID) *SSEClient {
	client := &SSEClient{
		JobID:  jobID,
		Events: make(chan ProgressEvent, 16),
		Final:  make(chan ProgressEvent, 1),
	}
	h.clientsMu.Lock()
	if h.clients[jobID] == nil {
		h.clients[jobID] = make(map[*SSEClient]bool)
	}
	h.clients[jobID][client] = true
	h.logger.Debug("client registered for job %s (total clients: %d)", jobID, len(h.clients[jobID]))
	h.clientsMu.Unlock()
	return client
}

// Unsubscribe removes a client registered with Subscribe.
func (h *SSEHub) Unsubscribe(client *SSEClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if clients, exists := h.clients[client.JobID]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.JobID)
		}
	}
}

// Broadcast sends an event to all clients listening to a job. It never
// blocks. Progress events are dropped under backpressure; terminal events
// are handed to every current subscriber directly.
func (h *SSEHub) Broadcast(event ProgressEvent) {
	if event.Terminal() {
		h.finish(event)
		return
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping %s event for job %s", event.EventType, event.JobID)
	}
}

func (h *SSEHub) finish(event ProgressEvent) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for client := range h.clients[event.JobID] {
		select {
		case client.Final <- event:
		default:
			// a job finishes once; Final already holds its terminal event
		}
	}
}

// Stream writes current and then client's events until a terminal event or
// disconnect. Callers subscribe before reading current so that a job
// finishing in between is seen either in current or on client.Final.
func (h *SSEHub) Stream(c *gin.Context, client *SSEClient, current ProgressEvent) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	send := func(event ProgressEvent) bool {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Warn("failed to marshal event: %v", err)
			return !event.Terminal()
		}
		c.SSEvent(event.EventType, string(data))
		return !event.Terminal()
	}

	// The snapshot goes first so late subscribers see the current state.
	if !send(current) {
		c.Writer.Flush()
		return
	}

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-client.Final:
			return send(event)
		case event := <-client.Events:
			return send(event)
		case <-time.After(keepAlive):
			c.SSEvent("ping", `{"status":"alive"}`)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// ClientCount returns the number of active clients for a job
func (h *SSEHub) ClientCount(jobID core.JobID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[jobID])
}
