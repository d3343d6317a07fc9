package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

const (
	clientBuffer     = 32
	defaultHeartbeat = 15 * time.Second
)

// UserChannel is the hub channel every event for userID is broadcast on.
func UserChannel(userID uuid.UUID) string { return "user:" + userID.String() }

// Client is one open event stream. A non-nil ProjectID limits it to that
// project's jobs.
type Client struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Outbound  chan JobEvent

	done     chan struct{}
	doneOnce sync.Once
	log      *logger.Logger
}

func (c *Client) wants(ev JobEvent) bool {
	return c.ProjectID == uuid.Nil || c.ProjectID == ev.ProjectID
}

// Hub fans job events out to the streams of the job's owner.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
	heartbeat     time.Duration
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "EventHub"),
		subscriptions: make(map[string]map[*Client]bool),
		heartbeat:     defaultHeartbeat,
	}
}

// Register opens a client on the user's channel.
func (h *Hub) Register(userID, projectID uuid.UUID) *Client {
	c := &Client{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Outbound:  make(chan JobEvent, clientBuffer),
		done:      make(chan struct{}),
	}
	c.log = h.log.With("client_id", c.ID)

	channel := UserChannel(userID)
	h.mu.Lock()
	clients, ok := h.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[c] = true
	h.mu.Unlock()
	return c
}

// Unregister detaches the client. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	c.doneOnce.Do(func() { close(c.done) })
	channel := UserChannel(c.UserID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscriptions[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.subscriptions, channel)
		}
	}
}

// Broadcast never blocks; a slow client loses events rather than stalling
// the forwarder.
func (h *Hub) Broadcast(ev JobEvent) {
	if ev.UserID == uuid.Nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscriptions[UserChannel(ev.UserID)] {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.Outbound <- ev:
		default:
			c.log.Warn("dropping job event; outbound buffer full", "job_id", ev.JobID)
		}
	}
}

// Clients reports how many streams are open for userID.
func (h *Hub) Clients(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[UserChannel(userID)])
}

// Serve writes the client's events as server-sent events until the request
// ends or the client is unregistered.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, c *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-c.Outbound:
			raw, err := json.Marshal(ev)
			if err != nil {
				c.log.Warn("marshal job event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", strings.TrimSpace(string(ev.Event)), raw)
			flusher.Flush()
		}
	}
}
