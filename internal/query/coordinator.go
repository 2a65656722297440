// Package query owns the lifecycle of tracked queries: one progress session
// per active query, fed by NATS and drained into the store and the
// notification broker.
package query

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/mtsiakos/skopos/internal/natsbus"
	"github.com/mtsiakos/skopos/internal/notify"
	"github.com/mtsiakos/skopos/internal/progress"
	"github.com/mtsiakos/skopos/internal/roster"
	"github.com/mtsiakos/skopos/internal/store"
)

// Request describes a query to start tracking.
type Request struct {
	ID           string   `json:"id,omitempty"`
	Channel      string   `json:"channel,omitempty"`
	Question     string   `json:"question"`
	FullPipeline bool     `json:"full_pipeline"`
	Agents       []string `json:"agents,omitempty"`
	Report       bool     `json:"report"`
}

// controlMessage is what the pipeline sends on the control topic to end a
// query from its side.
type controlMessage struct {
	Action string `json:"action"` // "done" | "cancel"
}

type activeQuery struct {
	session  *progress.Session
	question string
	channel  string
	subs     []*nats.Subscription
}

// Coordinator tracks active queries. Each query gets a session that absorbs
// leaf progress from NATS; derived snapshots fan out on the events topic and
// through the broker, and the final snapshot is persisted when the query
// reaches a terminal status.
type Coordinator struct {
	client *natsbus.Client
	store  *store.Store
	ros    *roster.Roster
	broker *notify.Broker

	mu        sync.Mutex
	active    map[string]*activeQuery
	byChannel map[string]string // channel -> active query id
}

func NewCoordinator(client *natsbus.Client, st *store.Store, ros *roster.Roster, broker *notify.Broker) *Coordinator {
	return &Coordinator{
		client:    client,
		store:     st,
		ros:       ros,
		broker:    broker,
		active:    make(map[string]*activeQuery),
		byChannel: make(map[string]string),
	}
}

// StartQuery begins tracking a query and returns its id. A new query on a
// channel that already has an active one supersedes the old query: its
// session is discarded and its run marked superseded.
func (c *Coordinator) StartQuery(req Request) (string, error) {
	if req.Question == "" {
		return "", fmt.Errorf("question is required")
	}
	if !req.FullPipeline && len(req.Agents) == 0 {
		return "", fmt.Errorf("agents are required unless full_pipeline is set")
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Channel == "" {
		req.Channel = "default"
	}

	// The whole setup happens under the lock: a query must never become
	// visible in c.active or c.byChannel before its subscriptions and its run
	// row exist, or a concurrent supersede on the same channel can tear down
	// a half-initialized entry.
	c.mu.Lock()
	if _, exists := c.active[req.ID]; exists {
		c.mu.Unlock()
		return "", fmt.Errorf("query %s already active", req.ID)
	}

	aq := &activeQuery{
		session: progress.NewSession(req.ID, c.ros, progress.Options{
			FullPipeline: req.FullPipeline,
			Agents:       req.Agents,
			Report:       req.Report,
		}),
		question: req.Question,
		channel:  req.Channel,
	}
	if err := c.subscribe(req.ID, aq); err != nil {
		c.mu.Unlock()
		return "", err
	}

	if prevID, ok := c.byChannel[req.Channel]; ok {
		c.finishLocked(prevID, "superseded")
	}
	if err := c.persistNewRun(req); err != nil {
		slog.Error("failed to persist query run", "query", req.ID, "error", err)
	}
	c.active[req.ID] = aq
	c.byChannel[req.Channel] = req.ID
	c.mu.Unlock()

	c.emit(notify.Notification{
		Type:     notify.TypeQueryStarted,
		QueryID:  req.ID,
		Question: req.Question,
	})
	slog.Info("query started", "query", req.ID, "channel", req.Channel, "full_pipeline", req.FullPipeline)
	return req.ID, nil
}

func (c *Coordinator) subscribe(id string, aq *activeQuery) error {
	progSub, err := c.client.Subscribe(natsbus.TopicQueryProgress(id), func(msg *nats.Msg) {
		c.handleProgress(id, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe progress: %w", err)
	}

	ctrlSub, err := c.client.Subscribe(natsbus.TopicQueryControl(id), func(msg *nats.Msg) {
		c.handleControl(id, msg.Data)
	})
	if err != nil {
		progSub.Unsubscribe()
		return fmt.Errorf("subscribe control: %w", err)
	}

	aq.subs = []*nats.Subscription{progSub, ctrlSub}
	return nil
}

func (c *Coordinator) persistNewRun(req Request) error {
	mode := "flat"
	if req.FullPipeline {
		mode = "grouped"
	}
	var agents json.RawMessage
	if len(req.Agents) > 0 {
		agents, _ = json.Marshal(req.Agents)
	}
	return c.store.SaveQueryRun(&store.QueryRun{
		ID:       req.ID,
		Question: req.Question,
		Mode:     mode,
		Agents:   agents,
		Report:   req.Report,
		Status:   "running",
	})
}

func (c *Coordinator) handleProgress(id string, data []byte) {
	var ev progress.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("malformed progress event", "query", id, "error", err)
		return
	}

	c.mu.Lock()
	aq, ok := c.active[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	aq.session.Apply(ev)
	ov := aq.session.Snapshot()

	c.emit(notify.Notification{
		Type:     notify.TypeQueryProgress,
		QueryID:  id,
		Question: aq.question,
		Overview: &ov,
	})

	if ov.Done() {
		c.mu.Lock()
		c.finishLocked(id, "completed")
		c.mu.Unlock()
	}
}

func (c *Coordinator) handleControl(id string, data []byte) {
	var ctrl controlMessage
	if err := json.Unmarshal(data, &ctrl); err != nil {
		slog.Warn("malformed control message", "query", id, "error", err)
		return
	}

	var status string
	switch ctrl.Action {
	case "done":
		status = "completed"
	case "cancel":
		status = "cancelled"
	default:
		slog.Warn("unknown control action", "query", id, "action", ctrl.Action)
		return
	}

	c.mu.Lock()
	c.finishLocked(id, status)
	c.mu.Unlock()
}

// EndQuery stops tracking a query from the operator side.
func (c *Coordinator) EndQuery(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[id]; !ok {
		return fmt.Errorf("query %s not active", id)
	}
	c.finishLocked(id, "cancelled")
	return nil
}

// finishLocked tears down an active query: unsubscribes, persists the final
// snapshot under the given terminal status and emits the matching
// notification. Caller holds c.mu.
func (c *Coordinator) finishLocked(id, status string) {
	aq, ok := c.active[id]
	if !ok {
		return
	}
	delete(c.active, id)
	if c.byChannel[aq.channel] == id {
		delete(c.byChannel, aq.channel)
	}

	for _, sub := range aq.subs {
		sub.Unsubscribe()
	}

	ov := aq.session.Snapshot()
	snapshot, err := json.Marshal(ov)
	if err != nil {
		slog.Error("failed to marshal final snapshot", "query", id, "error", err)
		snapshot = nil
	}
	if err := c.store.UpdateQueryRun(id, status, snapshot); err != nil {
		slog.Error("failed to persist final status", "query", id, "status", status, "error", err)
	}

	c.emit(notify.Notification{
		Type:     notifyType(status),
		QueryID:  id,
		Question: aq.question,
		Overview: &ov,
	})
	slog.Info("query finished", "query", id, "status", status,
		"completed", ov.CompletedCount, "total", ov.TotalCount)
}

// emit fans a notification out to in-process subscribers and, stamped with
// the same timestamp, onto the bus at events.query.<id> for external
// consumers and the WebSocket relay.
func (c *Coordinator) emit(n notify.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	if err := c.client.PublishJSON(natsbus.TopicEventsQuery(n.QueryID), n); err != nil {
		slog.Warn("failed to publish event", "query", n.QueryID, "error", err)
	}
	c.broker.Publish(n)
}

func notifyType(status string) string {
	switch status {
	case "completed":
		return notify.TypeQueryCompleted
	case "cancelled":
		return notify.TypeQueryCancelled
	case "superseded":
		return notify.TypeQuerySuperseded
	}
	return notify.TypeQueryProgress
}

// Snapshot returns the live overview for an active query. The bool reports
// whether the query is active; finished queries are served from the store.
func (c *Coordinator) Snapshot(id string) (progress.Overview, bool) {
	c.mu.Lock()
	aq, ok := c.active[id]
	c.mu.Unlock()
	if !ok {
		return progress.Overview{}, false
	}
	return aq.session.Snapshot(), true
}

// ActiveQueries returns the ids of all queries currently tracked.
func (c *Coordinator) ActiveQueries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown ends every active query without marking it terminal in the store,
// leaving the runs resumable as far as the record is concerned.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, aq := range c.active {
		for _, sub := range aq.subs {
			sub.Unsubscribe()
		}
		delete(c.active, id)
		delete(c.byChannel, aq.channel)
	}
}
