package query

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mtsiakos/skopos/internal/config"
	"github.com/mtsiakos/skopos/internal/natsbus"
	"github.com/mtsiakos/skopos/internal/notify"
	"github.com/mtsiakos/skopos/internal/progress"
	"github.com/mtsiakos/skopos/internal/roster"
	"github.com/mtsiakos/skopos/internal/store"
)

type testEnv struct {
	client *natsbus.Client
	store  *store.Store
	broker *notify.Broker
	coord  *Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	bus, err := natsbus.New(config.NATSConfig{Port: 0, DataDir: filepath.Join(dir, "nats")})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)

	st, err := store.New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	broker := notify.NewBroker()
	coord := NewCoordinator(client, st, roster.Default(), broker)
	t.Cleanup(coord.Shutdown)

	return &testEnv{client: client, store: st, broker: broker, coord: coord}
}

func (e *testEnv) sendProgress(t *testing.T, id string, ev progress.Event) {
	t.Helper()
	if err := e.client.PublishJSON(natsbus.TopicQueryProgress(id), ev); err != nil {
		t.Fatalf("publish progress: %v", err)
	}
	e.client.Flush()
}

func waitFor(t *testing.T, ch <-chan notify.Notification, typ string) notify.Notification {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Type == typ {
				return n
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s notification", typ)
		}
	}
}

func TestStartQueryValidation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.coord.StartQuery(Request{FullPipeline: true}); err == nil {
		t.Error("expected error for missing question")
	}
	if _, err := env.coord.StartQuery(Request{Question: "q"}); err == nil {
		t.Error("expected error when neither full_pipeline nor agents set")
	}
}

func TestProgressFlow(t *testing.T) {
	env := newTestEnv(t)

	ch, cancel := env.broker.Subscribe(16)
	defer cancel()

	id, err := env.coord.StartQuery(Request{
		Question: "biosimilar landscape for adalimumab",
		Agents:   []string{"pubmed", "uspto"},
	})
	if err != nil {
		t.Fatalf("start query: %v", err)
	}
	waitFor(t, ch, notify.TypeQueryStarted)

	// Before any event the snapshot is the no-data-yet sentinel
	ov, ok := env.coord.Snapshot(id)
	if !ok {
		t.Fatal("expected active query")
	}
	if ov.Started {
		t.Error("expected not started before first event")
	}

	env.sendProgress(t, id, progress.Event{AgentID: "pubmed", Status: "running"})
	n := waitFor(t, ch, notify.TypeQueryProgress)
	if n.Overview == nil || !n.Overview.Started {
		t.Fatal("expected started overview in progress notification")
	}
	if n.Overview.CompletedCount != 0 {
		t.Errorf("expected 0 completed, got %d", n.Overview.CompletedCount)
	}

	// All agents terminal: the query auto-completes
	env.sendProgress(t, id, progress.Event{AgentID: "pubmed", Status: "success", EvidenceCount: 7})
	env.sendProgress(t, id, progress.Event{AgentID: "uspto", Status: "error"})
	n = waitFor(t, ch, notify.TypeQueryCompleted)
	if n.Overview.CompletedCount != 2 || n.Overview.TotalCount != 2 {
		t.Errorf("expected 2/2, got %d/%d", n.Overview.CompletedCount, n.Overview.TotalCount)
	}

	if _, ok := env.coord.Snapshot(id); ok {
		t.Error("expected query to be inactive after completion")
	}

	run, err := env.store.GetQueryRun(id)
	if err != nil || run == nil {
		t.Fatalf("expected persisted run, got %v, %v", run, err)
	}
	if run.Status != "completed" {
		t.Errorf("expected completed status, got %s", run.Status)
	}
	if len(run.Snapshot) == 0 {
		t.Error("expected final snapshot to be persisted")
	}
}

func TestSnapshotsReachBusConsumers(t *testing.T) {
	env := newTestEnv(t)

	ch, cancel := env.broker.Subscribe(16)
	defer cancel()

	// An external consumer watching all query event topics
	busEvents := make(chan notify.Notification, 16)
	_, err := env.client.Subscribe(natsbus.TopicEventsQueryAll, func(msg *nats.Msg) {
		var n notify.Notification
		if err := json.Unmarshal(msg.Data, &n); err == nil {
			busEvents <- n
		}
	})
	if err != nil {
		t.Fatalf("subscribe events: %v", err)
	}

	id, err := env.coord.StartQuery(Request{Question: "q", Agents: []string{"pubmed"}})
	if err != nil {
		t.Fatalf("start query: %v", err)
	}
	waitFor(t, ch, notify.TypeQueryStarted)
	env.sendProgress(t, id, progress.Event{AgentID: "pubmed", Status: "running", EvidenceCount: 2})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-busEvents:
			if n.Type != notify.TypeQueryProgress {
				continue
			}
			if n.QueryID != id {
				t.Errorf("expected query id %s on the bus, got %s", id, n.QueryID)
			}
			if n.Overview == nil || n.Overview.Entries[0].EvidenceCount != 2 {
				t.Errorf("expected overview on the bus, got %+v", n.Overview)
			}
			if n.Timestamp.IsZero() {
				t.Error("expected timestamp on bus event")
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for bus event")
		}
	}
}

func TestConcurrentStartSameChannel(t *testing.T) {
	env := newTestEnv(t)

	const starts = 16
	ids := make(chan string, starts)
	var wg sync.WaitGroup
	for i := 0; i < starts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := env.coord.StartQuery(Request{
				Question:     fmt.Sprintf("question %d", i),
				Channel:      "ops",
				FullPipeline: true,
			})
			if err != nil {
				t.Errorf("start query %d: %v", i, err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	active := env.coord.ActiveQueries()
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 active query, got %d", len(active))
	}

	// Every run row must be accounted for: one running (the survivor),
	// the rest superseded. A run stuck running with no session would never
	// be prunable.
	running := 0
	for id := range ids {
		run, err := env.store.GetQueryRun(id)
		if err != nil || run == nil {
			t.Fatalf("missing run %s: %v", id, err)
		}
		switch run.Status {
		case "running":
			running++
			if id != active[0] {
				t.Errorf("run %s is running but not the active query", id)
			}
		case "superseded":
		default:
			t.Errorf("run %s has unexpected status %s", id, run.Status)
		}
	}
	if running != 1 {
		t.Errorf("expected exactly 1 running run, got %d", running)
	}
}

func TestControlCancel(t *testing.T) {
	env := newTestEnv(t)

	ch, cancel := env.broker.Subscribe(16)
	defer cancel()

	id, err := env.coord.StartQuery(Request{Question: "anything", FullPipeline: true})
	if err != nil {
		t.Fatalf("start query: %v", err)
	}
	waitFor(t, ch, notify.TypeQueryStarted)

	if err := env.client.PublishJSON(natsbus.TopicQueryControl(id), controlMessage{Action: "cancel"}); err != nil {
		t.Fatalf("publish control: %v", err)
	}
	env.client.Flush()

	waitFor(t, ch, notify.TypeQueryCancelled)

	run, _ := env.store.GetQueryRun(id)
	if run == nil || run.Status != "cancelled" {
		t.Fatalf("expected cancelled run, got %+v", run)
	}
}

func TestChannelSupersedes(t *testing.T) {
	env := newTestEnv(t)

	ch, cancel := env.broker.Subscribe(16)
	defer cancel()

	first, err := env.coord.StartQuery(Request{Question: "first", Channel: "ops", FullPipeline: true})
	if err != nil {
		t.Fatalf("start first: %v", err)
	}
	waitFor(t, ch, notify.TypeQueryStarted)

	second, err := env.coord.StartQuery(Request{Question: "second", Channel: "ops", FullPipeline: true})
	if err != nil {
		t.Fatalf("start second: %v", err)
	}

	n := waitFor(t, ch, notify.TypeQuerySuperseded)
	if n.QueryID != first {
		t.Errorf("expected %s superseded, got %s", first, n.QueryID)
	}

	if _, ok := env.coord.Snapshot(first); ok {
		t.Error("superseded query should be inactive")
	}
	if _, ok := env.coord.Snapshot(second); !ok {
		t.Error("new query should be active")
	}

	run, _ := env.store.GetQueryRun(first)
	if run == nil || run.Status != "superseded" {
		t.Fatalf("expected superseded run, got %+v", run)
	}
}

func TestEndQuery(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.coord.StartQuery(Request{Question: "q", Agents: []string{"pubmed"}})
	if err != nil {
		t.Fatalf("start query: %v", err)
	}

	if err := env.coord.EndQuery(id); err != nil {
		t.Fatalf("end query: %v", err)
	}
	if err := env.coord.EndQuery(id); err == nil {
		t.Error("expected error ending inactive query")
	}

	run, _ := env.store.GetQueryRun(id)
	if run == nil || run.Status != "cancelled" {
		t.Fatalf("expected cancelled run, got %+v", run)
	}
}

func TestMalformedEventIgnored(t *testing.T) {
	env := newTestEnv(t)

	ch, cancel := env.broker.Subscribe(16)
	defer cancel()

	id, err := env.coord.StartQuery(Request{Question: "q", Agents: []string{"pubmed"}})
	if err != nil {
		t.Fatalf("start query: %v", err)
	}
	waitFor(t, ch, notify.TypeQueryStarted)

	if err := env.client.Publish(natsbus.TopicQueryProgress(id), []byte("{not json")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	env.client.Flush()

	// A well-formed event afterwards still gets through
	env.sendProgress(t, id, progress.Event{AgentID: "pubmed", Status: "running"})
	n := waitFor(t, ch, notify.TypeQueryProgress)
	if n.Overview.Entries[0].Status != progress.StatusRunning {
		t.Errorf("expected running entry, got %s", n.Overview.Entries[0].Status)
	}
}
