package retention

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mtsiakos/skopos/internal/config"
	"github.com/mtsiakos/skopos/internal/notify"
	"github.com/mtsiakos/skopos/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewValidation(t *testing.T) {
	s := newTestStore(t)
	broker := notify.NewBroker()

	if _, err := New(s, nil, broker, config.RetentionConfig{Schedule: "not a cron", MaxAge: time.Hour}); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if _, err := New(s, nil, broker, config.RetentionConfig{Schedule: "0 3 * * *", MaxAge: 0}); err == nil {
		t.Error("expected error for zero max age")
	}
	if _, err := New(s, nil, broker, config.RetentionConfig{Schedule: "0 3 * * *", MaxAge: time.Hour}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPruneNow(t *testing.T) {
	s := newTestStore(t)
	broker := notify.NewBroker()

	ch, cancel := broker.Subscribe(4)
	defer cancel()

	_ = s.SaveQueryRun(&store.QueryRun{ID: "old", Question: "a", Mode: "grouped", Status: "running"})
	_ = s.UpdateQueryRun("old", "completed", nil)
	_ = s.SaveQueryRun(&store.QueryRun{ID: "live", Question: "b", Mode: "grouped", Status: "running"})

	// Negative max age pushes the cutoff into the future, so any terminal
	// run qualifies. New rejects it, so build the pruner directly.
	p := &Pruner{store: s, broker: broker, schedule: "0 3 * * *", maxAge: -time.Hour}

	n, err := p.PruneNow()
	if err != nil {
		t.Fatalf("prune now: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned run, got %d", n)
	}

	select {
	case got := <-ch:
		if got.Type != notify.TypeRunsPruned {
			t.Errorf("expected runs_pruned notification, got %s", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification")
	}

	if run, _ := s.GetQueryRun("live"); run == nil {
		t.Error("active run must survive")
	}
}
