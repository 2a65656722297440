package progress

import (
	"sync"

	"github.com/mtsiakos/skopos/internal/roster"
)

// Options selects how a session folds its agents for display.
type Options struct {
	// FullPipeline selects grouped mode: the whole roster runs and leaves are
	// folded into their display groups. When false the query named specific
	// agents, which are shown individually (flat mode).
	FullPipeline bool

	// Agents are the requested agent ids for flat mode.
	Agents []string

	// Report appends the synthetic report group to grouped snapshots.
	Report bool
}

// Session holds the leaf statuses for one active query. It is created when
// the query starts, mutated by inbound events (last write wins per agent id)
// and discarded when the query ends or is superseded by a new one.
type Session struct {
	ID   string
	opts Options
	ros  *roster.Roster

	mu      sync.RWMutex
	leaves  map[string]LeafStatus
	started bool
}

func NewSession(id string, ros *roster.Roster, opts Options) *Session {
	return &Session{
		ID:     id,
		opts:   opts,
		ros:    ros,
		leaves: make(map[string]LeafStatus),
	}
}

// Apply records a progress event. The last value seen wins; no transition or
// monotonicity validation happens here, that contract belongs to the
// pipeline.
func (s *Session) Apply(ev Event) {
	if ev.AgentID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[ev.AgentID] = LeafStatus{
		Status:        ParseStatus(ev.Status),
		EvidenceCount: ev.EvidenceCount,
	}
	s.started = true
}

// Snapshot derives the current overview for rendering. Grouped mode yields
// one entry per roster group (plus the report group when requested); flat
// mode yields one entry per requested agent, with a generic fallback for keys
// outside the roster.
func (s *Session) Snapshot() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.opts.FullPipeline {
		return s.grouped()
	}
	return s.flat()
}

func (s *Session) grouped() Overview {
	groups := s.ros.Groups()
	if s.opts.Report {
		groups = append(append([]roster.Group{}, groups...), roster.ReportGroup())
	}

	ov := Overview{
		Entries:    make([]Entry, 0, len(groups)),
		TotalCount: len(groups),
		Started:    s.started,
	}
	for _, g := range groups {
		r := Rollup(g.Members, s.leaves)
		ov.Entries = append(ov.Entries, Entry{
			ID:            g.ID,
			Name:          g.Name,
			Icon:          g.Icon,
			Description:   g.Description,
			Status:        r.Status,
			EvidenceCount: r.EvidenceCount,
		})
		if r.Status.Terminal() {
			ov.CompletedCount++
		}
	}
	return ov
}

func (s *Session) flat() Overview {
	ov := Overview{
		Entries:    make([]Entry, 0, len(s.opts.Agents)),
		TotalCount: len(s.opts.Agents),
		Started:    s.started,
	}
	for _, id := range s.opts.Agents {
		a := s.ros.Display(id)
		ls := s.leaves[id]
		ov.Entries = append(ov.Entries, Entry{
			ID:            id,
			Name:          a.Name,
			Icon:          a.Icon,
			Description:   a.Description,
			Status:        ls.Status.orPending(),
			EvidenceCount: ls.EvidenceCount,
		})
		if ls.Status.Terminal() {
			ov.CompletedCount++
		}
	}
	return ov
}

// orPending maps the zero Status value to pending.
func (s Status) orPending() Status {
	if s == "" {
		return StatusPending
	}
	return s
}
