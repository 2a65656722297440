package progress

// LeafStatus is the last reported state of a single leaf agent.
type LeafStatus struct {
	Status        Status `json:"status"`
	EvidenceCount int    `json:"evidence_count"`
}

// Event is one inbound progress update for a leaf agent, as published by the
// pipeline on the query's progress topic.
type Event struct {
	AgentID       string `json:"agent_id"`
	Status        string `json:"status"`
	EvidenceCount int    `json:"evidence_count,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Entry is one display unit handed to renderers: a group rollup in grouped
// mode, or a single agent in flat mode. Icon is an opaque identifier.
type Entry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	Description   string `json:"description"`
	Status        Status `json:"status"`
	EvidenceCount int    `json:"evidence_count"`
}

// Overview is the derived snapshot consumed by the dashboard. Started is
// false until the session has seen at least one progress event, so consumers
// can render an "analyzing" placeholder instead of a 0/0 progress bar.
type Overview struct {
	Entries        []Entry `json:"entries"`
	CompletedCount int     `json:"completed_count"`
	TotalCount     int     `json:"total_count"`
	Started        bool    `json:"started"`
}

// Fraction returns the progress bar value in [0, 1].
func (o Overview) Fraction() float64 {
	if !o.Started || o.TotalCount <= 0 {
		return 0
	}
	f := float64(o.CompletedCount) / float64(o.TotalCount)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Done reports whether every entry has reached a terminal status.
func (o Overview) Done() bool {
	return o.Started && o.TotalCount > 0 && o.CompletedCount == o.TotalCount
}

// Rollup folds the statuses of a group's children into one status plus the
// summed evidence count. Missing map entries count as pending with zero
// evidence.
//
// A group where every child has terminated rolls up to success even when some
// children errored: partial evidence is still usable, and there is
// deliberately no partial or error status at the group level. Otherwise any
// running child makes the group running; an empty or untouched group is
// pending. Total over its input domain; never panics.
func Rollup(childIDs []string, leaves map[string]LeafStatus) LeafStatus {
	out := LeafStatus{Status: StatusPending}
	if len(childIDs) == 0 {
		return out
	}

	allTerminal := true
	anyRunning := false
	for _, id := range childIDs {
		ls := leaves[id] // zero value is pending / 0
		out.EvidenceCount += ls.EvidenceCount
		if !ls.Status.Terminal() {
			allTerminal = false
		}
		if ls.Status == StatusRunning {
			anyRunning = true
		}
	}

	switch {
	case allTerminal:
		out.Status = StatusSuccess
	case anyRunning:
		out.Status = StatusRunning
	}
	return out
}
