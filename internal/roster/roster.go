package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenericIcon is the icon assigned to agents outside the static roster.
const GenericIcon = "activity"

// ReportAgentID is the leaf agent that assembles the final report. It is not
// a member of any evidence group; grouped snapshots append it as a synthetic
// group when report generation was requested.
const ReportAgentID = "report_generator"

// Group is one display group: a logical bundle of leaf agents presented to
// the user as a single unit of progress. Icon is an opaque identifier for the
// dashboard, never interpreted here.
type Group struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Icon        string   `yaml:"icon" json:"icon"`
	Description string   `yaml:"description" json:"description"`
	Members     []string `yaml:"members" json:"members"`
}

// Agent is the display entry for a single leaf agent, used in flat mode where
// requested agents are shown individually.
type Agent struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Icon        string `yaml:"icon" json:"icon"`
	Description string `yaml:"description" json:"description"`
}

// Roster is the static agent table: loaded once at process start, immutable
// thereafter.
type Roster struct {
	groups []Group
	agents map[string]Agent
	byLeaf map[string]string // leaf id -> group id
}

// New builds a roster from group and agent definitions. Every member must
// belong to exactly one group; duplicates are rejected here so a leaf can
// never be double-counted or silently dropped from rollups later.
func New(groups []Group, agents []Agent) (*Roster, error) {
	r := &Roster{
		groups: groups,
		agents: make(map[string]Agent, len(agents)),
		byLeaf: make(map[string]string),
	}

	for _, g := range groups {
		if g.ID == "" {
			return nil, fmt.Errorf("group with empty id")
		}
		if len(g.Members) == 0 {
			return nil, fmt.Errorf("group %q has no members", g.ID)
		}
		for _, m := range g.Members {
			if prev, ok := r.byLeaf[m]; ok {
				return nil, fmt.Errorf("agent %q is a member of both %q and %q", m, prev, g.ID)
			}
			r.byLeaf[m] = g.ID
		}
	}

	for _, a := range agents {
		r.agents[a.ID] = a
	}

	return r, nil
}

type rosterFile struct {
	Groups []Group `yaml:"groups"`
	Agents []Agent `yaml:"agents"`
}

// Load reads a roster definition from a YAML file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("roster %s defines no groups", path)
	}

	return New(f.Groups, f.Agents)
}

// Groups returns the ordered group list.
func (r *Roster) Groups() []Group {
	return r.groups
}

// GroupFor returns the group a leaf agent belongs to.
func (r *Roster) GroupFor(leafID string) (Group, bool) {
	gid, ok := r.byLeaf[leafID]
	if !ok {
		return Group{}, false
	}
	for _, g := range r.groups {
		if g.ID == gid {
			return g, true
		}
	}
	return Group{}, false
}

// AllLeaves returns every leaf agent id in roster order.
func (r *Roster) AllLeaves() []string {
	var out []string
	for _, g := range r.groups {
		out = append(out, g.Members...)
	}
	return out
}

// Display returns the display entry for an agent id. Keys outside the static
// roster fall back to a generic entry (name = the key itself) so a narrow
// query naming an unknown agent still renders without error.
func (r *Roster) Display(id string) Agent {
	if a, ok := r.agents[id]; ok {
		return a
	}
	return Agent{ID: id, Name: id, Icon: GenericIcon}
}

// Known reports whether an agent id appears in the static roster, either as a
// group member or as a display entry.
func (r *Roster) Known(id string) bool {
	if _, ok := r.byLeaf[id]; ok {
		return true
	}
	_, ok := r.agents[id]
	return ok
}

// ReportGroup is the synthetic group appended to grouped snapshots when the
// query requested report generation.
func ReportGroup() Group {
	return Group{
		ID:          "report",
		Name:        "Report Generation",
		Icon:        "file-text",
		Description: "Assembles gathered evidence into the final report",
		Members:     []string{ReportAgentID},
	}
}
