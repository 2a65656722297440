package roster

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRoster(t *testing.T) {
	r := Default()

	if len(r.Groups()) != 6 {
		t.Fatalf("expected 6 groups, got %d", len(r.Groups()))
	}

	leaves := r.AllLeaves()
	if len(leaves) != 16 {
		t.Errorf("expected 16 leaf agents, got %d", len(leaves))
	}

	// Every leaf resolves back to its group
	for _, id := range leaves {
		if _, ok := r.GroupFor(id); !ok {
			t.Errorf("leaf %q has no group", id)
		}
	}

	// The report agent is not part of any evidence group
	if _, ok := r.GroupFor(ReportAgentID); ok {
		t.Error("report agent should not belong to an evidence group")
	}
	if !r.Known(ReportAgentID) {
		t.Error("report agent should have a display entry")
	}
}

func TestDuplicateMemberRejected(t *testing.T) {
	groups := []Group{
		{ID: "a", Name: "A", Members: []string{"x", "y"}},
		{ID: "b", Name: "B", Members: []string{"y"}},
	}
	if _, err := New(groups, nil); err == nil {
		t.Fatal("expected error for agent in two groups")
	}
}

func TestEmptyGroupRejected(t *testing.T) {
	groups := []Group{{ID: "a", Name: "A"}}
	if _, err := New(groups, nil); err == nil {
		t.Fatal("expected error for group with no members")
	}
}

func TestDisplayFallback(t *testing.T) {
	r := Default()

	known := r.Display("pubmed")
	if known.Name != "PubMed" {
		t.Errorf("expected PubMed, got %s", known.Name)
	}

	unknown := r.Display("some_custom_agent")
	if unknown.Name != "some_custom_agent" {
		t.Errorf("expected key as name, got %s", unknown.Name)
	}
	if unknown.Icon != GenericIcon {
		t.Errorf("expected generic icon, got %s", unknown.Icon)
	}
	if unknown.Description != "" {
		t.Errorf("expected empty description, got %s", unknown.Description)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")

	yaml := `
groups:
  - id: literature
    name: Literature
    icon: book-open
    description: Published research
    members: [pubmed, scholar]
  - id: patents
    name: Patents
    icon: scale
    members: [uspto]
agents:
  - id: pubmed
    name: PubMed
    icon: database
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	if len(r.Groups()) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(r.Groups()))
	}
	g, ok := r.GroupFor("scholar")
	if !ok || g.ID != "literature" {
		t.Errorf("expected scholar in literature, got %v ok=%v", g.ID, ok)
	}
	if r.Display("pubmed").Name != "PubMed" {
		t.Error("expected display entry from agents section")
	}
}

func TestLoadRejectsEmptyAndMissing(t *testing.T) {
	if _, err := Load("/nonexistent/roster.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(path, []byte("agents: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for roster without groups")
	}
}
