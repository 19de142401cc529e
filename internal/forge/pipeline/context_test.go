package pipeline

import (
	"fmt"
	"testing"

	"github.com/ashgrove/canonforge/internal/forge/reconcile"
)

func TestRecentItemsWindow(t *testing.T) {
	pctx := NewContext(Request{Deliverable: "location"})
	for i := 1; i <= 8; i++ {
		pctx.AppendItem("districts", map[string]any{"name": fmt.Sprintf("district-%d", i)})
	}

	recent := pctx.RecentItems("districts", 5)
	if len(recent) != 5 {
		t.Fatalf("len(recent) = %d, want 5", len(recent))
	}
	if got, want := recent[0]["name"], "district-4"; got != want {
		t.Fatalf("recent[0] = %v, want %v (oldest first)", got, want)
	}
	if got, want := recent[4]["name"], "district-8"; got != want {
		t.Fatalf("recent[4] = %v, want %v", got, want)
	}
}

func TestRecentItemsFewerThanWindow(t *testing.T) {
	pctx := NewContext(Request{Deliverable: "location"})
	pctx.AppendItem("districts", map[string]any{"name": "only"})

	if got := len(pctx.RecentItems("districts", 5)); got != 1 {
		t.Fatalf("len(recent) = %d, want 1", got)
	}
	if got := pctx.RecentItems("missing", 5); got != nil {
		t.Fatalf("recent of missing stage = %v, want nil", got)
	}
}

func TestBuildContextProjection(t *testing.T) {
	stages := []Definition{
		{ID: "concept", ContextFields: []string{"name", "theme"}},
		{ID: "detail", ContextStages: []string{"concept", "absent"}},
	}
	pctx := NewContext(Request{Deliverable: "character"})
	pctx.BindStages(stages)
	pctx.SetResult("concept", StageResult{Fields: map[string]any{
		"name":           "Velra",
		"theme":          "exiled cartographer",
		"open_questions": []any{"should she have a rival?"},
		"scratch_notes":  "internal only",
	}})

	blob := stages[1].BuildContext(pctx)
	concept, ok := blob["concept"].(map[string]any)
	if !ok {
		t.Fatalf("projected concept missing: %v", blob)
	}
	if concept["name"] != "Velra" || concept["theme"] != "exiled cartographer" {
		t.Fatalf("allow-listed fields missing: %v", concept)
	}
	if _, leaked := concept["open_questions"]; leaked {
		t.Fatal("bookkeeping field leaked into projection")
	}
	if _, leaked := concept["scratch_notes"]; leaked {
		t.Fatal("unlisted field leaked into projection")
	}
	if _, present := blob["absent"]; present {
		t.Fatal("missing stage should be omitted silently")
	}
}

func TestNumberFieldCoercion(t *testing.T) {
	pctx := NewContext(Request{Deliverable: "location"})
	pctx.SetResult("overview", StageResult{Fields: map[string]any{
		"count_number": float64(7),
		"count_string": "7",
		"count_words":  "seven",
	}})

	tests := []struct {
		field  string
		want   float64
		wantOK bool
	}{
		{"count_number", 7, true},
		{"count_string", 7, true},
		{"count_words", 0, false},
		{"absent", 0, false},
	}
	for _, tc := range tests {
		got, ok := pctx.NumberField("overview", tc.field)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("NumberField(%q) = %v, %v; want %v, %v", tc.field, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	pctx := NewContext(Request{Deliverable: "character", Name: "Velra"})
	pctx.SetResult("concept", StageResult{Fields: map[string]any{"name": "Velra"}})
	pctx.AppendItem("districts", map[string]any{"name": "Ashmarket"})
	pctx.RecordDecisions(reconcile.Bundle{
		Stage:   "concept",
		Answers: []reconcile.ProposalAnswer{{Question: "rival?", Answer: "yes"}},
	})

	snapshot, err := pctx.MarshalSnapshot()
	if err != nil {
		t.Fatalf("MarshalSnapshot() error: %v", err)
	}
	restored, err := UnmarshalSnapshot(snapshot)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot() error: %v", err)
	}

	if restored.SessionID != pctx.SessionID {
		t.Fatalf("SessionID = %v, want %v", restored.SessionID, pctx.SessionID)
	}
	if restored.Request.Name != "Velra" {
		t.Fatalf("Request.Name = %q, want %q", restored.Request.Name, "Velra")
	}
	concept, ok := restored.Result("concept")
	if !ok || concept.Fields["name"] != "Velra" {
		t.Fatalf("concept result lost: %v, %v", concept, ok)
	}
	districts, _ := restored.Result("districts")
	if len(districts.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(districts.Items))
	}
	if len(restored.Decisions) != 1 || restored.Decisions[0].Kind != "proposal" {
		t.Fatalf("decisions lost: %v", restored.Decisions)
	}
}
