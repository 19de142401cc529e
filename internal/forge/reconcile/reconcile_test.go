package reconcile

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractDeltas(t *testing.T) {
	output := map[string]any{
		"name": "Gravewyrm",
		"open_questions": []any{
			map[string]any{"question": "Does it serve the Pale Court?", "options": []any{"yes", "no"}},
		},
		"conflicts": []any{
			map[string]any{
				"existing_claim": "The Pale Court fell in the Second Age.",
				"new_claim":      "The Pale Court rules the marshes.",
				"severity":       "major",
			},
		},
		"issues": []any{
			map[string]any{"description": "Stat block missing resistances.", "severity": "critical"},
			map[string]any{"description": "Name collides with a minor NPC.", "severity": "minor"},
		},
	}

	deltas := ExtractDeltas("statblock", output)
	if len(deltas.Proposals) != 1 || len(deltas.Conflicts) != 1 || len(deltas.Issues) != 2 {
		t.Fatalf("extracted %d/%d/%d, want 1/1/2",
			len(deltas.Proposals), len(deltas.Conflicts), len(deltas.Issues))
	}
	if deltas.Issues[0].Severity != SeverityCritical {
		t.Fatalf("severity = %q, want critical", deltas.Issues[0].Severity)
	}
}

func TestExtractDeltasMalformedCollections(t *testing.T) {
	output := map[string]any{
		"open_questions": "not a list",
		"conflicts":      []any{"not a map"},
		"issues":         []any{map[string]any{"severity": "critical"}},
	}

	deltas := ExtractDeltas("statblock", output)
	if !deltas.Empty() {
		t.Fatalf("malformed collections must extract as empty, got %+v", deltas)
	}
}

func TestApproveBlocksOnUnselectedProposal(t *testing.T) {
	deltas := &Deltas{
		Stage:     "identity",
		Proposals: []Proposal{{Question: "Which era?", Options: []string{"first", "second"}}},
	}

	_, err := deltas.Approve()
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if len(blocked.Unresolved) != 1 || !strings.Contains(blocked.Unresolved[0], "Which era?") {
		t.Fatalf("unresolved = %v", blocked.Unresolved)
	}
}

func TestApproveCustomEmptyTextStillUnresolved(t *testing.T) {
	deltas := &Deltas{
		Stage:     "identity",
		Proposals: []Proposal{{Question: "Which era?"}},
	}
	if err := deltas.SelectCustom(0, "   "); err != nil {
		t.Fatalf("select custom: %v", err)
	}

	_, err := deltas.Approve()
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("custom selection with empty text must block approval, got %v", err)
	}
}

func TestApproveConflictScenario(t *testing.T) {
	deltas := &Deltas{
		Stage: "lore",
		Conflicts: []Conflict{
			{ExistingClaim: "A", NewClaim: "B"},
			{ExistingClaim: "C", NewClaim: "D"},
		},
	}
	if err := deltas.ResolveConflict(0, ConflictUseNew); err != nil {
		t.Fatalf("resolve conflict: %v", err)
	}

	_, err := deltas.Approve()
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if len(blocked.Unresolved) != 1 || !strings.Contains(blocked.Unresolved[0], "D") {
		t.Fatalf("blocked must name the one unresolved conflict, got %v", blocked.Unresolved)
	}

	if err := deltas.ResolveConflict(1, ConflictKeepOld); err != nil {
		t.Fatalf("resolve conflict: %v", err)
	}
	bundle, err := deltas.Approve()
	if err != nil {
		t.Fatalf("approve after resolving: %v", err)
	}
	if len(bundle.Conflicts) != 2 {
		t.Fatalf("bundle conflicts = %d, want 2", len(bundle.Conflicts))
	}
}

func TestApproveCriticalIssueBlocksOthersAdvisory(t *testing.T) {
	deltas := &Deltas{
		Stage: "validation",
		Issues: []Issue{
			{Description: "Missing resistances.", Severity: SeverityCritical},
			{Description: "Name collision.", Severity: SeverityMinor},
		},
	}

	_, err := deltas.Approve()
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if len(blocked.Unresolved) != 1 {
		t.Fatalf("only the critical issue blocks, got %v", blocked.Unresolved)
	}

	if err := deltas.ResolveIssue(0, IssueWillFix); err != nil {
		t.Fatalf("resolve issue: %v", err)
	}
	bundle, err := deltas.Approve()
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !bundle.OutstandingWork {
		t.Fatal("will_fix must set the outstanding-work flag")
	}
	if !bundle.Issues[0].OutstandingWork {
		t.Fatal("will_fix issue outcome must carry the outstanding-work marker")
	}
	if bundle.Issues[1].OutstandingWork {
		t.Fatal("advisory issue must not carry outstanding work")
	}
}

func TestApproveFullBundle(t *testing.T) {
	deltas := &Deltas{
		Stage:     "identity",
		Proposals: []Proposal{{Question: "Which era?", Options: []string{"first", "second"}}},
		Conflicts: []Conflict{{ExistingClaim: "A", NewClaim: "B"}},
		Issues:    []Issue{{Description: "Tone drifts.", Severity: SeverityModerate}},
	}
	if err := deltas.SelectOption(0, "second"); err != nil {
		t.Fatalf("select option: %v", err)
	}
	if err := deltas.ResolveConflict(0, ConflictMerge); err != nil {
		t.Fatalf("resolve conflict: %v", err)
	}

	bundle, err := deltas.Approve()
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if bundle.Answers[0].Answer != "second" || bundle.Answers[0].Custom {
		t.Fatalf("answer = %+v", bundle.Answers[0])
	}
	if bundle.Conflicts[0].Resolution != ConflictMerge {
		t.Fatalf("conflict resolution = %q", bundle.Conflicts[0].Resolution)
	}
	// Unresolved non-critical issue passes through as advisory.
	if bundle.Issues[0].Resolution != IssueUnresolved {
		t.Fatalf("issue resolution = %q", bundle.Issues[0].Resolution)
	}
	if bundle.OutstandingWork {
		t.Fatal("no will_fix items, outstanding work must be false")
	}
}

func TestResolveValidation(t *testing.T) {
	deltas := &Deltas{
		Proposals: []Proposal{{Question: "Q"}},
		Conflicts: []Conflict{{NewClaim: "B"}},
		Issues:    []Issue{{Description: "D"}},
	}

	if err := deltas.SelectOption(5, "x"); err == nil {
		t.Fatal("expected range error")
	}
	if err := deltas.ResolveConflict(0, "overwrite"); err == nil {
		t.Fatal("expected invalid resolution error")
	}
	if err := deltas.ResolveIssue(0, "fixed"); err == nil {
		t.Fatal("expected invalid resolution error")
	}
}
