// Package reconcile extracts AI-proposed deltas from stage output and
// enforces the resolution invariants that gate approval: every proposal
// answered, every conflict resolved, every critical issue resolved.
package reconcile

import (
	"fmt"
	"strings"
)

// ConflictResolution is the chosen handling for a detected contradiction.
type ConflictResolution string

const (
	ConflictUnresolved ConflictResolution = ""
	ConflictKeepOld    ConflictResolution = "keep_old"
	ConflictUseNew     ConflictResolution = "use_new"
	ConflictMerge      ConflictResolution = "merge"
	ConflictSkip       ConflictResolution = "skip"
)

// IssueResolution is the chosen handling for a validation issue.
type IssueResolution string

const (
	IssueUnresolved  IssueResolution = ""
	IssueWillFix     IssueResolution = "will_fix"
	IssueAcknowledge IssueResolution = "acknowledge"
	IssueIgnore      IssueResolution = "ignore"
)

// IssueSeverity grades a validation issue. Only critical issues block
// approval while unresolved.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityModerate IssueSeverity = "moderate"
	SeverityMinor    IssueSeverity = "minor"
)

// Proposal is an AI-raised open question requiring a human decision.
type Proposal struct {
	Question       string
	Options        []string
	SelectedOption string
	CustomText     string
	// CustomSelected marks that the user chose a free-text answer; a custom
	// selection with empty text still counts as unresolved.
	CustomSelected bool
}

// Resolved reports whether the proposal carries a usable answer.
func (p Proposal) Resolved() bool {
	if p.CustomSelected {
		return strings.TrimSpace(p.CustomText) != ""
	}
	return strings.TrimSpace(p.SelectedOption) != ""
}

// Answer returns the final answer text for an approved proposal.
func (p Proposal) Answer() string {
	if p.CustomSelected {
		return strings.TrimSpace(p.CustomText)
	}
	return strings.TrimSpace(p.SelectedOption)
}

// Conflict is a detected contradiction between new and existing claims.
type Conflict struct {
	ExistingClaim string
	NewClaim      string
	Severity      string
	Resolution    ConflictResolution
}

// Resolved reports whether a handling was chosen.
func (c Conflict) Resolved() bool {
	switch c.Resolution {
	case ConflictKeepOld, ConflictUseNew, ConflictMerge, ConflictSkip:
		return true
	}
	return false
}

// Issue is a validation problem reported against the generated output.
type Issue struct {
	Description string
	Severity    IssueSeverity
	Resolution  IssueResolution
}

// Resolved reports whether a handling was chosen.
func (i Issue) Resolved() bool {
	switch i.Resolution {
	case IssueWillFix, IssueAcknowledge, IssueIgnore:
		return true
	}
	return false
}

// Blocking reports whether this issue alone prevents approval.
func (i Issue) Blocking() bool {
	return i.Severity == SeverityCritical && !i.Resolved()
}

// Deltas holds the three independent collections extracted from one stage's
// raw output. Items live from extraction until approval merges them into
// the final artifact.
type Deltas struct {
	Stage     string
	Proposals []Proposal
	Conflicts []Conflict
	Issues    []Issue
}

// Empty reports whether the stage raised nothing to reconcile.
func (d *Deltas) Empty() bool {
	return d == nil || (len(d.Proposals) == 0 && len(d.Conflicts) == 0 && len(d.Issues) == 0)
}

// SelectOption answers a proposal with one of its listed options.
func (d *Deltas) SelectOption(index int, option string) error {
	if index < 0 || index >= len(d.Proposals) {
		return fmt.Errorf("proposal index %d out of range", index)
	}
	option = strings.TrimSpace(option)
	if option == "" {
		return fmt.Errorf("option is required")
	}
	d.Proposals[index].SelectedOption = option
	d.Proposals[index].CustomSelected = false
	d.Proposals[index].CustomText = ""
	return nil
}

// SelectCustom answers a proposal with free text. Empty text is recorded but
// leaves the proposal unresolved.
func (d *Deltas) SelectCustom(index int, text string) error {
	if index < 0 || index >= len(d.Proposals) {
		return fmt.Errorf("proposal index %d out of range", index)
	}
	d.Proposals[index].CustomSelected = true
	d.Proposals[index].CustomText = text
	d.Proposals[index].SelectedOption = ""
	return nil
}

// ResolveConflict records the handling for one conflict.
func (d *Deltas) ResolveConflict(index int, resolution ConflictResolution) error {
	if index < 0 || index >= len(d.Conflicts) {
		return fmt.Errorf("conflict index %d out of range", index)
	}
	switch resolution {
	case ConflictKeepOld, ConflictUseNew, ConflictMerge, ConflictSkip:
	default:
		return fmt.Errorf("invalid conflict resolution %q", resolution)
	}
	d.Conflicts[index].Resolution = resolution
	return nil
}

// ResolveIssue records the handling for one issue.
func (d *Deltas) ResolveIssue(index int, resolution IssueResolution) error {
	if index < 0 || index >= len(d.Issues) {
		return fmt.Errorf("issue index %d out of range", index)
	}
	switch resolution {
	case IssueWillFix, IssueAcknowledge, IssueIgnore:
	default:
		return fmt.Errorf("invalid issue resolution %q", resolution)
	}
	d.Issues[index].Resolution = resolution
	return nil
}
