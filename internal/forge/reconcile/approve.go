package reconcile

import (
	"fmt"
	"strings"
)

// ProposalAnswer is the final, human-confirmed answer to an open question.
type ProposalAnswer struct {
	Question string
	Answer   string
	Custom   bool
}

// ConflictOutcome is the final handling for one conflict.
type ConflictOutcome struct {
	ExistingClaim string
	NewClaim      string
	Resolution    ConflictResolution
}

// IssueOutcome is the final handling for one issue. OutstandingWork marks
// will_fix items passed through without auto-correction.
type IssueOutcome struct {
	Description     string
	Severity        IssueSeverity
	Resolution      IssueResolution
	OutstandingWork bool
}

// Bundle is the merged result of a successful approval.
type Bundle struct {
	Stage     string
	Answers   []ProposalAnswer
	Conflicts []ConflictOutcome
	Issues    []IssueOutcome
	// OutstandingWork is set when any issue was approved as will_fix; the
	// flag persists on the stored artifact.
	OutstandingWork bool
}

// BlockedError lists exactly which items remain unresolved when approval is
// attempted too early.
type BlockedError struct {
	Stage      string
	Unresolved []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("approval blocked for stage %s: %d unresolved item(s): %s",
		e.Stage, len(e.Unresolved), strings.Join(e.Unresolved, "; "))
}

// Approve validates the resolution invariants and returns the merged bundle.
// It fails with a BlockedError naming every unselected proposal, unresolved
// conflict, and unresolved critical issue. Non-critical unresolved issues
// are advisory and pass through with their zero resolution.
func (d *Deltas) Approve() (Bundle, error) {
	var unresolved []string
	for i, proposal := range d.Proposals {
		if !proposal.Resolved() {
			unresolved = append(unresolved, fmt.Sprintf("proposal %d: %s", i+1, proposal.Question))
		}
	}
	for i, conflict := range d.Conflicts {
		if !conflict.Resolved() {
			unresolved = append(unresolved, fmt.Sprintf("conflict %d: %s", i+1, conflict.NewClaim))
		}
	}
	for i, issue := range d.Issues {
		if issue.Blocking() {
			unresolved = append(unresolved, fmt.Sprintf("critical issue %d: %s", i+1, issue.Description))
		}
	}
	if len(unresolved) > 0 {
		return Bundle{}, &BlockedError{Stage: d.Stage, Unresolved: unresolved}
	}

	bundle := Bundle{Stage: d.Stage}
	for _, proposal := range d.Proposals {
		bundle.Answers = append(bundle.Answers, ProposalAnswer{
			Question: proposal.Question,
			Answer:   proposal.Answer(),
			Custom:   proposal.CustomSelected,
		})
	}
	for _, conflict := range d.Conflicts {
		bundle.Conflicts = append(bundle.Conflicts, ConflictOutcome{
			ExistingClaim: conflict.ExistingClaim,
			NewClaim:      conflict.NewClaim,
			Resolution:    conflict.Resolution,
		})
	}
	for _, issue := range d.Issues {
		outcome := IssueOutcome{
			Description: issue.Description,
			Severity:    issue.Severity,
			Resolution:  issue.Resolution,
		}
		if issue.Resolution == IssueWillFix {
			outcome.OutstandingWork = true
			bundle.OutstandingWork = true
		}
		bundle.Issues = append(bundle.Issues, outcome)
	}
	return bundle, nil
}
