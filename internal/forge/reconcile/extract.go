package reconcile

import (
	"strings"
)

// ExtractDeltas pulls the three reconciliation collections from a parsed
// stage output. Missing or malformed collections extract as empty; upstream
// data problems are recovered by omission, never fatal.
func ExtractDeltas(stage string, output map[string]any) *Deltas {
	deltas := &Deltas{Stage: stage}
	for _, key := range []string{"open_questions", "proposals"} {
		for _, item := range itemList(output, key) {
			proposal := Proposal{
				Question: stringField(item, "question"),
				Options:  stringList(item, "options"),
			}
			if proposal.Question == "" {
				continue
			}
			deltas.Proposals = append(deltas.Proposals, proposal)
		}
	}
	for _, item := range itemList(output, "conflicts") {
		conflict := Conflict{
			ExistingClaim: stringField(item, "existing_claim"),
			NewClaim:      stringField(item, "new_claim"),
			Severity:      stringField(item, "severity"),
		}
		if conflict.ExistingClaim == "" && conflict.NewClaim == "" {
			continue
		}
		deltas.Conflicts = append(deltas.Conflicts, conflict)
	}
	for _, item := range itemList(output, "issues") {
		issue := Issue{
			Description: stringField(item, "description"),
			Severity:    normalizeSeverity(stringField(item, "severity")),
		}
		if issue.Description == "" {
			continue
		}
		deltas.Issues = append(deltas.Issues, issue)
	}
	return deltas
}

func normalizeSeverity(value string) IssueSeverity {
	switch IssueSeverity(strings.ToLower(strings.TrimSpace(value))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityMinor:
		return SeverityMinor
	default:
		return SeverityModerate
	}
}

func itemList(output map[string]any, key string) []map[string]any {
	raw, ok := output[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var items []map[string]any
	for _, entry := range list {
		if item, ok := entry.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

func stringField(item map[string]any, key string) string {
	value, ok := item[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func stringList(item map[string]any, key string) []string {
	raw, ok := item[key].([]any)
	if !ok {
		return nil
	}
	var values []string
	for _, entry := range raw {
		if value, ok := entry.(string); ok && strings.TrimSpace(value) != "" {
			values = append(values, strings.TrimSpace(value))
		}
	}
	return values
}
