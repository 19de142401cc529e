package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ashgrove/canonforge/internal/canon"
)

// buildPrompt assembles the user message for one call: request
// configuration, projected prior outputs, budgeted canon facts, and the
// chunk directive when iterating. json.Marshal sorts map keys, so the
// message is a pure function of its inputs.
func buildPrompt(def Definition, pctx *Context, plan Plan, chunkIndex, window int) (string, error) {
	var b strings.Builder

	b.WriteString("## Request\n")
	b.WriteString(fmt.Sprintf("Deliverable: %s\n", pctx.Request.Deliverable))
	if pctx.Request.Name != "" {
		b.WriteString(fmt.Sprintf("Name: %s\n", pctx.Request.Name))
	}
	if pctx.Request.Prompt != "" {
		b.WriteString(fmt.Sprintf("Creative direction: %s\n", pctx.Request.Prompt))
	}
	if len(pctx.Request.Fields) > 0 {
		keys := make([]string, 0, len(pctx.Request.Fields))
		for key := range pctx.Request.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			b.WriteString(fmt.Sprintf("%s: %s\n", key, pctx.Request.Fields[key]))
		}
	}

	blob := def.BuildContext(pctx)
	if len(blob) > 0 {
		encoded, err := json.Marshal(blob)
		if err != nil {
			return "", fmt.Errorf("marshal context blob: %w", err)
		}
		b.WriteString("\n## Established so far\n")
		b.Write(encoded)
		b.WriteString("\n")
	}

	if len(pctx.Facts) > 0 {
		b.WriteString("\n## Canon facts (stay consistent with these)\n")
		for _, fact := range pctx.Facts {
			b.WriteString(formatFact(fact))
		}
	}

	if plan.ShouldChunk {
		label := plan.Label
		if label == "" {
			label = "item"
		}
		b.WriteString(fmt.Sprintf("\n## Part %d of %d\n", chunkIndex, plan.TotalChunks))
		b.WriteString(fmt.Sprintf("Generate the next %d %s(s) only.\n", plan.ChunkSize, label))
		recent := pctx.RecentItems(def.ID, window)
		if len(recent) > 0 {
			encoded, err := json.Marshal(recent)
			if err != nil {
				return "", fmt.Errorf("marshal recent items: %w", err)
			}
			b.WriteString(fmt.Sprintf("The most recent %s(s) already generated, for continuity:\n", label))
			b.Write(encoded)
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

func formatFact(fact canon.Fact) string {
	attribution := fact.Source
	if attribution == "" {
		attribution = fact.EntityName
	}
	return fmt.Sprintf("- %s [%s]\n", fact.Text, attribution)
}

// correctionPrompt asks the provider to re-emit valid structured output
// after a parse failure, quoting the position-aware reason.
func correctionPrompt(parseErr *ParseError, raw string) string {
	return fmt.Sprintf(
		"The previous response could not be used: %s.\nRe-emit the full response as a single valid JSON object with the required fields. Previous response:\n%s",
		parseErr.Error(), raw,
	)
}
