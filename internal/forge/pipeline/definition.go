package pipeline

// ChunkSpec declares how a stage reads its target quantity from an earlier
// stage's output and how one iteration is labeled.
type ChunkSpec struct {
	// SourceStage names the earlier stage whose output carries the quantity.
	SourceStage string
	// QuantityField is the numeric field read from the source stage.
	QuantityField string
	// ScaleField is the fallback qualitative size word looked up against the
	// configured scale defaults when the quantity is absent.
	ScaleField string
	// ChunkSize is the number of sub-artifacts per iteration; zero means one.
	ChunkSize int
	// Label names one sub-artifact, e.g. "district" or "encounter".
	Label string
}

// Definition is the static description of one generation step. Definitions
// are immutable after registry construction.
type Definition struct {
	ID          string
	Name        string
	Instruction string

	// Required lists fields the parsed output must contain.
	Required []string

	// ContextFields is the allow-list projection of this stage's output into
	// later prompts. Internal bookkeeping (proposals, conflicts, retrieval
	// hints) is excluded by never being listed.
	ContextFields []string

	// ContextStages names the prior stages whose projected output feeds this
	// stage's prompt. Missing stages are omitted silently.
	ContextStages []string

	// Keywords derives the canon retrieval terms for this stage. A nil
	// function skips retrieval; unless AdditiveFacts is set, the session's
	// carried fact set is cleared so a prior stage's facts do not leak
	// into this stage's prompts.
	Keywords func(*Context) []string

	// AdditiveFacts merges this stage's retrieval into the session's carried
	// fact set instead of replacing it; the merged total is re-checked
	// against the budget.
	AdditiveFacts bool

	// Chunking marks the stage as a chunked builder of one large artifact.
	Chunking *ChunkSpec
}

// BuildContext projects prior stage outputs into the serializable context
// blob for this stage's prompt. It is a pure function of the context: same
// context, same blob.
func (d Definition) BuildContext(pctx *Context) map[string]any {
	blob := make(map[string]any)
	for _, stageID := range d.ContextStages {
		result, ok := pctx.Result(stageID)
		if !ok {
			continue
		}
		projected := projectFields(result.Fields, allowListFor(stageID, pctx))
		if len(result.Items) > 0 {
			projected["items"] = result.Items
		}
		if len(projected) > 0 {
			blob[stageID] = projected
		}
	}
	return blob
}

// allowListFor resolves the producing stage's ContextFields from the
// session's stage list recorded on the context.
func allowListFor(stageID string, pctx *Context) []string {
	if pctx == nil {
		return nil
	}
	for _, def := range pctx.stageDefs {
		if def.ID == stageID {
			return def.ContextFields
		}
	}
	return nil
}

func projectFields(fields map[string]any, allowList []string) map[string]any {
	projected := make(map[string]any)
	for _, field := range allowList {
		if value, ok := fields[field]; ok {
			projected[field] = value
		}
	}
	return projected
}
