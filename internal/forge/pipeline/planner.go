package pipeline

import (
	"math"
	"strings"
)

// Plan is the chunking decision for one stage. A stage that should not
// chunk runs as a single call; TotalChunks is never zero for a chunked
// stage.
type Plan struct {
	ShouldChunk bool
	TotalChunks int
	ChunkSize   int
	Label       string
}

// ScaleDefaults maps qualitative size words to default quantities, the
// fallback when no numeric quantity is present.
type ScaleDefaults map[string]int

// PlanChunks decides whether the stage runs multiple bounded iterations.
// The target quantity is read from the named field of an earlier stage's
// output with numeric-as-string coercion; a missing quantity falls back to
// the scale-keyword lookup. A quantity of one or less, or an unparseable
// value with no usable scale, degrades to a single unchunked call — never
// to zero iterations.
func PlanChunks(pctx *Context, spec *ChunkSpec, scales ScaleDefaults) Plan {
	if spec == nil || pctx == nil {
		return Plan{}
	}

	quantity, ok := pctx.NumberField(spec.SourceStage, spec.QuantityField)
	if !ok {
		quantity = scaleFallback(pctx, spec, scales)
	}
	if quantity <= 1 {
		return Plan{}
	}

	chunkSize := spec.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	total := int(math.Ceil(quantity / float64(chunkSize)))
	if total < 1 {
		return Plan{}
	}
	return Plan{
		ShouldChunk: true,
		TotalChunks: total,
		ChunkSize:   chunkSize,
		Label:       spec.Label,
	}
}

func scaleFallback(pctx *Context, spec *ChunkSpec, scales ScaleDefaults) float64 {
	if spec.ScaleField == "" {
		return 0
	}
	scale, ok := pctx.StringField(spec.SourceStage, spec.ScaleField)
	if !ok {
		return 0
	}
	quantity, ok := scales[strings.ToLower(scale)]
	if !ok {
		return 0
	}
	return float64(quantity)
}
