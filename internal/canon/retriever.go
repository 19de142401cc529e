package canon

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashgrove/canonforge/internal/storage"
)

// FactSource is the slice of the storage contract retrieval consumes.
type FactSource interface {
	QueryFacts(ctx context.Context, query storage.FactQuery) ([]storage.FactRecord, error)
}

// Retriever fetches, ranks, and budget-checks canonical facts for a stage.
type Retriever struct {
	source FactSource
	budget Budget
	tracer trace.Tracer
}

// NewRetriever creates a retriever over the given fact source.
func NewRetriever(source FactSource, budget Budget) *Retriever {
	return &Retriever{
		source: source,
		budget: budget,
		tracer: otel.Tracer("canonforge.canon"),
	}
}

// Result is the outcome of one retrieval. When Decision is non-nil the set
// exceeded the budget and a narrowing resolution is required before the
// facts may be used.
type Result struct {
	Facts    []Fact
	Decision *NarrowingDecision
}

// Retrieve runs the query, ranks the result by keyword priority, and checks
// the budget. Identical queries against an unchanged store yield identical
// ranked output.
func (r *Retriever) Retrieve(ctx context.Context, query Query) (Result, error) {
	if r == nil || r.source == nil {
		return Result{}, fmt.Errorf("retriever is not configured")
	}

	ctx, span := r.tracer.Start(ctx, "canon.retrieve",
		trace.WithAttributes(attribute.Int("canon.keywords", len(query.Keywords))))
	defer span.End()

	records, err := r.source.QueryFacts(ctx, query.storageQuery())
	if err != nil {
		return Result{}, fmt.Errorf("query canon facts: %w", err)
	}

	facts := Rank(filterByKeywords(FromRecords(records), query.Keywords), query.Keywords)
	span.SetAttributes(attribute.Int("canon.facts", len(facts)))

	if r.budget.Exceeded(facts) {
		return Result{
			Decision: &NarrowingDecision{Query: query, Facts: facts, Budget: r.budget},
		}, nil
	}
	return Result{Facts: facts}, nil
}

// RetrieveAdditional fetches extra facts requested mid-generation and merges
// them additively into the existing set. The merged total is re-subjected to
// the budget check.
func (r *Retriever) RetrieveAdditional(ctx context.Context, existing []Fact, query Query) (Result, error) {
	if r == nil || r.source == nil {
		return Result{}, fmt.Errorf("retriever is not configured")
	}

	ctx, span := r.tracer.Start(ctx, "canon.retrieve_additional")
	defer span.End()

	records, err := r.source.QueryFacts(ctx, query.storageQuery())
	if err != nil {
		return Result{}, fmt.Errorf("query additional canon facts: %w", err)
	}

	additional := Rank(filterByKeywords(FromRecords(records), query.Keywords), query.Keywords)
	merged := Merge(existing, additional)
	span.SetAttributes(attribute.Int("canon.facts", len(merged)))

	if r.budget.Exceeded(merged) {
		return Result{
			Decision: &NarrowingDecision{Query: query, Facts: merged, Budget: r.budget},
		}, nil
	}
	return Result{Facts: merged}, nil
}

// ResolveAddKeywords re-runs retrieval with the original query plus more
// specific terms.
func (r *Retriever) ResolveAddKeywords(ctx context.Context, decision *NarrowingDecision, extraKeywords []string) (Result, error) {
	if decision == nil {
		return Result{}, fmt.Errorf("narrowing decision is required")
	}
	query := decision.Query
	query.Keywords = append(append([]string{}, query.Keywords...), extraKeywords...)
	return r.Retrieve(ctx, query)
}

// ResolveFilter keeps only the selected facts from the retrieved set without
// re-querying. The subset is re-checked against the budget; a still
// over-budget subset raises another decision.
func (r *Retriever) ResolveFilter(decision *NarrowingDecision, selectedFactIDs []string) (Result, error) {
	if decision == nil {
		return Result{}, fmt.Errorf("narrowing decision is required")
	}
	selected := decision.Select(selectedFactIDs)
	if r.budget.Exceeded(selected) {
		return Result{
			Decision: &NarrowingDecision{Query: decision.Query, Facts: selected, Budget: r.budget},
		}, nil
	}
	return Result{Facts: selected}, nil
}

// ResolveProceed forwards the original over-budget set verbatim. It is the
// only path that bypasses the budget, and it must be invoked explicitly.
func (r *Retriever) ResolveProceed(decision *NarrowingDecision) (Result, error) {
	if decision == nil {
		return Result{}, fmt.Errorf("narrowing decision is required")
	}
	return Result{Facts: decision.Facts}, nil
}

// filterByKeywords keeps facts matching every keyword, so appending more
// specific terms narrows the set. With no keywords the candidate set passes
// through unfiltered.
func filterByKeywords(facts []Fact, keywords []string) []Fact {
	normalized := normalizeKeywords(keywords)
	if len(normalized) == 0 {
		return facts
	}
	var matched []Fact
	for _, fact := range facts {
		all := true
		for _, keyword := range normalized {
			if classify(fact, keyword) == matchNone {
				all = false
				break
			}
		}
		if all {
			matched = append(matched, fact)
		}
	}
	return matched
}
