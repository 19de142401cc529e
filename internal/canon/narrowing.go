package canon

import (
	"errors"
	"sort"
	"strings"
)

// NarrowingMode identifies one of the three mutually exclusive resolutions
// for an over-budget fact set.
type NarrowingMode string

const (
	// NarrowingAddKeywords appends more specific terms and re-runs retrieval.
	NarrowingAddKeywords NarrowingMode = "add_keywords"
	// NarrowingFilterFacts selects a subset of the already-retrieved set.
	NarrowingFilterFacts NarrowingMode = "filter_facts"
	// NarrowingProceedAnyway forwards the over-budget set verbatim.
	NarrowingProceedAnyway NarrowingMode = "proceed_anyway"
)

// ErrUnknownNarrowingMode indicates a resolution mode outside the three
// supported values.
var ErrUnknownNarrowingMode = errors.New("unknown narrowing mode")

// NarrowingDecision is a required decision point raised when retrieval
// exceeds the fact budget. It holds the retrieved set so FilterFacts can
// operate without re-querying the store.
type NarrowingDecision struct {
	// Query is the retrieval request that produced the over-budget set.
	Query Query
	// Facts is the full retrieved, ranked set.
	Facts []Fact
	// Budget is the limit the set exceeded.
	Budget Budget
}

// EntityGroup is the per-source grouping used for interactive filtering.
type EntityGroup struct {
	EntityID   string
	EntityName string
	Facts      []Fact
}

// GroupByEntity groups the retrieved facts by source entity, ordered by
// entity name then ID for stable presentation.
func (d *NarrowingDecision) GroupByEntity() []EntityGroup {
	byEntity := make(map[string]*EntityGroup)
	var order []string
	for _, fact := range d.Facts {
		group, ok := byEntity[fact.EntityID]
		if !ok {
			group = &EntityGroup{EntityID: fact.EntityID, EntityName: fact.EntityName}
			byEntity[fact.EntityID] = group
			order = append(order, fact.EntityID)
		}
		group.Facts = append(group.Facts, fact)
	}

	groups := make([]EntityGroup, 0, len(order))
	for _, entityID := range order {
		groups = append(groups, *byEntity[entityID])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].EntityName != groups[j].EntityName {
			return groups[i].EntityName < groups[j].EntityName
		}
		return groups[i].EntityID < groups[j].EntityID
	})
	return groups
}

// FilterText returns the facts whose text, entity name, tags, type, or
// region contain the filter term, case-insensitively. An empty term returns
// the full set.
func (d *NarrowingDecision) FilterText(term string) []Fact {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return d.Facts
	}
	var matched []Fact
	for _, fact := range d.Facts {
		if factMatchesFilter(fact, term) {
			matched = append(matched, fact)
		}
	}
	return matched
}

func factMatchesFilter(fact Fact, term string) bool {
	if strings.Contains(strings.ToLower(fact.Text), term) {
		return true
	}
	if strings.Contains(strings.ToLower(fact.EntityName), term) {
		return true
	}
	for _, tag := range fact.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(string(fact.EntityType)), term) {
		return true
	}
	return strings.Contains(strings.ToLower(fact.Region), term)
}

// Select returns the subset of retrieved facts with the given IDs, keeping
// retrieved order. Unknown IDs are ignored.
func (d *NarrowingDecision) Select(factIDs []string) []Fact {
	wanted := make(map[string]bool, len(factIDs))
	for _, factID := range factIDs {
		wanted[strings.TrimSpace(factID)] = true
	}
	var selected []Fact
	for _, fact := range d.Facts {
		if wanted[fact.ID] {
			selected = append(selected, fact)
		}
	}
	return selected
}

// SelectEntity returns the IDs of every fact in one entity group, the bulk
// select unit for interactive filtering.
func (d *NarrowingDecision) SelectEntity(entityID string) []string {
	var factIDs []string
	for _, fact := range d.Facts {
		if fact.EntityID == entityID {
			factIDs = append(factIDs, fact.ID)
		}
	}
	return factIDs
}
