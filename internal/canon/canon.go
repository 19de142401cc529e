// Package canon models canonical facts and the retrieval, ranking, and
// narrowing rules that keep generated content consistent with established
// lore.
package canon

import (
	"github.com/ashgrove/canonforge/internal/storage"
)

// EntityType classifies a canon entity.
type EntityType string

const (
	EntityTypeCharacter EntityType = "character"
	EntityTypeMonster   EntityType = "monster"
	EntityTypeLocation  EntityType = "location"
	EntityTypeFaction   EntityType = "faction"
	EntityTypeEvent     EntityType = "event"
)

// Fact is one atomic canonical claim with source attribution.
type Fact struct {
	ID            string
	EntityID      string
	EntityName    string
	EntityType    EntityType
	EntityAliases []string
	Text          string
	Source        string
	Tags          []string
	Era           string
	Region        string
}

// FromRecord converts a persisted fact record to the domain shape.
func FromRecord(record storage.FactRecord) Fact {
	return Fact{
		ID:            record.ID,
		EntityID:      record.EntityID,
		EntityName:    record.EntityName,
		EntityType:    EntityType(record.EntityType),
		EntityAliases: record.EntityAliases,
		Text:          record.Text,
		Source:        record.Source,
		Tags:          record.Tags,
		Era:           record.Era,
		Region:        record.Region,
	}
}

// FromRecords converts a slice of persisted fact records.
func FromRecords(records []storage.FactRecord) []Fact {
	facts := make([]Fact, 0, len(records))
	for _, record := range records {
		facts = append(facts, FromRecord(record))
	}
	return facts
}

// AggregateSize returns the total character count of fact text, the unit the
// fact budget measures alongside fact count.
func AggregateSize(facts []Fact) int {
	total := 0
	for _, fact := range facts {
		total += len(fact.Text)
	}
	return total
}

// Merge combines an existing fact set with additional facts, deduplicating
// by fact ID while preserving order: existing first, then new.
func Merge(existing, additional []Fact) []Fact {
	seen := make(map[string]bool, len(existing))
	merged := make([]Fact, 0, len(existing)+len(additional))
	for _, fact := range existing {
		if seen[fact.ID] {
			continue
		}
		seen[fact.ID] = true
		merged = append(merged, fact)
	}
	for _, fact := range additional {
		if seen[fact.ID] {
			continue
		}
		seen[fact.ID] = true
		merged = append(merged, fact)
	}
	return merged
}

// Query describes one retrieval request against the canon store.
type Query struct {
	// Keywords drive ranking and free-text matching.
	Keywords []string
	Types    []EntityType
	Tags     []string
	Era      string
	Region   string
	// ExcludeCollectionID drops facts from entities in the named bundle.
	ExcludeCollectionID string
}

func (q Query) storageQuery() storage.FactQuery {
	types := make([]string, 0, len(q.Types))
	for _, entityType := range q.Types {
		types = append(types, string(entityType))
	}
	return storage.FactQuery{
		EntityTypes:         types,
		Tags:                q.Tags,
		Era:                 q.Era,
		Region:              q.Region,
		ExcludeCollectionID: q.ExcludeCollectionID,
		Sort:                storage.SortByName,
	}
}
