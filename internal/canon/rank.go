package canon

import (
	"sort"
	"strings"
)

// Match classes in descending priority. Ties inside a class break on match
// count, then entity name, then fact ID, so ranking is fully deterministic.
const (
	matchNone = iota
	matchText
	matchTypeRegion
	matchAlias
	matchName
	matchTag
)

// Rank orders facts by keyword relevance: tag match beats name match beats
// alias/ID match beats type/region match beats free-text body match. With no
// keywords the input order is preserved.
func Rank(facts []Fact, keywords []string) []Fact {
	normalized := normalizeKeywords(keywords)
	ranked := make([]Fact, len(facts))
	copy(ranked, facts)
	if len(normalized) == 0 {
		return ranked
	}

	type scored struct {
		class int
		hits  int
	}
	scores := make(map[string]scored, len(ranked))
	for _, fact := range ranked {
		best := matchNone
		hits := 0
		for _, keyword := range normalized {
			class := classify(fact, keyword)
			if class == matchNone {
				continue
			}
			hits++
			if class > best {
				best = class
			}
		}
		scores[fact.ID] = scored{class: best, hits: hits}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := scores[ranked[i].ID], scores[ranked[j].ID]
		if a.class != b.class {
			return a.class > b.class
		}
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		if ranked[i].EntityName != ranked[j].EntityName {
			return ranked[i].EntityName < ranked[j].EntityName
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// MatchesKeyword reports whether the fact matches the keyword in any class.
func MatchesKeyword(fact Fact, keyword string) bool {
	return classify(fact, strings.ToLower(strings.TrimSpace(keyword))) != matchNone
}

func classify(fact Fact, keyword string) int {
	if keyword == "" {
		return matchNone
	}
	for _, tag := range fact.Tags {
		if strings.Contains(strings.ToLower(tag), keyword) {
			return matchTag
		}
	}
	if strings.Contains(strings.ToLower(fact.EntityName), keyword) {
		return matchName
	}
	for _, alias := range fact.EntityAliases {
		if strings.Contains(strings.ToLower(alias), keyword) {
			return matchAlias
		}
	}
	if strings.Contains(strings.ToLower(fact.EntityID), keyword) || strings.Contains(strings.ToLower(fact.ID), keyword) {
		return matchAlias
	}
	if strings.Contains(strings.ToLower(string(fact.EntityType)), keyword) ||
		strings.Contains(strings.ToLower(fact.Region), keyword) {
		return matchTypeRegion
	}
	if strings.Contains(strings.ToLower(fact.Text), keyword) {
		return matchText
	}
	return matchNone
}

func normalizeKeywords(keywords []string) []string {
	normalized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		normalized = append(normalized, keyword)
	}
	return normalized
}
