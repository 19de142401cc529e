// Package stage defines the ordered stage lists for each deliverable the
// forge can produce. Definitions are static; a registry lookup returns the
// same list every time.
package stage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ashgrove/canonforge/internal/forge/pipeline"
)

// ErrUnknownDeliverable indicates a deliverable with no registered stages.
var ErrUnknownDeliverable = errors.New("unknown deliverable")

const (
	DeliverableCharacter = "character"
	DeliverableMonster   = "monster"
	DeliverableLocation  = "location"
)

// ForDeliverable returns the ordered stage list for a deliverable.
func ForDeliverable(deliverable string) ([]pipeline.Definition, error) {
	switch strings.ToLower(strings.TrimSpace(deliverable)) {
	case DeliverableCharacter:
		return characterStages(), nil
	case DeliverableMonster:
		return monsterStages(), nil
	case DeliverableLocation:
		return locationStages(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeliverable, deliverable)
	}
}

// Deliverables lists the registered deliverable names, sorted.
func Deliverables() []string {
	names := []string{DeliverableCharacter, DeliverableMonster, DeliverableLocation}
	sort.Strings(names)
	return names
}

// requestKeywords derives retrieval terms from the session request: the
// subject name plus any whitespace-separated words of the creative prompt.
func requestKeywords(pctx *pipeline.Context) []string {
	var keywords []string
	if name := strings.TrimSpace(pctx.Request.Name); name != "" {
		keywords = append(keywords, name)
	}
	keywords = append(keywords, strings.Fields(pctx.Request.Prompt)...)
	return keywords
}

// fieldKeywords reads a comma-separated keyword field from a prior stage.
func fieldKeywords(pctx *pipeline.Context, stageID, field string) []string {
	raw, ok := pctx.StringField(stageID, field)
	if !ok {
		return nil
	}
	var keywords []string
	for _, term := range strings.Split(raw, ",") {
		if term = strings.TrimSpace(term); term != "" {
			keywords = append(keywords, term)
		}
	}
	return keywords
}

const outputContract = `Respond with a single JSON object and nothing else.
Surface uncertainty instead of inventing established lore:
- "open_questions": array of {"question", "options"} for creative calls the user should make.
- "conflicts": array of {"existing_claim", "new_claim", "severity"} where your output contradicts a provided canon fact.
- "issues": array of {"description", "severity"} for internal consistency problems you could not resolve. Severity is "critical", "moderate", or "minor".`

func characterStages() []pipeline.Definition {
	return []pipeline.Definition{
		{
			ID:   "concept",
			Name: "Concept",
			Instruction: `You are building a character for a collaborative campaign setting.
Produce the core concept: "name", "archetype", "summary" (2-3 sentences), and
"retrieval_hints" (comma-separated terms naming the people, places, and factions
this character touches).
` + outputContract,
			Required:      []string{"name", "archetype", "summary"},
			ContextFields: []string{"name", "archetype", "summary"},
			Keywords:      requestKeywords,
		},
		{
			ID:   "background",
			Name: "Background",
			Instruction: `Write the character's history: "background" (their past, woven into the
provided canon), "motivation", and "secrets" (array of strings).
` + outputContract,
			Required:      []string{"background", "motivation"},
			ContextFields: []string{"background", "motivation"},
			ContextStages: []string{"concept"},
			Keywords: func(pctx *pipeline.Context) []string {
				return fieldKeywords(pctx, "concept", "retrieval_hints")
			},
		},
		{
			ID:   "relationships",
			Name: "Relationships",
			Instruction: `Detail the character's ties to the world: "relationships", an array of
{"name", "relation", "description"} linking them to established people and
factions where the canon supports it.
` + outputContract,
			Required:      []string{"relationships"},
			ContextFields: []string{"relationships"},
			ContextStages: []string{"concept", "background"},
			Keywords: func(pctx *pipeline.Context) []string {
				return fieldKeywords(pctx, "concept", "retrieval_hints")
			},
			// Relationship work reaches beyond the concept's own canon;
			// extra facts join the carried set rather than replacing it.
			AdditiveFacts: true,
		},
	}
}

func monsterStages() []pipeline.Definition {
	return []pipeline.Definition{
		{
			ID:   "concept",
			Name: "Concept",
			Instruction: `You are designing a creature for a campaign bestiary.
Produce "name", "creature_type", "summary" (what it is and where it lurks), and
"retrieval_hints" (comma-separated terms for the regions and lore it touches).
` + outputContract,
			Required:      []string{"name", "creature_type", "summary"},
			ContextFields: []string{"name", "creature_type", "summary"},
			Keywords:      requestKeywords,
		},
		{
			ID:   "abilities",
			Name: "Abilities",
			Instruction: `Define how the creature fights and defends itself: "abilities", an array of
{"name", "description"}, plus "weakness" (a single exploitable flaw).
` + outputContract,
			Required:      []string{"abilities", "weakness"},
			ContextFields: []string{"abilities", "weakness"},
			ContextStages: []string{"concept"},
		},
		{
			ID:   "lore",
			Name: "Lore",
			Instruction: `Write the creature's place in the world: "lore" (origin and rumors, consistent
with the provided canon) and "hooks" (array of adventure hooks involving it).
` + outputContract,
			Required:      []string{"lore"},
			ContextFields: []string{"lore", "hooks"},
			ContextStages: []string{"concept", "abilities"},
			Keywords: func(pctx *pipeline.Context) []string {
				return fieldKeywords(pctx, "concept", "retrieval_hints")
			},
		},
	}
}

func locationStages() []pipeline.Definition {
	return []pipeline.Definition{
		{
			ID:   "overview",
			Name: "Overview",
			Instruction: `You are mapping a settlement for a campaign setting.
Produce "name", "summary", "complexity" ("simple", "moderate", or "complex"),
"district_count" (how many districts it has, as a number), and
"retrieval_hints" (comma-separated terms for connected places and factions).
` + outputContract,
			Required:      []string{"name", "summary", "complexity"},
			ContextFields: []string{"name", "summary", "complexity", "district_count"},
			Keywords:      requestKeywords,
		},
		{
			ID:   "districts",
			Name: "Districts",
			Instruction: `Generate the settlement's districts one part at a time. Each response is one
district: "name", "character" (what it looks and feels like), "landmark", and
"hook" (something happening there). Stay distinct from the districts already
generated.
` + outputContract,
			Required:      []string{"name", "character"},
			ContextFields: []string{"name", "character", "landmark"},
			ContextStages: []string{"overview"},
			Keywords: func(pctx *pipeline.Context) []string {
				return fieldKeywords(pctx, "overview", "retrieval_hints")
			},
			Chunking: &pipeline.ChunkSpec{
				SourceStage:   "overview",
				QuantityField: "district_count",
				ScaleField:    "complexity",
				Label:         "district",
			},
		},
		{
			ID:   "figures",
			Name: "Notable Figures",
			Instruction: `Name the people who matter here: "figures", an array of
{"name", "role", "district", "description"} grounded in the districts above and
the provided canon.
` + outputContract,
			Required:      []string{"figures"},
			ContextFields: []string{"figures"},
			ContextStages: []string{"overview", "districts"},
			Keywords: func(pctx *pipeline.Context) []string {
				return fieldKeywords(pctx, "overview", "retrieval_hints")
			},
			AdditiveFacts: true,
		},
	}
}
