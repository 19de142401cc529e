package domain

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EntityPutInput represents the MCP tool input for creating or updating a
// canon entity.
type EntityPutInput struct {
	ID         string   `json:"id,omitempty" jsonschema:"entity identifier; omit to create"`
	Name       string   `json:"name" jsonschema:"entity name"`
	EntityType string   `json:"entity_type" jsonschema:"entity type (character, location, faction, item, event)"`
	Aliases    []string `json:"aliases,omitempty" jsonschema:"alternate names"`
	Tags       []string `json:"tags,omitempty" jsonschema:"classification tags"`
	Era        string   `json:"era,omitempty" jsonschema:"timeline era"`
	Region     string   `json:"region,omitempty" jsonschema:"world region"`
	Summary    string   `json:"summary,omitempty" jsonschema:"short description"`
}

// EntityRefInput represents the MCP tool input naming an entity.
type EntityRefInput struct {
	EntityID string `json:"entity_id" jsonschema:"entity identifier"`
}

// EntityListInput represents the MCP tool input for listing entities.
type EntityListInput struct {
	EntityType string `json:"entity_type,omitempty" jsonschema:"optional type filter"`
}

// EntityResult represents the MCP tool output for one entity.
type EntityResult struct {
	ID         string   `json:"id" jsonschema:"entity identifier"`
	Name       string   `json:"name" jsonschema:"entity name"`
	EntityType string   `json:"entity_type" jsonschema:"entity type"`
	Aliases    []string `json:"aliases,omitempty" jsonschema:"alternate names"`
	Tags       []string `json:"tags,omitempty" jsonschema:"classification tags"`
	Era        string   `json:"era,omitempty" jsonschema:"timeline era"`
	Region     string   `json:"region,omitempty" jsonschema:"world region"`
	Summary    string   `json:"summary,omitempty" jsonschema:"short description"`
	FactCount  int      `json:"fact_count" jsonschema:"number of facts attached"`
}

// EntityListResult represents the MCP tool output for entity listings.
type EntityListResult struct {
	Entities []EntityResult `json:"entities" jsonschema:"matching entities"`
}

// EntityDeleteResult represents the MCP tool output for entity deletion.
type EntityDeleteResult struct {
	ID string `json:"id" jsonschema:"deleted entity identifier"`
}

// FactAddInput represents the MCP tool input for recording a fact.
type FactAddInput struct {
	EntityID string   `json:"entity_id" jsonschema:"entity the fact belongs to"`
	Text     string   `json:"text" jsonschema:"the canonical claim"`
	Source   string   `json:"source,omitempty" jsonschema:"where the claim comes from"`
	Tags     []string `json:"tags,omitempty" jsonschema:"classification tags"`
	Era      string   `json:"era,omitempty" jsonschema:"timeline era"`
	Region   string   `json:"region,omitempty" jsonschema:"world region"`
}

// FactRefInput represents the MCP tool input naming a fact.
type FactRefInput struct {
	FactID string `json:"fact_id" jsonschema:"fact identifier"`
}

// FactResult represents the MCP tool output for one fact.
type FactResult struct {
	ID         string   `json:"id" jsonschema:"fact identifier"`
	EntityID   string   `json:"entity_id" jsonschema:"owning entity identifier"`
	EntityName string   `json:"entity_name" jsonschema:"owning entity name"`
	Text       string   `json:"text" jsonschema:"the canonical claim"`
	Source     string   `json:"source,omitempty" jsonschema:"attribution"`
	Tags       []string `json:"tags,omitempty" jsonschema:"classification tags"`
	Era        string   `json:"era,omitempty" jsonschema:"timeline era"`
	Region     string   `json:"region,omitempty" jsonschema:"world region"`
}

// CanonSearchInput represents the MCP tool input for querying facts.
type CanonSearchInput struct {
	Keywords          []string `json:"keywords,omitempty" jsonschema:"ranking and filter terms"`
	EntityTypes       []string `json:"entity_types,omitempty" jsonschema:"entity type filter"`
	Tags              []string `json:"tags,omitempty" jsonschema:"tag filter"`
	Era               string   `json:"era,omitempty" jsonschema:"era filter"`
	Region            string   `json:"region,omitempty" jsonschema:"region filter"`
	ExcludeCollection string   `json:"exclude_collection,omitempty" jsonschema:"collection whose members are excluded"`
	Limit             int      `json:"limit,omitempty" jsonschema:"maximum results"`
}

// CanonSearchResult represents the MCP tool output for a fact query.
type CanonSearchResult struct {
	Facts []FactResult `json:"facts" jsonschema:"matching facts in ranked order"`
}

// CollectionPutInput represents the MCP tool input for creating or updating
// a collection.
type CollectionPutInput struct {
	ID          string   `json:"id,omitempty" jsonschema:"collection identifier; omit to create"`
	Name        string   `json:"name" jsonschema:"collection name"`
	Description string   `json:"description,omitempty" jsonschema:"what the bundle groups"`
	Tags        []string `json:"tags,omitempty" jsonschema:"tags; on create, entities sharing a tag join automatically"`
	MemberIDs   []string `json:"member_ids,omitempty" jsonschema:"explicit member entity identifiers"`
}

// CollectionRefInput represents the MCP tool input naming a collection.
type CollectionRefInput struct {
	CollectionID string `json:"collection_id" jsonschema:"collection identifier"`
}

// CollectionResult represents the MCP tool output for one collection.
type CollectionResult struct {
	ID          string   `json:"id" jsonschema:"collection identifier"`
	Name        string   `json:"name" jsonschema:"collection name"`
	Description string   `json:"description,omitempty" jsonschema:"what the bundle groups"`
	Tags        []string `json:"tags,omitempty" jsonschema:"collection tags"`
	MemberIDs   []string `json:"member_ids,omitempty" jsonschema:"member entity identifiers"`
}

// CollectionListResult represents the MCP tool output for collection
// listings.
type CollectionListResult struct {
	Collections []CollectionResult `json:"collections" jsonschema:"all collections"`
}

// EntityPutTool defines the MCP tool schema for entity upserts.
func EntityPutTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "entity_put",
		Description: "Creates or updates a canon entity",
	}
}

// EntityGetTool defines the MCP tool schema for fetching an entity.
func EntityGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "entity_get",
		Description: "Fetches a canon entity with its fact count",
	}
}

// EntityListTool defines the MCP tool schema for listing entities.
func EntityListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "entity_list",
		Description: "Lists canon entities, optionally filtered by type",
	}
}

// EntityDeleteTool defines the MCP tool schema for deleting an entity.
func EntityDeleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "entity_delete",
		Description: "Deletes a canon entity and all of its facts",
	}
}

// FactAddTool defines the MCP tool schema for recording a fact.
func FactAddTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "fact_add",
		Description: "Records an atomic canonical claim against an entity",
	}
}

// FactDeleteTool defines the MCP tool schema for deleting a fact.
func FactDeleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "fact_delete",
		Description: "Deletes a single canon fact",
	}
}

// CanonSearchTool defines the MCP tool schema for querying facts.
func CanonSearchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "canon_search",
		Description: "Queries canon facts with keyword ranking and metadata filters",
	}
}

// CollectionCreateTool defines the MCP tool schema for creating a
// collection.
func CollectionCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "collection_create",
		Description: "Creates an entity bundle; entities sharing a collection tag join automatically",
	}
}

// CollectionUpdateTool defines the MCP tool schema for updating a
// collection.
func CollectionUpdateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "collection_update",
		Description: "Replaces a collection's metadata and membership",
	}
}

// CollectionListTool defines the MCP tool schema for listing collections.
func CollectionListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "collection_list",
		Description: "Lists all entity bundles",
	}
}

// CollectionDeleteTool defines the MCP tool schema for deleting a
// collection.
func CollectionDeleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "collection_delete",
		Description: "Deletes an entity bundle without touching its member entities",
	}
}
