package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/platform/id"
	"github.com/ashgrove/canonforge/internal/storage"
)

// EntityPutHandler creates or updates a canon entity.
func EntityPutHandler(store storage.Store) mcp.ToolHandlerFor[EntityPutInput, EntityResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntityPutInput) (*mcp.CallToolResult, EntityResult, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, EntityResult{}, fmt.Errorf("name is required")
		}
		entityType := strings.ToLower(strings.TrimSpace(input.EntityType))
		if entityType == "" {
			return nil, EntityResult{}, fmt.Errorf("entity_type is required")
		}

		now := time.Now().UTC()
		record := storage.EntityRecord{
			ID:         strings.TrimSpace(input.ID),
			Name:       name,
			EntityType: entityType,
			Aliases:    input.Aliases,
			Tags:       input.Tags,
			Era:        strings.TrimSpace(input.Era),
			Region:     strings.TrimSpace(input.Region),
			Summary:    input.Summary,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if record.ID == "" {
			entityID, err := id.NewID()
			if err != nil {
				return nil, EntityResult{}, fmt.Errorf("generate entity id: %w", err)
			}
			record.ID = entityID
		} else if existing, err := store.GetEntity(ctx, record.ID); err == nil {
			record.CreatedAt = existing.CreatedAt
		}

		if err := store.PutEntity(ctx, record); err != nil {
			return nil, EntityResult{}, fmt.Errorf("entity put failed: %w", err)
		}
		return nil, entityResult(record, 0), nil
	}
}

// EntityGetHandler fetches one entity with its fact count.
func EntityGetHandler(store storage.Store) mcp.ToolHandlerFor[EntityRefInput, EntityResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntityRefInput) (*mcp.CallToolResult, EntityResult, error) {
		record, err := store.GetEntity(ctx, input.EntityID)
		if err != nil {
			return nil, EntityResult{}, fmt.Errorf("entity get failed: %w", err)
		}
		facts, err := store.FactsByEntity(ctx, input.EntityID)
		if err != nil {
			return nil, EntityResult{}, fmt.Errorf("entity get failed: %w", err)
		}
		return nil, entityResult(record, len(facts)), nil
	}
}

// EntityListHandler lists entities, optionally filtered by type.
func EntityListHandler(store storage.Store) mcp.ToolHandlerFor[EntityListInput, EntityListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntityListInput) (*mcp.CallToolResult, EntityListResult, error) {
		records, err := store.ListEntities(ctx, strings.ToLower(strings.TrimSpace(input.EntityType)))
		if err != nil {
			return nil, EntityListResult{}, fmt.Errorf("entity list failed: %w", err)
		}
		result := EntityListResult{Entities: make([]EntityResult, 0, len(records))}
		for _, record := range records {
			result.Entities = append(result.Entities, entityResult(record, 0))
		}
		return nil, result, nil
	}
}

// EntityDeleteHandler deletes an entity; its facts cascade away with it.
func EntityDeleteHandler(store storage.Store) mcp.ToolHandlerFor[EntityRefInput, EntityDeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntityRefInput) (*mcp.CallToolResult, EntityDeleteResult, error) {
		if err := store.DeleteEntity(ctx, input.EntityID); err != nil {
			return nil, EntityDeleteResult{}, fmt.Errorf("entity delete failed: %w", err)
		}
		return nil, EntityDeleteResult{ID: input.EntityID}, nil
	}
}

// FactAddHandler records one canonical claim against an entity.
func FactAddHandler(store storage.Store) mcp.ToolHandlerFor[FactAddInput, FactResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FactAddInput) (*mcp.CallToolResult, FactResult, error) {
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return nil, FactResult{}, fmt.Errorf("text is required")
		}
		entity, err := store.GetEntity(ctx, strings.TrimSpace(input.EntityID))
		if err != nil {
			return nil, FactResult{}, fmt.Errorf("fact add failed: %w", err)
		}

		factID, err := id.NewID()
		if err != nil {
			return nil, FactResult{}, fmt.Errorf("generate fact id: %w", err)
		}
		record := storage.FactRecord{
			ID:        factID,
			EntityID:  entity.ID,
			Text:      text,
			Source:    strings.TrimSpace(input.Source),
			Tags:      input.Tags,
			Era:       strings.TrimSpace(input.Era),
			Region:    strings.TrimSpace(input.Region),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.PutFact(ctx, record); err != nil {
			return nil, FactResult{}, fmt.Errorf("fact add failed: %w", err)
		}

		record.EntityName = entity.Name
		record.EntityType = entity.EntityType
		return nil, factResult(canon.FromRecord(record)), nil
	}
}

// FactDeleteHandler deletes a single fact.
func FactDeleteHandler(store storage.Store) mcp.ToolHandlerFor[FactRefInput, EntityDeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FactRefInput) (*mcp.CallToolResult, EntityDeleteResult, error) {
		if err := store.DeleteFact(ctx, input.FactID); err != nil {
			return nil, EntityDeleteResult{}, fmt.Errorf("fact delete failed: %w", err)
		}
		return nil, EntityDeleteResult{ID: input.FactID}, nil
	}
}

// CanonSearchHandler queries facts and returns them in ranked order.
func CanonSearchHandler(store storage.Store) mcp.ToolHandlerFor[CanonSearchInput, CanonSearchResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CanonSearchInput) (*mcp.CallToolResult, CanonSearchResult, error) {
		query := storage.FactQuery{
			EntityTypes:         input.EntityTypes,
			Tags:                input.Tags,
			Era:                 strings.TrimSpace(input.Era),
			Region:              strings.TrimSpace(input.Region),
			ExcludeCollectionID: strings.TrimSpace(input.ExcludeCollection),
		}
		records, err := store.QueryFacts(ctx, query)
		if err != nil {
			return nil, CanonSearchResult{}, fmt.Errorf("canon search failed: %w", err)
		}

		facts := canon.Rank(canon.FromRecords(records), input.Keywords)
		if input.Limit > 0 && len(facts) > input.Limit {
			facts = facts[:input.Limit]
		}
		result := CanonSearchResult{Facts: make([]FactResult, 0, len(facts))}
		for _, fact := range facts {
			result.Facts = append(result.Facts, factResult(fact))
		}
		return nil, result, nil
	}
}

// CollectionCreateHandler creates an entity bundle.
func CollectionCreateHandler(store storage.Store) mcp.ToolHandlerFor[CollectionPutInput, CollectionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CollectionPutInput) (*mcp.CallToolResult, CollectionResult, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, CollectionResult{}, fmt.Errorf("name is required")
		}
		collectionID, err := id.NewID()
		if err != nil {
			return nil, CollectionResult{}, fmt.Errorf("generate collection id: %w", err)
		}

		now := time.Now().UTC()
		created, err := store.CreateCollection(ctx, storage.CollectionRecord{
			ID:          collectionID,
			Name:        name,
			Description: input.Description,
			Tags:        input.Tags,
			MemberIDs:   input.MemberIDs,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, CollectionResult{}, fmt.Errorf("collection create failed: %w", err)
		}
		return nil, collectionResult(created), nil
	}
}

// CollectionUpdateHandler replaces a collection's metadata and membership.
func CollectionUpdateHandler(store storage.Store) mcp.ToolHandlerFor[CollectionPutInput, CollectionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CollectionPutInput) (*mcp.CallToolResult, CollectionResult, error) {
		collectionID := strings.TrimSpace(input.ID)
		if collectionID == "" {
			return nil, CollectionResult{}, fmt.Errorf("id is required")
		}
		existing, err := store.GetCollection(ctx, collectionID)
		if err != nil {
			return nil, CollectionResult{}, fmt.Errorf("collection update failed: %w", err)
		}

		record := storage.CollectionRecord{
			ID:          collectionID,
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
			Tags:        input.Tags,
			MemberIDs:   input.MemberIDs,
			CreatedAt:   existing.CreatedAt,
			UpdatedAt:   time.Now().UTC(),
		}
		if record.Name == "" {
			record.Name = existing.Name
		}
		if err := store.UpdateCollection(ctx, record); err != nil {
			return nil, CollectionResult{}, fmt.Errorf("collection update failed: %w", err)
		}
		return nil, collectionResult(record), nil
	}
}

// CollectionListHandler lists all entity bundles.
func CollectionListHandler(store storage.Store) mcp.ToolHandlerFor[struct{}, CollectionListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, CollectionListResult, error) {
		records, err := store.ListCollections(ctx)
		if err != nil {
			return nil, CollectionListResult{}, fmt.Errorf("collection list failed: %w", err)
		}
		result := CollectionListResult{Collections: make([]CollectionResult, 0, len(records))}
		for _, record := range records {
			result.Collections = append(result.Collections, collectionResult(record))
		}
		return nil, result, nil
	}
}

// CollectionDeleteHandler removes a bundle without touching its members.
func CollectionDeleteHandler(store storage.Store) mcp.ToolHandlerFor[CollectionRefInput, EntityDeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CollectionRefInput) (*mcp.CallToolResult, EntityDeleteResult, error) {
		if err := store.DeleteCollection(ctx, input.CollectionID); err != nil {
			return nil, EntityDeleteResult{}, fmt.Errorf("collection delete failed: %w", err)
		}
		return nil, EntityDeleteResult{ID: input.CollectionID}, nil
	}
}

func entityResult(record storage.EntityRecord, factCount int) EntityResult {
	return EntityResult{
		ID:         record.ID,
		Name:       record.Name,
		EntityType: record.EntityType,
		Aliases:    record.Aliases,
		Tags:       record.Tags,
		Era:        record.Era,
		Region:     record.Region,
		Summary:    record.Summary,
		FactCount:  factCount,
	}
}

func factResult(fact canon.Fact) FactResult {
	return FactResult{
		ID:         fact.ID,
		EntityID:   fact.EntityID,
		EntityName: fact.EntityName,
		Text:       fact.Text,
		Source:     fact.Source,
		Tags:       fact.Tags,
		Era:        fact.Era,
		Region:     fact.Region,
	}
}

func collectionResult(record storage.CollectionRecord) CollectionResult {
	return CollectionResult{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		Tags:        record.Tags,
		MemberIDs:   record.MemberIDs,
	}
}
