package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashgrove/canonforge/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "canon.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedEntity(t *testing.T, store *Store, id, name, entityType string, tags []string) {
	t.Helper()
	now := time.Now().UTC()
	err := store.PutEntity(context.Background(), storage.EntityRecord{
		ID:         id,
		Name:       name,
		EntityType: entityType,
		Tags:       tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("put entity %s: %v", id, err)
	}
}

func seedFact(t *testing.T, store *Store, id, entityID, text string, tags []string) {
	t.Helper()
	err := store.PutFact(context.Background(), storage.FactRecord{
		ID:        id,
		EntityID:  entityID,
		Text:      text,
		Source:    "seeded",
		Tags:      tags,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("put fact %s: %v", id, err)
	}
}

func TestEntityRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seedEntity(t, store, "ent-1", "Mirefall Keep", "location", []string{"fortress", "north"})

	got, err := store.GetEntity(ctx, "ent-1")
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if got.Name != "Mirefall Keep" {
		t.Fatalf("name = %q, want Mirefall Keep", got.Name)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("tags = %v, want 2 entries", got.Tags)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	store := openStore(t)

	_, err := store.GetEntity(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEntityCascadesFacts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seedEntity(t, store, "ent-1", "Vessa", "character", nil)
	seedFact(t, store, "fact-1", "ent-1", "Vessa lost an eye at the siege of Dunmor.", nil)
	seedFact(t, store, "fact-2", "ent-1", "Vessa leads the Ashen Compact.", nil)

	if err := store.DeleteEntity(ctx, "ent-1"); err != nil {
		t.Fatalf("delete entity: %v", err)
	}

	facts, err := store.FactsByEntity(ctx, "ent-1")
	if err != nil {
		t.Fatalf("facts by entity: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected cascade delete, got %d facts", len(facts))
	}
}

func TestDeleteEntityCascadesAcrossPooledConnections(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seedEntity(t, store, "ent-1", "Vessa", "character", nil)
	seedFact(t, store, "fact-1", "ent-1", "Vessa lost an eye at the siege of Dunmor.", nil)

	// Drop the idle pool so the delete runs on a fresh connection, which
	// must still have foreign keys enabled.
	store.DB().SetMaxIdleConns(0)

	var enabled int
	if err := store.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d on fresh connection, want 1", enabled)
	}

	if err := store.DeleteEntity(ctx, "ent-1"); err != nil {
		t.Fatalf("delete entity: %v", err)
	}

	facts, err := store.FactsByEntity(ctx, "ent-1")
	if err != nil {
		t.Fatalf("facts by entity: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected cascade delete, got %d orphan facts", len(facts))
	}
}

func TestQueryFactsFilters(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seedEntity(t, store, "ent-1", "Vessa", "character", []string{"ashen-compact"})
	seedEntity(t, store, "ent-2", "Mirefall Keep", "location", []string{"fortress"})
	seedFact(t, store, "fact-1", "ent-1", "Vessa lost an eye at the siege of Dunmor.", []string{"siege"})
	seedFact(t, store, "fact-2", "ent-2", "Mirefall Keep guards the northern pass.", []string{"fortress"})

	tests := []struct {
		name  string
		query storage.FactQuery
		want  []string
	}{
		{
			name:  "by entity type",
			query: storage.FactQuery{EntityTypes: []string{"location"}},
			want:  []string{"fact-2"},
		},
		{
			name:  "by tag",
			query: storage.FactQuery{Tags: []string{"siege"}},
			want:  []string{"fact-1"},
		},
		{
			name:  "by free text against entity name",
			query: storage.FactQuery{Text: "Mirefall"},
			want:  []string{"fact-2"},
		},
		{
			name:  "unfiltered ordered by entity name",
			query: storage.FactQuery{},
			want:  []string{"fact-2", "fact-1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			facts, err := store.QueryFacts(ctx, tc.query)
			if err != nil {
				t.Fatalf("query facts: %v", err)
			}
			if len(facts) != len(tc.want) {
				t.Fatalf("got %d facts, want %d", len(facts), len(tc.want))
			}
			for i, id := range tc.want {
				if facts[i].ID != id {
					t.Fatalf("facts[%d].ID = %q, want %q", i, facts[i].ID, id)
				}
			}
		})
	}
}

func TestQueryFactsExcludeCollection(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedEntity(t, store, "ent-1", "Vessa", "character", []string{"ashen-compact"})
	seedEntity(t, store, "ent-2", "Korrin", "character", []string{"free-blades"})
	seedFact(t, store, "fact-1", "ent-1", "Vessa leads the Ashen Compact.", nil)
	seedFact(t, store, "fact-2", "ent-2", "Korrin deserted the Free Blades.", nil)

	created, err := store.CreateCollection(ctx, storage.CollectionRecord{
		ID:        "col-1",
		Name:      "Ashen Compact",
		Tags:      []string{"ashen-compact"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if len(created.MemberIDs) != 1 || created.MemberIDs[0] != "ent-1" {
		t.Fatalf("auto-populated members = %v, want [ent-1]", created.MemberIDs)
	}

	facts, err := store.QueryFacts(ctx, storage.FactQuery{ExcludeCollectionID: "col-1"})
	if err != nil {
		t.Fatalf("query facts: %v", err)
	}
	if len(facts) != 1 || facts[0].ID != "fact-2" {
		t.Fatalf("excluded query = %v, want only fact-2", facts)
	}
}

func TestUpdateCollectionReplacesMembership(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedEntity(t, store, "ent-1", "Vessa", "character", []string{"ashen-compact"})
	seedEntity(t, store, "ent-2", "Korrin", "character", nil)

	created, err := store.CreateCollection(ctx, storage.CollectionRecord{
		ID:        "col-1",
		Name:      "Ashen Compact",
		Tags:      []string{"ashen-compact"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	created.MemberIDs = []string{"ent-2"}
	created.UpdatedAt = now.Add(time.Minute)
	if err := store.UpdateCollection(ctx, created); err != nil {
		t.Fatalf("update collection: %v", err)
	}

	got, err := store.GetCollection(ctx, "col-1")
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if len(got.MemberIDs) != 1 || got.MemberIDs[0] != "ent-2" {
		t.Fatalf("members = %v, want [ent-2]", got.MemberIDs)
	}
}

func TestDeleteCollectionKeepsEntities(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedEntity(t, store, "ent-1", "Vessa", "character", []string{"ashen-compact"})
	if _, err := store.CreateCollection(ctx, storage.CollectionRecord{
		ID:        "col-1",
		Name:      "Ashen Compact",
		Tags:      []string{"ashen-compact"},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	if err := store.DeleteCollection(ctx, "col-1"); err != nil {
		t.Fatalf("delete collection: %v", err)
	}
	if _, err := store.GetEntity(ctx, "ent-1"); err != nil {
		t.Fatalf("member entity should survive collection delete: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	record := storage.SessionRecord{
		ID:          "sess-1",
		Deliverable: "character",
		State:       "running",
		RequestJSON: `{"name":"Vessa"}`,
		ContextJSON: `{}`,
		StageIndex:  1,
		ChunkIndex:  3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("put session: %v", err)
	}

	record.State = "awaiting_review"
	record.StageIndex = 2
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("update session: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.State != "awaiting_review" || got.StageIndex != 2 || got.ChunkIndex != 3 {
		t.Fatalf("session = %+v", got)
	}
}

func TestArtifactOutstandingWork(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	err := store.PutArtifact(ctx, storage.ArtifactRecord{
		ID:              "art-1",
		SessionID:       "sess-1",
		Deliverable:     "monster",
		ContentJSON:     `{"name":"Gravewyrm"}`,
		OutstandingWork: true,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("put artifact: %v", err)
	}

	got, err := store.GetArtifact(ctx, "art-1")
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if !got.OutstandingWork {
		t.Fatal("expected outstanding work flag to persist")
	}
}

func TestAppendTelemetryEvent(t *testing.T) {
	store := openStore(t)

	err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{
		EventName:  "stage.completed",
		SessionID:  "sess-1",
		Stage:      "identity",
		ChunkIndex: 0,
		Message:    "stage identity completed",
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("append telemetry event: %v", err)
	}

	var count int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM telemetry_events").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}
}
