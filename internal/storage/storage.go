package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a requested state transition is invalid.
var ErrConflict = errors.New("record conflict")

// EntityRecord stores a persisted canon entity.
type EntityRecord struct {
	ID         string
	Name       string
	EntityType string
	Aliases    []string
	Tags       []string
	Era        string
	Region     string
	Summary    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FactRecord stores one atomic canonical claim with source attribution.
type FactRecord struct {
	ID            string
	EntityID      string
	EntityName    string
	EntityType    string
	EntityAliases []string
	Text          string
	Source        string
	Tags          []string
	Era           string
	Region        string
	CreatedAt     time.Time
}

// CollectionRecord stores a named bundle of canon entities.
type CollectionRecord struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	MemberIDs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortOrder selects a deterministic ordering for query results.
type SortOrder string

const (
	// SortByName orders results by entity name, then record ID.
	SortByName SortOrder = "name"
	// SortByCreatedAt orders results by creation time, then record ID.
	SortByCreatedAt SortOrder = "created_at"
)

// FactQuery filters persisted facts. Zero-value fields are ignored.
type FactQuery struct {
	EntityTypes []string
	Tags        []string
	Era         string
	Region      string
	// Text matches case-insensitively against fact text, entity name,
	// entity aliases, and tags.
	Text string
	// ExcludeCollectionID drops facts whose entity belongs to the collection.
	ExcludeCollectionID string
	Sort                SortOrder
	Limit               int
}

// SessionRecord stores a generation session for resumability.
type SessionRecord struct {
	ID          string
	Deliverable string
	State       string
	RequestJSON string
	// ContextJSON snapshots the pipeline context, including completed stage
	// results and chunk progress.
	ContextJSON string
	StageIndex  int
	ChunkIndex  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ArtifactRecord stores an approved, merged generation artifact.
type ArtifactRecord struct {
	ID          string
	SessionID   string
	Deliverable string
	ContentJSON string
	// OutstandingWork marks artifacts approved with unapplied will_fix issues.
	OutstandingWork bool
	CreatedAt       time.Time
}

// TelemetryEvent records one operational event for a generation session.
type TelemetryEvent struct {
	EventName  string
	SessionID  string
	Stage      string
	ChunkIndex int
	Severity   string
	Message    string
	Timestamp  time.Time
}

// EntityStore persists canon entities. Deleting an entity cascades to its facts.
type EntityStore interface {
	PutEntity(ctx context.Context, record EntityRecord) error
	GetEntity(ctx context.Context, entityID string) (EntityRecord, error)
	ListEntities(ctx context.Context, entityType string) ([]EntityRecord, error)
	DeleteEntity(ctx context.Context, entityID string) error
}

// FactStore persists canon facts.
type FactStore interface {
	PutFact(ctx context.Context, record FactRecord) error
	FactsByEntity(ctx context.Context, entityID string) ([]FactRecord, error)
	QueryFacts(ctx context.Context, query FactQuery) ([]FactRecord, error)
	DeleteFact(ctx context.Context, factID string) error
}

// CollectionStore persists entity bundles.
type CollectionStore interface {
	// CreateCollection stores the record and populates membership from
	// entities whose tags intersect the collection tags at creation time.
	CreateCollection(ctx context.Context, record CollectionRecord) (CollectionRecord, error)
	GetCollection(ctx context.Context, collectionID string) (CollectionRecord, error)
	ListCollections(ctx context.Context) ([]CollectionRecord, error)
	// UpdateCollection replaces metadata and membership explicitly.
	UpdateCollection(ctx context.Context, record CollectionRecord) error
	// DeleteCollection removes the bundle without touching member entities.
	DeleteCollection(ctx context.Context, collectionID string) error
}

// SessionStore persists generation sessions and approved artifacts.
type SessionStore interface {
	PutSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	PutArtifact(ctx context.Context, record ArtifactRecord) error
	GetArtifact(ctx context.Context, artifactID string) (ArtifactRecord, error)
	ArtifactsBySession(ctx context.Context, sessionID string) ([]ArtifactRecord, error)
}

// TelemetryStore appends telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}

// Store aggregates every persistence contract the forge service consumes.
type Store interface {
	EntityStore
	FactStore
	CollectionStore
	SessionStore
	TelemetryStore
}
