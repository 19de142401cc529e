package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ashgrove/canonforge/internal/storage"
)

// PutEntity inserts or replaces a canon entity.
func (s *Store) PutEntity(ctx context.Context, record storage.EntityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("entity name is required")
	}
	if strings.TrimSpace(record.EntityType) == "" {
		return fmt.Errorf("entity type is required")
	}

	aliases, err := encodeStrings(record.Aliases)
	if err != nil {
		return err
	}
	tags, err := encodeStrings(record.Tags)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO canon_entities (
	id, name, entity_type, aliases, tags, era, region, summary, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	entity_type = excluded.entity_type,
	aliases = excluded.aliases,
	tags = excluded.tags,
	era = excluded.era,
	region = excluded.region,
	summary = excluded.summary,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.Name,
		record.EntityType,
		aliases,
		tags,
		record.Era,
		record.Region,
		record.Summary,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	return nil
}

// GetEntity fetches a canon entity by ID.
func (s *Store) GetEntity(ctx context.Context, entityID string) (storage.EntityRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntityRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EntityRecord{}, fmt.Errorf("storage is not configured")
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return storage.EntityRecord{}, fmt.Errorf("entity id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, entity_type, aliases, tags, era, region, summary, created_at, updated_at
FROM canon_entities
WHERE id = ?
`, entityID)
	return scanEntity(row)
}

// ListEntities lists canon entities, optionally restricted to one type,
// ordered by name then ID.
func (s *Store) ListEntities(ctx context.Context, entityType string) ([]storage.EntityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT id, name, entity_type, aliases, tags, era, region, summary, created_at, updated_at
FROM canon_entities
`
	args := []any{}
	entityType = strings.TrimSpace(entityType)
	if entityType != "" {
		query += "WHERE entity_type = ?\n"
		args = append(args, entityType)
	}
	query += "ORDER BY name, id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var records []storage.EntityRecord
	for rows.Next() {
		record, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entities rows: %w", err)
	}
	return records, nil
}

// DeleteEntity removes an entity; its facts cascade through the schema.
func (s *Store) DeleteEntity(ctx context.Context, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM canon_entities WHERE id = ?", entityID)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (storage.EntityRecord, error) {
	var rec storage.EntityRecord
	var aliases string
	var tags string
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.EntityType,
		&aliases,
		&tags,
		&rec.Era,
		&rec.Region,
		&rec.Summary,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EntityRecord{}, storage.ErrNotFound
		}
		return storage.EntityRecord{}, fmt.Errorf("scan entity: %w", err)
	}
	rec.Aliases, err = decodeStrings(aliases)
	if err != nil {
		return storage.EntityRecord{}, err
	}
	rec.Tags, err = decodeStrings(tags)
	if err != nil {
		return storage.EntityRecord{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
