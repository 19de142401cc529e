package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ashgrove/canonforge/internal/storage"
)

// CreateCollection stores the bundle and auto-populates membership from
// entities whose tags intersect the collection tags at creation time.
func (s *Store) CreateCollection(ctx context.Context, record storage.CollectionRecord) (storage.CollectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CollectionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CollectionRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return storage.CollectionRecord{}, fmt.Errorf("collection id is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return storage.CollectionRecord{}, fmt.Errorf("collection name is required")
	}

	tags, err := encodeStrings(record.Tags)
	if err != nil {
		return storage.CollectionRecord{}, err
	}

	members, err := s.entityIDsByTags(ctx, record.Tags)
	if err != nil {
		return storage.CollectionRecord{}, err
	}
	record.MemberIDs = members

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.CollectionRecord{}, fmt.Errorf("begin create collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO canon_collections (id, name, description, tags, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Name,
		record.Description,
		tags,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	); err != nil {
		_ = tx.Rollback()
		return storage.CollectionRecord{}, fmt.Errorf("create collection: %w", err)
	}
	for _, entityID := range members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO canon_collection_members (collection_id, entity_id) VALUES (?, ?)",
			record.ID, entityID,
		); err != nil {
			_ = tx.Rollback()
			return storage.CollectionRecord{}, fmt.Errorf("populate collection member: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storage.CollectionRecord{}, fmt.Errorf("commit create collection: %w", err)
	}
	return record, nil
}

// GetCollection fetches a collection and its membership.
func (s *Store) GetCollection(ctx context.Context, collectionID string) (storage.CollectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CollectionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CollectionRecord{}, fmt.Errorf("storage is not configured")
	}
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		return storage.CollectionRecord{}, fmt.Errorf("collection id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, description, tags, created_at, updated_at
FROM canon_collections
WHERE id = ?
`, collectionID)

	var rec storage.CollectionRecord
	var tags string
	var createdAt int64
	var updatedAt int64
	err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &tags, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CollectionRecord{}, storage.ErrNotFound
		}
		return storage.CollectionRecord{}, fmt.Errorf("scan collection: %w", err)
	}
	rec.Tags, err = decodeStrings(tags)
	if err != nil {
		return storage.CollectionRecord{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)

	rec.MemberIDs, err = s.collectionMembers(ctx, collectionID)
	if err != nil {
		return storage.CollectionRecord{}, err
	}
	return rec, nil
}

// ListCollections lists every collection with membership, ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]storage.CollectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id FROM canon_collections ORDER BY name, id
`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan collection id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("collection rows: %w", err)
	}
	rows.Close()

	var records []storage.CollectionRecord
	for _, id := range ids {
		record, err := s.GetCollection(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// UpdateCollection replaces collection metadata and membership explicitly.
// Auto-population does not re-run on update.
func (s *Store) UpdateCollection(ctx context.Context, record storage.CollectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("collection id is required")
	}

	tags, err := encodeStrings(record.Tags)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update collection: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
UPDATE canon_collections
SET name = ?, description = ?, tags = ?, updated_at = ?
WHERE id = ?
`,
		record.Name,
		record.Description,
		tags,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update collection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update collection rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM canon_collection_members WHERE collection_id = ?", record.ID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear collection members: %w", err)
	}
	for _, entityID := range record.MemberIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO canon_collection_members (collection_id, entity_id) VALUES (?, ?)",
			record.ID, entityID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("replace collection member: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update collection: %w", err)
	}
	return nil
}

// DeleteCollection removes the bundle; member entities are untouched.
func (s *Store) DeleteCollection(ctx context.Context, collectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		return fmt.Errorf("collection id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM canon_collections WHERE id = ?", collectionID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete collection rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) collectionMembers(ctx context.Context, collectionID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT entity_id FROM canon_collection_members WHERE collection_id = ? ORDER BY entity_id
`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("collection members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var entityID string
		if err := rows.Scan(&entityID); err != nil {
			return nil, fmt.Errorf("scan collection member: %w", err)
		}
		members = append(members, entityID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collection member rows: %w", err)
	}
	return members, nil
}

func (s *Store) entityIDsByTags(ctx context.Context, tags []string) ([]string, error) {
	unique := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		rows, err := s.sqlDB.QueryContext(ctx,
			"SELECT id FROM canon_entities WHERE tags LIKE ?", "%\""+tag+"\"%",
		)
		if err != nil {
			return nil, fmt.Errorf("entities by tag: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan entity id: %w", err)
			}
			unique[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("entities by tag rows: %w", err)
		}
		rows.Close()
	}

	members := make([]string, 0, len(unique))
	for id := range unique {
		members = append(members, id)
	}
	sort.Strings(members)
	return members, nil
}
