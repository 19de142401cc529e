package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ashgrove/canonforge/internal/storage"
)

// PutFact inserts or replaces one canonical fact. The referenced entity must
// already exist.
func (s *Store) PutFact(ctx context.Context, record storage.FactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("fact id is required")
	}
	if strings.TrimSpace(record.EntityID) == "" {
		return fmt.Errorf("fact entity id is required")
	}
	if strings.TrimSpace(record.Text) == "" {
		return fmt.Errorf("fact text is required")
	}

	tags, err := encodeStrings(record.Tags)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO canon_facts (
	id, entity_id, text, source, tags, era, region, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	entity_id = excluded.entity_id,
	text = excluded.text,
	source = excluded.source,
	tags = excluded.tags,
	era = excluded.era,
	region = excluded.region
`,
		record.ID,
		record.EntityID,
		record.Text,
		record.Source,
		tags,
		record.Era,
		record.Region,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put fact: %w", err)
	}
	return nil
}

// FactsByEntity lists every fact attached to one entity, ordered by ID.
func (s *Store) FactsByEntity(ctx context.Context, entityID string) ([]storage.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, factSelect+`
WHERE f.entity_id = ?
ORDER BY f.id
`, entityID)
	if err != nil {
		return nil, fmt.Errorf("facts by entity: %w", err)
	}
	defer rows.Close()
	return collectFacts(rows)
}

const factSelect = `
SELECT f.id, f.entity_id, e.name, e.entity_type, e.aliases, f.text, f.source, f.tags, f.era, f.region, f.created_at
FROM canon_facts f
JOIN canon_entities e ON e.id = f.entity_id
`

// QueryFacts filters persisted facts. Results are ordered deterministically
// so identical queries against an unchanged store return identical slices.
func (s *Store) QueryFacts(ctx context.Context, query storage.FactQuery) ([]storage.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var conditions []string
	var args []any

	if len(query.EntityTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(query.EntityTypes)), ", ")
		conditions = append(conditions, fmt.Sprintf("e.entity_type IN (%s)", placeholders))
		for _, entityType := range query.EntityTypes {
			args = append(args, entityType)
		}
	}
	for _, tag := range query.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		// Tags persist as JSON arrays; match the quoted element.
		conditions = append(conditions, "(f.tags LIKE ? OR e.tags LIKE ?)")
		quoted := "%\"" + tag + "\"%"
		args = append(args, quoted, quoted)
	}
	if era := strings.TrimSpace(query.Era); era != "" {
		conditions = append(conditions, "(f.era = ? OR e.era = ?)")
		args = append(args, era, era)
	}
	if region := strings.TrimSpace(query.Region); region != "" {
		conditions = append(conditions, "(f.region = ? OR e.region = ?)")
		args = append(args, region, region)
	}
	if text := strings.TrimSpace(query.Text); text != "" {
		conditions = append(conditions, "(f.text LIKE ? OR e.name LIKE ? OR e.aliases LIKE ? OR f.tags LIKE ? OR e.tags LIKE ?)")
		like := "%" + text + "%"
		args = append(args, like, like, like, like, like)
	}
	if collectionID := strings.TrimSpace(query.ExcludeCollectionID); collectionID != "" {
		conditions = append(conditions, "f.entity_id NOT IN (SELECT entity_id FROM canon_collection_members WHERE collection_id = ?)")
		args = append(args, collectionID)
	}

	sqlQuery := factSelect
	if len(conditions) > 0 {
		sqlQuery += "WHERE " + strings.Join(conditions, " AND ") + "\n"
	}
	switch query.Sort {
	case storage.SortByCreatedAt:
		sqlQuery += "ORDER BY f.created_at, f.id"
	default:
		sqlQuery += "ORDER BY e.name, f.id"
	}
	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf("\nLIMIT %d", query.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()
	return collectFacts(rows)
}

// DeleteFact removes one fact by ID.
func (s *Store) DeleteFact(ctx context.Context, factID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	factID = strings.TrimSpace(factID)
	if factID == "" {
		return fmt.Errorf("fact id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM canon_facts WHERE id = ?", factID)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fact rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func collectFacts(rows *sql.Rows) ([]storage.FactRecord, error) {
	var records []storage.FactRecord
	for rows.Next() {
		var rec storage.FactRecord
		var aliases string
		var tags string
		var createdAt int64
		err := rows.Scan(
			&rec.ID,
			&rec.EntityID,
			&rec.EntityName,
			&rec.EntityType,
			&aliases,
			&rec.Text,
			&rec.Source,
			&tags,
			&rec.Era,
			&rec.Region,
			&createdAt,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, storage.ErrNotFound
			}
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		rec.EntityAliases, err = decodeStrings(aliases)
		if err != nil {
			return nil, err
		}
		rec.Tags, err = decodeStrings(tags)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fact rows: %w", err)
	}
	return records, nil
}
