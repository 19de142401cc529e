package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ashgrove/canonforge/internal/storage"
)

// PutSession inserts or replaces a generation session snapshot.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.Deliverable) == "" {
		return fmt.Errorf("session deliverable is required")
	}
	if strings.TrimSpace(record.State) == "" {
		return fmt.Errorf("session state is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO forge_sessions (
	id, deliverable, state, request_json, context_json, stage_index, chunk_index, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	state = excluded.state,
	request_json = excluded.request_json,
	context_json = excluded.context_json,
	stage_index = excluded.stage_index,
	chunk_index = excluded.chunk_index,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.Deliverable,
		record.State,
		record.RequestJSON,
		record.ContextJSON,
		record.StageIndex,
		record.ChunkIndex,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession fetches a session snapshot by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, deliverable, state, request_json, context_json, stage_index, chunk_index, created_at, updated_at
FROM forge_sessions
WHERE id = ?
`, sessionID)

	var rec storage.SessionRecord
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&rec.ID,
		&rec.Deliverable,
		&rec.State,
		&rec.RequestJSON,
		&rec.ContextJSON,
		&rec.StageIndex,
		&rec.ChunkIndex,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// PutArtifact stores an approved artifact.
func (s *Store) PutArtifact(ctx context.Context, record storage.ArtifactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("artifact id is required")
	}
	if strings.TrimSpace(record.SessionID) == "" {
		return fmt.Errorf("artifact session id is required")
	}
	if strings.TrimSpace(record.ContentJSON) == "" {
		return fmt.Errorf("artifact content is required")
	}

	outstanding := 0
	if record.OutstandingWork {
		outstanding = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO forge_artifacts (id, session_id, deliverable, content_json, outstanding_work, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content_json = excluded.content_json,
	outstanding_work = excluded.outstanding_work
`,
		record.ID,
		record.SessionID,
		record.Deliverable,
		record.ContentJSON,
		outstanding,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// GetArtifact fetches one approved artifact by ID.
func (s *Store) GetArtifact(ctx context.Context, artifactID string) (storage.ArtifactRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ArtifactRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ArtifactRecord{}, fmt.Errorf("storage is not configured")
	}
	artifactID = strings.TrimSpace(artifactID)
	if artifactID == "" {
		return storage.ArtifactRecord{}, fmt.Errorf("artifact id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, session_id, deliverable, content_json, outstanding_work, created_at
FROM forge_artifacts
WHERE id = ?
`, artifactID)
	return scanArtifact(row)
}

// ArtifactsBySession lists artifacts produced by one session, oldest first.
func (s *Store) ArtifactsBySession(ctx context.Context, sessionID string) ([]storage.ArtifactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, deliverable, content_json, outstanding_work, created_at
FROM forge_artifacts
WHERE session_id = ?
ORDER BY created_at, id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("artifacts by session: %w", err)
	}
	defer rows.Close()

	var records []storage.ArtifactRecord
	for rows.Next() {
		record, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("artifact rows: %w", err)
	}
	return records, nil
}

func scanArtifact(row rowScanner) (storage.ArtifactRecord, error) {
	var rec storage.ArtifactRecord
	var outstanding int
	var createdAt int64
	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Deliverable,
		&rec.ContentJSON,
		&outstanding,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ArtifactRecord{}, storage.ErrNotFound
		}
		return storage.ArtifactRecord{}, fmt.Errorf("scan artifact: %w", err)
	}
	rec.OutstandingWork = outstanding != 0
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}
