package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashgrove/canonforge/internal/storage"
)

// AppendTelemetryEvent records one operational event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	severity := strings.TrimSpace(event.Severity)
	if severity == "" {
		severity = "INFO"
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_events (event_name, session_id, stage, chunk_index, severity, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		event.EventName,
		event.SessionID,
		event.Stage,
		event.ChunkIndex,
		severity,
		event.Message,
		toMillis(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
