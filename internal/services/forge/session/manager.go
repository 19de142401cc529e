// Package session tracks in-flight generation sessions, isolating each one
// and snapshotting progress so an interrupted session can resume.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/forge/pipeline"
	"github.com/ashgrove/canonforge/internal/forge/reconcile"
	"github.com/ashgrove/canonforge/internal/forge/stage"
	"github.com/ashgrove/canonforge/internal/platform/id"
	"github.com/ashgrove/canonforge/internal/storage"
)

// ErrSessionNotFound indicates an unknown session identifier.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the active session set. Each session advances under its own
// lock, so concurrent sessions never share or interleave state.
type Manager struct {
	executor *pipeline.Executor
	store    storage.SessionStore

	mu      sync.Mutex
	entries map[string]*entry

	idGenerator func() (string, error)
	now         func() time.Time
}

type entry struct {
	mu   sync.Mutex
	sess *pipeline.Session
}

// NewManager creates a session manager. The store may be nil, which disables
// persistence and restore.
func NewManager(executor *pipeline.Executor, store storage.SessionStore) (*Manager, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	return &Manager{
		executor:    executor,
		store:       store,
		entries:     make(map[string]*entry),
		idGenerator: id.NewID,
		now:         time.Now,
	}, nil
}

// Start creates a session for the request's deliverable and advances it
// until it completes or blocks on an interactive decision.
func (m *Manager) Start(ctx context.Context, request pipeline.Request) (*pipeline.Session, error) {
	stages, err := stage.ForDeliverable(request.Deliverable)
	if err != nil {
		return nil, err
	}
	sess, err := pipeline.NewSession(stages, request)
	if err != nil {
		return nil, err
	}

	e := &entry{sess: sess}
	m.mu.Lock()
	m.entries[sess.ID.String()] = e
	m.mu.Unlock()

	return m.advance(ctx, e)
}

// Resume re-runs a session that stopped on a transient failure.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*pipeline.Session, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.advance(ctx, e)
}

// Get returns a session's current state.
func (m *Manager) Get(ctx context.Context, sessionID string) (*pipeline.Session, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess, nil
}

// ResolveNarrowing applies a fact-budget decision and resumes the session.
func (m *Manager) ResolveNarrowing(ctx context.Context, sessionID string, mode canon.NarrowingMode, keywords, factIDs []string) (*pipeline.Session, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	err = m.executor.ResolveNarrowing(ctx, e.sess, mode, keywords, factIDs)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.advance(ctx, e)
}

// PendingNarrowing returns the open fact-budget decision.
func (m *Manager) PendingNarrowing(ctx context.Context, sessionID string) (*canon.NarrowingDecision, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Narrowing == nil {
		return nil, fmt.Errorf("session %s has no pending narrowing decision", sessionID)
	}
	return e.sess.Narrowing, nil
}

// PendingReview returns the open reconciliation for inspection.
func (m *Manager) PendingReview(ctx context.Context, sessionID string) (*reconcile.Deltas, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Review == nil {
		return nil, fmt.Errorf("session %s has no pending review", sessionID)
	}
	return e.sess.Review, nil
}

// ResolveReviewItem records one human call on the pending review.
func (m *Manager) ResolveReviewItem(ctx context.Context, sessionID string, resolve func(*reconcile.Deltas) error) error {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Review == nil {
		return fmt.Errorf("session %s has no pending review", sessionID)
	}
	return resolve(e.sess.Review)
}

// ApproveReview finalizes the pending review and resumes the session.
// Unresolved items surface as a blocking error naming each one.
func (m *Manager) ApproveReview(ctx context.Context, sessionID string) (*reconcile.Bundle, *pipeline.Session, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	bundle, err := m.executor.ApproveReview(ctx, e.sess)
	e.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	sess, err := m.advance(ctx, e)
	if err != nil {
		return bundle, sess, err
	}
	return bundle, sess, nil
}

// Artifact assembles and persists the completed session's output.
func (m *Manager) Artifact(ctx context.Context, sessionID string) (pipeline.Artifact, storage.ArtifactRecord, error) {
	e, err := m.entryFor(ctx, sessionID)
	if err != nil {
		return pipeline.Artifact{}, storage.ArtifactRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	artifact, err := m.executor.FinalArtifact(e.sess)
	if err != nil {
		return pipeline.Artifact{}, storage.ArtifactRecord{}, err
	}

	// Repeated calls return the already-persisted record instead of
	// minting a duplicate row.
	if m.store != nil {
		existing, err := m.store.ArtifactsBySession(ctx, e.sess.ID.String())
		if err != nil {
			return pipeline.Artifact{}, storage.ArtifactRecord{}, fmt.Errorf("lookup artifact: %w", err)
		}
		if len(existing) > 0 {
			return artifact, existing[0], nil
		}
	}

	content, err := json.Marshal(artifact)
	if err != nil {
		return pipeline.Artifact{}, storage.ArtifactRecord{}, fmt.Errorf("marshal artifact: %w", err)
	}
	artifactID, err := m.idGenerator()
	if err != nil {
		return pipeline.Artifact{}, storage.ArtifactRecord{}, fmt.Errorf("generate artifact id: %w", err)
	}
	record := storage.ArtifactRecord{
		ID:              artifactID,
		SessionID:       e.sess.ID.String(),
		Deliverable:     artifact.Deliverable,
		ContentJSON:     string(content),
		OutstandingWork: artifact.OutstandingWork,
		CreatedAt:       m.now().UTC(),
	}
	if m.store != nil {
		if err := m.store.PutArtifact(ctx, record); err != nil {
			return pipeline.Artifact{}, storage.ArtifactRecord{}, fmt.Errorf("persist artifact: %w", err)
		}
	}
	return artifact, record, nil
}

// advance runs the session's executor and snapshots the result. The run
// error is returned after the snapshot so partial progress survives.
func (m *Manager) advance(ctx context.Context, e *entry) (*pipeline.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	runErr := m.executor.Run(ctx, e.sess)
	if err := m.persist(ctx, e.sess); err != nil {
		if runErr != nil {
			return e.sess, errors.Join(runErr, err)
		}
		return e.sess, err
	}
	return e.sess, runErr
}

func (m *Manager) persist(ctx context.Context, sess *pipeline.Session) error {
	if m.store == nil {
		return nil
	}
	record, err := sess.Record()
	if err != nil {
		return err
	}
	if err := m.store.PutSession(ctx, record); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// entryFor returns the live entry, restoring from the store when the
// session is not in memory.
func (m *Manager) entryFor(ctx context.Context, sessionID string) (*entry, error) {
	m.mu.Lock()
	if e, ok := m.entries[sessionID]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	record, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	stages, err := stage.ForDeliverable(record.Deliverable)
	if err != nil {
		return nil, err
	}
	sess, err := pipeline.RestoreSession(record, stages)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have restored it first.
	if e, ok := m.entries[sessionID]; ok {
		return e, nil
	}
	e := &entry{sess: sess}
	m.entries[sessionID] = e
	return e, nil
}
