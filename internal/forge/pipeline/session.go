package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/forge/reconcile"
	"github.com/ashgrove/canonforge/internal/storage"
)

// State is the lifecycle position of one generation session.
type State string

const (
	// StateRunning allows Run to advance stages.
	StateRunning State = "running"
	// StateAwaitingNarrowing blocks on a fact-budget narrowing decision.
	StateAwaitingNarrowing State = "awaiting_narrowing"
	// StateAwaitingReview blocks on delta reconciliation for the current stage.
	StateAwaitingReview State = "awaiting_review"
	// StateCompleted means every stage ran and reconciled.
	StateCompleted State = "completed"
)

// Session is one in-flight generation. It is owned by a single caller;
// concurrent sessions each get an isolated instance.
type Session struct {
	ID          uuid.UUID
	Deliverable string
	Stages      []Definition
	Ctx         *Context
	State       State

	// StageIndex is the stage currently executing; stages before it are
	// complete and their results never erased by later failures.
	StageIndex int
	// ChunkIndex counts completed chunk iterations within the current
	// stage. Completed chunks remain valid across cancellation and later
	// failures.
	ChunkIndex int
	// FactsReady marks that canon retrieval for the current stage resolved.
	FactsReady bool

	// Narrowing is the pending fact-budget decision, set only in
	// StateAwaitingNarrowing.
	Narrowing *canon.NarrowingDecision
	// Review is the pending reconciliation, set only in StateAwaitingReview.
	Review *reconcile.Deltas

	CreatedAt time.Time
}

// NewSession creates an isolated session over an ordered stage list.
func NewSession(stages []Definition, request Request) (*Session, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	if request.Deliverable == "" {
		return nil, fmt.Errorf("deliverable is required")
	}
	pctx := NewContext(request)
	pctx.BindStages(stages)
	return &Session{
		ID:          pctx.SessionID,
		Deliverable: request.Deliverable,
		Stages:      stages,
		Ctx:         pctx,
		State:       StateRunning,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Record snapshots the session for persistence. Pending narrowing and
// review state is interactive and not snapshotted; a restored session
// re-runs the interrupted stage phase.
func (s *Session) Record() (storage.SessionRecord, error) {
	requestJSON, err := json.Marshal(s.Ctx.Request)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("marshal session request: %w", err)
	}
	contextJSON, err := s.Ctx.MarshalSnapshot()
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return storage.SessionRecord{
		ID:          s.ID.String(),
		Deliverable: s.Deliverable,
		State:       string(s.State),
		RequestJSON: string(requestJSON),
		ContextJSON: contextJSON,
		StageIndex:  s.StageIndex,
		ChunkIndex:  s.ChunkIndex,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// RestoreSession rebuilds a session from a persisted record and the stage
// list for its deliverable. Interactive pauses restore to StateRunning so
// the interrupted phase re-runs.
func RestoreSession(record storage.SessionRecord, stages []Definition) (*Session, error) {
	sessionID, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	pctx, err := UnmarshalSnapshot(record.ContextJSON)
	if err != nil {
		return nil, err
	}
	pctx.SessionID = sessionID
	pctx.BindStages(stages)

	state := State(record.State)
	if state == StateAwaitingNarrowing || state == StateAwaitingReview {
		state = StateRunning
	}
	return &Session{
		ID:          sessionID,
		Deliverable: record.Deliverable,
		Stages:      stages,
		Ctx:         pctx,
		State:       state,
		StageIndex:  record.StageIndex,
		ChunkIndex:  record.ChunkIndex,
		CreatedAt:   record.CreatedAt,
	}, nil
}

// CurrentStage returns the definition executing now.
func (s *Session) CurrentStage() (Definition, bool) {
	if s.StageIndex < 0 || s.StageIndex >= len(s.Stages) {
		return Definition{}, false
	}
	return s.Stages[s.StageIndex], true
}
