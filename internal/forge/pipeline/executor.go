package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/forge/reconcile"
	"github.com/ashgrove/canonforge/internal/llm"
	"github.com/ashgrove/canonforge/internal/storage"
	"github.com/ashgrove/canonforge/internal/telemetry"
)

// Config tunes executor behavior. Zero values fall back to the defaults.
type Config struct {
	// ChunkWindow bounds how many recent sub-artifacts each chunk iteration
	// sees, keeping prompt size flat as iterations accumulate.
	ChunkWindow int
	// ParseRetryCap bounds corrective re-prompts per malformed output.
	// Generation-call failures are never retried; only parse corrections are.
	ParseRetryCap int
	// Scales maps qualitative size words to quantities when a chunked stage
	// has no explicit count.
	Scales ScaleDefaults
}

const (
	defaultChunkWindow   = 5
	defaultParseRetryCap = 3
)

func defaultScales() ScaleDefaults {
	return ScaleDefaults{"simple": 5, "moderate": 15, "complex": 30}
}

func (c Config) withDefaults() Config {
	if c.ChunkWindow <= 0 {
		c.ChunkWindow = defaultChunkWindow
	}
	if c.ParseRetryCap <= 0 {
		c.ParseRetryCap = defaultParseRetryCap
	}
	if len(c.Scales) == 0 {
		c.Scales = defaultScales()
	}
	return c
}

// Progress reports one completed unit of work within a session.
type Progress struct {
	SessionID string
	Stage     string
	Current   int
	Total     int
}

// Executor drives sessions through their stage lists. It holds no
// per-session state; one executor serves any number of isolated sessions.
type Executor struct {
	client    llm.Client
	retriever *canon.Retriever
	emitter   *telemetry.Emitter
	cfg       Config
	progress  func(Progress)
	tracer    trace.Tracer
}

// NewExecutor wires an executor over a generation client and a canon
// retriever. The emitter may be nil.
func NewExecutor(client llm.Client, retriever *canon.Retriever, emitter *telemetry.Emitter, cfg Config) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("generation client is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("canon retriever is required")
	}
	return &Executor{
		client:    client,
		retriever: retriever,
		emitter:   emitter,
		cfg:       cfg.withDefaults(),
		tracer:    otel.Tracer("canonforge.pipeline"),
	}, nil
}

// SetProgressFunc registers a callback invoked after each completed stage
// call or chunk iteration. Set it before the first Run.
func (e *Executor) SetProgressFunc(fn func(Progress)) {
	e.progress = fn
}

// Run advances the session until it completes or blocks on an interactive
// decision. A blocked session returns nil with State set to the pending
// decision kind; resolve it and call Run again. Completed stages and chunk
// iterations survive any later error or cancellation.
func (e *Executor) Run(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session is required")
	}
	switch sess.State {
	case StateAwaitingNarrowing:
		return fmt.Errorf("session %s is awaiting a narrowing decision", sess.ID)
	case StateAwaitingReview:
		return fmt.Errorf("session %s is awaiting review", sess.ID)
	case StateCompleted:
		return nil
	}

	for sess.StageIndex < len(sess.Stages) {
		def := sess.Stages[sess.StageIndex]
		blocked, err := e.runStage(ctx, sess, def)
		if err != nil {
			return err
		}
		if blocked {
			return nil
		}
	}

	sess.State = StateCompleted
	e.emit(ctx, sess, storage.TelemetryEvent{EventName: "session.completed"})
	return nil
}

// runStage executes one stage phase by phase. It returns blocked=true when
// the session paused for an interactive decision.
func (e *Executor) runStage(ctx context.Context, sess *Session, def Definition) (blocked bool, err error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("forge.session_id", sess.ID.String()),
			attribute.String("forge.stage", def.ID),
		))
	defer span.End()

	if sess.ChunkIndex == 0 && !sess.FactsReady {
		e.emit(ctx, sess, storage.TelemetryEvent{EventName: "stage.started", Stage: def.ID})
	}

	if !sess.FactsReady {
		blocked, err := e.retrieveFacts(ctx, sess, def)
		if err != nil {
			return false, fmt.Errorf("stage %s: %w", def.ID, err)
		}
		if blocked {
			return true, nil
		}
	}

	plan := PlanChunks(sess.Ctx, def.Chunking, e.cfg.Scales)
	if plan.ShouldChunk {
		if err := e.runChunks(ctx, sess, def, plan); err != nil {
			return false, err
		}
	} else if sess.ChunkIndex == 0 {
		fields, err := e.generate(ctx, def, sess, Plan{}, 0)
		if err != nil {
			return false, fmt.Errorf("stage %s: %w", def.ID, err)
		}
		result, _ := sess.Ctx.Result(def.ID)
		result.Fields = fields
		sess.Ctx.SetResult(def.ID, result)
		sess.ChunkIndex = 1
		e.report(sess, def, 1, 1)
	}

	deltas := e.stageDeltas(sess, def)
	if !deltas.Empty() {
		sess.Review = deltas
		sess.State = StateAwaitingReview
		e.emit(ctx, sess, storage.TelemetryEvent{
			EventName: "review.required",
			Stage:     def.ID,
			Severity:  string(telemetry.SeverityInfo),
		})
		return true, nil
	}

	e.finishStage(ctx, sess, def)
	return false, nil
}

// retrieveFacts resolves the stage's canon set, pausing the session when the
// result exceeds the fact budget.
func (e *Executor) retrieveFacts(ctx context.Context, sess *Session, def Definition) (blocked bool, err error) {
	if def.Keywords == nil {
		if !def.AdditiveFacts {
			sess.Ctx.Facts = nil
		}
		sess.FactsReady = true
		return false, nil
	}

	query := canon.Query{Keywords: def.Keywords(sess.Ctx)}
	var result canon.Result
	if def.AdditiveFacts {
		result, err = e.retriever.RetrieveAdditional(ctx, sess.Ctx.Facts, query)
	} else {
		result, err = e.retriever.Retrieve(ctx, query)
	}
	if err != nil {
		return false, err
	}

	if result.Decision != nil {
		sess.Narrowing = result.Decision
		sess.State = StateAwaitingNarrowing
		e.emit(ctx, sess, storage.TelemetryEvent{
			EventName: "narrowing.required",
			Stage:     def.ID,
			Severity:  string(telemetry.SeverityWarn),
			Message:   fmt.Sprintf("%d facts retrieved", len(result.Decision.Facts)),
		})
		return true, nil
	}

	sess.Ctx.Facts = result.Facts
	sess.FactsReady = true
	return false, nil
}

// runChunks executes the remaining iterations of a chunked stage
// sequentially. ChunkIndex counts completed iterations, so a cancelled or
// failed run resumes after the last finished chunk.
func (e *Executor) runChunks(ctx context.Context, sess *Session, def Definition, plan Plan) error {
	for index := sess.ChunkIndex + 1; index <= plan.TotalChunks; index++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s chunk %d of %d: %w", def.ID, index, plan.TotalChunks, err)
		}
		item, err := e.generate(ctx, def, sess, plan, index)
		if err != nil {
			return fmt.Errorf("stage %s chunk %d of %d: %w", def.ID, index, plan.TotalChunks, err)
		}
		sess.Ctx.AppendItem(def.ID, item)
		sess.ChunkIndex = index
		e.report(sess, def, index, plan.TotalChunks)
		e.emit(ctx, sess, storage.TelemetryEvent{
			EventName:  "chunk.completed",
			Stage:      def.ID,
			ChunkIndex: index,
		})
	}
	return nil
}

// generate performs one model call and parses its output, re-prompting with
// a corrective message for malformed output up to the configured cap.
func (e *Executor) generate(ctx context.Context, def Definition, sess *Session, plan Plan, chunkIndex int) (map[string]any, error) {
	if chunkIndex > 0 {
		sess.Ctx.Chunk = &ChunkState{Index: chunkIndex, Label: plan.Label}
		defer func() { sess.Ctx.Chunk = nil }()
	}

	input, err := buildPrompt(def, sess.Ctx, plan, chunkIndex, e.cfg.ChunkWindow)
	if err != nil {
		return nil, err
	}

	raw, err := e.callModel(ctx, def, input, sess.Ctx.Request.Model)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		parsed, parseErr := ParseStageOutput(def, raw)
		if parseErr == nil {
			return parsed, nil
		}
		if attempt >= e.cfg.ParseRetryCap {
			return nil, fmt.Errorf("after %d correction attempts: %w", attempt, parseErr)
		}

		var positioned *ParseError
		if !errors.As(parseErr, &positioned) {
			return nil, parseErr
		}
		e.emit(ctx, sess, storage.TelemetryEvent{
			EventName:  "parse.correction",
			Stage:      def.ID,
			ChunkIndex: chunkIndex,
			Severity:   string(telemetry.SeverityWarn),
			Message:    positioned.Error(),
		})

		raw, err = e.callModel(ctx, def, correctionPrompt(positioned, raw), sess.Ctx.Request.Model)
		if err != nil {
			return nil, err
		}
	}
}

// callModel performs a single generation call. Provider failures surface to
// the caller unretried; retry policy belongs to the transport layer above.
func (e *Executor) callModel(ctx context.Context, def Definition, input, model string) (string, error) {
	result, err := e.client.Generate(ctx, llm.Request{
		Instruction: def.Instruction,
		Input:       input,
		Model:       model,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return result.OutputText, nil
}

// stageDeltas extracts the reconciliation items a stage surfaced. Chunked
// stages aggregate across their accumulated items.
func (e *Executor) stageDeltas(sess *Session, def Definition) *reconcile.Deltas {
	result, _ := sess.Ctx.Result(def.ID)
	deltas := reconcile.ExtractDeltas(def.ID, result.Fields)
	for _, item := range result.Items {
		extra := reconcile.ExtractDeltas(def.ID, item)
		deltas.Proposals = append(deltas.Proposals, extra.Proposals...)
		deltas.Conflicts = append(deltas.Conflicts, extra.Conflicts...)
		deltas.Issues = append(deltas.Issues, extra.Issues...)
	}
	return deltas
}

func (e *Executor) finishStage(ctx context.Context, sess *Session, def Definition) {
	e.emit(ctx, sess, storage.TelemetryEvent{EventName: "stage.completed", Stage: def.ID})
	sess.StageIndex++
	sess.ChunkIndex = 0
	sess.FactsReady = false
}

// ResolveNarrowing applies one fact-budget decision and resumes the session.
// A filter that is still over budget replaces the pending decision instead
// of resuming.
func (e *Executor) ResolveNarrowing(ctx context.Context, sess *Session, mode canon.NarrowingMode, keywords []string, factIDs []string) error {
	if sess == nil {
		return fmt.Errorf("session is required")
	}
	if sess.State != StateAwaitingNarrowing || sess.Narrowing == nil {
		return fmt.Errorf("session %s has no pending narrowing decision", sess.ID)
	}

	var result canon.Result
	var err error
	switch mode {
	case canon.NarrowingAddKeywords:
		result, err = e.retriever.ResolveAddKeywords(ctx, sess.Narrowing, keywords)
	case canon.NarrowingFilterFacts:
		result, err = e.retriever.ResolveFilter(sess.Narrowing, factIDs)
	case canon.NarrowingProceedAnyway:
		result, err = e.retriever.ResolveProceed(sess.Narrowing)
	default:
		return fmt.Errorf("%w: %q", canon.ErrUnknownNarrowingMode, mode)
	}
	if err != nil {
		return err
	}

	if result.Decision != nil {
		sess.Narrowing = result.Decision
		return nil
	}

	sess.Ctx.Facts = result.Facts
	sess.FactsReady = true
	sess.Narrowing = nil
	sess.State = StateRunning
	return nil
}

// ApproveReview finalizes the pending reconciliation for the current stage.
// Unresolved items block with an error enumerating each one; on success the
// decisions are recorded, the stage closes, and the session is runnable
// again.
func (e *Executor) ApproveReview(ctx context.Context, sess *Session) (*reconcile.Bundle, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}
	if sess.State != StateAwaitingReview || sess.Review == nil {
		return nil, fmt.Errorf("session %s has no pending review", sess.ID)
	}
	def, ok := sess.CurrentStage()
	if !ok {
		return nil, fmt.Errorf("session %s stage index %d is out of range", sess.ID, sess.StageIndex)
	}

	bundle, err := sess.Review.Approve()
	if err != nil {
		return nil, err
	}

	result, _ := sess.Ctx.Result(def.ID)
	result.Review = &bundle
	sess.Ctx.SetResult(def.ID, result)
	sess.Ctx.RecordDecisions(bundle)

	sess.Review = nil
	sess.State = StateRunning
	e.finishStage(ctx, sess, def)
	if sess.StageIndex >= len(sess.Stages) {
		sess.State = StateCompleted
		e.emit(ctx, sess, storage.TelemetryEvent{EventName: "session.completed"})
	}
	return &bundle, nil
}

// Artifact is the assembled output of a completed session.
type Artifact struct {
	Deliverable string                 `json:"deliverable"`
	Name        string                 `json:"name"`
	Stages      map[string]StageResult `json:"stages"`
	Decisions   []Decision             `json:"decisions,omitempty"`
	// OutstandingWork is set when any stage approved an issue as will_fix.
	OutstandingWork bool `json:"outstanding_work,omitempty"`
}

// FinalArtifact assembles the completed session's stage results into one
// artifact, carrying forward the outstanding-work flag from any will_fix
// approval.
func (e *Executor) FinalArtifact(sess *Session) (Artifact, error) {
	if sess == nil {
		return Artifact{}, fmt.Errorf("session is required")
	}
	if sess.State != StateCompleted {
		return Artifact{}, fmt.Errorf("session %s is not completed", sess.ID)
	}

	artifact := Artifact{
		Deliverable: sess.Deliverable,
		Name:        sess.Ctx.Request.Name,
		Stages:      make(map[string]StageResult, len(sess.Stages)),
		Decisions:   sess.Ctx.Decisions,
	}
	for _, def := range sess.Stages {
		result, ok := sess.Ctx.Result(def.ID)
		if !ok {
			continue
		}
		artifact.Stages[def.ID] = result
		if result.Review != nil && result.Review.OutstandingWork {
			artifact.OutstandingWork = true
		}
	}
	return artifact, nil
}

func (e *Executor) report(sess *Session, def Definition, current, total int) {
	if e.progress == nil {
		return
	}
	e.progress(Progress{
		SessionID: sess.ID.String(),
		Stage:     def.ID,
		Current:   current,
		Total:     total,
	})
}

// emit is best-effort; telemetry never interferes with generation.
func (e *Executor) emit(ctx context.Context, sess *Session, evt storage.TelemetryEvent) {
	if e.emitter == nil {
		return
	}
	evt.SessionID = sess.ID.String()
	_ = e.emitter.Emit(ctx, evt)
}
