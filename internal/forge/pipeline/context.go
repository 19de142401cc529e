// Package pipeline orchestrates multi-stage generation: it sequences stage
// definitions, plans chunked iteration for large artifacts, threads the
// per-session context through every call, and hands stage output to delta
// reconciliation before anything advances.
package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/forge/reconcile"
)

// Request captures the user configuration for one generation session.
type Request struct {
	Deliverable string            `json:"deliverable"`
	Name        string            `json:"name"`
	Prompt      string            `json:"prompt"`
	Fields      map[string]string `json:"fields,omitempty"`
	Model       string            `json:"model,omitempty"`
}

// ChunkState identifies the iteration currently executing. It exists for
// one iteration and is discarded once the output merges into the stage
// result.
type ChunkState struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// StageResult holds one stage's parsed output. Items accumulates the
// sub-artifacts of chunked stages in generation order.
type StageResult struct {
	Fields map[string]any   `json:"fields,omitempty"`
	Items  []map[string]any `json:"items,omitempty"`
	// Review is the approved reconciliation bundle for this stage. It is
	// bookkeeping and never projects into later prompts.
	Review *reconcile.Bundle `json:"review,omitempty"`
}

// Decision records one human call made during the session.
type Decision struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Subject    string `json:"subject"`
	Resolution string `json:"resolution"`
}

// Context is the accumulating per-session record threaded through every
// stage call. Each in-flight session owns exactly one instance; contexts
// are never shared.
type Context struct {
	SessionID    uuid.UUID              `json:"session_id"`
	Request      Request                `json:"request"`
	StageResults map[string]StageResult `json:"stage_results"`
	Facts        []canon.Fact           `json:"facts,omitempty"`
	Decisions    []Decision             `json:"decisions,omitempty"`
	Chunk        *ChunkState            `json:"-"`

	// stageDefs binds the session's stage list for allow-list projection.
	// Restored contexts are re-bound by the executor.
	stageDefs []Definition
}

// BindStages attaches the session's stage definitions so output projection
// can resolve each producing stage's allow-list.
func (c *Context) BindStages(defs []Definition) {
	c.stageDefs = defs
}

// NewContext creates an isolated context for one session.
func NewContext(request Request) *Context {
	return &Context{
		SessionID:    uuid.New(),
		Request:      request,
		StageResults: make(map[string]StageResult),
	}
}

// Result returns a prior stage's output.
func (c *Context) Result(stageID string) (StageResult, bool) {
	result, ok := c.StageResults[stageID]
	return result, ok
}

// SetResult stores a stage's output under its ID.
func (c *Context) SetResult(stageID string, result StageResult) {
	if c.StageResults == nil {
		c.StageResults = make(map[string]StageResult)
	}
	c.StageResults[stageID] = result
}

// NumberField reads a numeric field from a prior stage's output, coercing
// numeric-as-string values. The second return is false when the field is
// absent or unparseable; NaN and infinities are unparseable.
func (c *Context) NumberField(stageID, field string) (float64, bool) {
	result, ok := c.Result(stageID)
	if !ok {
		return 0, false
	}
	raw, ok := result.Fields[field]
	if !ok {
		return 0, false
	}
	return coerceNumber(raw)
}

// StringField reads a string field from a prior stage's output.
func (c *Context) StringField(stageID, field string) (string, bool) {
	result, ok := c.Result(stageID)
	if !ok {
		return "", false
	}
	value, ok := result.Fields[field].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// RecentItems returns at most window of the newest accumulated sub-artifacts
// from a stage, oldest first. It is the bounded context handed to each chunk
// iteration so prompt size stays sublinear in iteration count.
func (c *Context) RecentItems(stageID string, window int) []map[string]any {
	result, ok := c.Result(stageID)
	if !ok || window <= 0 {
		return nil
	}
	items := result.Items
	if len(items) > window {
		items = items[len(items)-window:]
	}
	return items
}

// AppendItem adds one chunk's sub-artifact to the stage's running
// collection, visible to subsequent iterations and later stages.
func (c *Context) AppendItem(stageID string, item map[string]any) {
	result := c.StageResults[stageID]
	result.Items = append(result.Items, item)
	c.SetResult(stageID, result)
}

// RecordDecisions appends the human calls from an approved bundle.
func (c *Context) RecordDecisions(bundle reconcile.Bundle) {
	for _, answer := range bundle.Answers {
		c.Decisions = append(c.Decisions, Decision{
			Stage:      bundle.Stage,
			Kind:       "proposal",
			Subject:    answer.Question,
			Resolution: answer.Answer,
		})
	}
	for _, conflict := range bundle.Conflicts {
		c.Decisions = append(c.Decisions, Decision{
			Stage:      bundle.Stage,
			Kind:       "conflict",
			Subject:    conflict.NewClaim,
			Resolution: string(conflict.Resolution),
		})
	}
	for _, issue := range bundle.Issues {
		if issue.Resolution == reconcile.IssueUnresolved {
			continue
		}
		c.Decisions = append(c.Decisions, Decision{
			Stage:      bundle.Stage,
			Kind:       "issue",
			Subject:    issue.Description,
			Resolution: string(issue.Resolution),
		})
	}
}

// MarshalSnapshot serializes the context for session persistence.
func (c *Context) MarshalSnapshot() (string, error) {
	encoded, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal context snapshot: %w", err)
	}
	return string(encoded), nil
}

// UnmarshalSnapshot restores a persisted context.
func UnmarshalSnapshot(snapshot string) (*Context, error) {
	var restored Context
	if err := json.Unmarshal([]byte(snapshot), &restored); err != nil {
		return nil, fmt.Errorf("unmarshal context snapshot: %w", err)
	}
	if restored.StageResults == nil {
		restored.StageResults = make(map[string]StageResult)
	}
	return &restored, nil
}

func coerceNumber(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, false
		}
		return value, true
	case int:
		return float64(value), true
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
