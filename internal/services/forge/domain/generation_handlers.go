package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/forge/pipeline"
	"github.com/ashgrove/canonforge/internal/forge/reconcile"
	"github.com/ashgrove/canonforge/internal/services/forge/session"
)

// GenerationStartHandler starts a session and advances it until it blocks
// or completes.
func GenerationStartHandler(manager *session.Manager) mcp.ToolHandlerFor[GenerationStartInput, GenerationStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GenerationStartInput) (*mcp.CallToolResult, GenerationStatusResult, error) {
		sess, err := manager.Start(ctx, pipeline.Request{
			Deliverable: strings.TrimSpace(input.Deliverable),
			Name:        strings.TrimSpace(input.Name),
			Prompt:      input.Prompt,
			Fields:      input.Fields,
			Model:       input.Model,
		})
		if err != nil && sess == nil {
			return nil, GenerationStatusResult{}, fmt.Errorf("generation start failed: %w", err)
		}
		if err != nil {
			// The session survived a stage failure with its progress intact;
			// report its state alongside the failure.
			return nil, statusFor(sess), fmt.Errorf("generation stopped: %w", err)
		}
		return nil, statusFor(sess), nil
	}
}

// GenerationStatusHandler reports a session's current state.
func GenerationStatusHandler(manager *session.Manager) mcp.ToolHandlerFor[SessionRefInput, GenerationStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionRefInput) (*mcp.CallToolResult, GenerationStatusResult, error) {
		sess, err := manager.Get(ctx, input.SessionID)
		if err != nil {
			return nil, GenerationStatusResult{}, fmt.Errorf("generation status failed: %w", err)
		}
		return nil, statusFor(sess), nil
	}
}

// GenerationResumeHandler re-runs a session stopped by a transient failure.
func GenerationResumeHandler(manager *session.Manager) mcp.ToolHandlerFor[SessionRefInput, GenerationStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionRefInput) (*mcp.CallToolResult, GenerationStatusResult, error) {
		sess, err := manager.Resume(ctx, input.SessionID)
		if err != nil && sess == nil {
			return nil, GenerationStatusResult{}, fmt.Errorf("generation resume failed: %w", err)
		}
		if err != nil {
			return nil, statusFor(sess), fmt.Errorf("generation stopped: %w", err)
		}
		return nil, statusFor(sess), nil
	}
}

// NarrowingGetHandler lists the over-budget facts grouped by entity.
func NarrowingGetHandler(manager *session.Manager) mcp.ToolHandlerFor[SessionRefInput, NarrowingGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionRefInput) (*mcp.CallToolResult, NarrowingGetResult, error) {
		sess, err := manager.Get(ctx, input.SessionID)
		if err != nil {
			return nil, NarrowingGetResult{}, fmt.Errorf("narrowing get failed: %w", err)
		}
		decision, err := manager.PendingNarrowing(ctx, input.SessionID)
		if err != nil {
			return nil, NarrowingGetResult{}, fmt.Errorf("narrowing get failed: %w", err)
		}

		result := NarrowingGetResult{
			SessionID: input.SessionID,
			FactCount: len(decision.Facts),
			MaxFacts:  decision.Budget.MaxFacts,
		}
		if def, ok := sess.CurrentStage(); ok {
			result.Stage = def.ID
		}
		for _, group := range decision.GroupByEntity() {
			entry := NarrowingEntityGroup{
				EntityID:   group.EntityID,
				EntityName: group.EntityName,
			}
			for _, fact := range group.Facts {
				entry.FactIDs = append(entry.FactIDs, fact.ID)
				entry.Facts = append(entry.Facts, fact.Text)
			}
			result.Entities = append(result.Entities, entry)
		}
		return nil, result, nil
	}
}

// NarrowingResolveHandler applies a narrowing decision and resumes the
// session.
func NarrowingResolveHandler(manager *session.Manager) mcp.ToolHandlerFor[NarrowingResolveInput, GenerationStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input NarrowingResolveInput) (*mcp.CallToolResult, GenerationStatusResult, error) {
		mode := canon.NarrowingMode(strings.ToLower(strings.TrimSpace(input.Mode)))
		sess, err := manager.ResolveNarrowing(ctx, input.SessionID, mode, input.Keywords, input.FactIDs)
		if err != nil && sess == nil {
			return nil, GenerationStatusResult{}, fmt.Errorf("narrowing resolve failed: %w", err)
		}
		if err != nil {
			return nil, statusFor(sess), fmt.Errorf("generation stopped: %w", err)
		}
		return nil, statusFor(sess), nil
	}
}

// ReviewGetHandler lists the pending reconciliation items with the indexes
// used by the resolution tools.
func ReviewGetHandler(manager *session.Manager) mcp.ToolHandlerFor[SessionRefInput, ReviewGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionRefInput) (*mcp.CallToolResult, ReviewGetResult, error) {
		deltas, err := manager.PendingReview(ctx, input.SessionID)
		if err != nil {
			return nil, ReviewGetResult{}, fmt.Errorf("review get failed: %w", err)
		}

		result := ReviewGetResult{SessionID: input.SessionID, Stage: deltas.Stage}
		for i, proposal := range deltas.Proposals {
			result.Proposals = append(result.Proposals, ReviewProposal{
				Index:    i,
				Question: proposal.Question,
				Options:  proposal.Options,
				Resolved: proposal.Resolved(),
			})
		}
		for i, conflict := range deltas.Conflicts {
			result.Conflicts = append(result.Conflicts, ReviewConflict{
				Index:         i,
				ExistingClaim: conflict.ExistingClaim,
				NewClaim:      conflict.NewClaim,
				Severity:      conflict.Severity,
				Resolution:    string(conflict.Resolution),
			})
		}
		for i, issue := range deltas.Issues {
			result.Issues = append(result.Issues, ReviewIssue{
				Index:       i,
				Description: issue.Description,
				Severity:    string(issue.Severity),
				Resolution:  string(issue.Resolution),
			})
		}
		return nil, result, nil
	}
}

// ProposalSelectHandler answers one open question.
func ProposalSelectHandler(manager *session.Manager) mcp.ToolHandlerFor[ProposalSelectInput, ReviewGetResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ProposalSelectInput) (*mcp.CallToolResult, ReviewGetResult, error) {
		err := manager.ResolveReviewItem(ctx, input.SessionID, func(deltas *reconcile.Deltas) error {
			if input.Custom || (input.Option == "" && input.CustomText != "") {
				return deltas.SelectCustom(input.Index, input.CustomText)
			}
			return deltas.SelectOption(input.Index, input.Option)
		})
		if err != nil {
			return nil, ReviewGetResult{}, fmt.Errorf("proposal select failed: %w", err)
		}
		return ReviewGetHandler(manager)(ctx, req, SessionRefInput{SessionID: input.SessionID})
	}
}

// ConflictResolveHandler records the handling for one canon conflict.
func ConflictResolveHandler(manager *session.Manager) mcp.ToolHandlerFor[ConflictResolveInput, ReviewGetResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ConflictResolveInput) (*mcp.CallToolResult, ReviewGetResult, error) {
		resolution := reconcile.ConflictResolution(strings.ToLower(strings.TrimSpace(input.Resolution)))
		err := manager.ResolveReviewItem(ctx, input.SessionID, func(deltas *reconcile.Deltas) error {
			return deltas.ResolveConflict(input.Index, resolution)
		})
		if err != nil {
			return nil, ReviewGetResult{}, fmt.Errorf("conflict resolve failed: %w", err)
		}
		return ReviewGetHandler(manager)(ctx, req, SessionRefInput{SessionID: input.SessionID})
	}
}

// IssueResolveHandler records the handling for one consistency issue.
func IssueResolveHandler(manager *session.Manager) mcp.ToolHandlerFor[IssueResolveInput, ReviewGetResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IssueResolveInput) (*mcp.CallToolResult, ReviewGetResult, error) {
		resolution := reconcile.IssueResolution(strings.ToLower(strings.TrimSpace(input.Resolution)))
		err := manager.ResolveReviewItem(ctx, input.SessionID, func(deltas *reconcile.Deltas) error {
			return deltas.ResolveIssue(input.Index, resolution)
		})
		if err != nil {
			return nil, ReviewGetResult{}, fmt.Errorf("issue resolve failed: %w", err)
		}
		return ReviewGetHandler(manager)(ctx, req, SessionRefInput{SessionID: input.SessionID})
	}
}

// ReviewApproveHandler finalizes the pending review and advances the
// session. Unresolved items surface as an error naming each one.
func ReviewApproveHandler(manager *session.Manager) mcp.ToolHandlerFor[SessionRefInput, ReviewApproveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionRefInput) (*mcp.CallToolResult, ReviewApproveResult, error) {
		bundle, sess, err := manager.ApproveReview(ctx, input.SessionID)
		if err != nil && bundle == nil {
			return nil, ReviewApproveResult{}, fmt.Errorf("review approve failed: %w", err)
		}
		result := ReviewApproveResult{
			SessionID:       input.SessionID,
			Stage:           bundle.Stage,
			OutstandingWork: bundle.OutstandingWork,
		}
		if sess != nil {
			result.State = string(sess.State)
		}
		if err != nil {
			return nil, result, fmt.Errorf("generation stopped: %w", err)
		}
		return nil, result, nil
	}
}

// ArtifactGetHandler assembles and persists the completed artifact.
func ArtifactGetHandler(manager *session.Manager) mcp.ToolHandlerFor[SessionRefInput, ArtifactGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionRefInput) (*mcp.CallToolResult, ArtifactGetResult, error) {
		artifact, record, err := manager.Artifact(ctx, input.SessionID)
		if err != nil {
			return nil, ArtifactGetResult{}, fmt.Errorf("artifact get failed: %w", err)
		}
		return nil, ArtifactGetResult{
			SessionID:       input.SessionID,
			ArtifactID:      record.ID,
			Deliverable:     artifact.Deliverable,
			Content:         record.ContentJSON,
			OutstandingWork: artifact.OutstandingWork,
		}, nil
	}
}

func statusFor(sess *pipeline.Session) GenerationStatusResult {
	result := GenerationStatusResult{
		SessionID:   sess.ID.String(),
		Deliverable: sess.Deliverable,
		State:       string(sess.State),
		StageNumber: sess.StageIndex + 1,
		TotalStages: len(sess.Stages),
		ChunkIndex:  sess.ChunkIndex,
		FactCount:   len(sess.Ctx.Facts),
	}
	if def, ok := sess.CurrentStage(); ok {
		result.Stage = def.ID
	} else {
		result.StageNumber = len(sess.Stages)
	}
	return result
}
