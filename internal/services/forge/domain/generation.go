package domain

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GenerationStartInput represents the MCP tool input for starting a session.
type GenerationStartInput struct {
	Deliverable string            `json:"deliverable" jsonschema:"what to generate (character, monster, location)"`
	Name        string            `json:"name,omitempty" jsonschema:"optional name for the subject"`
	Prompt      string            `json:"prompt,omitempty" jsonschema:"creative direction for the generation"`
	Fields      map[string]string `json:"fields,omitempty" jsonschema:"optional per-deliverable configuration fields"`
	Model       string            `json:"model,omitempty" jsonschema:"optional model override"`
}

// SessionRefInput represents the MCP tool input naming an existing session.
type SessionRefInput struct {
	SessionID string `json:"session_id" jsonschema:"generation session identifier"`
}

// GenerationStatusResult represents the MCP tool output describing a session.
type GenerationStatusResult struct {
	SessionID   string `json:"session_id" jsonschema:"generation session identifier"`
	Deliverable string `json:"deliverable" jsonschema:"what is being generated"`
	State       string `json:"state" jsonschema:"session state (running, awaiting_narrowing, awaiting_review, completed)"`
	Stage       string `json:"stage,omitempty" jsonschema:"current stage identifier"`
	StageNumber int    `json:"stage_number" jsonschema:"1-based position of the current stage"`
	TotalStages int    `json:"total_stages" jsonschema:"number of stages for this deliverable"`
	ChunkIndex  int    `json:"chunk_index,omitempty" jsonschema:"completed chunk iterations within the current stage"`
	FactCount   int    `json:"fact_count" jsonschema:"canon facts currently in context"`
}

// NarrowingEntityGroup represents one entity's facts inside a pending
// narrowing decision.
type NarrowingEntityGroup struct {
	EntityID   string   `json:"entity_id" jsonschema:"canon entity identifier"`
	EntityName string   `json:"entity_name" jsonschema:"canon entity name"`
	FactIDs    []string `json:"fact_ids" jsonschema:"identifiers of this entity's retrieved facts"`
	Facts      []string `json:"facts" jsonschema:"the retrieved fact texts"`
}

// NarrowingGetResult represents the MCP tool output for a pending narrowing
// decision.
type NarrowingGetResult struct {
	SessionID string                 `json:"session_id" jsonschema:"generation session identifier"`
	Stage     string                 `json:"stage" jsonschema:"stage whose retrieval exceeded the budget"`
	FactCount int                    `json:"fact_count" jsonschema:"retrieved fact count"`
	MaxFacts  int                    `json:"max_facts" jsonschema:"fact budget"`
	Entities  []NarrowingEntityGroup `json:"entities" jsonschema:"retrieved facts grouped by entity"`
}

// NarrowingResolveInput represents the MCP tool input resolving a narrowing
// decision.
type NarrowingResolveInput struct {
	SessionID string   `json:"session_id" jsonschema:"generation session identifier"`
	Mode      string   `json:"mode" jsonschema:"resolution mode (add_keywords, filter_facts, proceed_anyway)"`
	Keywords  []string `json:"keywords,omitempty" jsonschema:"extra terms for add_keywords"`
	FactIDs   []string `json:"fact_ids,omitempty" jsonschema:"facts to keep for filter_facts"`
}

// ReviewProposal represents one open question awaiting a human call.
type ReviewProposal struct {
	Index    int      `json:"index" jsonschema:"position used to select an answer"`
	Question string   `json:"question" jsonschema:"the open question"`
	Options  []string `json:"options,omitempty" jsonschema:"suggested answers"`
	Resolved bool     `json:"resolved" jsonschema:"whether an answer was recorded"`
}

// ReviewConflict represents one canon contradiction awaiting resolution.
type ReviewConflict struct {
	Index         int    `json:"index" jsonschema:"position used to record a resolution"`
	ExistingClaim string `json:"existing_claim" jsonschema:"what the canon says"`
	NewClaim      string `json:"new_claim" jsonschema:"what the generated output says"`
	Severity      string `json:"severity" jsonschema:"reported severity"`
	Resolution    string `json:"resolution,omitempty" jsonschema:"recorded resolution, if any"`
}

// ReviewIssue represents one internal consistency problem.
type ReviewIssue struct {
	Index       int    `json:"index" jsonschema:"position used to record a resolution"`
	Description string `json:"description" jsonschema:"the problem"`
	Severity    string `json:"severity" jsonschema:"critical, moderate, or minor; critical blocks approval"`
	Resolution  string `json:"resolution,omitempty" jsonschema:"recorded resolution, if any"`
}

// ReviewGetResult represents the MCP tool output for a pending review.
type ReviewGetResult struct {
	SessionID string           `json:"session_id" jsonschema:"generation session identifier"`
	Stage     string           `json:"stage" jsonschema:"stage under review"`
	Proposals []ReviewProposal `json:"proposals,omitempty" jsonschema:"open questions"`
	Conflicts []ReviewConflict `json:"conflicts,omitempty" jsonschema:"canon conflicts"`
	Issues    []ReviewIssue    `json:"issues,omitempty" jsonschema:"consistency issues"`
}

// ProposalSelectInput represents the MCP tool input answering a proposal.
type ProposalSelectInput struct {
	SessionID  string `json:"session_id" jsonschema:"generation session identifier"`
	Index      int    `json:"index" jsonschema:"proposal index from the review listing"`
	Option     string `json:"option,omitempty" jsonschema:"one of the listed options"`
	CustomText string `json:"custom_text,omitempty" jsonschema:"free-text answer instead of an option"`
	Custom     bool   `json:"custom,omitempty" jsonschema:"set with custom_text to answer in free text"`
}

// ConflictResolveInput represents the MCP tool input resolving a conflict.
type ConflictResolveInput struct {
	SessionID  string `json:"session_id" jsonschema:"generation session identifier"`
	Index      int    `json:"index" jsonschema:"conflict index from the review listing"`
	Resolution string `json:"resolution" jsonschema:"keep_old, use_new, merge, or skip"`
}

// IssueResolveInput represents the MCP tool input resolving an issue.
type IssueResolveInput struct {
	SessionID  string `json:"session_id" jsonschema:"generation session identifier"`
	Index      int    `json:"index" jsonschema:"issue index from the review listing"`
	Resolution string `json:"resolution" jsonschema:"will_fix, acknowledge, or ignore"`
}

// ReviewApproveResult represents the MCP tool output after review approval.
type ReviewApproveResult struct {
	SessionID       string `json:"session_id" jsonschema:"generation session identifier"`
	Stage           string `json:"stage" jsonschema:"stage that was approved"`
	State           string `json:"state" jsonschema:"session state after approval"`
	OutstandingWork bool   `json:"outstanding_work" jsonschema:"whether a will_fix issue carries forward"`
}

// ArtifactGetResult represents the MCP tool output for a finished artifact.
type ArtifactGetResult struct {
	SessionID       string `json:"session_id" jsonschema:"generation session identifier"`
	ArtifactID      string `json:"artifact_id" jsonschema:"persisted artifact identifier"`
	Deliverable     string `json:"deliverable" jsonschema:"what was generated"`
	Content         string `json:"content" jsonschema:"the assembled artifact as JSON"`
	OutstandingWork bool   `json:"outstanding_work" jsonschema:"whether unapplied will_fix issues remain"`
}

// GenerationStartTool defines the MCP tool schema for starting a session.
func GenerationStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "generation_start",
		Description: "Starts a staged generation session for a character, monster, or location",
	}
}

// GenerationStatusTool defines the MCP tool schema for session status.
func GenerationStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "generation_status",
		Description: "Reports the state and progress of a generation session",
	}
}

// GenerationResumeTool defines the MCP tool schema for resuming a session.
func GenerationResumeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "generation_resume",
		Description: "Re-runs a generation session that stopped on a transient failure",
	}
}

// NarrowingGetTool defines the MCP tool schema for inspecting a pending
// narrowing decision.
func NarrowingGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "narrowing_get",
		Description: "Lists the over-budget canon facts awaiting a narrowing decision, grouped by entity",
	}
}

// NarrowingResolveTool defines the MCP tool schema for resolving a narrowing
// decision.
func NarrowingResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "narrowing_resolve",
		Description: "Resolves a fact-budget narrowing decision by adding keywords, filtering facts, or proceeding anyway",
	}
}

// ReviewGetTool defines the MCP tool schema for inspecting a pending review.
func ReviewGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "review_get",
		Description: "Lists the open questions, canon conflicts, and issues awaiting review for a session",
	}
}

// ProposalSelectTool defines the MCP tool schema for answering a proposal.
func ProposalSelectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "proposal_select",
		Description: "Answers an open question with a listed option or free text",
	}
}

// ConflictResolveTool defines the MCP tool schema for resolving a conflict.
func ConflictResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "conflict_resolve",
		Description: "Resolves a canon conflict (keep_old, use_new, merge, skip)",
	}
}

// IssueResolveTool defines the MCP tool schema for resolving an issue.
func IssueResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "issue_resolve",
		Description: "Resolves a consistency issue (will_fix, acknowledge, ignore)",
	}
}

// ReviewApproveTool defines the MCP tool schema for approving a review.
func ReviewApproveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "review_approve",
		Description: "Approves the pending review once every item is resolved and advances the session",
	}
}

// ArtifactGetTool defines the MCP tool schema for fetching the artifact.
func ArtifactGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "artifact_get",
		Description: "Assembles and persists the completed session's artifact",
	}
}
