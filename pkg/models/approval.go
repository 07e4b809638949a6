package models

// ApprovalDecision is the user's answer to a ToolApprovalRequest.
type ApprovalDecision string

const (
	ApprovalApprove         ApprovalDecision = "approve"
	ApprovalReject          ApprovalDecision = "reject"
	ApprovalAllowForSession ApprovalDecision = "allow_for_session"
)

// ToolApprovalRequest is raised by the agent runtime when a tool call needs
// explicit user confirmation before it is allowed to execute. The runtime
// blocks the current round until a matching ToolApprovalDecision arrives (or
// the session-scoped allowlist already covers ToolName).
type ToolApprovalRequest struct {
	SessionID SessionID `json:"session_id"`
	CallID    string    `json:"call_id"`
	ToolName  string    `json:"tool_name"`
	Args      string    `json:"args"`
}

// ToolApprovalResponse answers a ToolApprovalRequest. AllowForSession
// decisions are remembered for the lifetime of the session: subsequent calls
// to the same ToolName skip the approval prompt entirely.
type ToolApprovalResponse struct {
	SessionID SessionID        `json:"session_id"`
	CallID    string           `json:"call_id"`
	Decision  ApprovalDecision `json:"decision"`
}
