package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/druzicka/youtrack-mcp-server/internal/youtrack"
)

// ToolHandlers contains all MCP tool handlers
type ToolHandlers struct {
	client   *youtrack.Client
	readOnly bool
}

// NewToolHandlers creates new tool handlers
func NewToolHandlers(client *youtrack.Client) *ToolHandlers {
	readOnly := os.Getenv("YOUTRACK_MCP_READ_ONLY") == "true"
	if readOnly {
		slog.Info("read-only mode enabled - all write operations will be blocked")
	}
	return &ToolHandlers{
		client:   client,
		readOnly: readOnly,
	}
}

// checkReadOnly returns an error if the server is in read-only mode.
func (h *ToolHandlers) checkReadOnly() error {
	if h.readOnly {
		return youtrack.NewError(youtrack.CodeAuth, "server is in read-only mode - write operations are disabled")
	}
	return nil
}

// McpServer interface for registering tools
type McpServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// ToolEntry pairs a tool definition with its handler
type ToolEntry struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// RegisterTools registers all MCP tools on the server
func (h *ToolHandlers) RegisterTools(s McpServer) {
	for _, entry := range h.Tools() {
		s.AddTool(entry.Tool, entry.Handler)
	}
}

// Tools returns every tool definition with its handler in registration
// order. The HTTP transport reuses this table for listing and dispatch.
func (h *ToolHandlers) Tools() []ToolEntry {
	return []ToolEntry{
		{
			Tool: mcp.NewTool("youtrack.get_issue",
				mcp.WithDescription("Get complete issue data including comments, attachments, and work items"),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID (e.g., 'PROJ-123')"),
				),
				mcp.WithBoolean("include_comments",
					mcp.Description("Include comments (default: true)"),
					mcp.DefaultBool(true),
				),
				mcp.WithBoolean("include_attachments",
					mcp.Description("Include attachment metadata (default: true)"),
					mcp.DefaultBool(true),
				),
				mcp.WithBoolean("include_work_items",
					mcp.Description("Include time-tracking work items (default: true)"),
					mcp.DefaultBool(true),
				),
			),
			Handler: h.handleGetIssue,
		},
		{
			Tool: mcp.NewTool("youtrack.list_issues",
				mcp.WithDescription("List issues with optional filtering and pagination"),
				mcp.WithString("project",
					mcp.Description("Project key to filter by"),
				),
				mcp.WithString("state",
					mcp.Description("Issue state to filter by (e.g., 'Open')"),
				),
				mcp.WithString("assignee",
					mcp.Description("Assignee login to filter by"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Number of issues to return (default: 50)"),
					mcp.DefaultNumber(50),
				),
				mcp.WithNumber("offset",
					mcp.Description("Offset for pagination (default: 0)"),
					mcp.DefaultNumber(0),
				),
			),
			Handler: h.handleListIssues,
		},
		{
			Tool: mcp.NewTool("youtrack.download_attachment",
				mcp.WithDescription("Download an attachment from an issue. Returns base64-encoded content."),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
				mcp.WithString("attachment_id",
					mcp.Required(),
					mcp.Description("Attachment ID"),
				),
			),
			Handler: h.handleDownloadAttachment,
		},
		{
			Tool: mcp.NewTool("youtrack.upload_attachment",
				mcp.WithDescription("Upload an attachment to an issue"),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
				mcp.WithString("filename",
					mcp.Required(),
					mcp.Description("Filename (e.g., 'report.pdf')"),
				),
				mcp.WithString("content",
					mcp.Required(),
					mcp.Description("File content as base64-encoded string"),
				),
			),
			Handler: h.handleUploadAttachment,
		},
		{
			Tool: mcp.NewTool("youtrack.list_projects",
				mcp.WithDescription("List all projects"),
			),
			Handler: h.handleListProjects,
		},
		{
			Tool: mcp.NewTool("youtrack.add_comment",
				mcp.WithDescription("Add a comment to an issue"),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
				mcp.WithString("text",
					mcp.Required(),
					mcp.Description("Comment text"),
				),
			),
			Handler: h.handleAddComment,
		},
		{
			Tool: mcp.NewTool("youtrack.update_comment",
				mcp.WithDescription("Update the text of an existing comment"),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
				mcp.WithString("comment_id",
					mcp.Required(),
					mcp.Description("Comment ID"),
				),
				mcp.WithString("text",
					mcp.Required(),
					mcp.Description("New comment text"),
				),
			),
			Handler: h.handleUpdateComment,
		},
		{
			Tool: mcp.NewTool("youtrack.add_work_item",
				mcp.WithDescription("Record time spent on an issue"),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
				mcp.WithNumber("duration",
					mcp.Required(),
					mcp.Description("Duration in milliseconds"),
				),
				mcp.WithString("description",
					mcp.Required(),
					mcp.Description("What the time was spent on"),
				),
				mcp.WithString("date",
					mcp.Description("Work date (YYYY-MM-DD, default: today)"),
				),
				mcp.WithString("type",
					mcp.Description("Work item type name (e.g., 'Development')"),
				),
			),
			Handler: h.handleAddWorkItem,
		},
		{
			Tool: mcp.NewTool("youtrack.update_issue",
				mcp.WithDescription("Update issue fields. Returns the refetched issue."),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
				mcp.WithString("summary",
					mcp.Description("New summary"),
				),
				mcp.WithString("description",
					mcp.Description("New description"),
				),
				mcp.WithString("state",
					mcp.Description("New state name (e.g., 'Fixed')"),
				),
				mcp.WithString("priority",
					mcp.Description("New priority name (e.g., 'Critical')"),
				),
				mcp.WithString("assignee",
					mcp.Description("New assignee login"),
				),
			),
			Handler: h.handleUpdateIssue,
		},
		{
			Tool: mcp.NewTool("youtrack.export_work_items",
				mcp.WithDescription("Export an issue's work items as an xlsx timesheet. Returns base64-encoded content."),
				mcp.WithString("issue_id",
					mcp.Required(),
					mcp.Description("Issue ID"),
				),
			),
			Handler: h.handleExportWorkItems,
		},
	}
}

// Handler implementations

func (h *ToolHandlers) handleGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}

	include := youtrack.IncludeOptions{
		Comments:    req.GetBool("include_comments", true),
		Attachments: req.GetBool("include_attachments", true),
		WorkItems:   req.GetBool("include_work_items", true),
	}

	full, err := h.client.GetIssueFull(ctx, issueID, include)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(full)
}

func (h *ToolHandlers) handleListIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := youtrack.ListIssuesParams{
		Project:  req.GetString("project", ""),
		State:    req.GetString("state", ""),
		Assignee: req.GetString("assignee", ""),
		Limit:    req.GetInt("limit", 50),
		Offset:   req.GetInt("offset", 0),
	}

	issues, err := h.client.ListIssues(ctx, params)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"issues": issues,
		"count":  len(issues),
	})
}

func (h *ToolHandlers) handleDownloadAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}
	attachmentID, err := requireNonEmpty(req, "attachment_id")
	if err != nil {
		return errorResult(err)
	}

	// The content endpoint serves raw bytes only, so filename and MIME type
	// come from the attachment listing.
	attachments, err := h.client.ListAttachments(ctx, issueID)
	if err != nil {
		return errorResult(err)
	}
	var meta *youtrack.Attachment
	for i := range attachments {
		if attachments[i].ID == attachmentID {
			meta = &attachments[i]
			break
		}
	}
	if meta == nil {
		return errorResult(youtrack.NewError(youtrack.CodeNotFound,
			"attachment %s not found on issue %s", attachmentID, issueID))
	}

	data, err := h.client.DownloadAttachment(ctx, issueID, attachmentID)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"attachment_id": meta.ID,
		"filename":      meta.Name,
		"content_type":  meta.ContentType,
		"size":          len(data),
		"content":       base64.StdEncoding.EncodeToString(data),
	})
}

func (h *ToolHandlers) handleUploadAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return errorResult(err)
	}

	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}
	filename, err := requireNonEmpty(req, "filename")
	if err != nil {
		return errorResult(err)
	}
	contentB64, err := requireNonEmpty(req, "content")
	if err != nil {
		return errorResult(err)
	}

	decoded, err := base64.StdEncoding.DecodeString(contentB64)
	if err != nil {
		return errorResult(youtrack.NewError(youtrack.CodeValidation, "invalid base64 content: %v", err))
	}

	attachment, err := h.client.UploadAttachment(ctx, issueID, filename, decoded)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(attachment)
}

func (h *ToolHandlers) handleListProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := h.client.ListProjects(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"projects": projects,
		"count":    len(projects),
	})
}

func (h *ToolHandlers) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return errorResult(err)
	}

	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}
	text, err := requireNonEmpty(req, "text")
	if err != nil {
		return errorResult(err)
	}

	comment, err := h.client.AddComment(ctx, issueID, text)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(comment)
}

func (h *ToolHandlers) handleUpdateComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return errorResult(err)
	}

	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}
	commentID, err := requireNonEmpty(req, "comment_id")
	if err != nil {
		return errorResult(err)
	}
	text, err := requireNonEmpty(req, "text")
	if err != nil {
		return errorResult(err)
	}

	comment, err := h.client.UpdateComment(ctx, issueID, commentID, text)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(comment)
}

func (h *ToolHandlers) handleAddWorkItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return errorResult(err)
	}

	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}
	duration, err := req.RequireFloat("duration")
	if err != nil {
		return errorResult(youtrack.NewError(youtrack.CodeValidation, "%v", err))
	}
	description, err := requireNonEmpty(req, "description")
	if err != nil {
		return errorResult(err)
	}

	params := youtrack.AddWorkItemParams{
		Duration:    int64(duration),
		Description: description,
		Type:        req.GetString("type", ""),
	}
	if date := req.GetString("date", ""); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return errorResult(youtrack.NewError(youtrack.CodeValidation, "invalid date %q: expected YYYY-MM-DD", date))
		}
		params.Date = parsed
	}

	item, err := h.client.AddWorkItem(ctx, issueID, params)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(item)
}

func (h *ToolHandlers) handleUpdateIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return errorResult(err)
	}

	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}

	// Only fields present in the arguments are touched; an empty string is
	// a deliberate value, absence is not.
	args := req.GetArguments()
	var params youtrack.UpdateIssueParams
	if v, ok := args["summary"].(string); ok {
		params.Summary = &v
	}
	if v, ok := args["description"].(string); ok {
		params.Description = &v
	}
	if v, ok := args["state"].(string); ok {
		params.State = &v
	}
	if v, ok := args["priority"].(string); ok {
		params.Priority = &v
	}
	if v, ok := args["assignee"].(string); ok {
		params.Assignee = &v
	}

	if err := h.client.UpdateIssue(ctx, issueID, params); err != nil {
		return errorResult(err)
	}

	full, err := h.client.GetIssueFull(ctx, issueID, youtrack.IncludeOptions{
		Comments:    true,
		Attachments: true,
		WorkItems:   true,
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(full)
}

// Helpers

// requireNonEmpty reads a required string argument and rejects missing or
// blank values as validation faults
func requireNonEmpty(req mcp.CallToolRequest, key string) (string, error) {
	value, err := req.RequireString(key)
	if err != nil {
		return "", youtrack.NewError(youtrack.CodeValidation, "%v", err)
	}
	if strings.TrimSpace(value) == "" {
		return "", youtrack.NewError(youtrack.CodeValidation, "%s must not be empty", key)
	}
	return value, nil
}

// errorResult renders a fault as a structured tool error carrying its
// stable code next to the message
func errorResult(err error) (*mcp.CallToolResult, error) {
	payload, mErr := json.Marshal(map[string]string{
		"code":    string(youtrack.CodeOf(err)),
		"message": err.Error(),
	})
	if mErr != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultError(string(payload)), nil
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
