package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
)

// ListTool handles the list_ideas tool.
type ListTool struct {
	store *ideas.Store
	now   func() time.Time
}

func NewListTool(store *ideas.Store) *ListTool {
	return &ListTool{store: store, now: time.Now}
}

func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("list_ideas",
		mcp.WithDescription("List client ideas by moderation status, newest first."),
		mcp.WithString("status",
			mcp.Description("pending (default), approved, rejected or done"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum ideas to return (default 10, max 50)"),
		),
	)
}

func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := models.IdeaStatus(req.GetString("status", string(models.IdeaPending)))
	limit := intArg(req, "limit", 10)

	list, err := t.store.ListByStatus(ctx, status, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list ideas: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No %s ideas.", status)), nil
	}

	now := t.now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s ideas (%d)\n\n", strings.ToUpper(string(status[:1]))+string(status[1:]), len(list))
	for _, idea := range list {
		fmt.Fprintf(&sb, "- **%s** `%s`\n", idea.Title, idea.ID)
		fmt.Fprintf(&sb, "  author %d, %s, %s\n", idea.AuthorID, idea.Modality, humanize.RelTime(idea.CreatedAt, now, "ago", "from now"))
		if idea.Description != "" && idea.Description != idea.Title {
			fmt.Fprintf(&sb, "  %s\n", oneLine(idea.Description))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ModerateTool handles approve_idea, reject_idea and mark_idea_done.
type ModerateTool struct {
	gw          *moderation.Gateway
	moderatorID int64
}

func NewModerateTool(gw *moderation.Gateway, moderatorID int64) *ModerateTool {
	return &ModerateTool{gw: gw, moderatorID: moderatorID}
}

func (t *ModerateTool) ApproveDefinition() mcp.Tool {
	return mcp.NewTool("approve_idea",
		mcp.WithDescription("Approve a pending idea and announce it to all other clients."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea id")),
	)
}

func (t *ModerateTool) RejectDefinition() mcp.Tool {
	return mcp.NewTool("reject_idea",
		mcp.WithDescription("Reject a pending idea. Nothing is broadcast."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea id")),
	)
}

func (t *ModerateTool) DoneDefinition() mcp.Tool {
	return mcp.NewTool("mark_idea_done",
		mcp.WithDescription("Mark an approved idea as implemented and notify every client who requested it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea id")),
		mcp.WithNumber("target_client_id", mcp.Description("Telegram id of the client it was built for (optional)")),
	)
}

func (t *ModerateTool) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}
	out, err := t.gw.Approve(ctx, id, t.moderatorID)
	if err != nil {
		return moderationError("approve", err), nil
	}
	return outcomeResult("Approved", out), nil
}

func (t *ModerateTool) HandleReject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}
	out, err := t.gw.Reject(ctx, id, t.moderatorID)
	if err != nil {
		return moderationError("reject", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rejected **%s**.", out.Idea.Title)), nil
}

func (t *ModerateTool) HandleDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}
	target := int64(intArg(req, "target_client_id", 0))
	out, err := t.gw.MarkDone(ctx, id, target, t.moderatorID)
	if err != nil {
		return moderationError("mark done", err), nil
	}
	return outcomeResult("Marked done", out), nil
}

func requireID(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return "", mcp.NewToolResultError("id is required")
	}
	return id, nil
}

func outcomeResult(verb string, out *moderation.Outcome) *mcp.CallToolResult {
	if out.AnnounceErr != nil {
		return mcp.NewToolResultText(fmt.Sprintf("%s **%s**, but the announcement could not be sent: %v", verb, out.Idea.Title, out.AnnounceErr))
	}
	text := fmt.Sprintf("%s **%s**. Delivered %d of %d.", verb, out.Idea.Title, out.Broadcast.Delivered, out.Broadcast.Attempted)
	if n := len(out.Broadcast.Failed); n > 0 {
		text += fmt.Sprintf(" %d failed: %v", n, out.Broadcast.Failed)
	}
	return mcp.NewToolResultText(text)
}

func moderationError(op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, models.ErrForbidden):
		return mcp.NewToolResultError("the configured moderator is not on the admin allow-list")
	case errors.Is(err, models.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("cannot %s: the idea was already moderated or is in the wrong state", op))
	case errors.Is(err, models.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("cannot %s: %v", op, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err))
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 160 {
		return strings.ToValidUTF8(s[:160], "") + "…"
	}
	return s
}
