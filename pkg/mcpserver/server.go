// Package mcpserver exposes the moderation queue as MCP tools so a
// moderator can review ideas from an MCP-capable assistant.
//
// Every tool acts as one configured moderator; the gateway re-checks the
// allow-list on each call exactly as it does for chat buttons.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New registers the moderation tools on a new MCP server
func New(gw *moderation.Gateway, store *ideas.Store, moderatorID int64) *server.MCPServer {
	s := server.NewMCPServer(
		"artvision-moderation",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	list := NewListTool(store)
	s.AddTool(list.Definition(), list.Handle)

	moderate := NewModerateTool(gw, moderatorID)
	s.AddTool(moderate.ApproveDefinition(), moderate.HandleApprove)
	s.AddTool(moderate.RejectDefinition(), moderate.HandleReject)
	s.AddTool(moderate.DoneDefinition(), moderate.HandleDone)

	return s
}

const instructions = `Tools for moderating client ideas of the Artvision bot.
Use list_ideas to see the pending queue, then approve_idea or reject_idea.
Approving broadcasts the idea to every client, so confirm with the user first.
mark_idea_done tells every client who asked for the idea that it shipped.`
