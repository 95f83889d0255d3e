package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

type commandFunc func(b *Bot, ctx context.Context, req *request, args []string) error

type command struct {
	run       commandFunc
	adminOnly bool
}

var commands = map[string]command{
	"start":    {run: (*Bot).cmdStart},
	"help":     {run: (*Bot).cmdHelp},
	"tasks":    {run: report(Reports.Attention)},
	"overdue":  {run: report(Reports.Overdue)},
	"week":     {run: report(Reports.Week)},
	"workload": {run: report(Reports.Workload), adminOnly: true},
	"idea":     {run: (*Bot).cmdIdea},
	"cancel":   {run: (*Bot).cmdCancel},
	"notify":   {run: (*Bot).cmdNotify},
	"ideas":    {run: (*Bot).cmdIdeas, adminOnly: true},
	"approve":  {run: (*Bot).cmdApprove, adminOnly: true},
	"reject":   {run: (*Bot).cmdReject, adminOnly: true},
	"done":     {run: (*Bot).cmdDone, adminOnly: true},
}

func (b *Bot) runCommand(ctx context.Context, req *request, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return b.reply(ctx, req.chatID, unknownCommandText)
	}
	// the gateway checks moderator actions again; this only saves a round trip
	if cmd.adminOnly && !b.Gateway.IsAdmin(req.userID) {
		return b.reply(ctx, req.chatID, adminOnlyText)
	}
	return cmd.run(b, ctx, req, args)
}

func (b *Bot) cmdStart(ctx context.Context, req *request, args []string) error {
	if len(args) > 0 {
		b.joinProject(ctx, req, args[0])
	}
	return b.reply(ctx, req.chatID, startText(req.name, b.PortalURL, b.Gateway.IsAdmin(req.userID)))
}

// projectTag is the payload Telegram allows in a t.me/<bot>?start=<payload> link
var projectTag = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// joinProject tags the client with the project of the invite link they came
// from. The first tag sticks; later links do not move a client.
func (b *Bot) joinProject(ctx context.Context, req *request, project string) {
	if req.client.Project != "" || !projectTag.MatchString(project) {
		return
	}
	c := *req.client
	c.Project = project
	c.UpdatedAt = b.now().UTC()
	if err := b.Clients.UpsertClient(ctx, &c); err != nil {
		b.Log.Warn("project tag not saved", zap.Int64("user_id", req.userID), zap.String("project", project), zap.Error(err))
		return
	}
	req.client = &c
	b.Log.Info("client joined project", zap.Int64("user_id", req.userID), zap.String("project", c.Project))
}

func (b *Bot) cmdHelp(ctx context.Context, req *request, _ []string) error {
	return b.reply(ctx, req.chatID, helpText(b.Gateway.IsAdmin(req.userID)))
}

func report(fetch func(Reports, context.Context) (string, error)) commandFunc {
	return func(b *Bot, ctx context.Context, req *request, _ []string) error {
		if b.Reports == nil {
			return b.reply(ctx, req.chatID, reportsDisabledText)
		}
		text, err := fetch(b.Reports, ctx)
		if err != nil {
			return b.fail(ctx, req.chatID, "report", err)
		}
		return b.reply(ctx, req.chatID, text)
	}
}

// cmdIdea starts idea mode, or submits right away when the idea follows the command
func (b *Bot) cmdIdea(ctx context.Context, req *request, args []string) error {
	if len(args) > 0 {
		return b.submit(ctx, req, ideas.SubmitParams{Description: strings.Join(args, " ")})
	}
	if err := b.Router.BeginIdea(ctx, req.userID); err != nil {
		return b.fail(ctx, req.chatID, "begin idea", err)
	}
	return b.reply(ctx, req.chatID, awaitingIdeaText)
}

func (b *Bot) cmdCancel(ctx context.Context, req *request, _ []string) error {
	was, err := b.Router.CancelIdea(ctx, req.userID)
	if err != nil {
		return b.fail(ctx, req.chatID, "cancel idea", err)
	}
	if !was {
		return b.reply(ctx, req.chatID, nothingToCancelText)
	}
	return b.reply(ctx, req.chatID, cancelledText)
}

func (b *Bot) cmdNotify(ctx context.Context, req *request, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return b.reply(ctx, req.chatID, notifyUsageText)
	}
	optIn := args[0] == "on"
	if err := b.Clients.SetClientNotify(ctx, req.userID, optIn); err != nil {
		return b.fail(ctx, req.chatID, "set notify", err)
	}
	if optIn {
		return b.reply(ctx, req.chatID, notifyOnText)
	}
	return b.reply(ctx, req.chatID, notifyOffText)
}

func (b *Bot) cmdIdeas(ctx context.Context, req *request, _ []string) error {
	pending, err := b.Gateway.ListPending(ctx, req.userID, 10)
	if err != nil {
		return b.fail(ctx, req.chatID, "list pending", err)
	}
	if len(pending) == 0 {
		return b.reply(ctx, req.chatID, noPendingText)
	}

	now := b.now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 <b>На модерации (%d):</b>\n\n", len(pending))
	for _, idea := range pending {
		fmt.Fprintf(&sb, "• <b>%s</b>", escape(idea.Title))
		if idea.Modality == models.ModalityVoice {
			sb.WriteString(" 🎙")
		}
		fmt.Fprintf(&sb, "\n  %s · <code>%s</code>\n", relAge(idea.CreatedAt, now), idea.ID)
	}
	sb.WriteString("\n/approve &lt;id&gt; · /reject &lt;id&gt;")
	return b.reply(ctx, req.chatID, sb.String())
}

func (b *Bot) cmdApprove(ctx context.Context, req *request, args []string) error {
	if len(args) != 1 {
		return b.reply(ctx, req.chatID, "Использование: /approve &lt;id&gt;")
	}
	out, err := b.Gateway.Approve(ctx, args[0], req.userID)
	if err != nil {
		return b.fail(ctx, req.chatID, "approve", err)
	}
	return b.reply(ctx, req.chatID, approvedText(out))
}

func (b *Bot) cmdReject(ctx context.Context, req *request, args []string) error {
	if len(args) != 1 {
		return b.reply(ctx, req.chatID, "Использование: /reject &lt;id&gt;")
	}
	out, err := b.Gateway.Reject(ctx, args[0], req.userID)
	if err != nil {
		return b.fail(ctx, req.chatID, "reject", err)
	}
	return b.reply(ctx, req.chatID, rejectedText(out))
}

func (b *Bot) cmdDone(ctx context.Context, req *request, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return b.reply(ctx, req.chatID, doneUsageText)
	}
	var target int64
	if len(args) == 2 {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return b.reply(ctx, req.chatID, doneUsageText)
		}
		target = id
	}
	out, err := b.Gateway.MarkDone(ctx, args[0], target, req.userID)
	if err != nil {
		return b.fail(ctx, req.chatID, "mark done", err)
	}
	b.Log.Info("idea completed from chat", zap.String("idea_id", out.Idea.ID), zap.Int64("target_client_id", target))
	return b.reply(ctx, req.chatID, doneText(out))
}
