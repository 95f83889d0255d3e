package asana

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justtrance-web/artvision-tg-bot/pkg/telegram"
)

const (
	dateLayout      = "2006-01-02"
	attentionShown  = 5
	overdueShown    = 10
	workloadUsers   = 10
	workloadWorkers = 4
)

// Source is the task data a Reporter reads
type Source interface {
	ProjectTasks(ctx context.Context, projectID string) ([]Task, error)
	UserTasks(ctx context.Context, userGID string) ([]Task, error)
	WorkspaceUsers(ctx context.Context) ([]User, error)
}

// Reporter renders HTML reports for one project
type Reporter struct {
	src     Source
	project string
	now     func() time.Time
}

func NewReporter(src Source, project string) *Reporter {
	return &Reporter{src: src, project: project, now: time.Now}
}

// Attention lists tasks missing a due date or an assignee
func (r *Reporter) Attention(ctx context.Context) (string, error) {
	tasks, err := r.src.ProjectTasks(ctx, r.project)
	if err != nil {
		return "", err
	}
	return AttentionReport(tasks), nil
}

// Overdue lists tasks whose due date has passed
func (r *Reporter) Overdue(ctx context.Context) (string, error) {
	tasks, err := r.src.ProjectTasks(ctx, r.project)
	if err != nil {
		return "", err
	}
	return OverdueReport(tasks, r.now()), nil
}

// Week lists tasks due within seven days, grouped by date
func (r *Reporter) Week(ctx context.Context) (string, error) {
	tasks, err := r.src.ProjectTasks(ctx, r.project)
	if err != nil {
		return "", err
	}
	return WeekReport(tasks, r.now()), nil
}

// Load is the open task count of one user
type Load struct {
	Name  string
	Count int
}

// Workload counts open tasks for the first workspace users
func (r *Reporter) Workload(ctx context.Context) (string, error) {
	users, err := r.src.WorkspaceUsers(ctx)
	if err != nil {
		return "", err
	}
	if len(users) > workloadUsers {
		users = users[:workloadUsers]
	}

	loads := make([]Load, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workloadWorkers)
	for i, u := range users {
		g.Go(func() error {
			tasks, err := r.src.UserTasks(gctx, u.GID)
			if err != nil {
				return fmt.Errorf("tasks of %s: %w", u.Name, err)
			}
			loads[i] = Load{Name: u.Name, Count: len(tasks)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return WorkloadReport(loads), nil
}

func AttentionReport(tasks []Task) string {
	var noDue, noAssignee []Task
	for _, t := range tasks {
		if t.DueOn == "" {
			noDue = append(noDue, t)
		}
		if t.Assignee == nil {
			noAssignee = append(noAssignee, t)
		}
	}
	if len(noDue) == 0 && len(noAssignee) == 0 {
		return "✅ Все задачи имеют сроки и исполнителей!"
	}

	var b strings.Builder
	b.WriteString("📋 <b>Задачи требуют внимания</b>\n\n")
	if len(noDue) > 0 {
		fmt.Fprintf(&b, "⏰ <b>Без срока (%d):</b>\n", len(noDue))
		writeCapped(&b, noDue)
		b.WriteString("\n")
	}
	if len(noAssignee) > 0 {
		fmt.Fprintf(&b, "👤 <b>Без исполнителя (%d):</b>\n", len(noAssignee))
		writeCapped(&b, noAssignee)
	}
	return b.String()
}

func writeCapped(b *strings.Builder, tasks []Task) {
	for i, t := range tasks {
		if i == attentionShown {
			fmt.Fprintf(b, "<i>...и ещё %d</i>\n", len(tasks)-attentionShown)
			return
		}
		fmt.Fprintf(b, "• %s\n", telegram.Escape(t.Name))
	}
}

func OverdueReport(tasks []Task, now time.Time) string {
	today := now.UTC().Format(dateLayout)
	var overdue []Task
	for _, t := range tasks {
		if t.DueOn != "" && t.DueOn < today {
			overdue = append(overdue, t)
		}
	}
	if len(overdue) == 0 {
		return "✅ Просроченных задач нет!"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔴 <b>Просроченные задачи (%d):</b>\n\n", len(overdue))
	for i, t := range overdue {
		if i == overdueShown {
			break
		}
		fmt.Fprintf(&b, "• %s\n  📅 %s | 👤 %s\n\n", telegram.Escape(t.Name), t.DueOn, telegram.Escape(t.AssigneeName()))
	}
	return b.String()
}

func WeekReport(tasks []Task, now time.Time) string {
	from := now.UTC().Format(dateLayout)
	to := now.UTC().AddDate(0, 0, 7).Format(dateLayout)

	byDate := map[string][]Task{}
	count := 0
	for _, t := range tasks {
		if t.DueOn != "" && t.DueOn >= from && t.DueOn <= to {
			byDate[t.DueOn] = append(byDate[t.DueOn], t)
			count++
		}
	}
	if count == 0 {
		return "📅 На ближайшую неделю задач не запланировано"
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>Задачи на неделю (%d):</b>\n\n", count)
	for _, d := range dates {
		fmt.Fprintf(&b, "<b>%s:</b>\n", d)
		for _, t := range byDate[d] {
			fmt.Fprintf(&b, "• %s (%s)\n", telegram.Escape(t.Name), telegram.Escape(t.AssigneeName()))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func WorkloadReport(loads []Load) string {
	var b strings.Builder
	b.WriteString("📊 <b>Загрузка команды:</b>\n\n")
	for _, l := range loads {
		emoji := "🟢"
		switch {
		case l.Count > 10:
			emoji = "🔴"
		case l.Count > 5:
			emoji = "🟡"
		}
		fmt.Fprintf(&b, "%s <b>%s</b>: %d задач\n", emoji, telegram.Escape(l.Name), l.Count)
	}
	return b.String()
}
