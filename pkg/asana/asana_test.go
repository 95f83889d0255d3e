package asana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

var today = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fakeAsana(t *testing.T) *httptest.Server {
	t.Helper()
	ann := &User{GID: "u1", Name: "Anna"}
	projectTasks := []Task{
		{GID: "1", Name: "Fix <login>", DueOn: "2025-03-01", Assignee: ann},
		{GID: "2", Name: "Write brief", DueOn: "2025-03-12"},
		{GID: "3", Name: "Call client", Assignee: ann},
		{GID: "4", Name: "Release", DueOn: "2025-03-17", Assignee: ann},
		{GID: "5", Name: "Later", DueOn: "2025-04-01", Assignee: ann},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "now", r.URL.Query().Get("completed_since"))
		switch {
		case r.URL.Query().Get("project") == "p1":
			json.NewEncoder(w).Encode(map[string]interface{}{"data": projectTasks})
		case r.URL.Query().Get("assignee") != "":
			assert.Equal(t, "w1", r.URL.Query().Get("workspace"))
			n := map[string]int{"u1": 3, "u2": 7, "u3": 12}[r.URL.Query().Get("assignee")]
			tasks := make([]Task, n)
			json.NewEncoder(w).Encode(map[string]interface{}{"data": tasks})
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errors":[{"message":"project or assignee required"}]}`)
		}
	})
	mux.HandleFunc("/workspaces/w1/users", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []User{
			{GID: "u1", Name: "Anna"}, {GID: "u2", Name: "Boris"}, {GID: "u3", Name: "Vera"},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newReporter(t *testing.T) *Reporter {
	srv := fakeAsana(t)
	r := NewReporter(NewClient(srv.URL, "secret", "w1"), "p1")
	r.now = func() time.Time { return today }
	return r
}

func TestAttention(t *testing.T) {
	text, err := newReporter(t).Attention(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Без срока (1)")
	assert.Contains(t, text, "• Call client")
	assert.Contains(t, text, "Без исполнителя (1)")
	assert.Contains(t, text, "• Write brief")
}

func TestAttentionCapsGroups(t *testing.T) {
	var tasks []Task
	for i := 0; i < 8; i++ {
		tasks = append(tasks, Task{Name: fmt.Sprintf("t%d", i)})
	}
	text := AttentionReport(tasks)
	assert.Contains(t, text, "Без срока (8)")
	assert.Contains(t, text, "...и ещё 3")
	assert.NotContains(t, text, "t5\n")

	assert.Equal(t, "✅ Все задачи имеют сроки и исполнителей!",
		AttentionReport([]Task{{Name: "ok", DueOn: "2025-01-01", Assignee: &User{Name: "A"}}}))
}

func TestOverdue(t *testing.T) {
	text, err := newReporter(t).Overdue(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Просроченные задачи (1)")
	assert.Contains(t, text, "Fix &lt;login&gt;")
	assert.Contains(t, text, "📅 2025-03-01 | 👤 Anna")

	assert.Equal(t, "✅ Просроченных задач нет!", OverdueReport(nil, today))
}

func TestWeek(t *testing.T) {
	text, err := newReporter(t).Week(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Задачи на неделю (2)")
	assert.Less(t, strings.Index(text, "2025-03-12"), strings.Index(text, "2025-03-17"))
	assert.Contains(t, text, "• Write brief (—)")
	assert.NotContains(t, text, "Later")

	assert.Equal(t, "📅 На ближайшую неделю задач не запланировано", WeekReport(nil, today))
}

func TestWorkload(t *testing.T) {
	text, err := newReporter(t).Workload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "📊 <b>Загрузка команды:</b>\n\n"+
		"🟢 <b>Anna</b>: 3 задач\n"+
		"🟡 <b>Boris</b>: 7 задач\n"+
		"🔴 <b>Vera</b>: 12 задач\n", text)
}

func TestClientErrors(t *testing.T) {
	srv := fakeAsana(t)

	_, err := NewClient(srv.URL, "", "w1").ProjectTasks(context.Background(), "p1")
	assert.ErrorIs(t, err, models.ErrUpstream)

	_, err = NewClient(srv.URL, "secret", "w1").ProjectTasks(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Contains(t, err.Error(), "project or assignee required")
}
