// Package asana reads project tasks and workspace users from the Asana REST API
// and renders the team reports the bot serves.
package asana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// DefaultAPIBase is the public Asana endpoint
const DefaultAPIBase = "https://app.asana.com/api/1.0"

const taskFields = "name,due_on,assignee,assignee.name,completed"

// Task is an open Asana task
type Task struct {
	GID       string `json:"gid"`
	Name      string `json:"name"`
	DueOn     string `json:"due_on"` // YYYY-MM-DD or empty
	Completed bool   `json:"completed"`
	Assignee  *User  `json:"assignee"`
}

// User is a workspace member
type User struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AssigneeName returns the assignee name or a dash
func (t Task) AssigneeName() string {
	if t.Assignee == nil || t.Assignee.Name == "" {
		return "—"
	}
	return t.Assignee.Name
}

type Client struct {
	baseURL    string
	token      string
	workspace  string
	httpClient *http.Client
}

// NewClient creates an API client. baseURL may be empty.
func NewClient(baseURL, token, workspace string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		workspace: workspace,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Configured reports whether a token is set
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// ProjectTasks returns the incomplete tasks of a project
func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	q := url.Values{}
	q.Set("opt_fields", taskFields)
	q.Set("completed_since", "now")
	q.Set("project", projectID)

	var tasks []Task
	if err := c.get(ctx, "/tasks", q, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UserTasks returns the incomplete tasks assigned to a user in the workspace
func (c *Client) UserTasks(ctx context.Context, userGID string) ([]Task, error) {
	q := url.Values{}
	q.Set("opt_fields", taskFields)
	q.Set("completed_since", "now")
	q.Set("assignee", userGID)
	q.Set("workspace", c.workspace)

	var tasks []Task
	if err := c.get(ctx, "/tasks", q, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// WorkspaceUsers lists the workspace members
func (c *Client) WorkspaceUsers(ctx context.Context) ([]User, error) {
	q := url.Values{}
	q.Set("opt_fields", "name,email")

	var users []User
	if err := c.get(ctx, "/workspaces/"+url.PathEscape(c.workspace)+"/users", q, &users); err != nil {
		return nil, err
	}
	return users, nil
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if !c.Configured() {
		return fmt.Errorf("asana token is not configured: %w", models.ErrUpstream)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create asana request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("asana %s: %w: %w", path, models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read asana response: %w: %w", models.ErrUpstream, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("asana %s: status %d: %w", path, resp.StatusCode, models.ErrUpstream)
	}
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		return fmt.Errorf("asana %s: %d %s: %w", path, resp.StatusCode, msg, models.ErrUpstream)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode asana %s: %w: %w", path, models.ErrUpstream, err)
	}
	return nil
}
