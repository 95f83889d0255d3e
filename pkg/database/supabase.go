package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// SupabaseDatabase Supabase数据库实现（PostgREST）
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(url, key string) *SupabaseDatabase {
	// 确保URL格式正确
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(url, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest 发送HTTP请求到Supabase（支持自定义头）
func (db *SupabaseDatabase) makeRequest(ctx context.Context, method, endpoint string, body interface{}, customHeaders map[string]string) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置默认请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	// 设置自定义请求头
	for key, value := range customHeaders {
		req.Header.Set(key, value)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, storageErr("send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, storageErr("read response body", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with status %d: %w: %s", resp.StatusCode, models.ErrStorage, string(respBody))
	}

	return respBody, nil
}

// decodeRows decodes a PostgREST array response
func decodeRows(data []byte, out interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("[]")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return storageErr("decode response", err)
	}
	return nil
}

func restTime(t time.Time) string {
	return url.QueryEscape(t.UTC().Format(time.RFC3339Nano))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ================= Clients =================

// UpsertClient 新建或刷新客户信息
// project 与 created_at 保留首次写入的值
func (db *SupabaseDatabase) UpsertClient(ctx context.Context, c *models.Client) error {
	now := time.Now().UTC()
	insert := map[string]interface{}{
		"id":            c.ID,
		"chat_id":       c.ChatID,
		"display_name":  c.DisplayName,
		"username":      c.Username,
		"project":       c.Project,
		"active":        true,
		"notify_opt_in": true,
		"created_at":    now,
		"updated_at":    now,
	}
	_, err := db.makeRequest(ctx, "POST", "/clients?on_conflict=id", insert, map[string]string{
		"Prefer": "return=minimal,resolution=ignore-duplicates",
	})
	if err != nil {
		return err
	}

	patch := map[string]interface{}{
		"chat_id":      c.ChatID,
		"display_name": c.DisplayName,
		"username":     c.Username,
		"active":       true,
		"updated_at":   now,
	}
	data, err := db.makeRequest(ctx, "PATCH", "/clients?id=eq."+itoa(c.ID), patch, nil)
	if err != nil {
		return err
	}
	var rows []models.Client
	if err := decodeRows(data, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("client %d: %w", c.ID, models.ErrNotFound)
	}
	stored := rows[0]

	// 只有空 project 才会被填充
	if stored.Project == "" && c.Project != "" {
		data, err = db.makeRequest(ctx, "PATCH", "/clients?id=eq."+itoa(c.ID)+"&project=eq.",
			map[string]interface{}{"project": c.Project}, nil)
		if err != nil {
			return err
		}
		rows = nil
		if err := decodeRows(data, &rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			stored = rows[0]
		}
	}

	*c = stored
	return nil
}

// GetClient 根据ID获取客户
func (db *SupabaseDatabase) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	data, err := db.makeRequest(ctx, "GET", "/clients?id=eq."+itoa(id)+"&select=*", nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Client
	if err := decodeRows(data, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return &rows[0], nil
}

// SetClientNotify 设置通知订阅
func (db *SupabaseDatabase) SetClientNotify(ctx context.Context, id int64, optIn bool) error {
	data, err := db.makeRequest(ctx, "PATCH", "/clients?id=eq."+itoa(id), map[string]interface{}{
		"notify_opt_in": optIn,
		"updated_at":    time.Now().UTC(),
	}, nil)
	if err != nil {
		return err
	}
	var rows []models.Client
	if err := decodeRows(data, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetClientActive 标记客户是否可达
func (db *SupabaseDatabase) SetClientActive(ctx context.Context, id int64, active bool) error {
	data, err := db.makeRequest(ctx, "PATCH", "/clients?id=eq."+itoa(id), map[string]interface{}{
		"active":     active,
		"updated_at": time.Now().UTC(),
	}, nil)
	if err != nil {
		return err
	}
	var rows []models.Client
	if err := decodeRows(data, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListBroadcastClients 获取可接收广播的客户
func (db *SupabaseDatabase) ListBroadcastClients(ctx context.Context, excludeID int64) ([]int64, error) {
	data, err := db.makeRequest(ctx, "GET",
		"/clients?select=id&active=is.true&notify_opt_in=is.true&id=neq."+itoa(excludeID)+"&order=id.asc", nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID int64 `json:"id"`
	}
	if err := decodeRows(data, &rows); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ================= Ideas =================

// CreateIdea 创建想法（状态固定为 pending）
func (db *SupabaseDatabase) CreateIdea(ctx context.Context, idea *models.Idea) error {
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = time.Now().UTC()
	}
	idea.Status = models.IdeaPending
	payload := map[string]interface{}{
		"id":             idea.ID,
		"author_id":      idea.AuthorID,
		"author_project": idea.AuthorProject,
		"title":          idea.Title,
		"description":    idea.Description,
		"modality":       idea.Modality,
		"transcript":     idea.Transcript,
		"status":         idea.Status,
		"created_at":     idea.CreatedAt,
	}
	_, err := db.makeRequest(ctx, "POST", "/ideas", payload, map[string]string{"Prefer": "return=minimal"})
	return err
}

// GetIdea 根据ID获取想法
func (db *SupabaseDatabase) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	data, err := db.makeRequest(ctx, "GET", "/ideas?id=eq."+url.QueryEscape(id)+"&select=*", nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Idea
	if err := decodeRows(data, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("idea %s: %w", id, models.ErrNotFound)
	}
	return &rows[0], nil
}

// TransitionIdea 条件更新想法状态（PATCH 带 status 过滤）
func (db *SupabaseDatabase) TransitionIdea(ctx context.Context, t models.IdeaTransition) (*models.Idea, error) {
	if !models.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("illegal transition %s -> %s: %w", t.From, t.To, models.ErrConflict)
	}
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	actorCol, timeCol := transitionColumns(t.To)
	var actor interface{}
	if t.ActorID != 0 {
		actor = t.ActorID
	}
	patch := map[string]interface{}{
		"status": t.To,
		actorCol: actor,
		timeCol:  at.UTC(),
	}
	endpoint := "/ideas?id=eq." + url.QueryEscape(t.IdeaID) + "&status=eq." + string(t.From)
	data, err := db.makeRequest(ctx, "PATCH", endpoint, patch, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Idea
	if err := decodeRows(data, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		current, err := db.GetIdea(ctx, t.IdeaID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("idea %s is %s, not %s: %w", t.IdeaID, current.Status, t.From, models.ErrConflict)
	}
	return &rows[0], nil
}

// ListIdeasByStatus 按状态列出想法（新的在前）
func (db *SupabaseDatabase) ListIdeasByStatus(ctx context.Context, status models.IdeaStatus, limit int) ([]models.Idea, error) {
	endpoint := fmt.Sprintf("/ideas?status=eq.%s&select=*&order=created_at.desc,id.desc&limit=%d", status, normalizeLimit(limit))
	data, err := db.makeRequest(ctx, "GET", endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	ideas := []models.Idea{}
	if err := decodeRows(data, &ideas); err != nil {
		return nil, err
	}
	return ideas, nil
}

// ================= Interest =================

// CreateInterestRequest 插入兴趣请求（重复则忽略，返回空数组）
func (db *SupabaseDatabase) CreateInterestRequest(ctx context.Context, r *models.InterestRequest) (bool, error) {
	if r.Status == "" {
		r.Status = models.InterestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	data, err := db.makeRequest(ctx, "POST", "/interest_requests?on_conflict=idea_id,client_id", r, map[string]string{
		"Prefer": "return=representation,resolution=ignore-duplicates",
	})
	if err != nil {
		return false, err
	}
	var rows []models.InterestRequest
	if err := decodeRows(data, &rows); err != nil {
		return false, err
	}
	return len(rows) == 1, nil
}

// ListInterestedClients 获取对想法感兴趣的客户
func (db *SupabaseDatabase) ListInterestedClients(ctx context.Context, ideaID string) ([]int64, error) {
	data, err := db.makeRequest(ctx, "GET",
		"/interest_requests?idea_id=eq."+url.QueryEscape(ideaID)+"&select=client_id&order=client_id.asc", nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ClientID int64 `json:"client_id"`
	}
	if err := decodeRows(data, &rows); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ClientID)
	}
	return ids, nil
}

// ================= Broadcast audit =================

// SaveBroadcast 保存广播审计记录
func (db *SupabaseDatabase) SaveBroadcast(ctx context.Context, l *models.BroadcastLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.Failed == nil {
		l.Failed = []int64{}
	}
	_, err := db.makeRequest(ctx, "POST", "/broadcast_logs", l, map[string]string{"Prefer": "return=minimal"})
	return err
}

// ListBroadcasts 获取想法的广播记录
func (db *SupabaseDatabase) ListBroadcasts(ctx context.Context, ideaID string) ([]models.BroadcastLog, error) {
	data, err := db.makeRequest(ctx, "GET",
		"/broadcast_logs?idea_id=eq."+url.QueryEscape(ideaID)+"&select=*&order=created_at.asc,id.asc", nil, nil)
	if err != nil {
		return nil, err
	}
	var logs []models.BroadcastLog
	if err := decodeRows(data, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// ================= Session modes =================

// GetSessionMode 获取未过期的会话模式
func (db *SupabaseDatabase) GetSessionMode(ctx context.Context, userID int64, now time.Time) (models.SessionMode, error) {
	data, err := db.makeRequest(ctx, "GET",
		"/session_modes?user_id=eq."+itoa(userID)+"&expires_at=gt."+restTime(now)+"&select=mode", nil, nil)
	if err != nil {
		return models.ModeNone, err
	}
	var rows []struct {
		Mode models.SessionMode `json:"mode"`
	}
	if err := decodeRows(data, &rows); err != nil {
		return models.ModeNone, err
	}
	if len(rows) == 0 {
		return models.ModeNone, nil
	}
	return rows[0].Mode, nil
}

// SetSessionMode 设置会话模式
func (db *SupabaseDatabase) SetSessionMode(ctx context.Context, userID int64, mode models.SessionMode, expiresAt time.Time) error {
	if mode == models.ModeNone {
		return db.ClearSessionMode(ctx, userID)
	}
	_, err := db.makeRequest(ctx, "POST", "/session_modes?on_conflict=user_id", map[string]interface{}{
		"user_id":    userID,
		"mode":       mode,
		"expires_at": expiresAt.UTC(),
	}, map[string]string{"Prefer": "return=minimal,resolution=merge-duplicates"})
	return err
}

// ClearSessionMode 清除会话模式
func (db *SupabaseDatabase) ClearSessionMode(ctx context.Context, userID int64) error {
	_, err := db.makeRequest(ctx, "DELETE", "/session_modes?user_id=eq."+itoa(userID), nil, map[string]string{"Prefer": "return=minimal"})
	return err
}

// DeleteExpiredSessions 删除过期会话
func (db *SupabaseDatabase) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	data, err := db.makeRequest(ctx, "DELETE", "/session_modes?expires_at=lte."+restTime(now)+"&select=user_id", nil, nil)
	if err != nil {
		return 0, err
	}
	var rows []json.RawMessage
	if err := decodeRows(data, &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.makeRequest(ctx, "GET", "/clients?select=id&limit=1", nil, nil)
	return err
}

// Close REST 客户端无需关闭
func (db *SupabaseDatabase) Close() error {
	db.httpClient.CloseIdleConnections()
	return nil
}
