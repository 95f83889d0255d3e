package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"

	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteDatabase 嵌入式 SQLite 实现（本地开发与测试）
type SQLiteDatabase struct {
	db *sql.DB
}

// NewSQLiteDatabase opens (creating if needed) the database file and applies the schema
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// 单连接：SQLite 写入串行化
	db.SetMaxOpenConns(1)

	s := &SQLiteDatabase{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables when missing
func (s *SQLiteDatabase) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		// rows written by hand (sqlite3 CLI) may use RFC3339
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullIntPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// ================= Clients =================

// UpsertClient 新建或刷新客户信息
func (s *SQLiteDatabase) UpsertClient(ctx context.Context, c *models.Client) error {
	now := formatTime(c.UpdatedAt)
	created := now
	if !c.CreatedAt.IsZero() {
		created = formatTime(c.CreatedAt)
	}
	var active, optIn int
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, chat_id, display_name, username, project, active, notify_opt_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chat_id = excluded.chat_id,
			display_name = excluded.display_name,
			username = excluded.username,
			active = 1,
			project = CASE WHEN clients.project = '' THEN excluded.project ELSE clients.project END,
			updated_at = excluded.updated_at
		RETURNING project, active, notify_opt_in, created_at, updated_at`,
		c.ID, c.ChatID, c.DisplayName, c.Username, c.Project, created, now,
	).Scan(&c.Project, &active, &optIn, &createdAt, &updatedAt)
	if err != nil {
		return storageErr("upsert client", err)
	}
	c.Active = active == 1
	c.NotifyOptIn = optIn == 1
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return nil
}

// GetClient 根据ID获取客户
func (s *SQLiteDatabase) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var c models.Client
	var active, optIn int
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, display_name, username, project, active, notify_opt_in, created_at, updated_at
		FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.ChatID, &c.DisplayName, &c.Username, &c.Project, &active, &optIn, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get client", err)
	}
	c.Active = active == 1
	c.NotifyOptIn = optIn == 1
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// SetClientNotify 设置通知订阅
func (s *SQLiteDatabase) SetClientNotify(ctx context.Context, id int64, optIn bool) error {
	v := 0
	if optIn {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET notify_opt_in = ?, updated_at = ? WHERE id = ?`, v, formatTime(time.Now()), id)
	if err != nil {
		return storageErr("update client notify", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetClientActive 标记客户是否可达
func (s *SQLiteDatabase) SetClientActive(ctx context.Context, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET active = ?, updated_at = ? WHERE id = ?`, v, formatTime(time.Now()), id)
	if err != nil {
		return storageErr("update client active", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListBroadcastClients 获取可接收广播的客户
func (s *SQLiteDatabase) ListBroadcastClients(ctx context.Context, excludeID int64) ([]int64, error) {
	return s.queryIDs(ctx, "list broadcast clients",
		`SELECT id FROM clients WHERE active = 1 AND notify_opt_in = 1 AND id <> ? ORDER BY id ASC`, excludeID)
}

func (s *SQLiteDatabase) queryIDs(ctx context.Context, op, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return ids, nil
}

// ================= Ideas =================

const sqliteIdeaColumns = `id, author_id, author_project, title, description, modality, transcript, status,
	moderator_id, moderated_at, target_client_id, completed_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteIdea(row rowScanner) (*models.Idea, error) {
	var i models.Idea
	var moderatorID, targetID sql.NullInt64
	var moderatedAt, completedAt sql.NullString
	var createdAt string
	err := row.Scan(&i.ID, &i.AuthorID, &i.AuthorProject, &i.Title, &i.Description, &i.Modality, &i.Transcript, &i.Status,
		&moderatorID, &moderatedAt, &targetID, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	i.ModeratorID = nullIntPtr(moderatorID)
	i.ModeratedAt = parseNullTime(moderatedAt)
	i.TargetClientID = nullIntPtr(targetID)
	i.CompletedAt = parseNullTime(completedAt)
	i.CreatedAt = parseTime(createdAt)
	return &i, nil
}

// CreateIdea 创建想法（状态固定为 pending）
func (s *SQLiteDatabase) CreateIdea(ctx context.Context, idea *models.Idea) error {
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = time.Now().UTC()
	}
	idea.Status = models.IdeaPending
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ideas (id, author_id, author_project, title, description, modality, transcript, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		idea.ID, idea.AuthorID, idea.AuthorProject, idea.Title, idea.Description, idea.Modality, idea.Transcript,
		idea.Status, formatTime(idea.CreatedAt),
	)
	if err != nil {
		return storageErr("create idea", err)
	}
	return nil
}

// GetIdea 根据ID获取想法
func (s *SQLiteDatabase) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	idea, err := scanSQLiteIdea(s.db.QueryRowContext(ctx, `SELECT `+sqliteIdeaColumns+` FROM ideas WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("idea %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get idea", err)
	}
	return idea, nil
}

// TransitionIdea 条件更新想法状态
func (s *SQLiteDatabase) TransitionIdea(ctx context.Context, t models.IdeaTransition) (*models.Idea, error) {
	if !models.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("illegal transition %s -> %s: %w", t.From, t.To, models.ErrConflict)
	}
	actorCol, timeCol := transitionColumns(t.To)
	res, err := s.db.ExecContext(ctx,
		`UPDATE ideas SET status = ?, `+actorCol+` = ?, `+timeCol+` = ? WHERE id = ? AND status = ?`,
		t.To, nullInt(t.ActorID), formatTime(t.At), t.IdeaID, t.From,
	)
	if err != nil {
		return nil, storageErr("transition idea", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr("transition idea", err)
	}
	if n == 0 {
		return nil, s.transitionMiss(ctx, t)
	}
	return s.GetIdea(ctx, t.IdeaID)
}

// transitionMiss tells an absent idea apart from a lost race
func (s *SQLiteDatabase) transitionMiss(ctx context.Context, t models.IdeaTransition) error {
	current, err := s.GetIdea(ctx, t.IdeaID)
	if err != nil {
		return err
	}
	return fmt.Errorf("idea %s is %s, not %s: %w", t.IdeaID, current.Status, t.From, models.ErrConflict)
}

// ListIdeasByStatus 按状态列出想法（新的在前）
func (s *SQLiteDatabase) ListIdeasByStatus(ctx context.Context, status models.IdeaStatus, limit int) ([]models.Idea, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteIdeaColumns+` FROM ideas WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		status, normalizeLimit(limit))
	if err != nil {
		return nil, storageErr("list ideas", err)
	}
	defer rows.Close()

	ideas := []models.Idea{}
	for rows.Next() {
		idea, err := scanSQLiteIdea(rows)
		if err != nil {
			return nil, storageErr("scan idea", err)
		}
		ideas = append(ideas, *idea)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list ideas", err)
	}
	return ideas, nil
}

// ================= Interest =================

// CreateInterestRequest 插入兴趣请求（重复则忽略）
func (s *SQLiteDatabase) CreateInterestRequest(ctx context.Context, r *models.InterestRequest) (bool, error) {
	if r.Status == "" {
		r.Status = models.InterestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interest_requests (idea_id, client_id, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(idea_id, client_id) DO NOTHING`,
		r.IdeaID, r.ClientID, r.Status, formatTime(r.CreatedAt),
	)
	if err != nil {
		return false, storageErr("create interest request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("create interest request", err)
	}
	return n == 1, nil
}

// ListInterestedClients 获取对想法感兴趣的客户
func (s *SQLiteDatabase) ListInterestedClients(ctx context.Context, ideaID string) ([]int64, error) {
	return s.queryIDs(ctx, "list interested clients",
		`SELECT client_id FROM interest_requests WHERE idea_id = ? ORDER BY client_id ASC`, ideaID)
}

// ================= Broadcast audit =================

// SaveBroadcast 保存广播审计记录
func (s *SQLiteDatabase) SaveBroadcast(ctx context.Context, l *models.BroadcastLog) error {
	failed, err := encodeFailed(l.Failed)
	if err != nil {
		return fmt.Errorf("failed to encode failed recipients: %w", err)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO broadcast_logs (id, idea_id, policy, attempted, delivered, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.IdeaID, l.Policy, l.Attempted, l.Delivered, failed, formatTime(l.CreatedAt),
	)
	if err != nil {
		return storageErr("save broadcast log", err)
	}
	return nil
}

// ListBroadcasts returns the audit rows of an idea, oldest first
func (s *SQLiteDatabase) ListBroadcasts(ctx context.Context, ideaID string) ([]models.BroadcastLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idea_id, policy, attempted, delivered, failed, created_at
		FROM broadcast_logs WHERE idea_id = ? ORDER BY created_at ASC, id ASC`, ideaID)
	if err != nil {
		return nil, storageErr("list broadcast logs", err)
	}
	defer rows.Close()

	var logs []models.BroadcastLog
	for rows.Next() {
		var l models.BroadcastLog
		var failed, createdAt string
		if err := rows.Scan(&l.ID, &l.IdeaID, &l.Policy, &l.Attempted, &l.Delivered, &failed, &createdAt); err != nil {
			return nil, storageErr("scan broadcast log", err)
		}
		if err := json.Unmarshal([]byte(failed), &l.Failed); err != nil {
			return nil, fmt.Errorf("failed to decode failed recipients: %w", err)
		}
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ================= Session modes =================

// GetSessionMode 获取未过期的会话模式
func (s *SQLiteDatabase) GetSessionMode(ctx context.Context, userID int64, now time.Time) (models.SessionMode, error) {
	var mode string
	err := s.db.QueryRowContext(ctx,
		`SELECT mode FROM session_modes WHERE user_id = ? AND expires_at > ?`, userID, formatTime(now),
	).Scan(&mode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ModeNone, nil
	}
	if err != nil {
		return models.ModeNone, storageErr("get session mode", err)
	}
	return models.SessionMode(mode), nil
}

// SetSessionMode 设置会话模式
func (s *SQLiteDatabase) SetSessionMode(ctx context.Context, userID int64, mode models.SessionMode, expiresAt time.Time) error {
	if mode == models.ModeNone {
		return s.ClearSessionMode(ctx, userID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_modes (user_id, mode, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET mode = excluded.mode, expires_at = excluded.expires_at`,
		userID, mode, formatTime(expiresAt))
	if err != nil {
		return storageErr("set session mode", err)
	}
	return nil
}

// ClearSessionMode 清除会话模式
func (s *SQLiteDatabase) ClearSessionMode(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_modes WHERE user_id = ?`, userID); err != nil {
		return storageErr("clear session mode", err)
	}
	return nil
}

// DeleteExpiredSessions 删除过期会话
func (s *SQLiteDatabase) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_modes WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, storageErr("delete expired sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// HealthCheck 健康检查
func (s *SQLiteDatabase) HealthCheck() error {
	return s.db.Ping()
}

// Close 关闭数据库
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
