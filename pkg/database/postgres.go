package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"

	_ "github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // 最后尝试原始DSN
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)                  // 限制最大连接数
		db.SetMaxIdleConns(2)                  // 限制空闲连接数
		db.SetConnMaxLifetime(5 * time.Minute) // 连接最大生命周期

		// 测试连接
		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresDatabase{db: db}, nil
	}

	// 所有策略都失败了
	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", err)
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// Migrate 创建表结构
func (db *PostgresDatabase) Migrate(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}

// ================= Clients =================

// UpsertClient 新建或刷新客户信息
func (db *PostgresDatabase) UpsertClient(ctx context.Context, c *models.Client) error {
	query := `
        INSERT INTO clients (id, chat_id, display_name, username, project, active, notify_opt_in, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, TRUE, TRUE, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE SET
            chat_id = EXCLUDED.chat_id,
            display_name = EXCLUDED.display_name,
            username = EXCLUDED.username,
            active = TRUE,
            project = CASE WHEN clients.project = '' THEN EXCLUDED.project ELSE clients.project END,
            updated_at = NOW()
        RETURNING project, active, notify_opt_in, created_at, updated_at
    `
	err := db.db.QueryRowContext(ctx, query, c.ID, c.ChatID, c.DisplayName, c.Username, c.Project).
		Scan(&c.Project, &c.Active, &c.NotifyOptIn, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return storageErr("upsert client", err)
	}
	return nil
}

// GetClient 根据ID获取客户
func (db *PostgresDatabase) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	query := `
        SELECT id, chat_id, display_name, username, project, active, notify_opt_in, created_at, updated_at
        FROM clients
        WHERE id = $1
    `
	var c models.Client
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ChatID, &c.DisplayName, &c.Username, &c.Project, &c.Active, &c.NotifyOptIn, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("client %d: %w", id, models.ErrNotFound)
		}
		return nil, storageErr("get client", err)
	}
	return &c, nil
}

// SetClientNotify 设置通知订阅
func (db *PostgresDatabase) SetClientNotify(ctx context.Context, id int64, optIn bool) error {
	res, err := db.db.ExecContext(ctx, `UPDATE clients SET notify_opt_in = $1, updated_at = NOW() WHERE id = $2`, optIn, id)
	if err != nil {
		return storageErr("update client notify", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetClientActive 标记客户是否可达
func (db *PostgresDatabase) SetClientActive(ctx context.Context, id int64, active bool) error {
	res, err := db.db.ExecContext(ctx, `UPDATE clients SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return storageErr("update client active", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("client %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListBroadcastClients 获取可接收广播的客户
func (db *PostgresDatabase) ListBroadcastClients(ctx context.Context, excludeID int64) ([]int64, error) {
	return db.queryIDs(ctx, "list broadcast clients",
		`SELECT id FROM clients WHERE active AND notify_opt_in AND id <> $1 ORDER BY id ASC`, excludeID)
}

func (db *PostgresDatabase) queryIDs(ctx context.Context, op, query string, args ...interface{}) ([]int64, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
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

const postgresIdeaColumns = `id, author_id, author_project, title, description, modality, transcript, status,
        moderator_id, moderated_at, target_client_id, completed_at, created_at`

func scanPostgresIdea(row rowScanner) (*models.Idea, error) {
	var i models.Idea
	var moderatorID, targetID sql.NullInt64
	var moderatedAt, completedAt sql.NullTime
	err := row.Scan(&i.ID, &i.AuthorID, &i.AuthorProject, &i.Title, &i.Description, &i.Modality, &i.Transcript, &i.Status,
		&moderatorID, &moderatedAt, &targetID, &completedAt, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	i.ModeratorID = nullIntPtr(moderatorID)
	i.TargetClientID = nullIntPtr(targetID)
	if moderatedAt.Valid {
		i.ModeratedAt = &moderatedAt.Time
	}
	if completedAt.Valid {
		i.CompletedAt = &completedAt.Time
	}
	return &i, nil
}

// CreateIdea 创建想法（状态固定为 pending）
func (db *PostgresDatabase) CreateIdea(ctx context.Context, idea *models.Idea) error {
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = time.Now().UTC()
	}
	idea.Status = models.IdeaPending
	query := `
        INSERT INTO ideas (id, author_id, author_project, title, description, modality, transcript, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := db.db.ExecContext(ctx, query,
		idea.ID, idea.AuthorID, idea.AuthorProject, idea.Title, idea.Description, idea.Modality, idea.Transcript,
		idea.Status, idea.CreatedAt,
	)
	if err != nil {
		return storageErr("create idea", err)
	}
	return nil
}

// GetIdea 根据ID获取想法
func (db *PostgresDatabase) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	idea, err := scanPostgresIdea(db.db.QueryRowContext(ctx, `SELECT `+postgresIdeaColumns+` FROM ideas WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("idea %s: %w", id, models.ErrNotFound)
		}
		return nil, storageErr("get idea", err)
	}
	return idea, nil
}

// TransitionIdea 条件更新想法状态（UPDATE ... WHERE status = 旧状态 RETURNING）
func (db *PostgresDatabase) TransitionIdea(ctx context.Context, t models.IdeaTransition) (*models.Idea, error) {
	if !models.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("illegal transition %s -> %s: %w", t.From, t.To, models.ErrConflict)
	}
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	actorCol, timeCol := transitionColumns(t.To)
	query := `UPDATE ideas SET status = $1, ` + actorCol + ` = $2, ` + timeCol + ` = $3
        WHERE id = $4 AND status = $5
        RETURNING ` + postgresIdeaColumns
	idea, err := scanPostgresIdea(db.db.QueryRowContext(ctx, query, t.To, nullInt(t.ActorID), at, t.IdeaID, t.From))
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := db.GetIdea(ctx, t.IdeaID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("idea %s is %s, not %s: %w", t.IdeaID, current.Status, t.From, models.ErrConflict)
	}
	if err != nil {
		return nil, storageErr("transition idea", err)
	}
	return idea, nil
}

// ListIdeasByStatus 按状态列出想法（新的在前）
func (db *PostgresDatabase) ListIdeasByStatus(ctx context.Context, status models.IdeaStatus, limit int) ([]models.Idea, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+postgresIdeaColumns+` FROM ideas WHERE status = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		status, normalizeLimit(limit))
	if err != nil {
		return nil, storageErr("list ideas", err)
	}
	defer rows.Close()

	ideas := []models.Idea{}
	for rows.Next() {
		idea, err := scanPostgresIdea(rows)
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
func (db *PostgresDatabase) CreateInterestRequest(ctx context.Context, r *models.InterestRequest) (bool, error) {
	if r.Status == "" {
		r.Status = models.InterestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO interest_requests (idea_id, client_id, status, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (idea_id, client_id) DO NOTHING
    `
	res, err := db.db.ExecContext(ctx, query, r.IdeaID, r.ClientID, r.Status, r.CreatedAt)
	if err != nil {
		return false, storageErr("create interest request", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("create interest request", err)
	}
	return rows == 1, nil
}

// ListInterestedClients 获取对想法感兴趣的客户
func (db *PostgresDatabase) ListInterestedClients(ctx context.Context, ideaID string) ([]int64, error) {
	return db.queryIDs(ctx, "list interested clients",
		`SELECT client_id FROM interest_requests WHERE idea_id = $1 ORDER BY client_id ASC`, ideaID)
}

// ================= Broadcast audit =================

// SaveBroadcast 保存广播审计记录
func (db *PostgresDatabase) SaveBroadcast(ctx context.Context, l *models.BroadcastLog) error {
	failed, err := encodeFailed(l.Failed)
	if err != nil {
		return fmt.Errorf("failed to encode failed recipients: %w", err)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO broadcast_logs (id, idea_id, policy, attempted, delivered, failed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
    `
	if _, err := db.db.ExecContext(ctx, query, l.ID, l.IdeaID, l.Policy, l.Attempted, l.Delivered, failed, l.CreatedAt); err != nil {
		return storageErr("save broadcast log", err)
	}
	return nil
}

// ListBroadcasts 获取想法的广播记录
func (db *PostgresDatabase) ListBroadcasts(ctx context.Context, ideaID string) ([]models.BroadcastLog, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, idea_id, policy, attempted, delivered, failed, created_at
        FROM broadcast_logs WHERE idea_id = $1 ORDER BY created_at ASC, id ASC`, ideaID)
	if err != nil {
		return nil, storageErr("list broadcast logs", err)
	}
	defer rows.Close()

	var logs []models.BroadcastLog
	for rows.Next() {
		var l models.BroadcastLog
		var failed []byte
		if err := rows.Scan(&l.ID, &l.IdeaID, &l.Policy, &l.Attempted, &l.Delivered, &failed, &l.CreatedAt); err != nil {
			return nil, storageErr("scan broadcast log", err)
		}
		if err := json.Unmarshal(failed, &l.Failed); err != nil {
			return nil, fmt.Errorf("failed to decode failed recipients: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ================= Session modes =================

// GetSessionMode 获取未过期的会话模式
func (db *PostgresDatabase) GetSessionMode(ctx context.Context, userID int64, now time.Time) (models.SessionMode, error) {
	var mode string
	err := db.db.QueryRowContext(ctx,
		`SELECT mode FROM session_modes WHERE user_id = $1 AND expires_at > $2`, userID, now).Scan(&mode)
	if err == sql.ErrNoRows {
		return models.ModeNone, nil
	}
	if err != nil {
		return models.ModeNone, storageErr("get session mode", err)
	}
	return models.SessionMode(mode), nil
}

// SetSessionMode 设置会话模式
func (db *PostgresDatabase) SetSessionMode(ctx context.Context, userID int64, mode models.SessionMode, expiresAt time.Time) error {
	if mode == models.ModeNone {
		return db.ClearSessionMode(ctx, userID)
	}
	query := `
        INSERT INTO session_modes (user_id, mode, expires_at) VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE SET mode = EXCLUDED.mode, expires_at = EXCLUDED.expires_at
    `
	if _, err := db.db.ExecContext(ctx, query, userID, mode, expiresAt); err != nil {
		return storageErr("set session mode", err)
	}
	return nil
}

// ClearSessionMode 清除会话模式
func (db *PostgresDatabase) ClearSessionMode(ctx context.Context, userID int64) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM session_modes WHERE user_id = $1`, userID); err != nil {
		return storageErr("clear session mode", err)
	}
	return nil
}

// DeleteExpiredSessions 删除过期会话
func (db *PostgresDatabase) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.db.ExecContext(ctx, `DELETE FROM session_modes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, storageErr("delete expired sessions", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

// Close 关闭数据库连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
