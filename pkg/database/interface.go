package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// DatabaseInterface 定义数据库访问接口
//
// Every status change goes through TransitionIdea, a conditional update that
// only applies when the stored status still equals the expected one. No
// implementation relies on multi-statement transactions.
type DatabaseInterface interface {
	// 客户管理
	// UpsertClient inserts the client or refreshes display_name/username/chat_id.
	// project and created_at keep their first written values.
	UpsertClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	SetClientNotify(ctx context.Context, id int64, optIn bool) error
	// SetClientActive flags a client whose chat can no longer be reached.
	// UpsertClient sets it back to active when the client writes again.
	SetClientActive(ctx context.Context, id int64, active bool) error
	// ListBroadcastClients returns active, opted-in client ids except excludeID, ascending
	ListBroadcastClients(ctx context.Context, excludeID int64) ([]int64, error)

	// 想法管理
	CreateIdea(ctx context.Context, idea *models.Idea) error
	GetIdea(ctx context.Context, id string) (*models.Idea, error)
	// TransitionIdea returns models.ErrNotFound when the idea is absent and
	// models.ErrConflict when its status is not t.From.
	TransitionIdea(ctx context.Context, t models.IdeaTransition) (*models.Idea, error)
	// ListIdeasByStatus returns newest first (created_at DESC, id DESC)
	ListIdeasByStatus(ctx context.Context, status models.IdeaStatus, limit int) ([]models.Idea, error)

	// 兴趣请求
	// CreateInterestRequest is insert-or-ignore on (idea_id, client_id); created is
	// false when the pair already existed.
	CreateInterestRequest(ctx context.Context, r *models.InterestRequest) (created bool, err error)
	ListInterestedClients(ctx context.Context, ideaID string) ([]int64, error)

	// 广播审计
	SaveBroadcast(ctx context.Context, l *models.BroadcastLog) error
	ListBroadcasts(ctx context.Context, ideaID string) ([]models.BroadcastLog, error)

	// 会话模式
	GetSessionMode(ctx context.Context, userID int64, now time.Time) (models.SessionMode, error)
	SetSessionMode(ctx context.Context, userID int64, mode models.SessionMode, expiresAt time.Time) error
	ClearSessionMode(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	PostgresDSN string
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// DefaultSQLitePath 本地开发默认数据库文件
const DefaultSQLitePath = "./data/artvision.db"

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	// 是否在 Vercel 生产环境
	if IsVercelEnvironment() {
		fmt.Printf("🧭 Detected Vercel production environment\n")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			fmt.Printf("🚀  Using Supabase REST API (Vercel optimized)\n")
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
		}

		// 次选 PostgreSQL
		if config.PostgresDSN != "" {
			fmt.Printf("🌐  Using PostgreSQL in Vercel (may have IPv6 issues)\n")
			return openPostgres(config.PostgresDSN)
		}

		// 函数实例的文件系统不持久，不使用 SQLite
		return nil, fmt.Errorf("no valid database configured for Vercel environment, set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase > SQLite
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return openPostgres(config.PostgresDSN)
	}

	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		fmt.Printf("🧰  Using Supabase REST API\n")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
	}

	path := config.SQLitePath
	if path == "" {
		path = DefaultSQLitePath
	}
	fmt.Printf("📁  Using SQLite database at %s\n", path)
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func openPostgres(dsn string) (DatabaseInterface, error) {
	db, err := NewPostgresDatabase(dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// IsVercelEnvironment 检查是否在Vercel环境中
func IsVercelEnvironment() bool {
	vercelEnv := os.Getenv("VERCEL_ENV")
	vercelURL := os.Getenv("VERCEL_URL")
	awsLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	return vercelEnv != "" || vercelURL != "" || awsLambda != ""
}
