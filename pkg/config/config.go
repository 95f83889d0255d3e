package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// 数据库配置
	PostgresDSN string
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string

	// Telegram配置
	TelegramBotToken      string
	TelegramWebhookSecret string
	TelegramAPIBase       string

	// 管理员白名单（每次特权操作都重新检查）
	Admins      *AdminSet
	envAdminIDs []int64

	// Gemini配置（意图分类 / 摘要 / 语音识别）
	GeminiAPIKey string
	GeminiModel  string

	// Asana配置
	AsanaToken     string
	AsanaWorkspace string
	AsanaProject   string

	// JWT配置（管理后台API）
	JWTSecret string

	// 广播与会话
	FanoutDelay  time.Duration
	SessionTTL   time.Duration
	SessionStore string // "memory" or "database"

	PortalURL string

	// CORS配置
	AllowedOrigins []string

	// 可选 YAML 配置文件
	ConfigFile string

	// 调试配置
	Debug bool
}

// fileConfig mirrors the optional YAML file. Environment variables win over it.
type fileConfig struct {
	AdminIDs    []int64 `yaml:"admin_ids"`
	FanoutDelay string  `yaml:"fanout_delay"`
	SessionTTL  string  `yaml:"session_ttl"`
	PortalURL   string  `yaml:"portal_url"`
	GeminiModel string  `yaml:"gemini_model"`
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() *Config {
	// 根据环境加载对应的 .env 文件
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development" // 默认开发环境
	}

	// 按优先级加载环境文件（不会覆盖已存在的环境变量）
	switch env {
	case "production":
		_ = godotenv.Load(".env.production")
	default:
		_ = godotenv.Load(".env.local")
	}

	config := &Config{
		// 默认值
		Environment:  getEnvWithDefault("ENVIRONMENT", "development"),
		Port:         getEnvWithDefault("PORT", "3000"),
		JWTSecret:    getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		GeminiModel:  getEnvWithDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		SessionStore: getEnvWithDefault("SESSION_STORE", ""),
		PortalURL:    getEnvWithDefault("PORTAL_URL", "https://artvision-portal.vercel.app"),
		ConfigFile:   strings.TrimSpace(os.Getenv("CONFIG_FILE")),
		Debug:        getEnvBool("DEBUG", false),
	}

	// 数据库配置
	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SQLitePath = strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	config.SupabaseURL = strings.TrimSpace(os.Getenv("SUPABASE_URL"))
	config.SupabaseKey = strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY"))

	// Telegram配置
	config.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	config.TelegramWebhookSecret = strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_SECRET"))
	config.TelegramAPIBase = getEnvWithDefault("TELEGRAM_API_BASE", "https://api.telegram.org")

	config.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	// Asana配置
	config.AsanaToken = strings.TrimSpace(os.Getenv("ASANA_TOKEN"))
	config.AsanaWorkspace = getEnvWithDefault("ASANA_WORKSPACE", "860693669973770")
	config.AsanaProject = getEnvWithDefault("ASANA_PROJECT", "1212305892582815")

	config.FanoutDelay = getEnvDuration("FANOUT_DELAY", 40*time.Millisecond)
	config.SessionTTL = getEnvDuration("SESSION_TTL", 5*time.Minute)

	ids, err := ParseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		fmt.Printf("⚠️  WARNING: %v\n", err)
	}
	config.envAdminIDs = ids

	// CORS配置
	// 未配置时只允许门户来源（见 middleware.CORS）
	if allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", ""); allowedOrigins != "" {
		for _, origin := range strings.Split(allowedOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}

	var fileAdmins []int64
	if config.ConfigFile != "" {
		fc, err := readFileConfig(config.ConfigFile)
		if err != nil {
			fmt.Printf("⚠️  WARNING: failed to read %s: %v\n", config.ConfigFile, err)
		} else {
			config.applyFile(fc)
			fileAdmins = fc.AdminIDs
		}
	}
	config.Admins = NewAdminSet(mergeIDs(config.envAdminIDs, fileAdmins))

	// 会话存储：Vercel 多实例下内存会话不共享
	if config.SessionStore == "" {
		if isServerless() {
			config.SessionStore = "database"
		} else {
			config.SessionStore = "memory"
		}
	}

	// 环境特定配置
	if config.Environment == "production" {
		if config.PostgresDSN == "" && (config.SupabaseURL == "" || config.SupabaseKey == "") {
			fmt.Println("⚠️  WARNING: Production environment using embedded SQLite. Please configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
		}
		// 生产环境关闭调试
		config.Debug = false
	}

	return config
}

// applyFile copies file values that were not provided by the environment
func (c *Config) applyFile(fc *fileConfig) {
	if os.Getenv("FANOUT_DELAY") == "" && fc.FanoutDelay != "" {
		if d, err := time.ParseDuration(fc.FanoutDelay); err == nil {
			c.FanoutDelay = d
		}
	}
	if os.Getenv("SESSION_TTL") == "" && fc.SessionTTL != "" {
		if d, err := time.ParseDuration(fc.SessionTTL); err == nil {
			c.SessionTTL = d
		}
	}
	if os.Getenv("PORTAL_URL") == "" && fc.PortalURL != "" {
		c.PortalURL = fc.PortalURL
	}
	if os.Getenv("GEMINI_MODEL") == "" && fc.GeminiModel != "" {
		c.GeminiModel = fc.GeminiModel
	}
}

func readFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &fc, nil
}

// ReloadAdmins re-reads the YAML file and swaps the admin allow-list
func (c *Config) ReloadAdmins() error {
	if c.ConfigFile == "" {
		return nil
	}
	fc, err := readFileConfig(c.ConfigFile)
	if err != nil {
		return err
	}
	c.Admins.Replace(mergeIDs(c.envAdminIDs, fc.AdminIDs))
	return nil
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证端口
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.TelegramBotToken == "" && c.IsProduction() {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN must be set in production")
	}

	// 验证JWT密钥
	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	if c.FanoutDelay < 0 {
		return fmt.Errorf("FANOUT_DELAY must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	switch c.SessionStore {
	case "memory", "database":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or database, got %q", c.SessionStore)
	}

	// 验证数据库配置（Supabase 需要 URL 与 Key 同时存在）
	if c.PostgresDSN == "" && (c.SupabaseURL != "") != (c.SupabaseKey != "") {
		return fmt.Errorf("数据库配置不完整：SUPABASE_URL 与 SUPABASE_SERVICE_KEY 需同时配置")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// 辅助函数

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration 获取时长类型的环境变量（"40ms"、"5m"）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func isServerless() bool {
	return os.Getenv("VERCEL_ENV") != "" || os.Getenv("VERCEL_URL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
