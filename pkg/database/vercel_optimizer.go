package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// VercelOptimizer Vercel环境优化器
// 函数实例在热启动之间复用连接，空闲连接由后台任务清理
type VercelOptimizer struct {
	connections map[string]DatabaseInterface
	lastUsed    map[string]time.Time
	mu          sync.RWMutex
	idleTimeout time.Duration
	now         func() time.Time
}

var (
	vercelOptimizer *VercelOptimizer
	optimizerOnce   sync.Once
)

// GetVercelOptimizer 获取Vercel优化器单例
func GetVercelOptimizer() *VercelOptimizer {
	optimizerOnce.Do(func() {
		vercelOptimizer = newVercelOptimizer(10 * time.Minute)
		go vercelOptimizer.backgroundCleanup(5 * time.Minute)
	})
	return vercelOptimizer
}

func newVercelOptimizer(idleTimeout time.Duration) *VercelOptimizer {
	return &VercelOptimizer{
		connections: make(map[string]DatabaseInterface),
		lastUsed:    make(map[string]time.Time),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// GetOptimizedConnection 获取优化的数据库连接
// 调用方应在每次请求时重新获取，以刷新最后使用时间；长期持有的连接会被后台任务关闭
func (vo *VercelOptimizer) GetOptimizedConnection(config DatabaseConfig) (DatabaseInterface, error) {
	return vo.getConnection(config, NewDatabase)
}

func (vo *VercelOptimizer) getConnection(config DatabaseConfig, open func(DatabaseConfig) (DatabaseInterface, error)) (DatabaseInterface, error) {
	// 生成配置的唯一键
	configKey := generateConfigKey(config)

	vo.mu.Lock()
	defer vo.mu.Unlock()

	// 检查是否有现有连接
	if conn, exists := vo.connections[configKey]; exists {
		// 检查连接健康状态
		if err := conn.HealthCheck(); err == nil {
			vo.lastUsed[configKey] = vo.now()
			return conn, nil
		} else {
			fmt.Printf("❌ Connection unhealthy, removing: %v\n", err)
			conn.Close()
			delete(vo.connections, configKey)
			delete(vo.lastUsed, configKey)
		}
	}

	// 创建新连接
	fmt.Printf("🔄 Creating new optimized database connection (key: %s)\n", configKey)
	conn, err := open(config)
	if err != nil {
		return nil, err
	}

	vo.connections[configKey] = conn
	vo.lastUsed[configKey] = vo.now()

	return conn, nil
}

// generateConfigKey 生成配置的唯一键（不泄露密钥内容）
func generateConfigKey(config DatabaseConfig) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%t",
		config.PostgresDSN, config.SQLitePath, config.SupabaseURL, config.SupabaseKey, config.Debug)))
	return hex.EncodeToString(sum[:])[:12]
}

// backgroundCleanup 后台清理过期连接
func (vo *VercelOptimizer) backgroundCleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		vo.cleanupExpiredConnections(time.Now())
	}
}

// cleanupExpiredConnections 清理过期连接
func (vo *VercelOptimizer) cleanupExpiredConnections(now time.Time) int {
	vo.mu.Lock()
	defer vo.mu.Unlock()

	expiredKeys := []string{}
	for key, lastUsed := range vo.lastUsed {
		// 在Vercel中，连接空闲超过 idleTimeout 就清理
		if now.Sub(lastUsed) > vo.idleTimeout {
			expiredKeys = append(expiredKeys, key)
		}
	}

	for _, key := range expiredKeys {
		if conn, exists := vo.connections[key]; exists {
			conn.Close()
			delete(vo.connections, key)
			delete(vo.lastUsed, key)
		}
	}

	if len(expiredKeys) > 0 {
		fmt.Printf("🧹 Cleaned up %d expired connections\n", len(expiredKeys))
	}
	return len(expiredKeys)
}

// GetStats 获取优化器统计信息
func (vo *VercelOptimizer) GetStats() map[string]interface{} {
	vo.mu.RLock()
	defer vo.mu.RUnlock()

	conns := make([]map[string]interface{}, 0, len(vo.lastUsed))
	for key, lastUsed := range vo.lastUsed {
		conns = append(conns, map[string]interface{}{
			"key":       key,
			"last_used": lastUsed.Format(time.RFC3339),
			"age":       time.Since(lastUsed).String(),
		})
	}

	return map[string]interface{}{
		"total_connections": len(vo.connections),
		"connections":       conns,
	}
}

// GetOptimizedDatabase 全局函数，获取优化的数据库连接
func GetOptimizedDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if IsVercelEnvironment() {
		// 在Vercel环境中使用优化器
		return GetVercelOptimizer().GetOptimizedConnection(config)
	}
	// 在非Vercel环境中使用简单的连接池
	return GetDatabase(config)
}

// DatabaseStats 健康检查接口使用的连接统计
func DatabaseStats() map[string]interface{} {
	if IsVercelEnvironment() {
		return GetVercelOptimizer().GetStats()
	}
	return GetConnectionStats()
}
