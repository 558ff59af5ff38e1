package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// GmailConfig 定义邮件提供方（Gmail API）客户端配置
type GmailConfig struct {
	CredentialsFile string  // OAuth 客户端凭证文件路径（令牌获取流程在本服务之外完成）
	TokenFile       string  // 已授权的访问令牌文件路径
	UserID          string  // Gmail 用户标识，默认 "me"
	RatePerSecond   float64 // 提供方 API 调用速率上限，默认 5
	FetchWorkers    int     // 并发拉取邮件详情的协程数，默认 4
}

// FeedConfig 定义有界消息窗口的业务配置
type FeedConfig struct {
	MaxMessages  int           // 有序队列容量 N，默认 100
	RecordTTL    time.Duration // 按 ID 索引条目的独立过期时间，默认 30 天
	DefaultLimit int           // 读取接口默认返回条数，默认 50
}

// IngestConfig 定义通知摄取管道的配置
type IngestConfig struct {
	Workers   int // 异步处理通知的协程数；0 表示在请求内同步处理
	QueueSize int // 异步任务队列长度，默认 64
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空表示仅输出到标准输出
	MaxSize     int    // 单个日志文件上限（MB），默认 100
	MaxBackups  int    // 保留的轮转文件数，默认 3
	MaxAge      int    // 轮转文件保留天数，默认 28
	Compress    bool   // 是否压缩轮转文件
}

// StorageConfig 定义记录存储后端配置
type StorageConfig struct {
	Type string // 存储类型: "memory" 或 "redis"，默认 "memory"
}

// RedisConfig 定义 Redis 存储后端配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server  ServerConfig  // HTTP 服务器配置
	Gmail   GmailConfig   // 邮件提供方配置
	Feed    FeedConfig    // 消息窗口配置
	Ingest  IngestConfig  // 摄取管道配置
	CORS    CORSConfig    // 跨域配置
	Log     LogConfig     // 日志配置
	Storage StorageConfig // 存储后端配置
	Redis   RedisConfig   // Redis 配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILFEED_
// 例如: MAILFEED_SERVER_PORT, MAILFEED_REDIS_ADDRESS
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailfeed")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("gmail.credentials_file", "credentials.json")
	viper.SetDefault("gmail.token_file", "token.json")
	viper.SetDefault("gmail.user_id", "me")
	viper.SetDefault("gmail.rate_per_second", 5.0)
	viper.SetDefault("gmail.fetch_workers", 4)
	viper.SetDefault("feed.max_messages", 100)
	viper.SetDefault("feed.record_ttl", "720h") // 30 天
	viper.SetDefault("feed.default_limit", 50)
	viper.SetDefault("ingest.workers", 0)
	viper.SetDefault("ingest.queue_size", 64)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.log_file", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	recordTTL, err := time.ParseDuration(viper.GetString("feed.record_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid feed.record_ttl: %w", err)
	}

	maxMessages := viper.GetInt("feed.max_messages")
	if maxMessages <= 0 {
		return nil, fmt.Errorf("feed.max_messages must be positive")
	}

	defaultLimit := viper.GetInt("feed.default_limit")
	if defaultLimit <= 0 {
		defaultLimit = 50
	}

	storageType := strings.ToLower(viper.GetString("storage.type"))
	switch storageType {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unsupported storage.type: %q", storageType)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	fetchWorkers := viper.GetInt("gmail.fetch_workers")
	if fetchWorkers <= 0 {
		fetchWorkers = 4
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Gmail: GmailConfig{
			CredentialsFile: viper.GetString("gmail.credentials_file"),
			TokenFile:       viper.GetString("gmail.token_file"),
			UserID:          viper.GetString("gmail.user_id"),
			RatePerSecond:   viper.GetFloat64("gmail.rate_per_second"),
			FetchWorkers:    fetchWorkers,
		},
		Feed: FeedConfig{
			MaxMessages:  maxMessages,
			RecordTTL:    recordTTL,
			DefaultLimit: defaultLimit,
		},
		Ingest: IngestConfig{
			Workers:   viper.GetInt("ingest.workers"),
			QueueSize: viper.GetInt("ingest.queue_size"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.log_file"),
			MaxSize:     viper.GetInt("log.max_size"),
			MaxBackups:  viper.GetInt("log.max_backups"),
			MaxAge:      viper.GetInt("log.max_age"),
			Compress:    viper.GetBool("log.compress"),
		},
		Storage: StorageConfig{
			Type: storageType,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：当前目录的 .env，其次父目录的 .env。
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
