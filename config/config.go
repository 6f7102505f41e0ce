package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Progress ProgressConfig `mapstructure:"progress"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Upload   UploadConfig   `mapstructure:"upload"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

// Enabled OSS 是否已配置
func (c OSSConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != ""
}

type QueueConfig struct {
	Mode          string `mapstructure:"mode"` // inline, redis
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type ProgressConfig struct {
	Backend string `mapstructure:"backend"` // local, redis
	Channel string `mapstructure:"channel"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type UploadConfig struct {
	MaxSize       int64  `mapstructure:"max_size"`        // 单次上传总大小上限（字节）
	TempDir       string `mapstructure:"temp_dir"`        // 任务临时目录根
	ExpireHours   int    `mapstructure:"expire_hours"`    // 残留目录过期时间（小时）
	MaxEntryBytes int64  `mapstructure:"max_entry_bytes"` // 压缩包内单个文件大小上限
	PreviewBytes  int    `mapstructure:"preview_bytes"`   // 分组预览长度
}

type LLMConfig struct {
	Provider        string  `mapstructure:"provider"`
	Model           string  `mapstructure:"model"`
	APIKey          string  `mapstructure:"api_key"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	Temperature     float32 `mapstructure:"temperature"`
}

// Timeout 单次调用超时
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AnalysisConfig struct {
	MaxConcurrentGroups int `mapstructure:"max_concurrent_groups"`
	SmallFileLines      int `mapstructure:"small_file_lines"`
	ChunkLines          int `mapstructure:"chunk_lines"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("queue.mode", "inline")
	v.SetDefault("queue.analysis_queue", "triage_jobs")
	v.SetDefault("queue.max_workers", 2)
	v.SetDefault("progress.backend", "local")
	v.SetDefault("progress.channel", "triage_progress")
	v.SetDefault("upload.max_size", 100<<20)
	v.SetDefault("upload.temp_dir", filepath.Join(os.TempDir(), "triage"))
	v.SetDefault("upload.expire_hours", 24)
	v.SetDefault("upload.max_entry_bytes", 10<<20)
	v.SetDefault("upload.preview_bytes", 500)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("analysis.max_concurrent_groups", 4)
	v.SetDefault("analysis.small_file_lines", 300)
	v.SetDefault("analysis.chunk_lines", 400)
}

func Load(configPath string) (*Config, error) {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
