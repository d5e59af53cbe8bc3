package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	UploadBackendLocal = "local"
	UploadBackendMinIO = "minio"
)

// MinIOConfig 描述对象存储连接参数。
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseDriver    string
	DatabaseDSN       string
	SessionSecret     string
	JWTSecret         string
	TokenTTL          time.Duration
	GinMode           string
	LogLevel          string
	UploadBackend     string
	UploadDir         string
	UploadURLPath     string
	MaxUploadBytes    int64
	MinIO             MinIOConfig
	RedisURL          string
	RenderCacheTTL    time.Duration
	SentryDSN         string
	Environment       string
	OTLPEndpoint      string
	ServiceName       string
	RateLimit         float64
	RateBurst         int
	ShutdownTimeout   time.Duration
	SuperRootUserName string
	SuperRootPassword string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", "")
	v.SetDefault("session_secret", "inkwell-dev-secret")
	v.SetDefault("jwt_secret", "inkwell-dev-jwt-secret")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("upload_backend", UploadBackendLocal)
	v.SetDefault("upload_dir", "data/uploads")
	v.SetDefault("upload_url_path", "/uploads")
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("minio_bucket", "inkwell")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("render_cache_ttl", "24h")
	v.SetDefault("environment", "development")
	v.SetDefault("service_name", "inkwell")
	v.SetDefault("rate_limit", 5)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("shutdown_timeout", "10s")
}

// Load 读取 .env、可选的配置文件（CONFIG_FILE）与环境变量，环境变量优先。
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (AppConfig, error) {
	str := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	port := str("port")
	if port == "" {
		port = "8080"
	}

	listenAddr := str("listen_addr")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	durations := map[string]*time.Duration{}
	cfg := AppConfig{
		ListenAddr:     listenAddr,
		Port:           port,
		DatabaseDriver: strings.ToLower(str("database_driver")),
		DatabaseDSN:    str("database_dsn"),
		SessionSecret:  str("session_secret"),
		JWTSecret:      str("jwt_secret"),
		GinMode:        str("gin_mode"),
		LogLevel:       str("log_level"),
		UploadBackend:  strings.ToLower(str("upload_backend")),
		UploadDir:      str("upload_dir"),
		UploadURLPath:  "/" + strings.Trim(str("upload_url_path"), "/"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		MinIO: MinIOConfig{
			Endpoint:  str("minio_endpoint"),
			AccessKey: str("minio_access_key"),
			SecretKey: str("minio_secret_key"),
			Bucket:    str("minio_bucket"),
			UseSSL:    v.GetBool("minio_use_ssl"),
			PublicURL: strings.TrimRight(str("minio_public_url"), "/"),
		},
		RedisURL:          str("redis_url"),
		SentryDSN:         str("sentry_dsn"),
		Environment:       str("environment"),
		OTLPEndpoint:      str("otel_exporter_otlp_endpoint"),
		ServiceName:       str("service_name"),
		RateLimit:         v.GetFloat64("rate_limit"),
		RateBurst:         v.GetInt("rate_burst"),
		SuperRootUserName: str("super_root_user_name"),
		SuperRootPassword: str("super_root_password"),
	}
	durations["token_ttl"] = &cfg.TokenTTL
	durations["render_cache_ttl"] = &cfg.RenderCacheTTL
	durations["shutdown_timeout"] = &cfg.ShutdownTimeout

	for key, dst := range durations {
		parsed, err := time.ParseDuration(str(key))
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = parsed
	}

	switch cfg.UploadBackend {
	case UploadBackendLocal:
	case UploadBackendMinIO:
		if cfg.MinIO.Endpoint == "" {
			return AppConfig{}, fmt.Errorf("minio_endpoint is required when upload_backend is %s", UploadBackendMinIO)
		}
	default:
		return AppConfig{}, fmt.Errorf("unsupported upload_backend %q", cfg.UploadBackend)
	}

	return cfg, nil
}
