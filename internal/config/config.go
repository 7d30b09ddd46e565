package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pixelCV/internal/compose"
	"pixelCV/internal/editor"
	"pixelCV/internal/layout"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Render   RenderConfig   `mapstructure:"render"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// BulkDailyLimit 是每个账号每天可发起的批量生成次数，0 表示不限。
	BulkDailyLimit int `mapstructure:"bulk_daily_limit"`
	// MaxUploadBytes 限制页面背景与护照扫描上传的大小。
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig 描述外部身份提供方签发的访问令牌。
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// RenderConfig 是渲染与批量生成参数。
type RenderConfig struct {
	PageWidthMM  float64       `mapstructure:"page_width_mm"`
	PageHeightMM float64       `mapstructure:"page_height_mm"`
	MinFontSize  float64       `mapstructure:"min_font_size"`
	FitStep      float64       `mapstructure:"fit_step"`
	BulkDelay    time.Duration `mapstructure:"bulk_delay"`
	Compress     bool          `mapstructure:"compress"`
}

// Options converts the render section into renderer options.
func (r RenderConfig) Options() compose.Options {
	opts := compose.DefaultOptions()
	opts.Page = layout.Size{Width: r.PageWidthMM, Height: r.PageHeightMM}
	opts.MinFontSize = r.MinFontSize
	opts.FitStep = r.FitStep
	return opts
}

// EditorConfig 控制编辑器可选的国家。
type EditorConfig struct {
	EnabledCountries []string `mapstructure:"enabled_countries"`
	DefaultCountry   string   `mapstructure:"default_country"`
}

// Settings converts the editor section into editor settings.
func (e EditorConfig) Settings() editor.Settings {
	s := editor.DefaultSettings()
	if len(e.EnabledCountries) > 0 {
		s.EnabledCountries = make([]string, 0, len(e.EnabledCountries))
		for _, c := range e.EnabledCountries {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				s.EnabledCountries = append(s.EnabledCountries, c)
			}
		}
	}
	s.DefaultCountry = strings.ToLower(strings.TrimSpace(e.DefaultCountry))
	if !s.CountryEnabled(s.DefaultCountry) && len(s.EnabledCountries) > 0 {
		s.DefaultCountry = s.EnabledCountries[0]
	}
	return s
}

// ClamdConfig 控制上传扫描。
type ClamdConfig struct {
	Address string `mapstructure:"address"`
	Enabled bool   `mapstructure:"enabled"`
}

// GeminiConfig 是护照识别服务的配置；APIKey 为空时该功能关闭。
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// WorkerConfig 是后台任务进程的配置。MetricsPort 为 0 时不暴露指标。
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	PreviewTimeout time.Duration `mapstructure:"preview_timeout"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("api.bulk_daily_limit", 50)
	v.SetDefault("api.max_upload_bytes", 10<<20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "pixelcv")
	v.SetDefault("database.user", "pixelcv")
	v.SetDefault("database.password", "pixelcv")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "pixelcv")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("render.page_width_mm", layout.A4WidthMM)
	v.SetDefault("render.page_height_mm", layout.A4HeightMM)
	v.SetDefault("render.min_font_size", 4)
	v.SetDefault("render.fit_step", 0.5)
	v.SetDefault("render.bulk_delay", "500ms")
	v.SetDefault("render.compress", true)
	v.SetDefault("editor.enabled_countries", editor.Countries)
	v.SetDefault("editor.default_country", "kuwait")
	v.SetDefault("clamd.address", "tcp://localhost:3310")
	v.SetDefault("clamd.enabled", false)
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.metrics_port", 9091)
	v.SetDefault("worker.preview_timeout", "30s")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                 "API_PORT",
		"api.allowed_origins":      "API_ALLOWED_ORIGINS",
		"api.bulk_daily_limit":     "API_BULK_DAILY_LIMIT",
		"api.max_upload_bytes":     "API_MAX_UPLOAD_BYTES",
		"database.host":            "DATABASE_HOST",
		"database.port":            "DATABASE_PORT",
		"database.name":            "POSTGRES_DB",
		"database.user":            "POSTGRES_USER",
		"database.password":        "POSTGRES_PASSWORD",
		"database.sslmode":         "DATABASE_SSLMODE",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
		"minio.endpoint":           "MINIO_ENDPOINT",
		"minio.public_endpoint":    "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":      "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":  "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":            "MINIO_USE_SSL",
		"minio.bucket":             "MINIO_BUCKET",
		"minio.region":             "MINIO_REGION",
		"minio.bucket_lookup":      "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket": "MINIO_AUTO_CREATE_BUCKET",
		"auth.jwt_secret":          "AUTH_JWT_SECRET",
		"auth.issuer":              "AUTH_ISSUER",
		"auth.audience":            "AUTH_AUDIENCE",
		"render.page_width_mm":     "RENDER_PAGE_WIDTH_MM",
		"render.page_height_mm":    "RENDER_PAGE_HEIGHT_MM",
		"render.min_font_size":     "RENDER_MIN_FONT_SIZE",
		"render.fit_step":          "RENDER_FIT_STEP",
		"render.bulk_delay":        "RENDER_BULK_DELAY",
		"render.compress":          "RENDER_COMPRESS",
		"editor.enabled_countries": "EDITOR_ENABLED_COUNTRIES",
		"editor.default_country":   "EDITOR_DEFAULT_COUNTRY",
		"clamd.address":            "CLAMD_ADDRESS",
		"clamd.enabled":            "CLAMD_ENABLED",
		"gemini.api_key":           "GEMINI_API_KEY",
		"gemini.model":             "GEMINI_MODEL",
		"worker.concurrency":       "WORKER_CONCURRENCY",
		"worker.metrics_port":      "WORKER_METRICS_PORT",
		"worker.preview_timeout":   "WORKER_PREVIEW_TIMEOUT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	if cfg.API.BulkDailyLimit < 0 {
		return errors.New("api bulk daily limit must not be negative")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth jwt secret is required")
	}
	if cfg.Render.PageWidthMM <= 0 || cfg.Render.PageHeightMM <= 0 {
		return errors.New("render page size must be positive")
	}
	if cfg.Render.MinFontSize <= 0 {
		return errors.New("render min font size must be positive")
	}
	if cfg.Render.FitStep <= 0 {
		return errors.New("render fit step must be positive")
	}
	if cfg.Render.BulkDelay < 0 {
		return errors.New("render bulk delay must not be negative")
	}
	if len(cfg.Editor.EnabledCountries) == 0 {
		return errors.New("editor enabled countries must not be empty")
	}
	if cfg.Clamd.Enabled && cfg.Clamd.Address == "" {
		return errors.New("clamd address is required when scanning is enabled")
	}
	return nil
}
