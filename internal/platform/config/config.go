package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞です。
const EnvPrefix = "COMPANIES"

const (
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultRequestTimeout  = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultDefaultPageSize = 50
	defaultMaxPageSize     = 200
	defaultBasePath        = "/companies"
	defaultCacheTTL        = 5 * time.Minute
	defaultApplicationName = "companies-api"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Listing  ListingConfig  `yaml:"listing"`
	HTTP     HTTPConfig     `yaml:"http"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig は HTTP サーバーと gRPC ヘルスチェックサーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr" split_words:"true"`
	GRPCHealthAddr     string        `yaml:"grpc_health_addr" split_words:"true"`
	ReadTimeout        time.Duration `yaml:"-" split_words:"true"`
	WriteTimeout       time.Duration `yaml:"-" split_words:"true"`
	RequestTimeout     time.Duration `yaml:"-" split_words:"true"`
	ShutdownTimeout    time.Duration `yaml:"-" split_words:"true"`
	ReadTimeoutRaw     string        `yaml:"read_timeout" ignored:"true"`
	WriteTimeoutRaw    string        `yaml:"write_timeout" ignored:"true"`
	RequestTimeoutRaw  string        `yaml:"request_timeout" ignored:"true"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" ignored:"true"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host                string        `yaml:"host" split_words:"true"`
	Port                int           `yaml:"port" split_words:"true"`
	User                string        `yaml:"user" split_words:"true"`
	Password            string        `yaml:"password" split_words:"true"`
	Name                string        `yaml:"name" split_words:"true"`
	SSLMode             string        `yaml:"ssl_mode" split_words:"true"`
	MaxOpenConns        int           `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns        int           `yaml:"max_idle_conns" split_words:"true"`
	ApplicationName     string        `yaml:"application_name" split_words:"true"`
	TxRetries           int           `yaml:"tx_retries" split_words:"true"`
	ConnMaxLifetime     time.Duration `yaml:"-" split_words:"true"`
	ConnMaxIdleTime     time.Duration `yaml:"-" split_words:"true"`
	StatementTimeout    time.Duration `yaml:"-" split_words:"true"`
	ConnMaxLifetimeRaw  string        `yaml:"conn_max_lifetime" ignored:"true"`
	ConnMaxIdleTimeRaw  string        `yaml:"conn_max_idle_time" ignored:"true"`
	StatementTimeoutRaw string        `yaml:"statement_timeout" ignored:"true"`
}

// ListingConfig は一覧取得のページサイズに関する設定です。
type ListingConfig struct {
	DefaultPageSize int `yaml:"default_page_size" split_words:"true"`
	MaxPageSize     int `yaml:"max_page_size" split_words:"true"`
}

// HTTPConfig は公開する HTTP API に関する設定です。
type HTTPConfig struct {
	BasePath           string `yaml:"base_path" split_words:"true"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" split_words:"true"`
}

// CacheConfig は Redis キャッシュに関する設定です。Addr が空の場合キャッシュは無効です。
type CacheConfig struct {
	Addr     string        `yaml:"addr" split_words:"true"`
	Password string        `yaml:"password" split_words:"true"`
	DB       int           `yaml:"db" split_words:"true"`
	TTL      time.Duration `yaml:"-" split_words:"true"`
	TTLRaw   string        `yaml:"ttl" ignored:"true"`
}

// Enabled はキャッシュが設定されているかを返します。
func (c CacheConfig) Enabled() bool {
	return c.Addr != ""
}

// LogConfig はロガーに関する設定です。
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
// 環境変数名は COMPANIES_<SECTION>_<FIELD> 形式です (例: COMPANIES_DATABASE_HOST)。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.decodeDurations(); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: apply environment: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) decodeDurations() error {
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{name: "server.read_timeout", raw: c.Server.ReadTimeoutRaw, dst: &c.Server.ReadTimeout},
		{name: "server.write_timeout", raw: c.Server.WriteTimeoutRaw, dst: &c.Server.WriteTimeout},
		{name: "server.request_timeout", raw: c.Server.RequestTimeoutRaw, dst: &c.Server.RequestTimeout},
		{name: "server.shutdown_timeout", raw: c.Server.ShutdownTimeoutRaw, dst: &c.Server.ShutdownTimeout},
		{name: "database.conn_max_lifetime", raw: c.Database.ConnMaxLifetimeRaw, dst: &c.Database.ConnMaxLifetime},
		{name: "database.conn_max_idle_time", raw: c.Database.ConnMaxIdleTimeRaw, dst: &c.Database.ConnMaxIdleTime},
		{name: "database.statement_timeout", raw: c.Database.StatementTimeoutRaw, dst: &c.Database.StatementTimeout},
		{name: "cache.ttl", raw: c.Cache.TTLRaw, dst: &c.Cache.TTL},
	}
	for _, d := range durations {
		v, err := parseDurationAllowEmpty(d.raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Listing.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.HTTP.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Cache.validateAndNormalize(); err != nil {
		return err
	}

	return c.Log.validateAndNormalize()
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if s.GRPCHealthAddr != "" {
		if _, _, err := net.SplitHostPort(s.GRPCHealthAddr); err != nil {
			return fmt.Errorf("config: server.grpc_health_addr: %w", err)
		}
	}

	s.ReadTimeout = durationOrDefault(s.ReadTimeout, defaultReadTimeout)
	s.WriteTimeout = durationOrDefault(s.WriteTimeout, defaultWriteTimeout)
	s.RequestTimeout = durationOrDefault(s.RequestTimeout, defaultRequestTimeout)
	s.ShutdownTimeout = durationOrDefault(s.ShutdownTimeout, defaultShutdownTimeout)

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	if d.ApplicationName == "" {
		d.ApplicationName = defaultApplicationName
	}

	if d.ConnMaxLifetime < 0 || d.ConnMaxIdleTime < 0 || d.StatementTimeout < 0 {
		return fmt.Errorf("config: database durations must not be negative")
	}
	if d.TxRetries < 0 {
		return fmt.Errorf("config: database.tx_retries must not be negative")
	}

	return nil
}

func (l *ListingConfig) validateAndNormalize() error {
	if l.DefaultPageSize < 0 || l.MaxPageSize < 0 {
		return fmt.Errorf("config: listing page sizes must not be negative")
	}
	if l.DefaultPageSize == 0 {
		l.DefaultPageSize = defaultDefaultPageSize
	}
	if l.MaxPageSize == 0 {
		l.MaxPageSize = defaultMaxPageSize
	}
	if l.DefaultPageSize > l.MaxPageSize {
		return fmt.Errorf("config: listing.default_page_size (%d) must not exceed listing.max_page_size (%d)", l.DefaultPageSize, l.MaxPageSize)
	}
	return nil
}

func (h *HTTPConfig) validateAndNormalize() error {
	if h.BasePath == "" {
		h.BasePath = defaultBasePath
	}
	if !strings.HasPrefix(h.BasePath, "/") {
		return fmt.Errorf("config: http.base_path must start with '/'")
	}
	h.BasePath = strings.TrimSuffix(h.BasePath, "/")
	if h.BasePath == "" {
		return fmt.Errorf("config: http.base_path must not be the root path")
	}
	if h.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: http.rate_limit_per_minute must not be negative")
	}
	return nil
}

func (c *CacheConfig) validateAndNormalize() error {
	if c.TTL < 0 {
		return fmt.Errorf("config: cache.ttl must not be negative")
	}
	c.TTL = durationOrDefault(c.TTL, defaultCacheTTL)
	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %s", strconv.Quote(l.Format))
	}
	return nil
}

func durationOrDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。ユーザー名とパスワードはエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
