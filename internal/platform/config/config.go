package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// HTTPConfig は打刻用 HTTP API の設定です。ListenAddr が空の場合は起動しません。
type HTTPConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// CheckInRate は 1 利用者あたりの毎秒の打刻リクエスト数です。
	CheckInRate  float64 `yaml:"check_in_rate"`
	CheckInBurst int     `yaml:"check_in_burst"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
	// LockTimeout は求人行ロックの待ち時間の上限です。0 の場合はサーバー既定値です。
	LockTimeout    time.Duration `yaml:"-"`
	LockTimeoutRaw string        `yaml:"lock_timeout"`
}

// RedisConfig は変更通知に使う Redis の設定です。Addr が空の場合は通知を無効にします。
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
	BufferSize    int    `yaml:"buffer_size"`
}

// AuthConfig は JWT 検証の設定です。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// SchedulerConfig は期限切れ求人の掃除ジョブの設定です。
type SchedulerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SweepSpec string `yaml:"sweep_spec"`
}

// AttendanceConfig は暦日とシフト時刻を判定するタイムゾーンの設定です。
type AttendanceConfig struct {
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

// LoggingConfig は zap ロガーの設定です。
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultCheckInRate     = 1.0
	defaultCheckInBurst    = 3
	defaultChannelPrefix   = "job:"
	defaultBufferSize      = 16
	defaultSweepSpec       = "5 0 * * *"
)

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read file %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse yaml")
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	c.HTTP.normalize()

	db := &c.Database
	if err := db.validateAndNormalize(); err != nil {
		return err
	}

	c.Redis.normalize()

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: auth.jwt_secret must be set")
	}

	if c.Scheduler.SweepSpec == "" {
		c.Scheduler.SweepSpec = defaultSweepSpec
	}

	if err := c.Attendance.validateAndNormalize(); err != nil {
		return err
	}

	return c.Logging.validateAndNormalize()
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		return errors.New("config: server.listen_addr must be set")
	}
	timeout, err := parseDurationAllowEmpty(s.ShutdownTimeoutRaw)
	if err != nil {
		return errors.Wrap(err, "config: server.shutdown_timeout")
	}
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	s.ShutdownTimeout = timeout
	return nil
}

func (h *HTTPConfig) normalize() {
	if h.CheckInRate <= 0 {
		h.CheckInRate = defaultCheckInRate
	}
	if h.CheckInBurst <= 0 {
		h.CheckInBurst = defaultCheckInBurst
	}
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return errors.New("config: database.host must be set")
	}
	if d.Port == 0 {
		return errors.New("config: database.port must be set")
	}
	if d.User == "" {
		return errors.New("config: database.user must be set")
	}
	if d.Password == "" {
		return errors.New("config: database.password must be set")
	}
	if d.Name == "" {
		return errors.New("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return errors.Wrap(err, "config: database.conn_max_lifetime")
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return errors.Wrap(err, "config: database.conn_max_idle_time")
	}
	d.ConnMaxIdleTime = idleTime

	lockTimeout, err := parseDurationAllowEmpty(d.LockTimeoutRaw)
	if err != nil {
		return errors.Wrap(err, "config: database.lock_timeout")
	}
	d.LockTimeout = lockTimeout

	return nil
}

func (r *RedisConfig) normalize() {
	if r.ChannelPrefix == "" {
		r.ChannelPrefix = defaultChannelPrefix
	}
	if r.BufferSize <= 0 {
		r.BufferSize = defaultBufferSize
	}
}

func (a *AttendanceConfig) validateAndNormalize() error {
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return errors.Wrapf(err, "config: attendance.timezone %q", a.Timezone)
	}
	a.Location = loc
	return nil
}

func (l *LoggingConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "console":
	default:
		return errors.Newf("config: logging.format must be json or console, got %q", l.Format)
	}
	return nil
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

// DSN は pgx 用の接続文字列を返します。認証情報は URL エスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
