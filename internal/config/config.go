package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	Store           string        `yaml:"store"`
	MySQL           MySQLConfig   `yaml:"mysql"`
	Redis           RedisConfig   `yaml:"redis"`
	Breaker         BreakerConfig `yaml:"breaker"`
	Log             LogConfig     `yaml:"log"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig leaves Addr empty to claim idempotency keys in process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		Store:    StoreMemory,
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/roomsync",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{PoolSize: 100},
		Breaker: BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             10 * time.Second,
			ConsecutiveFailures: 5,
		},
		Log:             LogConfig{Level: "info", Format: "json"},
		AllowedOrigins:  []string{"http://localhost:3000"},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file named by --config or ROOMSYNC_CONFIG, the .env file and process
// environment, and command-line flags.
func Load(args []string) (Config, error) {
	cfg := Default()

	flags := pflag.NewFlagSet("roomsync", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	envFile := flags.String("env-file", ".env", "path to a dotenv file")
	httpAddr := flags.String("http-addr", cfg.HTTPAddr, "HTTP listen address")
	grpcAddr := flags.String("grpc-addr", cfg.GRPCAddr, "gRPC listen address")
	store := flags.String("store", cfg.Store, "listing store: mysql or memory")
	mysqlDSN := flags.String("mysql-dsn", cfg.MySQL.DSN, "MySQL DSN")
	redisAddr := flags.String("redis-addr", cfg.Redis.Addr, "Redis address, empty for in-process idempotency")
	logLevel := flags.String("log-level", cfg.Log.Level, "log level")
	logFormat := flags.String("log-format", cfg.Log.Format, "log format: json or text")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("ROOMSYNC_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", *envFile, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	overrides := map[string]func(){
		"http-addr":  func() { cfg.HTTPAddr = *httpAddr },
		"grpc-addr":  func() { cfg.GRPCAddr = *grpcAddr },
		"store":      func() { cfg.Store = *store },
		"mysql-dsn":  func() { cfg.MySQL.DSN = *mysqlDSN },
		"redis-addr": func() { cfg.Redis.Addr = *redisAddr },
		"log-level":  func() { cfg.Log.Level = *logLevel },
		"log-format": func() { cfg.Log.Format = *logFormat },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	// PORT is what most hosting platforms set; an explicit address wins.
	if port, ok := lookup("PORT"); ok && port != "" {
		c.HTTPAddr = ":" + port
	}

	strs := map[string]*string{
		"ROOMSYNC_HTTP_ADDR":  &c.HTTPAddr,
		"ROOMSYNC_GRPC_ADDR":  &c.GRPCAddr,
		"ROOMSYNC_STORE":      &c.Store,
		"MYSQL_DSN":           &c.MySQL.DSN,
		"REDIS_ADDR":          &c.Redis.Addr,
		"ROOMSYNC_LOG_LEVEL":  &c.Log.Level,
		"ROOMSYNC_LOG_FORMAT": &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("MYSQL_MAX_OPEN_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MYSQL_MAX_OPEN_CONNS: %w", err)
		}
		c.MySQL.MaxOpenConns = n
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	switch c.Store {
	case StoreMySQL:
		if c.MySQL.DSN == "" {
			problems = append(problems, "mysql dsn is required for the mysql store")
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown store %q", c.Store))
	}
	if c.HTTPAddr == "" {
		problems = append(problems, "http addr is required")
	}
	if c.GRPCAddr == "" {
		problems = append(problems, "grpc addr is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
