package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Session cache backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
	SessionBackendMySQL  = "mysql"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults in code and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	SessionTTLMinutes  int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Backend gateway
	GatewayBaseURL    string
	GatewayTimeoutSec int
	// Session cache
	SessionBackend string
	// Gin framework configuration
	GinMode string
	GinPath string
	// MySQL session cache
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis session cache
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var (
	cfg     AppConfig
	loaded  bool
	cfgLock sync.Mutex
)

// Load reads configuration from the config directory once and caches it. Invalid configuration is fatal.
func Load() AppConfig {
	cfgLock.Lock()
	defer cfgLock.Unlock()
	if loaded {
		return cfg
	}
	c, err := Read("config")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	return Load()
}

// Read builds a validated configuration without caching.
func Read(dir string) (AppConfig, error) {
	c, err := Parse(dir)
	if err != nil {
		return AppConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

// Parse builds a configuration without validating it. The CLI uses it since it needs no JWT secret.
// Precedence: <dir>/config.json or <dir>/config.yaml -> defaults -> environment variable overrides.
func Parse(dir string) (AppConfig, error) {
	var c AppConfig
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		found, err := loadFileConfig(filepath.Join(dir, name), &c)
		if err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", name, err)
		}
		if found {
			break
		}
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

// Validate checks values that have no safe default.
func (c AppConfig) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.GatewayBaseURL == "" {
		return errors.New("GATEWAY_BASE_URL must be set")
	}
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis, SessionBackendMySQL:
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadFileConfig reads a JSON or YAML file into out if present. A missing file is not an error.
func loadFileConfig(path string, out *AppConfig) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, nil
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	default:
		err = json.Unmarshal(b, &raw)
	}
	if err != nil {
		return true, err
	}
	applyRaw(raw, out)
	return true, nil
}

func applyRaw(raw map[string]any, out *AppConfig) {
	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			case json.Number:
				i, _ := t.Int64()
				return int(i)
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if v := getInt(app, "SessionTTLMinutes"); v != 0 {
			out.SessionTTLMinutes = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
	}

	if gw, ok := raw["gateway"].(map[string]any); ok {
		out.GatewayBaseURL = getString(gw, "BaseURL")
		if v := getInt(gw, "TimeoutSec"); v != 0 {
			out.GatewayTimeoutSec = v
		}
	}

	if s, ok := raw["session"].(map[string]any); ok {
		out.SessionBackend = getString(s, "Backend")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	// flat keys for backward compatibility
	if v, ok := raw["AppPort"].(string); ok && out.AppPort == "" {
		out.AppPort = v
	}
	if v, ok := raw["JWTSecret"].(string); ok && out.JWTSecret == "" {
		out.JWTSecret = v
	}
	if v, ok := raw["GatewayBaseURL"].(string); ok && out.GatewayBaseURL == "" {
		out.GatewayBaseURL = v
	}
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.SessionTTLMinutes == 0 {
		c.SessionTTLMinutes = 7 * 24 * 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GatewayTimeoutSec == 0 {
		c.GatewayTimeoutSec = 10
	}
	if c.SessionBackend == "" {
		c.SessionBackend = SessionBackendMemory
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "stampcard"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid integer value %s=%q", key, v))
				return
			}
			*dst = i
		}
	}
	setString := func(key string, dst *string) {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}

	setString("APP_PORT", &c.AppPort)
	setString("JWT_SECRET", &c.JWTSecret)
	setInt("SESSION_TTL_MINUTES", &c.SessionTTLMinutes)
	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	setString("GATEWAY_BASE_URL", &c.GatewayBaseURL)
	setInt("GATEWAY_TIMEOUT_SEC", &c.GatewayTimeoutSec)
	if v := getEnv("SESSION_BACKEND", ""); v != "" {
		c.SessionBackend = strings.ToLower(v)
	}
	setString("GIN_MODE", &c.GinMode)
	setString("GIN_LOG_PATH", &c.GinPath) // compatibility
	setString("GIN_PATH", &c.GinPath)
	setString("DATABASE_URI", &c.DatabaseURI)
	setString("DB_HOST", &c.DBHost)
	setString("DB_PORT", &c.DBPort)
	setString("DB_USER", &c.DBUser)
	setString("DB_PASSWORD", &c.DBPassword)
	setString("DB_NAME", &c.DBName)
	setString("REDIS_HOST", &c.RedisHost)
	setInt("REDIS_PORT", &c.RedisPort)
	setInt("REDIS_DB", &c.RedisDB)
	setString("REDIS_PASSWORD", &c.RedisPassword)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_PATH", &c.LogPath)
	setInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	return errors.Join(errs...)
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
