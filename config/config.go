// Package config loads engine configuration from config.json with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the trading engine
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	EngineConfig   EngineConfig   `json:"engine"`
	ChainConfig    ChainConfig    `json:"chain"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
	VaultConfig    VaultConfig    `json:"vault"`
	DispatchConfig DispatchConfig `json:"dispatch"`
	MLConfig       MLConfig       `json:"ml"`
	JournalConfig  JournalConfig  `json:"journal"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// AuthConfig holds JWT auth settings for the single admin user
type AuthConfig struct {
	Enabled       bool          `json:"enabled"`
	JWTSecret     string        `json:"jwt_secret"`
	AdminUser     string        `json:"admin_user"`
	AdminPassHash string        `json:"admin_pass_hash"`
	TokenLifetime time.Duration `json:"token_lifetime"`
}

// EngineConfig holds the analysis loop settings
type EngineConfig struct {
	Indices       []string      `json:"indices"`
	RiskProfile   string        `json:"risk_profile"`
	Interval      time.Duration `json:"interval"`
	Timeframe     string        `json:"timeframe"`
	Balance       float64       `json:"balance"`
	RiskPerTrade  float64       `json:"risk_per_trade"`
	IgnoreSession bool          `json:"ignore_session"`
	ReportDir     string        `json:"report_dir"`
}

// ChainConfig holds the NSE option chain fetcher settings
type ChainConfig struct {
	BaseURL  string        `json:"base_url"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// RedisConfig holds Redis settings for the chain snapshot cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig holds the Postgres trade store settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// VaultConfig holds HashiCorp Vault settings for broker credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	CACert     string `json:"ca_cert"`
}

// DispatchConfig holds the Fyers order executor settings
type DispatchConfig struct {
	Enabled     bool   `json:"enabled"`
	BaseURL     string `json:"base_url"`
	TokenFile   string `json:"token_file"`
	RealTrading bool   `json:"real_trading"`
}

// MLConfig holds the signal predictor settings
type MLConfig struct {
	ModelPath string        `json:"model_path"`
	CacheTTL  time.Duration `json:"cache_ttl"`
}

// JournalConfig holds the file-backed trade journal settings
type JournalConfig struct {
	Dir string `json:"dir"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// Load reads config.json if present and applies environment overrides
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Broker API credentials are not read here; they come from the secrets
// store (Vault or FYERS_* environment variables).
func applyEnvOverrides(cfg *Config) {
	// Server
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.ServerConfig.AllowedOrigins = splitAndTrim(origins)
	}
	if len(cfg.ServerConfig.AllowedOrigins) == 0 {
		cfg.ServerConfig.AllowedOrigins = []string{"*"}
	}

	// Auth
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", boolString(cfg.AuthConfig.Enabled)) == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AdminUser = getEnvOrDefault("AUTH_ADMIN_USER", defaultString(cfg.AuthConfig.AdminUser, "admin"))
	cfg.AuthConfig.AdminPassHash = getEnvOrDefault("AUTH_ADMIN_PASS_HASH", cfg.AuthConfig.AdminPassHash)
	cfg.AuthConfig.TokenLifetime = getEnvDurationOrDefault("AUTH_TOKEN_LIFETIME", defaultDuration(cfg.AuthConfig.TokenLifetime, 24*time.Hour))

	// Engine
	if indices := os.Getenv("ENGINE_INDICES"); indices != "" {
		cfg.EngineConfig.Indices = splitAndTrim(indices)
	}
	if len(cfg.EngineConfig.Indices) == 0 {
		cfg.EngineConfig.Indices = []string{"NIFTY", "BANKNIFTY"}
	}
	cfg.EngineConfig.RiskProfile = getEnvOrDefault("RISK_PROFILE", defaultString(cfg.EngineConfig.RiskProfile, "moderate"))
	cfg.EngineConfig.Interval = getEnvDurationOrDefault("ENGINE_INTERVAL", defaultDuration(cfg.EngineConfig.Interval, 5*time.Minute))
	cfg.EngineConfig.Timeframe = getEnvOrDefault("ENGINE_TIMEFRAME", defaultString(cfg.EngineConfig.Timeframe, "5m"))
	cfg.EngineConfig.Balance = getEnvFloatOrDefault("ACCOUNT_BALANCE", defaultFloat(cfg.EngineConfig.Balance, 500000))
	cfg.EngineConfig.RiskPerTrade = getEnvFloatOrDefault("RISK_PER_TRADE", defaultFloat(cfg.EngineConfig.RiskPerTrade, 0.02))
	cfg.EngineConfig.IgnoreSession = getEnvOrDefault("IGNORE_SESSION_HOURS", boolString(cfg.EngineConfig.IgnoreSession)) == "true"
	cfg.EngineConfig.ReportDir = getEnvOrDefault("REPORT_DIR", defaultString(cfg.EngineConfig.ReportDir, "reports"))

	// Chain
	cfg.ChainConfig.BaseURL = getEnvOrDefault("NSE_BASE_URL", defaultString(cfg.ChainConfig.BaseURL, "https://www.nseindia.com"))
	cfg.ChainConfig.CacheTTL = getEnvDurationOrDefault("CHAIN_CACHE_TTL", defaultDuration(cfg.ChainConfig.CacheTTL, 15*time.Minute))

	// Redis
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DATABASE_ENABLED", boolString(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "options_trading"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Vault
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolString(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultString(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultString(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultString(cfg.VaultConfig.SecretPath, "trading-engine/brokers"))
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)

	// Dispatch
	cfg.DispatchConfig.Enabled = getEnvOrDefault("DISPATCH_ENABLED", boolString(cfg.DispatchConfig.Enabled)) == "true"
	cfg.DispatchConfig.BaseURL = getEnvOrDefault("FYERS_BASE_URL", defaultString(cfg.DispatchConfig.BaseURL, "https://api.fyers.in/api/v2"))
	cfg.DispatchConfig.TokenFile = getEnvOrDefault("FYERS_TOKEN_FILE", defaultString(cfg.DispatchConfig.TokenFile, "fyers_token.json"))
	cfg.DispatchConfig.RealTrading = getEnvOrDefault("ENABLE_REAL_TRADING", boolString(cfg.DispatchConfig.RealTrading)) == "true"

	// ML
	cfg.MLConfig.ModelPath = getEnvOrDefault("ML_MODEL_PATH", defaultString(cfg.MLConfig.ModelPath, "models/signal_model.json"))
	cfg.MLConfig.CacheTTL = getEnvDurationOrDefault("ML_CACHE_TTL", defaultDuration(cfg.MLConfig.CacheTTL, 30*time.Second))

	// Journal
	cfg.JournalConfig.Dir = getEnvOrDefault("JOURNAL_DIR", defaultString(cfg.JournalConfig.Dir, "trade_logs"))

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultString(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", boolString(cfg.LoggingConfig.IncludeFile)) == "true"
}

// Validate reports configuration errors that would break startup
func (c *Config) Validate() error {
	if c.ServerConfig.Port <= 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerConfig.Port)
	}
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but JWT_SECRET is not set")
	}
	if c.AuthConfig.Enabled && c.AuthConfig.AdminPassHash == "" {
		return fmt.Errorf("auth is enabled but AUTH_ADMIN_PASS_HASH is not set")
	}
	if len(c.EngineConfig.Indices) == 0 {
		return fmt.Errorf("no indices configured")
	}
	switch c.EngineConfig.RiskProfile {
	case "conservative", "moderate", "aggressive":
	default:
		return fmt.Errorf("invalid risk profile: %s", c.EngineConfig.RiskProfile)
	}
	if c.EngineConfig.RiskPerTrade <= 0 || c.EngineConfig.RiskPerTrade > 0.1 {
		return fmt.Errorf("risk per trade must be in (0, 0.1], got %v", c.EngineConfig.RiskPerTrade)
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultFloat(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}
