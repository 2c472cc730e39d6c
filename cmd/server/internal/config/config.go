package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the unified server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Log      LogConfig      `yaml:"log"`
	Security SecurityConfig `yaml:"security"`
	AI       AIConfig       `yaml:"ai"`
	OIDC     OIDCConfig     `yaml:"oidc"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Env  string `yaml:"env"` // dev, staging, production
	Port string `yaml:"port"`
}

// DataConfig holds the data directory layout.
type DataConfig struct {
	DataDir       string `yaml:"data_dir"`       // meetings/messages/tasks JSON documents
	UsersDir      string `yaml:"users_dir"`      // users.json
	RecordingsDir string `yaml:"recordings_dir"` // uploaded audio blobs
	AuditLogsDir  string `yaml:"audit_logs_dir"` // rotated JSONL audit trail
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// SecurityConfig holds auth settings.
type SecurityConfig struct {
	JWTSecret            string   `yaml:"jwt_secret"`
	AdminDefaultPassword string   `yaml:"admin_default_password"`
	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`
}

// AIConfig holds the external AI provider credentials and knobs.
type AIConfig struct {
	OpenAIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
	GeminiKey     string `yaml:"gemini_api_key"`
	GeminiBaseURL string `yaml:"gemini_base_url"`
	ElevenKey     string `yaml:"elevenlabs_api_key"`
	ElevenBaseURL string `yaml:"elevenlabs_base_url"`
	DefaultVoice  string `yaml:"default_voice_id"`
	// Mock forces the in-process mock gateway; implied when no keys are set
	// outside production.
	Mock bool `yaml:"mock"`
}

// OIDCConfig holds the optional external identity provider settings.
type OIDCConfig struct {
	Enabled       bool     `yaml:"enabled"`
	IssuerURL     string   `yaml:"issuer_url"`
	ClientID      string   `yaml:"client_id"`
	ClientSecret  string   `yaml:"client_secret"`
	RedirectURI   string   `yaml:"redirect_uri"`
	Scopes        []string `yaml:"scopes"`
	UsernameClaim string   `yaml:"username_claim"`
}

// GlobalConfig is the process-wide configuration instance.
var GlobalConfig *Config

// LoadConfig reads the optional YAML config file, then applies environment
// variable overrides. Environment always wins over file values.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("ACTA_CONFIG")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	GlobalConfig = cfg
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Env: "dev", Port: "8000"},
		Data: DataConfig{
			DataDir:       "./data",
			UsersDir:      "./data/users",
			RecordingsDir: "./data/recordings",
			AuditLogsDir:  "./data/audit_logs",
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Security: SecurityConfig{
			CORSAllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		AI: AIConfig{
			OpenAIBaseURL: "https://api.openai.com",
			OpenAIModel:   "gpt-4o",
			GeminiBaseURL: "https://generativelanguage.googleapis.com",
			ElevenBaseURL: "https://api.elevenlabs.io",
			DefaultVoice:  "CwhRBWXzGAHq8TQ4Fs17",
		},
		OIDC: OIDCConfig{UsernameClaim: "preferred_username"},
	}
}

func applyEnvOverrides(cfg *Config) {
	setIfEnv(&cfg.Server.Env, "ENV")
	setIfEnv(&cfg.Server.Port, "PORT")
	setIfEnv(&cfg.Data.DataDir, "DATA_DIR")
	setIfEnv(&cfg.Data.UsersDir, "USERS_DIR")
	setIfEnv(&cfg.Data.RecordingsDir, "RECORDINGS_DIR")
	setIfEnv(&cfg.Data.AuditLogsDir, "AUDIT_LOGS_DIR")
	setIfEnv(&cfg.Log.Level, "LOG_LEVEL")
	setIfEnv(&cfg.Log.Format, "LOG_FORMAT")
	setIfEnv(&cfg.Security.JWTSecret, "USER_JWT_SECRET")
	setIfEnv(&cfg.Security.AdminDefaultPassword, "ADMIN_DEFAULT_PASSWORD")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Security.CORSAllowedOrigins = parseStringList(v)
	}
	setIfEnv(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setIfEnv(&cfg.AI.OpenAIModel, "OPENAI_MODEL")
	setIfEnv(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setIfEnv(&cfg.AI.ElevenKey, "ELEVENLABS_API_KEY")
	setIfEnv(&cfg.AI.DefaultVoice, "ELEVENLABS_VOICE_ID")
	if v := os.Getenv("AI_MOCK"); v != "" {
		cfg.AI.Mock = v == "1" || strings.EqualFold(v, "true")
	}
	setIfEnv(&cfg.OIDC.IssuerURL, "OIDC_ISSUER_URL")
	setIfEnv(&cfg.OIDC.ClientID, "OIDC_CLIENT_ID")
	setIfEnv(&cfg.OIDC.ClientSecret, "OIDC_CLIENT_SECRET")
	setIfEnv(&cfg.OIDC.RedirectURI, "OIDC_REDIRECT_URI")
	if v := os.Getenv("OIDC_ENABLED"); v != "" {
		cfg.OIDC.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}

// ValidateConfig checks configuration consistency and aggregates all
// violations into one error.
func ValidateConfig(cfg *Config) error {
	var errors []string

	if cfg.Security.JWTSecret == "" {
		errors = append(errors, "USER_JWT_SECRET is required")
	} else if len(cfg.Security.JWTSecret) < 32 {
		errors = append(errors, "USER_JWT_SECRET must be at least 32 characters long")
	}

	if cfg.Server.Env == "production" {
		if cfg.Security.AdminDefaultPassword == "" {
			errors = append(errors, "ADMIN_DEFAULT_PASSWORD is required in production environment")
		} else if len(cfg.Security.AdminDefaultPassword) < 8 {
			errors = append(errors, "ADMIN_DEFAULT_PASSWORD must be at least 8 characters long in production")
		}
		if cfg.AI.Mock {
			errors = append(errors, "AI_MOCK cannot be enabled in production")
		}
		if cfg.AI.OpenAIKey == "" {
			errors = append(errors, "OPENAI_API_KEY is required in production environment")
		}
	}

	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid PORT value: %s (must be 1-65535)", cfg.Server.Port))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		errors = append(errors, fmt.Sprintf("invalid LOG_LEVEL: %s (must be: debug, info, warn, error)", cfg.Log.Level))
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[cfg.Log.Format] {
		errors = append(errors, fmt.Sprintf("invalid LOG_FORMAT: %s (must be: console, json)", cfg.Log.Format))
	}

	validEnvs := map[string]bool{"dev": true, "development": true, "staging": true, "production": true}
	if !validEnvs[cfg.Server.Env] {
		errors = append(errors, fmt.Sprintf("invalid ENV: %s (must be: dev, development, staging, production)", cfg.Server.Env))
	}

	if cfg.OIDC.Enabled {
		if cfg.OIDC.IssuerURL == "" {
			errors = append(errors, "OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if cfg.OIDC.ClientID == "" {
			errors = append(errors, "OIDC_CLIENT_ID is required when OIDC is enabled")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// IsDevelopment reports whether the server runs in a dev environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "dev" || c.Server.Env == "development"
}

// GetServerAddr returns the listen address.
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

// PrintConfig renders the configuration with secrets masked.
func (c *Config) PrintConfig() string {
	return fmt.Sprintf(`Configuration Loaded:
  Environment: %s
  Server Port: %s
  Data Directories:
    - Data: %s
    - Users: %s
    - Recordings: %s
    - Audit Logs: %s
  Logging:
    - Level: %s
    - Format: %s
  Security:
    - JWT Secret: %s
    - Admin Password: %s
    - CORS Origins: %v
  AI:
    - OpenAI Key: %s (model %s)
    - Gemini Key: %s
    - ElevenLabs Key: %s (voice %s)
    - Mock: %v
  OIDC:
    - Enabled: %v
    - Issuer: %s`,
		c.Server.Env,
		c.Server.Port,
		c.Data.DataDir,
		c.Data.UsersDir,
		c.Data.RecordingsDir,
		c.Data.AuditLogsDir,
		c.Log.Level,
		c.Log.Format,
		maskSecret(c.Security.JWTSecret),
		maskSecret(c.Security.AdminDefaultPassword),
		c.Security.CORSAllowedOrigins,
		maskSecret(c.AI.OpenAIKey),
		c.AI.OpenAIModel,
		maskSecret(c.AI.GeminiKey),
		maskSecret(c.AI.ElevenKey),
		c.AI.DefaultVoice,
		c.AI.Mock,
		c.OIDC.Enabled,
		c.OIDC.IssuerURL,
	)
}

// helpers

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// parseStringList splits a comma-separated list, trimming blanks.
func parseStringList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// maskSecret hides secret values in logs.
func maskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}
