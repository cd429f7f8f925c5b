package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Watched file
	Target models.Target `yaml:"target" mapstructure:"target"`

	// Overrides the derived "{owner}/{repo}@{branch}:{path}" checkpoint key
	StateKey string `yaml:"state_key" mapstructure:"state_key"`

	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`

	// Checkpoint store
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Notification settings
	Notifier string     `yaml:"notifier" mapstructure:"notifier" validate:"oneof=email log"`
	SMTP     SMTPConfig `yaml:"smtp" mapstructure:"smtp"`
	Mail     MailConfig `yaml:"mail" mapstructure:"mail"`

	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

type GitHubConfig struct {
	Token     string        `yaml:"token" mapstructure:"token"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	PerPage   int           `yaml:"per_page" mapstructure:"per_page" validate:"min=1,max=100"`
	MaxPages  int           `yaml:"max_pages" mapstructure:"max_pages" validate:"min=1"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gt=0"` // Requests per second
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type StoreConfig struct {
	Type           string        `yaml:"type" mapstructure:"type" validate:"oneof=bolt badger redis postgres sqlite memory"`
	Path           string        `yaml:"path" mapstructure:"path"` // bolt, badger, sqlite
	URL            string        `yaml:"url" mapstructure:"url"`   // redis
	DSN            string        `yaml:"dsn" mapstructure:"dsn"`   // postgres
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CompareAndSwap bool          `yaml:"compare_and_swap" mapstructure:"compare_and_swap"`
}

type SMTPConfig struct {
	Host    string        `yaml:"host" mapstructure:"host"`
	Port    int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	User    string        `yaml:"user" mapstructure:"user"`
	Pass    string        `yaml:"pass" mapstructure:"pass"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type MailConfig struct {
	From string   `yaml:"from" mapstructure:"from" validate:"omitempty,email"`
	To   []string `yaml:"to" mapstructure:"to" validate:"dive,email"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Target: models.Target{
			Owner:  "SimplifyJobs",
			Repo:   "New-Grad-Positions",
			Branch: "dev",
			Path:   "README.md",
		},
		GitHub: GitHubConfig{
			PerPage:   30,
			MaxPages:  1,
			RateLimit: 1, // GitHub allows 5,000 requests/hour
			Timeout:   15 * time.Second,
		},
		Store: StoreConfig{
			Type:           "bolt",
			Timeout:        10 * time.Second,
			CompareAndSwap: true,
		},
		Notifier: "email",
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 20 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultStorePath returns the per-user location of a file-backed store.
// Each type gets its own name so switching types never reuses another's files.
func DefaultStorePath(storeType string) string {
	var name string
	switch storeType {
	case "bolt":
		name = "checkpoints.db"
	case "badger":
		name = "checkpoints.badger"
	case "sqlite":
		name = "checkpoints.sqlite"
	default:
		return ""
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".filewatch", name)
}

// ResolvedPath returns Path, or the default location for Type when unset
func (s StoreConfig) ResolvedPath() string {
	if s.Path != "" {
		return s.Path
	}
	return DefaultStorePath(s.Type)
}

// ResolvedStateKey returns the key the checkpoint is stored under
func (c *Config) ResolvedStateKey() string {
	return models.ResolveStateKey(c.Target, c.StateKey)
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("target", cfg.Target)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("store", cfg.Store)
	v.SetDefault("notifier", cfg.Notifier)
	v.SetDefault("smtp", cfg.SMTP)
	v.SetDefault("server", cfg.Server)
	v.SetDefault("log", cfg.Log)

	v.SetEnvPrefix("FILEWATCH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".filewatch")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".filewatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
// godotenv never overrides variables that are already set, so earlier files win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".filewatch", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	cfg.Target.Owner = GetString("GH_OWNER", cfg.Target.Owner)
	cfg.Target.Repo = GetString("GH_REPO", cfg.Target.Repo)
	cfg.Target.Branch = GetString("GH_BRANCH", cfg.Target.Branch)
	cfg.Target.Path = GetString("GH_TARGET_PATH", cfg.Target.Path)
	cfg.StateKey = GetString("STATE_KEY", cfg.StateKey)

	// Token precedence: 1. Env var 2. Config file 3. Keychain
	if token := firstEnv("GH_TOKEN", "GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	} else if cfg.GitHub.Token == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if token, err := km.GetGitHubToken(); err == nil && token != "" {
				cfg.GitHub.Token = token
			}
		}
	}
	cfg.GitHub.BaseURL = GetString("GH_API_URL", cfg.GitHub.BaseURL)
	cfg.GitHub.PerPage = GetInt("GH_PER_PAGE", cfg.GitHub.PerPage)
	cfg.GitHub.MaxPages = GetInt("GH_MAX_PAGES", cfg.GitHub.MaxPages)
	cfg.GitHub.RateLimit = GetFloat("GH_RATE_LIMIT", cfg.GitHub.RateLimit)

	cfg.Store.Type = GetString("STORE_TYPE", cfg.Store.Type)
	if path := os.Getenv("STORE_PATH"); path != "" {
		cfg.Store.Path = expandPath(path)
	}
	if url := firstEnv("REDIS_URL", "KV_URL"); url != "" {
		cfg.Store.URL = url
	}
	cfg.Store.DSN = GetString("POSTGRES_DSN", cfg.Store.DSN)
	cfg.Store.KeyPrefix = GetString("STORE_KEY_PREFIX", cfg.Store.KeyPrefix)
	cfg.Store.CompareAndSwap = GetBool("STORE_COMPARE_AND_SWAP", cfg.Store.CompareAndSwap)
	cfg.Store.Path = cfg.Store.ResolvedPath()

	cfg.Notifier = GetString("NOTIFIER", cfg.Notifier)
	cfg.SMTP.Host = GetString("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = GetInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = GetString("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Pass = GetString("SMTP_PASS", cfg.SMTP.Pass)

	cfg.Mail.From = GetString("MAIL_FROM", cfg.Mail.From)
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.SMTP.User
	}
	if to := os.Getenv("MAIL_TO"); to != "" {
		cfg.Mail.To = ParseRecipients(to)
	} else {
		cfg.Mail.To = ParseRecipients(strings.Join(cfg.Mail.To, ","))
	}

	cfg.Server.Addr = GetString("LISTEN_ADDR", cfg.Server.Addr)
	cfg.Log.Level = strings.ToLower(GetString("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(GetString("LOG_FORMAT", cfg.Log.Format))
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Log.File = expandPath(file)
	}
}

// ParseRecipients splits a comma-separated address list, dropping blanks and duplicates
func ParseRecipients(list string) []string {
	trimmed := lo.Map(strings.Split(list, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(trimmed))
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
