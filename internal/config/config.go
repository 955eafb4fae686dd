// Package config loads dayplan settings from .dayplan/config.json, a .env
// file and DAYPLAN_* environment variables, in increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Dir is the per-project state directory.
	Dir = ".dayplan"

	DefaultDBName       = "dayplan.db"
	DefaultSnapshotName = "snapshot.jsonl"
	DefaultAddr         = ":8000"
	DefaultTokenTTL     = 24 * time.Hour
	DefaultBcryptCost   = 12
	DefaultLogLevel     = "info"
)

// Config holds runtime settings. TokenTTL is written as a duration string
// such as "24h" in the JSON file.
type Config struct {
	DBPath       string        `json:"db_path"`
	SnapshotPath string        `json:"snapshot_path"`
	AutoSnapshot bool          `json:"auto_snapshot"`
	Addr         string        `json:"addr"`
	JWTSecret    string        `json:"jwt_secret"`
	TokenTTL     time.Duration `json:"-"`
	BcryptCost   int           `json:"bcrypt_cost"`
	LogLevel     string        `json:"log_level"`
}

type fileConfig struct {
	Config
	TokenTTL string `json:"token_ttl,omitempty"`
}

// Default returns the settings used when nothing is configured. Paths are
// relative to root.
func Default(root string) Config {
	return Config{
		DBPath:       filepath.Join(root, Dir, DefaultDBName),
		SnapshotPath: filepath.Join(root, Dir, DefaultSnapshotName),
		Addr:         DefaultAddr,
		TokenTTL:     DefaultTokenTTL,
		BcryptCost:   DefaultBcryptCost,
		LogLevel:     DefaultLogLevel,
	}
}

// Path returns the config file location under root.
func Path(root string) string {
	return filepath.Join(root, Dir, "config.json")
}

// Load reads the config file under root if present, then root/.env, then
// the process environment. Variables already set in the environment win
// over .env entries.
func Load(root string) (Config, error) {
	cfg := Default(root)

	if err := readFile(Path(root), &cfg); err != nil {
		return cfg, err
	}

	envFile := filepath.Join(root, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	fc := fileConfig{Config: *cfg}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if fc.TokenTTL != "" {
		ttl, err := time.ParseDuration(fc.TokenTTL)
		if err != nil {
			return fmt.Errorf("invalid token_ttl %q: %w", fc.TokenTTL, err)
		}
		fc.Config.TokenTTL = ttl
	}
	*cfg = fc.Config
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DAYPLAN_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DAYPLAN_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("DAYPLAN_AUTO_SNAPSHOT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DAYPLAN_AUTO_SNAPSHOT %q: %w", v, err)
		}
		cfg.AutoSnapshot = b
	}
	if v := os.Getenv("DAYPLAN_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DAYPLAN_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("DAYPLAN_TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DAYPLAN_TOKEN_TTL %q: %w", v, err)
		}
		cfg.TokenTTL = ttl
	}
	if v := os.Getenv("DAYPLAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Save writes cfg as the config file under root.
func Save(root string, cfg Config) error {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	fc := fileConfig{Config: cfg}
	if cfg.TokenTTL > 0 {
		fc.TokenTTL = cfg.TokenTTL.String()
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// NewLogger returns a text logger on w at the configured level.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
