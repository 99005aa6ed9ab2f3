
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	BotToken        string  `json:"bot_token"`
	DataDir         string  `json:"data_dir"`
	InitialAdminIDs []int64 `json:"initial_admin_ids,omitempty"`

	// Admin panel two-step challenge. Both must be set or the bot refuses
	// to start: without them the dashboard would be unreachable.
	AdminAuthCode   string `json:"admin_auth_code"`
	AdminAuthAnswer string `json:"admin_auth_answer"`

	// Minutes of inactivity before an authenticated admin session expires.
	SessionTimeoutMinutes int `json:"session_timeout_minutes,omitempty"`

	// Per-channel membership check timeout in seconds.
	MembershipTimeoutSeconds int `json:"membership_timeout_seconds,omitempty"`

	// OpenRouter caption generator (optional; /caption is disabled without a key).
	OpenRouterAPIKey  string `json:"openrouter_api_key,omitempty"`
	OpenRouterModel   string `json:"openrouter_model,omitempty"`
	OpenRouterBaseURL string `json:"openrouter_base_url,omitempty"`

	// If true, bot will log debug messages.
	Debug bool `json:"debug,omitempty"`
}

const (
	DefaultSessionTimeoutMinutes    = 30
	DefaultMembershipTimeoutSeconds = 10
	DefaultOpenRouterModel          = "google/gemini-2.0-flash-exp:free"
	DefaultOpenRouterBaseURL        = "https://openrouter.ai/api/v1"
)

func DefaultDataDir() string {
	if v := os.Getenv("CSB_DATA_DIR"); v != "" {
		return v
	}
	// Preferred system path
	return "/var/lib/course-sales-bot"
}

func DefaultConfigPath() string {
	if v := os.Getenv("CSB_CONFIG"); v != "" {
		return v
	}
	// Preferred system path
	return "/etc/course-sales-bot/config.json"
}

func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	// 1) Try file
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config json: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) Env fallback / override
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("CSB_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CSB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CSB_ADMIN_AUTH_CODE"); v != "" {
		cfg.AdminAuthCode = v
	}
	if v := os.Getenv("CSB_ADMIN_AUTH_ANSWER"); v != "" {
		cfg.AdminAuthAnswer = v
	}
	if v := os.Getenv("CSB_SESSION_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTimeoutMinutes = n
		}
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouterAPIKey = v
	}
	if v := os.Getenv("CSB_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	if v := os.Getenv("CSB_INITIAL_ADMINS"); v != "" && len(cfg.InitialAdminIDs) == 0 {
		cfg.InitialAdminIDs = parseIDList(v)
	}

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if cfg.SessionTimeoutMinutes <= 0 {
		cfg.SessionTimeoutMinutes = DefaultSessionTimeoutMinutes
	}
	if cfg.MembershipTimeoutSeconds <= 0 {
		cfg.MembershipTimeoutSeconds = DefaultMembershipTimeoutSeconds
	}
	if cfg.OpenRouterModel == "" {
		cfg.OpenRouterModel = DefaultOpenRouterModel
	}
	if cfg.OpenRouterBaseURL == "" {
		cfg.OpenRouterBaseURL = DefaultOpenRouterBaseURL
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("missing bot_token (set in %s or BOT_TOKEN env)", path)
	}
	if cfg.AdminAuthCode == "" || cfg.AdminAuthAnswer == "" {
		return Config{}, fmt.Errorf("missing admin_auth_code/admin_auth_answer (set in %s or CSB_ADMIN_AUTH_CODE / CSB_ADMIN_AUTH_ANSWER env)", path)
	}
	return cfg, nil
}

func parseIDList(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err == nil {
			out = append(out, id)
		}
	}
	return out
}
