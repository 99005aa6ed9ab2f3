
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BOT_TOKEN", "CSB_BOT_TOKEN", "DATA_DIR", "CSB_DATA_DIR",
		"CSB_ADMIN_AUTH_CODE", "CSB_ADMIN_AUTH_ANSWER",
		"CSB_SESSION_TIMEOUT_MINUTES", "OPENROUTER_API_KEY",
		"CSB_DEBUG", "CSB_INITIAL_ADMINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"bot_token": "123:abc",
		"data_dir": "/tmp/csb-test",
		"initial_admin_ids": [10, 20],
		"admin_auth_code": "122911",
		"admin_auth_answer": "avik",
		"session_timeout_minutes": 5
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotToken != "123:abc" {
		t.Errorf("BotToken = %q", cfg.BotToken)
	}
	if !reflect.DeepEqual(cfg.InitialAdminIDs, []int64{10, 20}) {
		t.Errorf("InitialAdminIDs = %v", cfg.InitialAdminIDs)
	}
	if cfg.SessionTimeoutMinutes != 5 {
		t.Errorf("SessionTimeoutMinutes = %d, want 5", cfg.SessionTimeoutMinutes)
	}
	if cfg.MembershipTimeoutSeconds != DefaultMembershipTimeoutSeconds {
		t.Errorf("MembershipTimeoutSeconds = %d, want default", cfg.MembershipTimeoutSeconds)
	}
	if cfg.OpenRouterModel != DefaultOpenRouterModel || cfg.OpenRouterBaseURL != DefaultOpenRouterBaseURL {
		t.Errorf("openrouter defaults not applied: %q %q", cfg.OpenRouterModel, cfg.OpenRouterBaseURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"bot_token": "123:abc",
		"admin_auth_code": "122911",
		"admin_auth_answer": "avik"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTimeoutMinutes != DefaultSessionTimeoutMinutes {
		t.Errorf("SessionTimeoutMinutes = %d, want %d", cfg.SessionTimeoutMinutes, DefaultSessionTimeoutMinutes)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir default not applied")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"bot_token": "from-file",
		"admin_auth_code": "111111",
		"admin_auth_answer": "file"
	}`)

	t.Setenv("CSB_BOT_TOKEN", "from-env")
	t.Setenv("CSB_ADMIN_AUTH_CODE", "122911")
	t.Setenv("CSB_ADMIN_AUTH_ANSWER", "avik")
	t.Setenv("CSB_SESSION_TIMEOUT_MINUTES", "15")
	t.Setenv("CSB_DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotToken != "from-env" {
		t.Errorf("BotToken = %q, want env value", cfg.BotToken)
	}
	if cfg.AdminAuthCode != "122911" || cfg.AdminAuthAnswer != "avik" {
		t.Errorf("auth secrets = %q/%q, want env values", cfg.AdminAuthCode, cfg.AdminAuthAnswer)
	}
	if cfg.SessionTimeoutMinutes != 15 {
		t.Errorf("SessionTimeoutMinutes = %d, want 15", cfg.SessionTimeoutMinutes)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestEnvOnlyNoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CSB_ADMIN_AUTH_CODE", "122911")
	t.Setenv("CSB_ADMIN_AUTH_ANSWER", "avik")
	t.Setenv("CSB_INITIAL_ADMINS", "10, 20,bad,30")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg.InitialAdminIDs, []int64{10, 20, 30}) {
		t.Errorf("InitialAdminIDs = %v, want [10 20 30]", cfg.InitialAdminIDs)
	}
}

func TestLoadMissingToken(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"admin_auth_code": "122911", "admin_auth_answer": "avik"}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing bot_token")
	}
}

func TestLoadMissingAuthSecrets(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"bot_token": "123:abc"}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing auth secrets")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
