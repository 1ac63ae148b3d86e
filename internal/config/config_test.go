package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/ryverlive/internal/auth"
	"github.com/danmuck/ryverlive/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadBotConfigDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `org = "acme"
username = "bot"
password = "pw"
`)
	cfg, err := LoadBotConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "ryverbot" || cfg.AdminAddr != "127.0.0.1:9300" || cfg.EchoPrefix != "!echo " {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if _, ok := cfg.Credentials().(auth.Basic); !ok {
		t.Fatalf("expected basic credentials, got=%T", cfg.Credentials())
	}
}

func TestLoadBotConfigTokenFromEnv(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvToken, "env-token")
	path := writeFile(t, `org = "acme"`)
	cfg, err := LoadBotConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	creds, ok := cfg.Credentials().(auth.Bearer)
	if !ok || creds.Token != "env-token" {
		t.Fatalf("expected bearer env-token, got=%#v", cfg.Credentials())
	}
}

func TestLoadBotConfigAdminToken(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "org = \"acme\"\ntoken = \"t\"\nadmin_token = \"from-file\"\n")
	cfg, err := LoadBotConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminToken != "from-file" {
		t.Fatalf("expected admin token from file, got=%q", cfg.AdminToken)
	}

	t.Setenv(EnvAdminToken, "from-env")
	cfg, err = LoadBotConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminToken != "from-env" {
		t.Fatalf("expected env admin token, got=%q", cfg.AdminToken)
	}
}

func TestValidateBotConfig(t *testing.T) {
	testlog.Start(t)
	base := BotConfig{Name: "b", Org: "acme", Token: "t", AdminAddr: ":9300"}
	tests := []struct {
		name    string
		mutate  func(*BotConfig)
		wantSub string
	}{
		{name: "valid", mutate: func(*BotConfig) {}},
		{name: "missing org", mutate: func(c *BotConfig) { c.Org = "" }, wantSub: "missing org"},
		{name: "org with host", mutate: func(c *BotConfig) { c.Org = "acme.ryver.com" }, wantSub: "bare organization"},
		{name: "no credentials", mutate: func(c *BotConfig) { c.Token = "" }, wantSub: "token or username"},
		{name: "bad presence", mutate: func(c *BotConfig) { c.Presence = "busy" }, wantSub: "presence"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := ValidateBotConfig(cfg)
			if tc.wantSub == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestLoadBotConfigParseError(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `org = `)
	if _, err := LoadBotConfig(path); err == nil || !strings.Contains(err.Error(), "config parse failed") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := LoadBotConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected load error for missing file")
	}
}

func TestWriteTemplateRoundTrip(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvPassword, "from-env")
	path := filepath.Join(t.TempDir(), "bot.toml")
	if err := WriteTemplate(path, "bot", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "bot", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	cfg, err := LoadBotConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Org != "acme" || cfg.Password != "from-env" {
		t.Fatalf("unexpected template config %+v", cfg)
	}
	if _, err := Template("cluster"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
