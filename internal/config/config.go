package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/ryverlive/internal/auth"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvPassword   = "RYVERBOT_PASSWORD"
	EnvToken      = "RYVERBOT_TOKEN"
	EnvAdminToken = "RYVERBOT_ADMIN_TOKEN"
)

// BotConfig is the identity and surface of one bot process.
type BotConfig struct {
	Name        string   `toml:"name"`
	Org         string   `toml:"org"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	Token       string   `toml:"token"`
	LoginClient string   `toml:"login_client"`
	AdminAddr   string   `toml:"admin_addr"`
	AdminToken  string   `toml:"admin_token"`
	CorsOrigins []string `toml:"cors_origins"`
	EchoPrefix  string   `toml:"echo_prefix"`
	Presence    string   `toml:"presence"`
}

func LoadBotConfig(path string) (BotConfig, error) {
	var cfg BotConfig
	if err := loadToml(path, &cfg); err != nil {
		return BotConfig{}, err
	}
	applyEnv(&cfg)
	if cfg.Name == "" {
		cfg.Name = "ryverbot"
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = "127.0.0.1:9300"
	}
	if cfg.EchoPrefix == "" {
		cfg.EchoPrefix = "!echo "
	}
	if err := ValidateBotConfig(cfg); err != nil {
		return BotConfig{}, err
	}
	return cfg, nil
}

// applyEnv lets secrets stay out of the config file.
func applyEnv(cfg *BotConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvPassword)); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAdminToken)); v != "" {
		cfg.AdminToken = v
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateBotConfig(cfg BotConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("bot config missing name")
	}
	if strings.TrimSpace(cfg.Org) == "" {
		return fmt.Errorf("bot config missing org")
	}
	if strings.ContainsAny(cfg.Org, "./:") {
		return fmt.Errorf("bot config org must be a bare organization name: %q", cfg.Org)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		if strings.TrimSpace(cfg.Username) == "" || cfg.Password == "" {
			return fmt.Errorf("bot config requires token or username and password")
		}
	}
	if strings.TrimSpace(cfg.AdminAddr) == "" {
		return fmt.Errorf("bot config missing admin_addr")
	}
	if cfg.Presence != "" {
		if err := session.Presence(cfg.Presence).Validate(); err != nil {
			return fmt.Errorf("bot config presence: %w", err)
		}
	}
	return nil
}

// Credentials prefers the API token over username and password.
func (c BotConfig) Credentials() auth.Credentials {
	if strings.TrimSpace(c.Token) != "" {
		return auth.Bearer{Token: c.Token}
	}
	return auth.Basic{Username: c.Username, Password: c.Password}
}
