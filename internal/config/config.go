// Package config loads the daemon's YAML configuration, with one struct
// per concern.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Tools    ToolsConfig    `yaml:"tools"`
	Channels ChannelsConfig `yaml:"channels"`
	Agent    AgentConfig    `yaml:"agent"`
	Storage  StorageConfig  `yaml:"storage"`
	Skills   SkillsConfig   `yaml:"skills"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory | postgres
	DSN     string `yaml:"dsn"`
}

// SkillsConfig configures where SKILL.md definitions are loaded from.
type SkillsConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig configures the operator-plane HTTP listener.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	BasePath       string   `yaml:"base_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig configures operator-plane authentication.
type AuthConfig struct {
	BootstrapToken     string        `yaml:"bootstrap_token"`
	LegacyStaticTokens []string      `yaml:"legacy_static_tokens"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	ControlChatIDs     []string      `yaml:"control_chat_ids"`
	// JWTSecret, when set, enables signed service tokens (microclawctl, CI)
	// as an additional bearer credential alongside the bootstrap/legacy
	// tokens and opaque API keys.
	JWTSecret string `yaml:"jwt_secret"`
}

// SandboxConfig configures the tool sandbox router.
type SandboxConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Backend        string  `yaml:"backend"` // auto | docker
	Image          string  `yaml:"image"`
	CPULimit       float64 `yaml:"cpu_limit"`
	MemoryLimitMB  int     `yaml:"memory_limit_mb"`
	NetworkEnabled bool    `yaml:"network_enabled"`
	WorkspaceRoot  string  `yaml:"workspace_root"`
}

// ToolsConfig configures tool execution limits and elevated-tool policy.
type ToolsConfig struct {
	MaxIterations   int           `yaml:"max_tool_iterations"`
	MaxToolCalls    int           `yaml:"max_tool_calls"`
	MaxWallTime     time.Duration `yaml:"max_wall_time"`
	RequireApproval []string      `yaml:"require_approval"`
}

// ChannelsConfig holds per-channel credentials.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type WhatsAppConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AppSecret   string `yaml:"app_secret"`
	AccessToken string `yaml:"access_token"`
	PhoneID     string `yaml:"phone_id"`
}

// AgentConfig configures the default model/provider for the agent loop.
type AgentConfig struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	Provider     string `yaml:"provider"`
	APIKey       string `yaml:"api_key"`
}

// Load reads and parses a YAML config file, applying defaults for anything
// left zero-valued.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = "/"
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Sandbox.Backend == "" {
		cfg.Sandbox.Backend = "auto"
	}
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = "alpine:latest"
	}
	if cfg.Sandbox.CPULimit <= 0 {
		cfg.Sandbox.CPULimit = 1.0
	}
	if cfg.Sandbox.MemoryLimitMB <= 0 {
		cfg.Sandbox.MemoryLimitMB = 512
	}
	if cfg.Tools.MaxIterations <= 0 {
		cfg.Tools.MaxIterations = 25
	}
	if cfg.Tools.MaxToolCalls <= 0 {
		cfg.Tools.MaxToolCalls = 50
	}
	if cfg.Tools.MaxWallTime <= 0 {
		cfg.Tools.MaxWallTime = 5 * time.Minute
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = "./skills"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "claude-sonnet-4-20250514"
	}
}
