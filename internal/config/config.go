// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Action re-run policies.
const (
	// RerunAllow keeps a suggested action runnable until its outcome is reported.
	RerunAllow = "allow"
	// RerunOnce permits a single execution per suggested action.
	RerunOnce = "once"
)

// Config holds all application configuration.
type Config struct {
	Port               string                `yaml:"port"`
	FrontendURL        string                `yaml:"frontend_url"`
	ArgoCDURL          string                `yaml:"argocd_url"`
	ArgoCDInsecure     bool                  `yaml:"argocd_insecure"`
	ArgoCDToken        string                `yaml:"argocd_token"`
	AgentBackendURL    string                `yaml:"agent_backend_url"`
	AgentAllowedHosts  []string              `yaml:"agent_allowed_hosts"`
	ActionAllowedHosts []string              `yaml:"action_allowed_hosts"`
	DBPath             string                `yaml:"db_path"`
	SessionTTL         time.Duration         `yaml:"session_ttl"`
	PanelIdleTTL       time.Duration         `yaml:"panel_idle_ttl"`
	ActionRerunPolicy  string                `yaml:"action_rerun_policy"`
	Timeout            TimeoutConfig         `yaml:"timeout"`
	RateLimit          RateLimitConfig       `yaml:"rate_limit"`
	ConversationLog    ConversationLogConfig `yaml:"conversation_log"`
}

// TimeoutConfig bounds outbound calls. Zero means no deadline.
type TimeoutConfig struct {
	Agent       time.Duration `yaml:"agent"`
	Action      time.Duration `yaml:"action"`
	ArgoCD      time.Duration `yaml:"argocd"`
	HealthCheck time.Duration `yaml:"health_check"`
}

// RateLimitConfig throttles panel operations per user.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	GlobalEnabled bool   `yaml:"global_enabled"`
	GlobalPath    string `yaml:"global_path"`
	QueueSize     int    `yaml:"queue_size"`
}

// Load reads configuration from environment variables, then overlays the
// YAML profile named by CONFIG_FILE when set.
func Load() (*Config, error) {
	cfg := fromEnv()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func fromEnv() *Config {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		ArgoCDURL:          strings.TrimRight(getEnv("ARGOCD_URL", "http://localhost:8080"), "/"),
		ArgoCDInsecure:     getEnvBool("ARGOCD_INSECURE", false),
		ArgoCDToken:        getEnv("ARGOCD_TOKEN", ""),
		AgentBackendURL:    getEnv("AGENT_BACKEND_URL", ""),
		AgentAllowedHosts:  getEnvList("AGENT_ALLOWED_HOSTS"),
		ActionAllowedHosts: getEnvList("ACTION_ALLOWED_HOSTS"),
		DBPath:             getEnv("DB_PATH", "./data/chat.db"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		PanelIdleTTL:       getEnvDuration("PANEL_IDLE_TTL", 60*time.Minute),
		ActionRerunPolicy:  strings.ToLower(getEnv("ACTION_RERUN_POLICY", RerunAllow)),
		Timeout: TimeoutConfig{
			Agent:       getEnvDuration("AGENT_TIMEOUT", 0),
			Action:      getEnvDuration("ACTION_TIMEOUT", 0),
			ArgoCD:      getEnvDuration("ARGOCD_TIMEOUT", 0),
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 2),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}
}

// MergeFile overlays non-zero values from a YAML profile onto c.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// Decoding into a copy keeps every key the file omits at its current value.
	merged := *c
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	merged.ArgoCDURL = strings.TrimRight(merged.ArgoCDURL, "/")
	merged.ActionRerunPolicy = strings.ToLower(merged.ActionRerunPolicy)
	*c = merged
	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	u, err := url.Parse(c.ArgoCDURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ARGOCD_URL must be an absolute http(s) URL, got %q", c.ArgoCDURL)
	}
	if c.ActionRerunPolicy != RerunAllow && c.ActionRerunPolicy != RerunOnce {
		return fmt.Errorf("ACTION_RERUN_POLICY must be %q or %q, got %q", RerunAllow, RerunOnce, c.ActionRerunPolicy)
	}
	if c.PanelIdleTTL <= 0 {
		return fmt.Errorf("PANEL_IDLE_TTL must be > 0")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// AgentHosts lists the hosts an agent backend URL may point at: the host of
// AGENT_BACKEND_URL plus AGENT_ALLOWED_HOSTS.
func (c *Config) AgentHosts() []string {
	hosts := make([]string, 0, len(c.AgentAllowedHosts)+1)
	if c.AgentBackendURL != "" {
		hosts = append(hosts, c.AgentBackendURL)
	}
	return append(hosts, c.AgentAllowedHosts...)
}

// ActionHosts lists the hosts suggested actions may target: the Argo CD
// dashboard plus ACTION_ALLOWED_HOSTS.
func (c *Config) ActionHosts() []string {
	hosts := make([]string, 0, len(c.ActionAllowedHosts)+1)
	hosts = append(hosts, c.ArgoCDURL)
	return append(hosts, c.ActionAllowedHosts...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
