package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARGOCD_URL", "https://argocd.example.com/")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ArgoCDURL != "https://argocd.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ArgoCDURL)
	}
	if cfg.ActionRerunPolicy != RerunAllow {
		t.Fatalf("expected default rerun policy %q, got %q", RerunAllow, cfg.ActionRerunPolicy)
	}
	if cfg.Timeout.Agent != 0 {
		t.Fatalf("expected no agent deadline by default, got %s", cfg.Timeout.Agent)
	}
}

func TestLoadRejectsBadRerunPolicy(t *testing.T) {
	t.Setenv("ARGOCD_URL", "https://argocd.example.com")
	t.Setenv("ACTION_RERUN_POLICY", "twice")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ACTION_RERUN_POLICY") {
		t.Fatalf("expected rerun policy error, got %v", err)
	}
}

func TestLoadRejectsRelativeArgoCDURL(t *testing.T) {
	t.Setenv("ARGOCD_URL", "argocd.local")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for ARGOCD_URL without scheme")
	}
}

func TestMergeFileOverlaysOnlyPresentKeys(t *testing.T) {
	t.Setenv("ARGOCD_URL", "https://argocd.example.com")
	t.Setenv("AGENT_BACKEND_URL", "http://agent.local/chat")

	path := filepath.Join(t.TempDir(), "chat.yaml")
	profile := `
action_rerun_policy: ONCE
timeout:
  agent: 30s
rate_limit:
  burst: 3
`
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ActionRerunPolicy != RerunOnce {
		t.Fatalf("expected policy from file, got %q", cfg.ActionRerunPolicy)
	}
	if cfg.Timeout.Agent != 30*time.Second {
		t.Fatalf("expected agent timeout 30s, got %s", cfg.Timeout.Agent)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Fatalf("expected burst 3, got %d", cfg.RateLimit.Burst)
	}
	if cfg.AgentBackendURL != "http://agent.local/chat" {
		t.Fatalf("expected env backend URL to survive merge, got %q", cfg.AgentBackendURL)
	}
}

func TestMergeFileMissing(t *testing.T) {
	cfg := fromEnv()
	if err := cfg.MergeFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestAllowedHostsDefaultToConfiguredEndpoints(t *testing.T) {
	t.Setenv("ARGOCD_URL", "https://argocd.example.com")
	t.Setenv("AGENT_BACKEND_URL", "http://agent.local/chat")
	t.Setenv("AGENT_ALLOWED_HOSTS", "")
	t.Setenv("ACTION_ALLOWED_HOSTS", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.AgentHosts(); len(got) != 1 || got[0] != "http://agent.local/chat" {
		t.Fatalf("expected only the configured backend, got %v", got)
	}
	if got := cfg.ActionHosts(); len(got) != 1 || got[0] != "https://argocd.example.com" {
		t.Fatalf("expected only the dashboard, got %v", got)
	}
}

func TestAllowedHostsFromEnv(t *testing.T) {
	t.Setenv("ARGOCD_URL", "https://argocd.example.com")
	t.Setenv("AGENT_BACKEND_URL", "")
	t.Setenv("AGENT_ALLOWED_HOSTS", "agent-a.internal, agent-b.internal:9000,")
	t.Setenv("ACTION_ALLOWED_HOSTS", "rollouts.internal")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	agents := cfg.AgentHosts()
	if len(agents) != 2 || agents[0] != "agent-a.internal" || agents[1] != "agent-b.internal:9000" {
		t.Fatalf("unexpected agent hosts %v", agents)
	}
	actions := cfg.ActionHosts()
	if len(actions) != 2 || actions[1] != "rollouts.internal" {
		t.Fatalf("unexpected action hosts %v", actions)
	}
}
