package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/argocd"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/config"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/store"
	"github.com/spf13/cobra"
)

// Flags holds the command line overrides applied on top of config.Load.
type Flags struct {
	ConfigFile  string
	ArgoCDURL   string
	Token       string
	Backend     string
	Application string
	NoHistory   bool
	Verbose     bool
}

// NewRootCommand builds the chatctl command.
func NewRootCommand() *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "chatctl",
		Short: "Chat with the Argo CD assistant from a terminal",
		Long: `chatctl opens a chat panel against an Argo CD API server and an agent
backend. Select an application, ask questions, and execute the API calls the
agent suggests.

Examples:
  chatctl --app guestbook --backend http://localhost:5678/webhook/chat
  chatctl --config ./chat.yaml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, flags, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&flags.ConfigFile, "config", "", "YAML config profile")
	cmd.Flags().StringVar(&flags.ArgoCDURL, "argocd-url", "", "Argo CD API server URL")
	cmd.Flags().StringVar(&flags.Token, "token", "", "Argo CD token (defaults to ARGOCD_TOKEN)")
	cmd.Flags().StringVar(&flags.Backend, "backend", "", "agent backend URL")
	cmd.Flags().StringVar(&flags.Application, "app", "", "application to select on start")
	cmd.Flags().BoolVar(&flags.NoHistory, "no-history", false, "do not archive the conversation")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// LoadConfig resolves configuration from the environment, the config file
// flag and the remaining flags, in that order.
func LoadConfig(flags Flags) (*config.Config, error) {
	if flags.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", flags.ConfigFile); err != nil {
			return nil, fmt.Errorf("set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.ArgoCDURL != "" {
		cfg.ArgoCDURL = flags.ArgoCDURL
	}
	if flags.Token != "" {
		cfg.ArgoCDToken = flags.Token
	}
	if flags.Backend != "" {
		cfg.AgentBackendURL = flags.Backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, flags Flags, in io.Reader, out, errOut io.Writer) error {
	level := slog.LevelWarn
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	cfg, err := LoadConfig(flags)
	if err != nil {
		return err
	}

	argo, err := argocd.NewClient(cfg.ArgoCDURL, argocd.Options{
		Timeout:  cfg.Timeout.ArgoCD,
		Insecure: cfg.ArgoCDInsecure,
		Token:    cfg.ArgoCDToken,
	})
	if err != nil {
		return err
	}
	if cfg.ArgoCDToken != "" {
		ctx = argocd.WithToken(ctx, cfg.ArgoCDToken)
	}

	username := domain.UnknownUsername
	if user, err := argo.UserInfo(ctx); err != nil {
		logger.Warn("Failed to resolve Argo CD user", "error", err)
	} else {
		username = user.DisplayName()
	}

	var (
		recorder assistant.Recorder
		history  SessionLister
	)
	if !flags.NoHistory {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.Warn("Failed to close history", "error", closeErr)
			}
		}()
		archiver := store.NewArchiver(repo, cfg.ConversationLog.QueueSize, logger)
		defer archiver.Close()
		recorder = archiver
		history = repo
	}

	actionHosts := assistant.NewHostAllowlist(cfg.ActionHosts()...)
	panel := assistant.New(assistant.Options{
		Username:     username,
		BackendURL:   cfg.AgentBackendURL,
		BackendHosts: assistant.NewHostAllowlist(cfg.AgentHosts()...),
		Policy:       assistant.RerunPolicy(cfg.ActionRerunPolicy),
		Directory:    argo,
		Agent:        agent.NewHTTPClient(cfg.Timeout.Agent, logger),
		Executor:     assistant.NewHTTPExecutor(argo.HTTPClient(), argo.Origin(), actionHosts, cfg.Timeout.Action, logger),
		Recorder:     recorder,
		Logger:       logger,
	})
	if flags.Application != "" {
		panel.SetPendingTarget(ctx, flags.Application)
	}

	return NewREPL(panel, argo, history, out).Run(ctx, in)
}
