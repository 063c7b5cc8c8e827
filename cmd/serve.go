package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/engram-os/engram-os/internal/agents"
	"github.com/engram-os/engram-os/internal/chat"
	"github.com/engram-os/engram-os/internal/config"
	"github.com/engram-os/engram-os/internal/google"
	"github.com/engram-os/engram-os/internal/httpapi"
	"github.com/engram-os/engram-os/internal/identity"
	"github.com/engram-os/engram-os/internal/llm"
	"github.com/engram-os/engram-os/internal/memory"
	"github.com/engram-os/engram-os/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}

	ident, err := identity.NewProvider(cfg.IdentityPath()).Get()
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	slog.Info("identity resolved", "user_id", ident.UserID)

	llmClient := llm.New(llm.Config{
		Host:       cfg.Ollama.Host,
		ChatModel:  cfg.Ollama.ChatModel,
		EmbedModel: cfg.Ollama.EmbedModel,
	})

	store, err := memory.NewSQLiteStore(cfg.MemoryDBPath())
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer store.Close()
	memories := memory.NewService(store, llmClient)

	agentDB, err := agents.OpenDB(cfg.AgentDBPath())
	if err != nil {
		return fmt.Errorf("open agent db: %w", err)
	}
	defer agentDB.Close()
	ledger, err := agents.NewLedger(agentDB)
	if err != nil {
		return err
	}
	activity, err := agents.NewActivityLog(agentDB)
	if err != nil {
		return err
	}

	mail, cal := buildGoogleServices(ctx, cfg)

	sched := scheduler.New()
	if err := sched.Add(scheduler.Job{
		Name:  "email",
		Every: cfg.Agents.EmailInterval.Std(),
		Run: func(ctx context.Context) error {
			if mail == nil {
				return fmt.Errorf("gmail unavailable: re-authenticate with your Google account")
			}
			return agents.NewEmailAgent(mail, llmClient, ledger, activity, cfg.Agents.EmailBatchSize).Run(ctx)
		},
	}); err != nil {
		return err
	}
	if err := sched.Add(scheduler.Job{
		Name:  "calendar",
		Every: cfg.Agents.CalendarInterval.Std(),
		Run: func(ctx context.Context) error {
			if cal == nil {
				return fmt.Errorf("calendar unavailable: re-authenticate with your Google account")
			}
			return agents.NewCalendarAgent(ident.UserID, store, llmClient, cal, activity).Run(ctx)
		},
	}); err != nil {
		return err
	}

	srv := httpapi.NewServer(httpapi.Config{
		Addr:      cfg.HTTP.Addr,
		UserID:    ident.UserID,
		AuthToken: cfg.HTTP.AuthToken,
		RPM:       cfg.HTTP.RPM,
		Memories:  memories,
		Chat:      chat.New(llmClient, store, llmClient),
		Activity:  activity,
		Sched:     sched,
	})

	sched.Start(ctx)
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// buildGoogleServices connects Gmail and Calendar when credentials
// are on disk. Missing credentials are not fatal: the server and the
// memory pipeline run fine without them, and the agents report the
// re-authentication need on each pass instead.
func buildGoogleServices(ctx context.Context, cfg *config.Config) (agents.MailService, agents.CalendarService) {
	client, err := google.NewHTTPClient(ctx,
		cfg.Google.CredentialsPath, cfg.Google.TokenPath,
		gmailapi.GmailModifyScope, "https://www.googleapis.com/auth/calendar")
	if err != nil {
		slog.Warn("google services disabled", "error", err)
		return nil, nil
	}

	mail, err := google.NewGmailService(ctx, client)
	if err != nil {
		slog.Warn("gmail disabled", "error", err)
	}
	cal, err := google.NewCalendarClient(ctx, client)
	if err != nil {
		slog.Warn("calendar disabled", "error", err)
	}
	if mail == nil && cal == nil {
		return nil, nil
	}
	if mail == nil {
		return nil, cal
	}
	if cal == nil {
		return mail, nil
	}
	return mail, cal
}
