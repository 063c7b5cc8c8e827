package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/engram-os/engram-os/internal/agents"
	"github.com/engram-os/engram-os/internal/config"
	"github.com/engram-os/engram-os/internal/google"
	"github.com/engram-os/engram-os/internal/identity"
	"github.com/engram-os/engram-os/internal/llm"
	"github.com/engram-os/engram-os/internal/memory"
)

func agentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Run background agents once, outside the scheduler",
	}
	cmd.AddCommand(agentsEmailCmd())
	cmd.AddCommand(agentsCalendarCmd())
	return cmd
}

func agentsEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "email",
		Short: "Run one email triage pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			client, err := google.NewHTTPClient(ctx, cfg.Google.CredentialsPath, cfg.Google.TokenPath, gmailapi.GmailModifyScope)
			if err != nil {
				return err
			}
			mail, err := google.NewGmailService(ctx, client)
			if err != nil {
				return err
			}

			llmClient := llm.New(llm.Config{
				Host:       cfg.Ollama.Host,
				ChatModel:  cfg.Ollama.ChatModel,
				EmbedModel: cfg.Ollama.EmbedModel,
			})

			ledger, activity, closeDB, err := openAgentState(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			return agents.NewEmailAgent(mail, llmClient, ledger, activity, cfg.Agents.EmailBatchSize).Run(ctx)
		},
	}
}

func agentsCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Run one calendar scheduling pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			ident, err := identity.NewProvider(cfg.IdentityPath()).Get()
			if err != nil {
				return fmt.Errorf("resolve identity: %w", err)
			}

			client, err := google.NewHTTPClient(ctx, cfg.Google.CredentialsPath, cfg.Google.TokenPath, "https://www.googleapis.com/auth/calendar")
			if err != nil {
				return err
			}
			cal, err := google.NewCalendarClient(ctx, client)
			if err != nil {
				return err
			}

			store, err := memory.NewSQLiteStore(cfg.MemoryDBPath())
			if err != nil {
				return fmt.Errorf("open memory store: %w", err)
			}
			defer store.Close()

			llmClient := llm.New(llm.Config{
				Host:       cfg.Ollama.Host,
				ChatModel:  cfg.Ollama.ChatModel,
				EmbedModel: cfg.Ollama.EmbedModel,
			})

			_, activity, closeDB, err := openAgentState(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			return agents.NewCalendarAgent(ident.UserID, store, llmClient, cal, activity).Run(ctx)
		},
	}
}

func openAgentState(cfg *config.Config) (*agents.Ledger, *agents.ActivityLog, func(), error) {
	db, err := agents.OpenDB(cfg.AgentDBPath())
	if err != nil {
		return nil, nil, nil, err
	}
	ledger, err := agents.NewLedger(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	activity, err := agents.NewActivityLog(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return ledger, activity, func() { db.Close() }, nil
}
