package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hearthdesk/internal/api"
	"hearthdesk/internal/assistant"
	"hearthdesk/internal/hub"
	"hearthdesk/internal/model"
	"hearthdesk/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the support chat server",
	Long: `Start the hearthdesk server: the REST API, the customer chat
websocket at /ws/customer and the agent console websocket at /ws/agent.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// assistantAdapter narrows assistant.Service to the api.Asker contract.
type assistantAdapter struct {
	svc *assistant.Service
}

func (a assistantAdapter) Ask(ctx context.Context, question string, history []model.Message, page string) (api.Result, error) {
	res, err := a.svc.Ask(ctx, question, history, page)
	if err != nil {
		return api.Result{}, err
	}
	return api.Result{Answer: res.Answer, Escalate: res.Escalate}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Str("path", db.Path()).Msg("database ready")

	h := hub.New()
	go h.Run()

	svc := assistant.New(assistant.Config{
		APIKey:  cfg.Assistant.APIKey,
		Model:   cfg.Assistant.Model,
		Timeout: cfg.Assistant.Timeout,
	})

	server := api.NewServer(api.ServerConfig{
		Addr:      cfg.Server.Addr,
		Hub:       h,
		Assistant: assistantAdapter{svc: svc},
		Tickets:   store.NewTicketRepo(db),
		Ratings:   store.NewRatingRepo(db),
		UploadDir: cfg.Server.UploadDir,
	})
	return server.Start()
}
