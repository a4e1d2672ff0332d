// ABOUTME: serve, turn and forget subcommands
// ABOUTME: serve runs the HTTP API with the job scheduler; turn and forget act on the store directly

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clementeaf/ai-assistants/internal/api"
	"github.com/clementeaf/ai-assistants/internal/auth"
	"github.com/clementeaf/ai-assistants/internal/callback"
	"github.com/clementeaf/ai-assistants/internal/conversation"
	"github.com/clementeaf/ai-assistants/internal/jobs"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

const banner = `
                _     _              _
  __ _ ___ ___(_)___| |_ __ _ _ __ | |_ ___
 / _' / __/ __| / __| __/ _' | '_ \| __/ __|
| (_| \__ \__ \ \__ \ || (_| | | | | |_\__ \
 \__,_|___/___/_|___/\__\__,_|_| |_|\__|___/
`

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, rootOpts *rootOptions) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sender := callback.New(callback.Config{
		URL:         cfg.Callback.URL,
		Secret:      cfg.Callback.Secret,
		MaxRetries:  cfg.Callback.MaxRetries,
		Timeout:     cfg.Callback.Timeout,
		BaseBackoff: cfg.Callback.BaseBackoff,
		Logger:      logger,
	})
	jobCfg := jobs.Config{
		Jobs:      a.db,
		Runner:    a.service,
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
		Logger:    logger,
	}
	if sender.Enabled() {
		jobCfg.Notifier = sender
	}
	scheduler, err := jobs.New(jobCfg)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	defer scheduler.Close()

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	server, err := api.New(api.Config{
		Addr:        cfg.Server.HTTPAddr,
		Turns:       a.service,
		Jobs:        scheduler,
		Broadcaster: a.broadcaster,
		Verifier:    verifier,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configLabel(rootOpts))
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Workers:   %d\n", cfg.Jobs.Workers)
	if cfg.Router.AutonomousMode {
		green.Print("    ▶ ")
		yellow.Println("Autonomous mode")
	}
	if verifier == nil {
		green.Print("    ▶ ")
		yellow.Println("Auth disabled")
	}
	fmt.Println()

	logger.Info("starting assistants",
		"http_addr", cfg.Server.HTTPAddr,
		"conversations", cfg.Conversations.Backend,
		"memory", cfg.Memory.Enabled,
		"callbacks", sender.Enabled(),
	)

	return server.Run(ctx)
}

func configLabel(opts *rootOptions) string {
	if opts.ConfigPath == "" {
		return "(defaults)"
	}
	return opts.ConfigPath
}

// turnOptions holds flags for the turn command.
type turnOptions struct {
	*rootOptions
	EventID    string
	CustomerID string
	ProjectID  string
	JSON       bool
}

func newTurnCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &turnOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "turn <conversation-id> <text>",
		Short: "Run a single turn against the configured store",
		Long: `Run a single turn against the configured store and print the reply.

Example:
  assistants turn whatsapp:+5491112345678 TRACK-9002 --event-id m1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.EventID, "event-id", "", "idempotency key for the inbound message")
	cmd.Flags().StringVar(&opts.CustomerID, "customer-id", "", "customer to attach long-term memory to")
	cmd.Flags().StringVar(&opts.ProjectID, "project-id", "", "project scope for customer memory")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the full result as JSON")

	return cmd
}

func runTurn(cmd *cobra.Command, opts *turnOptions, conversationID, text string) error {
	cfg, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	ctx := trace.WithRequestID(cmd.Context(), trace.GenerateID())
	if opts.ProjectID != "" {
		ctx = trace.WithProjectID(ctx, opts.ProjectID)
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.RunTurn(ctx, conversation.TurnRequest{
		ConversationID: conversationID,
		Text:           text,
		EventID:        opts.EventID,
		CustomerID:     opts.CustomerID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.TurnResponse{
			ConversationID: res.ConversationID,
			ResponseText:   res.ResponseText,
			Domain:         string(res.Domain),
			UIHints:        res.UIHints,
			Duplicate:      res.Duplicate,
		})
	}

	label := color.New(color.FgHiBlack)
	label.Fprintf(out, "[%s]", res.Domain)
	if res.Duplicate {
		label.Fprint(out, " (duplicate)")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, res.ResponseText)
	return nil
}

// forgetOptions holds flags for the forget command.
type forgetOptions struct {
	*rootOptions
	ProjectID string
}

func newForgetCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &forgetOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forget <customer-id>",
		Short: "Delete the long-term memory of a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.rootOptions)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging)

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.Forget(cmd.Context(), opts.ProjectID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot customer %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ProjectID, "project-id", "", "project scope (default from config)")

	return cmd
}
