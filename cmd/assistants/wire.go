// ABOUTME: Builds the stores, router, handlers and orchestrator from configuration
// ABOUTME: Shared by every subcommand so they all see the same wiring

package main

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/clementeaf/ai-assistants/internal/config"
	"github.com/clementeaf/ai-assistants/internal/conversation"
	"github.com/clementeaf/ai-assistants/internal/handlers"
	"github.com/clementeaf/ai-assistants/internal/recall"
	"github.com/clementeaf/ai-assistants/internal/router"
	"github.com/clementeaf/ai-assistants/internal/store"
)

// app holds the long-lived components built from a Config.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *store.SQLiteStore
	broadcaster *conversation.Broadcaster
	service     *conversation.Service
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := store.OpenSQLiteStore(cfg.Database.Driver, cfg.Database.Path,
		store.WithMemoryTTL(cfg.Memory.TTL),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var conversations store.ConversationStore = db
	if cfg.Conversations.Backend == "dynamodb" {
		conversations, err = newDynamoConversations(ctx, cfg.Conversations, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	var memory store.MemoryStore
	if cfg.Memory.Enabled {
		memory = db
	}

	registry := handlers.NewDefaultRegistry(handlers.Deps{
		Recall: recall.NewMemoryStore(0),
		Logger: logger,
	})
	rt := router.New(router.Config{
		AutonomousMode: cfg.Router.AutonomousMode,
		Logger:         logger,
	})

	broadcaster := conversation.NewBroadcaster(logger)
	service, err := conversation.New(conversation.Config{
		Conversations:    conversations,
		Memory:           memory,
		Dispatcher:       handlers.NewDispatcher(rt, registry, logger),
		Broadcaster:      broadcaster,
		MaxEventIDs:      cfg.Idempotency.MaxEventIDs,
		DefaultProjectID: cfg.Memory.DefaultProjectID,
		Logger:           logger,
	})
	if err != nil {
		broadcaster.Close()
		_ = db.Close()
		return nil, fmt.Errorf("creating conversation service: %w", err)
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		broadcaster: broadcaster,
		service:     service,
	}, nil
}

func newDynamoConversations(ctx context.Context, cfg config.ConversationsConfig, logger *slog.Logger) (*store.DynamoConversationStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	conversations, err := store.NewDynamoConversationStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	if err != nil {
		return nil, fmt.Errorf("creating dynamodb conversation store: %w", err)
	}
	logger.Info("conversation state in dynamodb", "table", cfg.DynamoDBTable)
	return conversations, nil
}

func (a *app) Close() error {
	a.broadcaster.Close()
	return a.db.Close()
}
