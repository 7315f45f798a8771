package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
	pgcatalog "trivia-room-service/internal/infra/postgres"
	redisinfra "trivia-room-service/internal/infra/redis"
	transport "trivia-room-service/internal/transport/http"
)

const (
	defaultStoreTTL    = 6 * time.Hour
	defaultStorePrefix = "quiz:state:"
	defaultCatalogTTL  = 10 * time.Minute
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return err
	}

	storeTTL := config.TTLDuration(cfg.Store.TTL, defaultStoreTTL)
	storePrefix := cfg.Store.Prefix
	if storePrefix == "" {
		storePrefix = defaultStorePrefix
	}

	// Backend is chosen once here; callers only ever see app.SnapshotStore.
	var store app.SnapshotStore
	if redisClient != nil {
		store = redisinfra.NewSnapshotStore(redisClient, storeTTL, storePrefix)
	} else {
		store = memory.NewSnapshotStore(storeTTL, storePrefix)
	}
	if health := store.Ping(ctx); !health.OK {
		log.Printf("snapshot store (%s) unreachable: %s", health.Mode, health.Error)
	} else {
		log.Printf("snapshot store mode: %s", health.Mode)
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizSets())
	if pool != nil {
		loader = pgcatalog.NewQuizCatalog(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Quiz.CacheTTL, defaultCatalogTTL)
	var catalog app.QuizCatalog
	if redisClient != nil {
		catalog = redisinfra.NewQuizCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewQuizCatalog(loader, catalogTTL)
	}

	hub := transport.NewHub()
	registry := app.NewRegistry(store, hub)
	wsHandler := transport.NewWSHandler(hub, registry, catalog, cfg.Quiz.Strict)
	sessionHandler := transport.NewSessionHandler(registry, store)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /healthz", sessionHandler.Health)
	mux.HandleFunc("POST /sessions/{pin}/resume", sessionHandler.Resume)
	mux.HandleFunc("GET /sessions/{pin}/snapshot", sessionHandler.Snapshot)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia room service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newRedisClient builds a client when redis is configured, preferring the
// URL form the original deployment used. A nil return selects the
// in-memory store backend.
func newRedisClient(cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	if cfg.Redis.Addr != "" {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), nil
	}
	return nil, nil
}

// sampleQuizSets provides demo catalog content when postgres is absent.
func sampleQuizSets() map[string]domain.QuizSet {
	return map[string]domain.QuizSet{
		"general-1": {
			ID:    "general-1",
			Title: "General knowledge warm-up",
			Questions: []domain.QuestionInput{
				{
					Text:         "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "22"},
					CorrectIndex: 1,
					TimeLimitSec: 20,
				},
				{
					Text:         "Which planet is known as the Red Planet?",
					Options:      []string{"Venus", "Jupiter", "Mars", "Saturn"},
					CorrectIndex: 2,
					TimeLimitSec: 20,
					Explanation:  "Iron oxide on the surface gives Mars its color.",
				},
			},
		},
	}
}
