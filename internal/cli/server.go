package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"placement-quiz-service/internal/app"
	"placement-quiz-service/internal/auth"
	"placement-quiz-service/internal/config"
	"placement-quiz-service/internal/generator"
	"placement-quiz-service/internal/infra/memory"
	pgstore "placement-quiz-service/internal/infra/postgres"
	redisstore "placement-quiz-service/internal/infra/redis"
	"placement-quiz-service/internal/infra/sqlite"
	"placement-quiz-service/internal/llm"
	"placement-quiz-service/internal/report"
	transport "placement-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// accountStore is what a result backend provides to the service and the auth layer.
type accountStore interface {
	app.ResultRepository
	auth.UserRepository
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	results, closeResults, err := openResultStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeResults()

	if cfg.LLM.APIKey == "" {
		log.Printf("no LLM api key configured; questions come from the built-in pool and reports will fail")
	}
	client := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, config.TTLDuration(cfg.LLM.Timeout, 60*time.Second))
	questionModel := cfg.LLM.QuestionModel
	if questionModel == "" {
		questionModel = "llama-3.1-8b-instant"
	}
	reportModel := cfg.LLM.ReportModel
	if reportModel == "" {
		reportModel = questionModel
	}
	source := generator.New(client, questionModel, cfg.LLM.Temperature)

	var renderer app.ReportRenderer = report.NewRenderer(client, reportModel, cfg.LLM.ReportTemperature)
	cacheTTL := config.TTLDuration(cfg.Quiz.ReportCacheTTL, time.Hour)
	if redisClient != nil {
		renderer = redisstore.NewReportCache(redisClient, renderer, cacheTTL)
	} else {
		renderer = memory.NewReportCache(renderer, cacheTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	settings := app.DefaultSettings()
	settings.PerQuestion = config.TTLDuration(cfg.Quiz.PerQuestion, settings.PerQuestion)
	settings.GenerationTimeout = config.TTLDuration(cfg.Quiz.GenerationTimeout, settings.GenerationTimeout)
	settings.ReportTimeout = config.TTLDuration(cfg.Quiz.ReportTimeout, settings.ReportTimeout)

	service := app.NewQuizService(store, source,
		app.WithRenderer(renderer, report.ToHTML),
		app.WithResults(results),
		app.WithSettings(settings),
	)
	defer service.Close()

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "dev-secret-change-me"
		log.Printf("auth secret not configured; using an insecure development default")
	}
	tokens := auth.NewAuthService(secret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	api := transport.NewAPI(service, auth.NewAccounts(results), tokens, cfg.Server.SecureCookies)
	wsHandler := transport.NewWSHandler(service, config.TTLDuration(cfg.Server.TickInterval, time.Second))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(api, wsHandler, cfg.Server.AllowedOrigins),
		ReadTimeout: 15 * time.Second,
		// Question generation and reports wait on the LLM.
		WriteTimeout: settings.GenerationTimeout + settings.ReportTimeout,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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

// openResultStore picks Postgres, then SQLite, then memory.
func openResultStore(ctx context.Context, cfg config.Config) (accountStore, func(), error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("storing results in postgres")
		return pgstore.NewResultStore(pool), pool.Close, nil
	}
	if cfg.SQLite.Path != "" {
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("storing results in sqlite at %s", cfg.SQLite.Path)
		return store, func() { _ = store.Close() }, nil
	}
	log.Printf("storing results in memory")
	return memory.NewResultStore(), func() {}, nil
}
