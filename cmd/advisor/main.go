package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/ai"
	"github.com/xxxsen/advisor/internal/chunk"
	"github.com/xxxsen/advisor/internal/config"
	"github.com/xxxsen/advisor/internal/db"
	"github.com/xxxsen/advisor/internal/eval"
	"github.com/xxxsen/advisor/internal/handler"
	"github.com/xxxsen/advisor/internal/job"
	"github.com/xxxsen/advisor/internal/middleware"
	"github.com/xxxsen/advisor/internal/rag"
	"github.com/xxxsen/advisor/internal/redact"
	"github.com/xxxsen/advisor/internal/repo"
	"github.com/xxxsen/advisor/internal/schedule"
	"github.com/xxxsen/advisor/internal/service"
	"github.com/xxxsen/advisor/internal/workflow"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "advisor",
		Short: "advisor research backend server",
	}
	rootCmd.AddCommand(newRunCmd(), newEvalCmd())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run advisor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := setup(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg, database)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	return cmd
}

func newEvalCmd() *cobra.Command {
	var configPath string
	var questionsPath string
	var tenantID, clientID, userID string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "run the offline quality suite against the live corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return fmt.Errorf("--tenant-id is required")
			}
			if questionsPath == "" {
				return fmt.Errorf("--questions is required")
			}
			cfg, database, err := setup(configPath)
			if err != nil {
				return err
			}
			svcs, err := buildServices(cfg, database)
			if err != nil {
				return err
			}
			questions, err := eval.LoadQuestions(questionsPath)
			if err != nil {
				return err
			}

			harness := eval.NewHarness(svcs.query, questions)
			summary := harness.Run(context.Background(), eval.Scope{
				TenantID: tenantID,
				ClientID: clientID,
				UserID:   userID,
			})
			summary.Report(os.Stdout)
			if outputPath != "" {
				if err := summary.Save(outputPath); err != nil {
					return fmt.Errorf("save results: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	cmd.Flags().StringVar(&questionsPath, "questions", "", "path to questions.json")
	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "tenant to evaluate under")
	cmd.Flags().StringVar(&clientID, "client-id", "", "optional client filter")
	cmd.Flags().StringVar(&userID, "user-id", "eval", "user id recorded on eval turns")
	cmd.Flags().StringVar(&outputPath, "output", "", "write the JSON summary here")
	return cmd
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	if cfg.AI.EmbedDim != db.EmbedDim {
		return nil, nil, fmt.Errorf("ai.embed_dim is %d but the schema stores vector(%d)", cfg.AI.EmbedDim, db.EmbedDim)
	}

	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, database, nil
}

type appServices struct {
	ingest         *service.IngestService
	query          *service.QueryService
	audit          *service.AuditService
	convRepo       *repo.ConversationRepo
	embedCacheRepo *repo.EmbeddingCacheRepo
}

func buildServices(cfg *config.Config, database *sql.DB) (*appServices, error) {
	docRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	convRepo := repo.NewConversationRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(database)

	provider, err := ai.NewProvider(cfg.AI.Provider, map[string]interface{}{
		"api_key":         cfg.AI.APIKey,
		"base_url":        cfg.AI.BaseURL,
		"timeout_sec":     cfg.AI.TimeoutSec,
		"max_input_chars": cfg.AI.MaxInputChars,
	})
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	generator := ai.NewGenerator(provider, cfg.AI.ChatModel)
	embedder := rag.NewCachedEmbedder(
		ai.NewEmbedder(provider, cfg.AI.EmbedModel, cfg.AI.EmbedDim),
		embedCacheRepo,
		cfg.RAG.EmbedCacheSize,
	)
	rerankScorer := ai.NewCohereReranker(ai.CohereRerankConfig{
		APIKey:     cfg.AI.Rerank.APIKey,
		BaseURL:    cfg.AI.Rerank.BaseURL,
		Model:      cfg.AI.Rerank.Model,
		TimeoutSec: cfg.AI.TimeoutSec,
	})

	redactor, err := redact.New(cfg.Compliance.PIIPatterns)
	if err != nil {
		return nil, fmt.Errorf("init redactor: %w", err)
	}
	flagger, err := rag.NewFlagger(redactor, cfg.Compliance.AdvicePatterns)
	if err != nil {
		return nil, fmt.Errorf("init flagger: %w", err)
	}

	wfEngine := workflow.NewEngine(
		rag.NewIntentClassifier(generator),
		rag.NewRetriever(embedder, chunkRepo, cfg.RAG.RetrievalTopK),
		rag.NewReranker(rerankScorer, cfg.RAG.RerankTopN),
		rag.NewGate(cfg.RAG.Evidence),
		rag.NewGroundedGenerator(generator),
		flagger,
		auditRepo,
	)

	ingestService := service.NewIngestService(
		redactor,
		chunk.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		embedder,
		docRepo,
		chunkRepo,
	)
	return &appServices{
		ingest:         ingestService,
		query:          service.NewQueryService(wfEngine, convRepo),
		audit:          service.NewAuditService(auditRepo),
		convRepo:       convRepo,
		embedCacheRepo: embedCacheRepo,
	}, nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	svcs, err := buildServices(cfg, database)
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(svcs.query),
		Documents:     handler.NewDocumentHandler(svcs.ingest),
		Audit:         handler.NewAuditHandler(svcs.audit),
		ChatRateLimit: time.Duration(cfg.ChatRateLimitMs) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRetentionJob(svcs.convRepo, cfg.Retention.ConversationDays), cfg.Retention.CleanupCron); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	if err := scheduler.AddJob(job.NewEmbedCacheCleanupJob(svcs.embedCacheRepo, cfg.Retention.EmbedCacheDays), cfg.Retention.CleanupCron); err != nil {
		return fmt.Errorf("schedule cache cleanup job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
