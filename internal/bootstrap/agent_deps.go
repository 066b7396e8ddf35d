// Package bootstrap wires configuration, adapters, and services into the
// API server and the background worker.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SaKinLord/ai-email-agent-sub000/adapter/out/llm"
	"github.com/SaKinLord/ai-email-agent-sub000/adapter/out/mongodb"
	"github.com/SaKinLord/ai-email-agent-sub000/adapter/out/provider"
	"github.com/SaKinLord/ai-email-agent-sub000/adapter/out/realtime"
	"github.com/SaKinLord/ai-email-agent-sub000/config"
	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/actions"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/analysis"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/autonomous"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/classifier"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/feedback"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/memory"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/pipeline"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/reasoning"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/retrain"
	"github.com/SaKinLord/ai-email-agent-sub000/internal/stream"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/logger"
)

// Dependencies is the shared object graph behind both entrypoints.
type Dependencies struct {
	Cfg *config.Config

	Mongo *mongo.Client
	DB    *mongo.Database
	Redis *redis.Client

	MessageRepo  domain.MessageRepository
	FeedbackRepo domain.FeedbackRepository
	ActionRepo   domain.ActionRepository
	ProfileRepo  domain.ProfileRepository
	ActivityRepo domain.ActivityRepository
	TaskRepo     domain.TaskRepository
	StateRepo    domain.StateRepository
	Blob         *mongodb.BlobAdapter

	TokenStore *provider.TokenStore
	Mail       out.MailProviderPort
	Calendar   out.CalendarPort

	Analyzer      *analysis.Service
	ArtifactStore *classifier.ArtifactStore
	Holder        *classifier.Holder
	Engine        *reasoning.Engine

	FeedbackService *feedback.Service
	MemoryService   *memory.Service

	SSEAdapter *realtime.SSEAdapter
	SSEHub     *realtime.SSEHub

	ActionQueue  *actions.Service
	ActionWorker *actions.Worker
	Pipeline     *pipeline.Service
	Scheduler    *autonomous.Scheduler
	Retrainer    *retrain.Controller

	Stream   *stream.RedisStream
	Producer *stream.Producer

	ZLog zerolog.Logger
}

// NewDependencies builds the object graph. The returned cleanup closes
// the store connections.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, db, err := mongodb.Connect(ctx, cfg.MongoDBURL, cfg.MongoDBName)
	if err != nil {
		return nil, nil, err
	}

	// Redis is optional: without it jobs run inline and triggers are not
	// distributed across processes.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Invalid REDIS_URL, continuing without Redis")
		} else {
			redisClient = redis.NewClient(opts)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.WithError(err).Warn("Redis unreachable, continuing without it")
				redisClient = nil
			}
		}
	}

	deps := &Dependencies{
		Cfg:   cfg,
		Mongo: mongoClient,
		DB:    db,
		Redis: redisClient,
		ZLog:  zlog,
	}

	// Persistence gateways
	deps.MessageRepo = mongodb.NewMessageAdapter(db)
	deps.FeedbackRepo = mongodb.NewFeedbackAdapter(db)
	deps.ActionRepo = mongodb.NewActionAdapter(db)
	deps.ProfileRepo = mongodb.NewProfileAdapter(db)
	deps.ActivityRepo = mongodb.NewActivityAdapter(db)
	deps.TaskRepo = mongodb.NewTaskAdapter(db)
	deps.StateRepo = mongodb.NewStateAdapter(db)

	blob, err := mongodb.NewBlobAdapter(db)
	if err != nil {
		return nil, nil, err
	}
	deps.Blob = blob

	// Provider adapters
	deps.TokenStore = provider.NewTokenStore(db, provider.RequiredScopes)
	gmail := provider.NewGmailAdapter(provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.MailTimeout,
	}, deps.TokenStore, zlog)
	deps.Mail = gmail
	deps.Calendar = provider.NewCalendarAdapter(gmail, zlog)

	// LLM is optional: without a key the pipeline degrades to rules and
	// the trained classifier.
	var llmPort out.LLMPort
	if cfg.OpenAIAPIKey != "" {
		llmPort = llm.NewAdapter(llm.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, LLM analysis disabled")
	}
	deps.Analyzer = analysis.NewService(llmPort, analysis.Config{
		Model:                 cfg.LLMModel,
		AnalysisMaxInputChars: cfg.AnalysisMaxInputChars,
		SummaryMaxInputChars:  cfg.SummaryMaxInputChars,
		AnalysisMaxTokens:     cfg.AnalysisMaxTokens,
		SummaryMaxTokens:      cfg.SummaryMaxTokens,
		AnalysisTemperature:   cfg.AnalysisTemperature,
		SummaryTemperature:    cfg.SummaryTemperature,
	})

	// Classifier artifacts
	deps.ArtifactStore = classifier.NewArtifactStore(blob, cfg.ModelBlobPrefix, cfg.PipelineFilename, cfg.LabelEncoderFilename)
	deps.Holder = classifier.NewHolder(deps.ArtifactStore)
	if err := deps.Holder.Reload(ctx); err != nil {
		logger.WithError(err).Warn("Could not load classifier artifacts, continuing without a model")
	}

	thresholds := domain.AutonomyThresholds{
		Archive:        cfg.ThresholdArchive,
		Label:          cfg.ThresholdLabel,
		PriorityAdjust: cfg.ThresholdPriority,
		Suggestion:     cfg.ThresholdSuggestion,
	}
	deps.Engine = reasoning.NewEngine(reasoning.Config{
		Enabled:              cfg.ReasoningEnabled,
		HybridLLM:            cfg.HybridLLM,
		ImportantSenders:     cfg.ImportantSenders,
		SenderKeywordsLow:    cfg.SenderKeywordsLow,
		SubjectKeywordsLow:   cfg.SubjectKeywordsLow,
		SubjectKeywordsHigh:  cfg.SubjectKeywordsHigh,
		Thresholds:           thresholds,
		MLConfidenceOverride: cfg.MLConfidenceOverride,
	}, deps.Analyzer, deps.Holder, zlog)

	// Realtime
	deps.SSEAdapter = realtime.NewSSEAdapter(deps.ActivityRepo, zlog)
	deps.SSEHub = realtime.NewSSEHub(deps.SSEAdapter, zlog)

	// Core services
	deps.FeedbackService = feedback.NewService(deps.FeedbackRepo, deps.MessageRepo, redisClient, zlog)
	deps.MemoryService = memory.NewService(deps.ProfileRepo, zlog)

	deps.ActionQueue = actions.NewService(deps.ActionRepo, deps.SSEAdapter, zlog)
	deps.ActionWorker = actions.NewWorker(actions.WorkerConfig{
		Tick:      cfg.ActionTick,
		BatchSize: cfg.ActionBatchSize,
	}, deps.ActionRepo, deps.MessageRepo, deps.Mail, deps.SSEAdapter, zlog)

	deps.Pipeline = pipeline.NewService(pipeline.Config{
		MaxResults:      cfg.MaxResults,
		AutoArchive:     cfg.AutoArchiveEnabled,
		ArchivePurposes: cfg.PurposesToArchive,
		ArchiveMinConf:  cfg.AutoArchiveConfidence,
		AutoLabels:      cfg.AutoCategorizationLabels,
		AutoTasks:       cfg.AutoTaskCreationEnabled,
		MailTimeout:     cfg.MailTimeout,
		StoreTimeout:    cfg.StoreTimeout,
	}, deps.Mail, deps.MessageRepo, deps.TaskRepo, deps.ProfileRepo, deps.StateRepo,
		deps.FeedbackService, deps.Analyzer, deps.Engine, deps.ActionQueue, deps.SSEAdapter, zlog)

	deps.Scheduler = autonomous.NewScheduler(autonomous.Config{
		Tick:            cfg.AutonomousTick,
		AutoArchive:     autonomous.TaskConfig{Enabled: cfg.AutoArchiveEnabled, Interval: cfg.AutoArchiveInterval},
		DailySummary:    autonomous.TaskConfig{Enabled: cfg.DailySummaryEnabled, Interval: cfg.DailySummaryInterval},
		FollowUp:        autonomous.TaskConfig{Enabled: cfg.FollowUpEnabled, Interval: cfg.FollowUpInterval},
		ReEvaluate:      autonomous.TaskConfig{Enabled: cfg.ReEvaluateEnabled, Interval: cfg.ReEvaluateInterval},
		MeetingPrep:     autonomous.TaskConfig{Enabled: cfg.MeetingPrepEnabled, Interval: cfg.MeetingPrepInterval},
		ArchiveAfter:    time.Duration(cfg.ArchiveAfterDays) * 24 * time.Hour,
		ArchiveExcluded: cfg.ArchiveExcludedSenders,
		ArchiveMax:      cfg.AutoArchiveMaxPerRun,
		SummaryHourUTC:  cfg.DailySummaryHourUTC,
		RemindDays:      cfg.FollowUpRemindDays,
		MeetingMinConf:  cfg.MeetingPrepConfidence,
	}, deps.TokenStore, deps.Mail, deps.Calendar, deps.MessageRepo, deps.TaskRepo,
		deps.ProfileRepo, deps.Analyzer, deps.ActionQueue, deps.SSEAdapter, zlog)

	deps.Retrainer = retrain.NewController(retrain.Config{
		Enabled:      cfg.RetrainingEnabled,
		TriggerDelta: cfg.TriggerFeedbackCount,
		MinSamples:   cfg.MinTrainingSamples,
		Prefix:       cfg.ModelBlobPrefix,
	}, deps.FeedbackRepo, deps.MessageRepo, blob, deps.ArtifactStore, deps.Holder, deps.SSEAdapter, zlog)

	// Stream plumbing (only with Redis)
	if redisClient != nil {
		deps.Stream = stream.NewRedisStream(redisClient, "triage-workers")
		deps.Producer = stream.NewProducer(deps.Stream)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Mongo disconnect failed")
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.WithError(err).Warn("Redis close failed")
			}
		}
	}

	return deps, cleanup, nil
}
