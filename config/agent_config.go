package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "agent"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Config carries the full agent configuration, loaded from the environment.
type Config struct {
	Port        string
	Environment string

	// Stores
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// JWT
	JWTSecret string

	// OpenAI
	OpenAIAPIKey string

	// LLM prompt sizing
	LLMModel              string
	AnalysisMaxInputChars int
	SummaryMaxInputChars  int
	AnalysisMaxTokens     int
	SummaryMaxTokens      int
	AnalysisTemperature   float64
	SummaryTemperature    float64
	LLMTimeout            time.Duration
	LLMMaxRetries         int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Classification rule inputs
	ImportantSenders    []string
	SenderKeywordsLow   []string
	SubjectKeywordsLow  []string
	SubjectKeywordsHigh []string

	// ML artifacts
	PipelineFilename     string
	LabelEncoderFilename string
	ModelBlobPrefix      string

	// Retraining
	RetrainingEnabled    bool
	TriggerFeedbackCount int
	MinTrainingSamples   int

	// Reasoning
	ReasoningEnabled     bool
	HybridLLM            bool
	ThresholdArchive     float64
	ThresholdLabel       float64
	ThresholdPriority    float64
	ThresholdSuggestion  float64
	MLConfidenceOverride float64

	// Autonomous tasks
	AutoArchiveEnabled       bool
	AutoArchiveConfidence    float64
	PurposesToArchive        []string
	ArchiveAfterDays         int
	ArchiveExcludedSenders   []string
	AutoArchiveMaxPerRun     int
	DailySummaryEnabled      bool
	DailySummaryHourUTC      int
	FollowUpEnabled          bool
	FollowUpRemindDays       int
	ReEvaluateEnabled        bool
	MeetingPrepEnabled       bool
	MeetingPrepConfidence    float64
	AutoTaskCreationEnabled  bool
	AutoCategorizationLabels bool

	// Task intervals (minimum time between runs)
	AutoArchiveInterval  time.Duration
	DailySummaryInterval time.Duration
	FollowUpInterval     time.Duration
	ReEvaluateInterval   time.Duration
	MeetingPrepInterval  time.Duration

	// Executors
	WorkerID        string
	WorkerMin       int
	WorkerMax       int
	WorkerQueueSize int
	PipelineTick    time.Duration
	AutonomousTick  time.Duration
	ActionTick      time.Duration
	ActionBatchSize int
	MaxResults      int

	// External call deadlines
	MailTimeout   time.Duration
	StoreTimeout  time.Duration
	SecretTimeout time.Duration

	// Consumer (Redis Stream)
	ConsumerBatchSize int
	ConsumerBlockMS   int

	// CORS
	AllowedOrigins []string

	// Scheduler
	SchedulerEnabled bool
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Stores
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "triage_agent"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// OpenAI
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),

		// LLM prompt sizing
		LLMModel:              getEnv("LLM_MODEL", "gpt-4o-mini"),
		AnalysisMaxInputChars: getEnvInt("ANALYSIS_MAX_INPUT_CHARS", 4000),
		SummaryMaxInputChars:  getEnvInt("SUMMARY_MAX_INPUT_CHARS", 6000),
		AnalysisMaxTokens:     getEnvInt("ANALYSIS_MAX_TOKENS", 350),
		SummaryMaxTokens:      getEnvInt("SUMMARY_MAX_TOKENS", 300),
		AnalysisTemperature:   getEnvFloat("ANALYSIS_TEMPERATURE", 0.2),
		SummaryTemperature:    getEnvFloat("SUMMARY_TEMPERATURE", 0.4),
		LLMTimeout:            time.Duration(getEnvInt("LLM_TIMEOUT_SEC", 45)) * time.Second,
		LLMMaxRetries:         getEnvInt("LLM_MAX_RETRIES", 3),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		// Classification rule inputs
		ImportantSenders:    getEnvSlice("IMPORTANT_SENDERS", nil),
		SenderKeywordsLow:   getEnvSlice("SENDER_KEYWORDS_LOW", []string{"noreply", "no-reply", "newsletter", "marketing"}),
		SubjectKeywordsLow:  getEnvSlice("SUBJECT_KEYWORDS_LOW", []string{"unsubscribe", "sale", "% off", "webinar", "digest"}),
		SubjectKeywordsHigh: getEnvSlice("SUBJECT_KEYWORDS_HIGH", []string{"urgent", "asap", "action required", "deadline", "important"}),

		// ML artifacts
		PipelineFilename:     getEnv("ML_PIPELINE_FILENAME", "pipeline.json"),
		LabelEncoderFilename: getEnv("ML_LABEL_ENCODER_FILENAME", "label_encoder.json"),
		ModelBlobPrefix:      getEnv("ML_BLOB_PREFIX", "models/v1"),

		// Retraining
		RetrainingEnabled:    getEnvBool("RETRAINING_ENABLED", true),
		TriggerFeedbackCount: getEnvInt("RETRAIN_TRIGGER_FEEDBACK_COUNT", 10),
		MinTrainingSamples:   getEnvInt("RETRAIN_MIN_SAMPLES", 5),

		// Reasoning
		ReasoningEnabled:     getEnvBool("REASONING_ENABLED", true),
		HybridLLM:            getEnvBool("REASONING_HYBRID_LLM", true),
		ThresholdArchive:     getEnvFloat("CONFIDENCE_THRESHOLD_ARCHIVE", 0.95),
		ThresholdLabel:       getEnvFloat("CONFIDENCE_THRESHOLD_LABEL", 0.85),
		ThresholdPriority:    getEnvFloat("CONFIDENCE_THRESHOLD_PRIORITY_ADJUST", 0.80),
		ThresholdSuggestion:  getEnvFloat("CONFIDENCE_THRESHOLD_SUGGESTION", 0.70),
		MLConfidenceOverride: getEnvFloat("ML_CONFIDENCE_OVERRIDE", 0.70),

		// Autonomous tasks
		AutoArchiveEnabled:       getEnvBool("AUTO_ARCHIVE_ENABLED", true),
		AutoArchiveConfidence:    getEnvFloat("AUTO_ARCHIVE_CONFIDENCE", 0.95),
		PurposesToArchive:        getEnvSlice("AUTO_ARCHIVE_PURPOSES", []string{"promotion", "social", "forum_digest"}),
		ArchiveAfterDays:         getEnvInt("ARCHIVE_AFTER_DAYS", 7),
		ArchiveExcludedSenders:   getEnvSlice("ARCHIVE_EXCLUDED_SENDERS", nil),
		AutoArchiveMaxPerRun:     getEnvInt("AUTO_ARCHIVE_MAX_PER_RUN", 25),
		DailySummaryEnabled:      getEnvBool("DAILY_SUMMARY_ENABLED", true),
		DailySummaryHourUTC:      getEnvInt("DAILY_SUMMARY_HOUR_UTC", 7),
		FollowUpEnabled:          getEnvBool("FOLLOW_UP_ENABLED", true),
		FollowUpRemindDays:       getEnvInt("FOLLOW_UP_REMIND_DAYS", 3),
		ReEvaluateEnabled:        getEnvBool("RE_EVALUATE_ENABLED", true),
		MeetingPrepEnabled:       getEnvBool("MEETING_PREP_ENABLED", true),
		MeetingPrepConfidence:    getEnvFloat("MEETING_PREP_CONFIDENCE", 0.75),
		AutoTaskCreationEnabled:  getEnvBool("AUTO_TASK_CREATION_ENABLED", true),
		AutoCategorizationLabels: getEnvBool("AUTO_CATEGORIZATION_LABELS", true),

		// Task intervals
		AutoArchiveInterval:  time.Duration(getEnvInt("AUTO_ARCHIVE_INTERVAL_MIN", 60)) * time.Minute,
		DailySummaryInterval: time.Duration(getEnvInt("DAILY_SUMMARY_INTERVAL_MIN", 60)) * time.Minute,
		FollowUpInterval:     time.Duration(getEnvInt("FOLLOW_UP_INTERVAL_MIN", 60)) * time.Minute,
		ReEvaluateInterval:   time.Duration(getEnvInt("RE_EVALUATE_INTERVAL_MIN", 1440)) * time.Minute,
		MeetingPrepInterval:  time.Duration(getEnvInt("MEETING_PREP_INTERVAL_MIN", 60)) * time.Minute,

		// Executors
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerMin:       getEnvInt("WORKER_MIN", 2),
		WorkerMax:       getEnvInt("WORKER_MAX", 16),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 1000),
		PipelineTick:    time.Duration(getEnvInt("PIPELINE_TICK_SEC", 300)) * time.Second,
		AutonomousTick:  time.Duration(getEnvInt("AUTONOMOUS_TICK_SEC", 600)) * time.Second,
		ActionTick:      time.Duration(getEnvInt("ACTION_TICK_SEC", 15)) * time.Second,
		ActionBatchSize: getEnvInt("ACTION_BATCH_SIZE", 10),
		MaxResults:      getEnvInt("PIPELINE_MAX_RESULTS", 25),

		// External call deadlines
		MailTimeout:   time.Duration(getEnvInt("MAIL_TIMEOUT_SEC", 20)) * time.Second,
		StoreTimeout:  time.Duration(getEnvInt("STORE_TIMEOUT_SEC", 10)) * time.Second,
		SecretTimeout: time.Duration(getEnvInt("SECRET_TIMEOUT_SEC", 5)) * time.Second,

		// Consumer
		ConsumerBatchSize: getEnvInt("CONSUMER_BATCH_SIZE", 10),
		ConsumerBlockMS:   getEnvInt("CONSUMER_BLOCK_MS", 5000),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		// Scheduler
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
