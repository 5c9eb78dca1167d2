package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/neurafeed.db" description:"Path to the SQLite database file"`

	// HTTP server configuration
	Port      string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	JWTSecret string `long:"jwt-secret" env:"JWT_SECRET" required:"true" description:"Secret used to sign API access tokens"`

	// Ingestion pipeline configuration
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Ingestion cycle interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"20" description:"Per-request timeout for feed and page fetches in seconds"`
	ExtractMinLength  int    `long:"extract-min-length" env:"EXTRACT_MIN_LENGTH" default:"300" description:"Minimum character count for extracted page content to be accepted"`
	EnrichOnIngest    bool   `long:"enrich-on-ingest" env:"ENRICH_ON_INGEST" description:"Attempt best-effort AI enrichment during ingestion"`
	UserAgent         string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36" description:"User agent string for HTTP requests"`

	// Enrichment (AI) configuration
	AIAPIURL           string `long:"ai-api-url" env:"AI_API_URL" default:"https://api.groq.com/openai/v1/chat/completions" description:"Chat completions endpoint for summarization"`
	AIAPIKey           string `long:"ai-api-key" env:"AI_API_KEY" description:"API key for the summarization service (enrichment disabled when empty)"`
	AIModel            string `long:"ai-model" env:"AI_MODEL" default:"llama-3.3-70b-versatile" description:"Model used for summarization"`
	AICooldown         int    `long:"ai-cooldown" env:"AI_COOLDOWN" default:"2" description:"Minimum spacing between AI calls in seconds"`
	AIMaxCalls         int    `long:"ai-max-calls" env:"AI_MAX_CALLS" default:"10" description:"Maximum AI calls per process lifetime"`
	AIMinContentLength int    `long:"ai-min-content-length" env:"AI_MIN_CONTENT_LENGTH" default:"400" description:"Minimum content length worth summarizing"`
	AIMaxPromptLength  int    `long:"ai-max-prompt-length" env:"AI_MAX_PROMPT_LENGTH" default:"4000" description:"Content is truncated to this length before being sent"`

	// Notification configuration
	TelegramBotToken string `long:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (notifications disabled when empty)"`
	NotifyTimeout    int    `long:"notify-timeout" env:"NOTIFY_TIMEOUT" default:"5" description:"Timeout for notification sends in seconds"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		Port:               raw.Port,
		JWTSecret:          raw.JWTSecret,
		SchedulerInterval:  raw.SchedulerInterval,
		FetchTimeout:       raw.FetchTimeout,
		ExtractMinLength:   raw.ExtractMinLength,
		EnrichOnIngest:     raw.EnrichOnIngest,
		UserAgent:          raw.UserAgent,
		AIAPIURL:           raw.AIAPIURL,
		AIAPIKey:           raw.AIAPIKey,
		AIModel:            raw.AIModel,
		AICooldown:         raw.AICooldown,
		AIMaxCalls:         raw.AIMaxCalls,
		AIMinContentLength: raw.AIMinContentLength,
		AIMaxPromptLength:  raw.AIMaxPromptLength,
		TelegramBotToken:   raw.TelegramBotToken,
		NotifyTimeout:      raw.NotifyTimeout,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
