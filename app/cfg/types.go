package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// HTTP server configuration
	Port      string
	JWTSecret string

	// Ingestion pipeline configuration
	SchedulerInterval int // seconds
	FetchTimeout      int // seconds
	ExtractMinLength  int
	EnrichOnIngest    bool
	UserAgent         string

	// Enrichment (AI) configuration
	AIAPIURL           string
	AIAPIKey           string
	AIModel            string
	AICooldown         int // seconds
	AIMaxCalls         int
	AIMinContentLength int
	AIMaxPromptLength  int

	// Notification configuration
	TelegramBotToken string
	NotifyTimeout    int // seconds

	// Application metadata
	Debug   bool
	Version string
}
