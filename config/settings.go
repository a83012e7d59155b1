package config

import "time"

// Application settings. Values are defaults; cmd/root.go overrides them from
// flags and environment variables (viper).
var (
	AppVersion             = "v1.2.0"
	AppPort                = "8080"
	AppDebug               = false
	AppBasePath            = ""
	AppBasicAuthCredential []string
)

// Database settings. The relay stores webhook target config and session
// records in sqlite by default; a postgres:// URI switches the driver.
var (
	DBURI                = "file:storages/relay.db?_journal_mode=WAL"
	DBEnableForeignKeys  = true
	PathStorages         = "storages"
	PathQrCode           = "statics/qrcode"
)

// WAHA gateway settings.
var (
	WahaBaseURL       = "http://localhost:3000"
	WahaAPIKey        = ""
	WahaSessionName   = "default"
	WahaAutoManage    = true
	WahaContainerName = "waha"
)

// Webhook receiver settings. WebhookPublicURL is where the WAHA gateway
// should deliver events; when empty it is derived from WebhookPublicHost.
var (
	WebhookPublicURL  = ""
	WebhookPublicHost = "http://host.docker.internal:8080"
	WebhookSecret     = ""
)

// AI backend settings.
var (
	AiBackendURL = ""
	AiAPIKey     = ""
	AiModel      = "gpt-4o-mini"
	AiMaxTokens  = 1024
)

// Orchestration tunables. These mirror the reference gateway's behavior and
// are not exposed as flags.
var (
	SessionStatusCacheTTL  = 2 * time.Second
	AuthMonitorInterval    = 2 * time.Second
	AuthMonitorTimeout     = 10 * time.Minute
	LogoutStopWait         = 15 * time.Second
	RetryBaseDelay         = 1 * time.Second
	RetryMaxAttempts       = 3
	ConvergeRetryAttempts  = 3
	ConvergeRetryInterval  = 3 * time.Second
	RecoveryWindowDuration = 5 * time.Minute
	RecoveryMaxPerKind     = 3
)
