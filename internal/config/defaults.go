package config

const (
	defaultDataDir              = "~/.local/share/triage"
	defaultLogDir               = "~/.local/share/triage/logs"
	defaultAPIBind              = "127.0.0.1:7490"
	defaultBackendKind          = BackendSQLite
	defaultSupabaseTimeout      = 15
	defaultFlowDwellMillis      = 2000
	defaultFlowGapMillis        = 1000
	defaultFlowSessionTTL       = 600
	defaultFlowReapInterval     = 30
	defaultFlowMaxSessions      = 64
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Backend: Backend{
			Kind: defaultBackendKind,
		},
		Supabase: Supabase{
			TimeoutSeconds: defaultSupabaseTimeout,
		},
		Flow: Flow{
			DwellMillis:         defaultFlowDwellMillis,
			GapMillis:           defaultFlowGapMillis,
			SessionTTLSeconds:   defaultFlowSessionTTL,
			ReapIntervalSeconds: defaultFlowReapInterval,
			MaxSessions:         defaultFlowMaxSessions,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultNotifyRequestTimeout,
			AssessmentCreated: true,
			HighRisk:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
