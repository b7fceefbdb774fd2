package config

const (
	defaultAPIBaseURL           = "http://127.0.0.1:8000/api"
	defaultAPITimeoutSeconds    = 30
	defaultPollIntervalSeconds  = 5
	defaultListLimit            = 20
	defaultSpoolDir             = "~/.cache/showrunner/artifacts"
	defaultNotifyTimeoutSeconds = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Dashboard: Dashboard{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			ListLimit:           defaultListLimit,
			VideoEnabled:        true,
		},
		Artifacts: Artifacts{
			SpoolDir: defaultSpoolDir,
		},
		Notifications: Notifications{
			TimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
