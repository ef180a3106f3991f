package config

const (
	defaultEnv         = EnvDevelopment
	defaultStreamPath  = "/api/chat/stream"
	defaultChatPath    = "/api/chat"
	defaultRelayListen = ":8080"
	defaultIdleTimeout = "60s"
	defaultUserID      = "cli-user"

	defaultStorageDriver = "sqlite"

	defaultKafkaTopic = "chat.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Deployment: DeploymentConfig{
			Env: defaultEnv,
		},
		Backend: BackendConfig{
			StreamPath: defaultStreamPath,
			ChatPath:   defaultChatPath,
		},
		Relay: RelayConfig{
			Listen:      defaultRelayListen,
			IdleTimeout: defaultIdleTimeout,
			ChatEnabled: true,
		},
		Client: ClientConfig{
			UserID: defaultUserID,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
