package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"  validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// RealtimeConfig tunes the live delivery layer: the per-connection outbound
// queue, the per-topic fan-out buffer, and the SSE keep-alive interval.
type RealtimeConfig struct {
	SendBufferSize   int `mapstructure:"send_buffer_size"  validate:"required,gt=0"`
	TopicBufferSize  int `mapstructure:"topic_buffer_size" validate:"required,gt=0"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds" validate:"required,gt=0"`
}

// SchedulerConfig contains settings for the reminder scheduler.
type SchedulerConfig struct {
	ReminderIntervalSeconds int `mapstructure:"reminder_interval_seconds" validate:"required,gt=0"`
}
