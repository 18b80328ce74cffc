package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum level; "debug" also switches to the development preset.
	Level string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	// Format is "console" or "json".
	Format string `mapstructure:"format" default:"console" validate:"oneof=console json"`
}
