package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"livesync/core/auth"
	"livesync/core/database"
	"livesync/core/journal"
	"livesync/core/logger"
	"livesync/core/server"
	"livesync/core/storage"
	"livesync/feature/archive"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Auth holds the bearer token used for snapshot fetches and push channels.
	Auth auth.Credentials `mapstructure:"auth"`
	// Feeds holds one section per synchronized collection.
	Feeds Feeds `mapstructure:"feeds"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Archive holds snapshot archive settings.
	Archive archive.Config `mapstructure:"archive"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the anomaly journal database.
	Database database.Config `mapstructure:"database"`
	// Journal holds anomaly journal tuning.
	Journal journal.Config `mapstructure:"journal"`
}

var validate = validator.New()

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")
	for key, value := range feedDefaults {
		v.SetDefault(key, value)
	}

	// Map environment variables to nested keys (e.g. FEEDS_USERS_SNAPSHOT_URL -> feeds.users.snapshot_url)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks field constraints. Feed sections are only checked when enabled.
func (c *Config) Validate() error {
	var errs []error
	sections := []struct {
		name  string
		value any
	}{
		{"server", c.Server},
		{"log", c.Log},
		{"database", c.Database},
		{"journal", c.Journal},
		{"archive", c.Archive},
	}
	for _, s := range sections {
		if err := validate.Struct(s.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	enabled := 0
	for _, f := range c.Feeds.All() {
		if !f.Enabled {
			continue
		}
		enabled++
		if err := validate.Struct(f.FeedConfig); err != nil {
			errs = append(errs, fmt.Errorf("feeds.%s: %w", f.Name, err))
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("feeds: no feed is enabled"))
	}

	return errors.Join(errs...)
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
