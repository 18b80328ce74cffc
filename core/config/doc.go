// Package config provides configuration management for livesync.
//
// It loads a .env file with godotenv, then reads environment variables through Viper.
// Defaults come from the `default` struct tags of every section, registered by
// reflection so AutomaticEnv can see each key. Nested keys map to upper snake case
// environment variables: feeds.users.snapshot_url is FEEDS_USERS_SNAPSHOT_URL.
//
// # Configuration Structure
//
//   - Server: HTTP port, API key, shutdown timeout
//   - Auth: bearer token for snapshot fetches and push channels
//   - Feeds: users, news and transactions endpoints, placement and required role
//   - Storage, Archive: S3/MinIO bucket and snapshot archive retention
//   - Database, Journal: anomaly journal connection and batching
//   - Log: level and format
//
// Validate runs go-playground/validator over each section.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
