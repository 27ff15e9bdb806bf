// Package config provides configuration management for case-mirror.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: MySQL connection details for the local mirror
//   - Storage: S3/MinIO credentials and bucket settings for attachments
//   - Remote: remote table API endpoint, token, rate limit, batch sizing
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
