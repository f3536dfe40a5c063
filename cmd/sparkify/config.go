package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"

	"github.com/franz/sparkify-etl/internal/report"
	"github.com/franz/sparkify-etl/internal/source"
	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (SPARKIFY_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// setupLogging applies --verbose and --quiet
func setupLogging() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// storeConfig builds the database configuration from flags, env and config file
func storeConfig() (store.Config, error) {
	dialect, err := store.ParseDialect(viper.GetString("db.driver"))
	if err != nil {
		return store.Config{}, err
	}
	policy, err := store.ParsePolicy(viper.GetString("policy"))
	if err != nil {
		return store.Config{}, err
	}
	schema, err := store.NewSchema(dialect, policy, viper.GetBool("strict"))
	if err != nil {
		return store.Config{}, err
	}

	return store.Config{
		Schema: schema,
		Path:   GetConfigString("db.path", "sparkify.db"),
		Postgres: store.PostgresConfig{
			Host:     GetConfigString("db.host", "127.0.0.1"),
			Port:     GetConfigInt("db.port", 5432),
			Database: GetConfigString("db.name", "sparkifydb"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			SSLMode:  GetConfigString("db.sslmode", "disable"),
		},
	}, nil
}

// describeDB names the database for log output without leaking the password
func describeDB(cfg store.Config) string {
	if cfg.Schema.Dialect == store.DialectSQLite {
		return cfg.Path
	}
	u, err := url.Parse(cfg.Postgres.ConnString())
	if err != nil {
		return fmt.Sprintf("postgres %s", cfg.Postgres.Database)
	}
	return u.Redacted()
}

// sourceOptions builds the data source configuration
func sourceOptions() source.Options {
	return source.Options{
		Pattern: viper.GetString("pattern"),
		S3: source.S3Config{
			Region:    viper.GetString("s3.region"),
			AccessKey: viper.GetString("s3.access-key"),
			SecretKey: viper.GetString("s3.secret-key"),
			Endpoint:  viper.GetString("s3.endpoint"),
		},
	}
}

// eventLogLevel maps --verbose/--quiet onto the event log threshold
func eventLogLevel() report.EventLevel {
	switch {
	case viper.GetBool("quiet"):
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	default:
		return report.LevelInfo
	}
}
