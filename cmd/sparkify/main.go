package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/sparkify-etl/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "sparkify",
		Short: "Sparkify ETL - load song metadata and listening logs into a star schema",
		Long: `sparkify loads line-delimited JSON song metadata files and user activity
logs into five tables (songs, artists, users, time, songplays).

Each data file is committed in its own transaction. Re-running a load is
safe for the dimension tables; songplays are appended on every run.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(bindFlags, initConfig)

	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./configs/sparkify.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.BoolP("quiet", "q", false, "quiet output (errors only)")
	flags.String("artifacts", "artifacts", "directory for event logs and reports")

	// Database
	flags.String("db-driver", "sqlite", "database driver: sqlite or postgres")
	flags.String("db", "sparkify.db", "SQLite database file")
	flags.String("db-host", "127.0.0.1", "PostgreSQL host")
	flags.Int("db-port", 5432, "PostgreSQL port")
	flags.String("db-name", "sparkifydb", "PostgreSQL database name")
	flags.String("db-user", "", "PostgreSQL user")
	flags.String("db-password", "", "PostgreSQL password (prefer SPARKIFY_DB_PASSWORD)")
	flags.String("db-sslmode", "disable", "PostgreSQL sslmode")
	flags.String("policy", "keep-first", "conflict policy for songs, artists and users: keep-first or overwrite")
	flags.Bool("strict", false, "create foreign keys from songs and songplays to their dimensions")

	// Data trees
	flags.String("song-data", "data/song_data", "song metadata root (directory or s3://bucket/prefix)")
	flags.String("log-data", "data/log_data", "event log root (directory or s3://bucket/prefix)")
	flags.String("pattern", "*.json", "base-name glob for data files")
	flags.String("s3-region", "", "S3 region (default us-west-2)")
	flags.String("s3-access-key", "", "S3 access key (default: AWS credential chain)")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-endpoint", "", "S3-compatible endpoint URL")
}

// flagKeys maps viper keys to the persistent flags that set them
var flagKeys = map[string]string{
	"verbose":       "verbose",
	"quiet":         "quiet",
	"artifacts":     "artifacts",
	"db.driver":     "db-driver",
	"db.path":       "db",
	"db.host":       "db-host",
	"db.port":       "db-port",
	"db.name":       "db-name",
	"db.user":       "db-user",
	"db.password":   "db-password",
	"db.sslmode":    "db-sslmode",
	"policy":        "policy",
	"strict":        "strict",
	"song-data":     "song-data",
	"log-data":      "log-data",
	"pattern":       "pattern",
	"s3.region":     "s3-region",
	"s3.access-key": "s3-access-key",
	"s3.secret-key": "s3-secret-key",
	"s3.endpoint":   "s3-endpoint",
}

// bindFlags binds flags to viper
func bindFlags() {
	for key, flag := range flagKeys {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
	viper.BindPFlag("normalize-unicode", loadCmd.Flags().Lookup("normalize-unicode"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("sparkify")
		viper.SetConfigType("yaml")
	}

	// SPARKIFY_DB_PASSWORD -> db.password, SPARKIFY_SONG_DATA -> song-data
	viper.SetEnvPrefix("SPARKIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
