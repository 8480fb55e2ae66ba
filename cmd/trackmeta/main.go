// Package main provides the trackmeta CLI application entry point.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"trackmeta/internal/core"
	"trackmeta/internal/i18n"
	"trackmeta/internal/metadata"
	"trackmeta/pkg/soundcloud"
)

const envPrefix = "TRACKMETA"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trackmeta",
	Short: "trackmeta - SoundCloud track metadata for content fields",
	Long: `trackmeta resolves SoundCloud track references (ids, API URLs or public page URLs)
into stream URLs and normalized waveform samples, and stores them in content field slots.`,
	RunE: runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, text)")
	flags.String("log-file", "", "write logs to this file with rotation instead of stderr")
	flags.Int("log-max-size-mb", defaults.Log.MaxSizeMB, "rotate the log file at this size")
	flags.Int("log-max-backups", defaults.Log.MaxBackups, "number of rotated log files to keep")
	flags.String("soundcloud-api-url", soundcloud.DefaultAPIBaseURL, "SoundCloud API base URL")
	flags.String("soundcloud-client-id", "", "SoundCloud client ID used until one is saved via the config API")
	flags.String("soundcloud-fields", defaults.SoundCloud.Fields,
		"optional fields to persist (minimal, titled, full or a list of title,duration)")
	flags.String("store-driver", defaults.Store.Driver, "field store (memory, sqlite, redis)")
	flags.String("store-sqlite-path", defaults.Store.SQLitePath, "SQLite database path")
	flags.String("store-redis-addr", defaults.Store.RedisAddr, "Redis address")
	flags.String("store-redis-password", "", "Redis password")
	flags.Int("store-redis-db", 0, "Redis database number")
	flags.String("store-redis-prefix", defaults.Store.RedisPrefix, "Redis key prefix")
	flags.Int("cache-size", defaults.Cache.Size, "number of resolutions to cache (0 disables the cache)")
	flags.Duration("cache-ttl", defaults.Cache.TTL, "how long a cached resolution stays valid")
	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Default message language (%s)", supportedLangs))
	flags.Duration("resolve-timeout", defaults.App.ResolveTimeout, "timeout for one resolution (0 disables)")
	flags.Int("resolve-limit-per-minute", defaults.App.ResolveLimitPerMinute,
		"maximum resolve requests per field and user per minute (0 disables)")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd, resolveCmd, configCmd)
}

func initConfig() {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()

	var err error
	logger, err = buildLogger(&config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureSoundCloud(cfg)
	configureStore(cfg)
	configureCache(cfg)
	configureServer(cfg)
	configureLog(cfg)
	configureApp(cfg)

	return cfg
}

func configureSoundCloud(cfg *core.Config) {
	cfg.SoundCloud.APIBaseURL = viper.GetString("soundcloud-api-url")
	cfg.SoundCloud.ClientID = strings.TrimSpace(viper.GetString("soundcloud-client-id"))
	cfg.SoundCloud.Fields = viper.GetString("soundcloud-fields")
}

func configureStore(cfg *core.Config) {
	cfg.Store.Driver = strings.ToLower(viper.GetString("store-driver"))
	cfg.Store.SQLitePath = viper.GetString("store-sqlite-path")
	cfg.Store.RedisAddr = viper.GetString("store-redis-addr")
	cfg.Store.RedisPassword = viper.GetString("store-redis-password")
	cfg.Store.RedisDB = viper.GetInt("store-redis-db")
	cfg.Store.RedisPrefix = viper.GetString("store-redis-prefix")
}

func configureCache(cfg *core.Config) {
	cfg.Cache.Size = viper.GetInt("cache-size")
	cfg.Cache.TTL = viper.GetDuration("cache-ttl")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
}

func configureLog(cfg *core.Config) {
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
	cfg.Log.File = viper.GetString("log-file")
	cfg.Log.MaxSizeMB = viper.GetInt("log-max-size-mb")
	cfg.Log.MaxBackups = viper.GetInt("log-max-backups")
}

func configureApp(cfg *core.Config) {
	cfg.App.ResolveTimeout = viper.GetDuration("resolve-timeout")
	cfg.App.ResolveLimitPerMinute = viper.GetInt("resolve-limit-per-minute")

	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	// The server must be able to finish a resolution before writing the response.
	if cfg.App.ResolveTimeout > 0 && cfg.Server.WriteTimeout <= cfg.App.ResolveTimeout {
		cfg.Server.WriteTimeout = cfg.App.ResolveTimeout + core.DefaultServerTimeout
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func buildLogger(cfg *core.LogConfig) (*zap.Logger, error) {
	zapLevel := parseLevel(cfg.Level)

	if cfg.File == "" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
		if cfg.Format == "text" || cfg.Format == "console" {
			zapCfg.Encoding = "console"
		}
		return zapCfg.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if cfg.Format == "text" || cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	})

	return zap.New(zapcore.NewCore(encoder, writer, zapLevel), zap.AddCaller()), nil
}

// requestedFields parses the configured field set.
func requestedFields() (metadata.Fields, error) {
	return metadata.ParseFields(config.SoundCloud.Fields)
}
