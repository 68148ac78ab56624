package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/cache"
	"github.com/user/gules/internal/config"
	"github.com/user/gules/internal/state"
	"github.com/user/gules/internal/syncer"
	"github.com/user/gules/pkg/jules"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "gules",
	Short:         "Cache and filter Jules session activities",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(loadConfig())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newClient(cfg *config.Config) *jules.Client {
	retry := jules.DefaultRetryPolicy()
	if cfg.HTTP.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.HTTP.MaxAttempts
	}
	return jules.New(jules.Config{
		BaseURL: cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.HTTPTimeout(),
		Retry:   retry,
	})
}

func newStore(cfg *config.Config) *state.Store {
	return state.NewStore(state.Options{
		Dir:         cfg.CacheDir,
		MaxSessions: cfg.Cache.MaxSessions,
		Compress:    cfg.Cache.Compress,
		MemoTTL:     cfg.MemoTTL(),
	})
}

// newService wires the store, API client and sync engine together.
func newService(cfg *config.Config) *cache.Service {
	store := newStore(cfg)
	fetcher := jules.PageFetcher{Client: newClient(cfg)}
	engineCfg := syncer.Config{
		PageSize: cfg.Cache.PageSize,
		MaxPages: cfg.Cache.MaxPages,
	}
	if cfg.Cache.Enabled {
		engineCfg.Journal = store.Journal()
	}
	engine := syncer.NewEngine(fetcher, store, engineCfg)
	return cache.NewService(store, engine, cache.Config{Enabled: cfg.Cache.Enabled})
}

func requireAPIKey(cfg *config.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("no API key configured: set JULES_API_KEY or run `gules config set api_key <key>`")
	}
	return nil
}
