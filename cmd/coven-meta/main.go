// ABOUTME: Entry point for coven-meta
// ABOUTME: Loads config, restores meta-discussions, relays across accounts and prints merged messages

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-meta/internal/config"
	"github.com/2389/coven-meta/internal/dedupe"
	"github.com/2389/coven-meta/internal/discussion"
	"github.com/2389/coven-meta/internal/store"
	"github.com/2389/coven-meta/internal/user"
)

const banner = `
                                                       _
  ___ _____   _____ _ __        _ __ ___   ___| |_ __ _
 / __/ _ \ \ / / _ \ '_ \ _____| '_ ' _ \ / _ \ __/ _' |
| (_| (_) \ V /  __/ | | |_____| | | | | |  __/ || (_| |
 \___\___/ \_/ \___|_| |_|     |_| |_| |_|\___|\__\__,_|
`

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Stdin, config.DefaultPath()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", config.DefaultPath(), "path to config file (.yaml or .toml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("User:     %s\n", cfg.User.ID)
	green.Print("    ▶ ")
	fmt.Printf("Accounts: %d\n", len(cfg.Accounts))
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	seen := dedupe.New(cfg.Relay.EchoTTL, cfg.Relay.EchoCacheSize)
	defer seen.Close()

	var wg sync.WaitGroup
	u := user.New(cfg.User.ID,
		user.WithLogger(logger),
		user.WithStore(s),
		user.WithMetaOptions(
			discussion.WithQuotePrefix(cfg.Relay.QuotePrefix),
			discussion.WithMergeWindow(cfg.Relay.MergeWindow),
			discussion.WithSeenCache(seen),
		),
		user.WithOnRegister(func(meta *discussion.Meta) {
			if ctx.Err() != nil {
				return
			}
			printMessages(ctx, &wg, meta, os.Stdout)
		}),
	)
	defer u.Close()

	accounts, err := buildAccounts(cfg.Accounts, logger)
	if err != nil {
		return err
	}
	defer accounts.Close()

	for _, acc := range accounts.all {
		if _, err := u.AddAccount(acc); err != nil {
			return err
		}
	}

	loaded, err := u.LoadMetaDiscussions(ctx)
	if err != nil {
		return fmt.Errorf("restoring meta discussions: %w", err)
	}
	logger.Info("meta discussions restored", "count", len(loaded))

	for _, m := range accounts.matrix {
		wg.Go(func() {
			if err := m.Run(ctx); err != nil {
				logger.Error("matrix sync ended", "account_id", m.GlobalID(), "error", err)
			}
		})
	}

	if err := u.ListenAll(ctx); err != nil {
		logger.Warn("some meta discussions are not relaying", "error", err)
	}

	logger.Info("coven-meta running")
	<-ctx.Done()
	logger.Info("shutting down")

	u.Close()
	wg.Wait()
	return nil
}

// printMessages subscribes to meta before returning, then writes every merged
// message to w from a goroutine tracked by wg until ctx ends or the
// meta-discussion closes.
func printMessages(ctx context.Context, wg *sync.WaitGroup, meta *discussion.Meta, w io.Writer) {
	events, sub := meta.SubscribeMessages(ctx)
	name := color.New(color.FgMagenta, color.Bold).SprintFunc()

	wg.Go(func() {
		defer sub.Cancel()
		for mm := range events {
			fmt.Fprintf(w, "%s %s %s: %s (%d copies)\n",
				mm.CreatedAt().Format("15:04:05"),
				name(meta.Name()),
				mm.Author(),
				mm.Body(),
				mm.Len())
		}
	})
}

func setupLogger(level, format string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
