// Command bot runs the nutrition Telegram bot: the long-polling conversation
// loop, the periodic notifier and, when configured, the operations API.
//
// Configuration comes from an optional YAML file (-config), a .env file and
// the environment. TELEGRAM_TOKEN and OPENAI_API_KEY are required.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chuikova-e/nutritioner-bot/internal/access"
	"github.com/chuikova-e/nutritioner-bot/internal/accumulator"
	"github.com/chuikova-e/nutritioner-bot/internal/analysis"
	"github.com/chuikova-e/nutritioner-bot/internal/archive"
	"github.com/chuikova-e/nutritioner-bot/internal/config"
	"github.com/chuikova-e/nutritioner-bot/internal/conversation"
	"github.com/chuikova-e/nutritioner-bot/internal/logger"
	"github.com/chuikova-e/nutritioner-bot/internal/notifier"
	"github.com/chuikova-e/nutritioner-bot/internal/repository/sqlstore"
	"github.com/chuikova-e/nutritioner-bot/internal/server"
	"github.com/chuikova-e/nutritioner-bot/internal/service"
	"github.com/chuikova-e/nutritioner-bot/internal/telegram"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintln(os.Stderr, "nutritioner-bot:", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	log := logger.New(cfg.Log)
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === LEDGER ===
	if err := ensureDir(cfg.Database.URL); err != nil {
		return err
	}
	store, err := sqlstore.New(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer store.Close()

	// === ANALYSIS GATEWAY ===
	backend := analysis.NewOpenAI(analysis.OpenAIConfig{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		Model:           cfg.OpenAI.Model,
		TranscribeModel: cfg.OpenAI.TranscribeModel,
		MaxRetries:      cfg.OpenAI.MaxRetries,
	})
	gateway := analysis.New(backend, cfg.OpenAI.Timeout, log)

	// === TELEGRAM ===
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info("authorized on telegram", slog.String("bot", api.Self.UserName))
	sender := telegram.NewSender(api, log)

	gate := access.NewGate(cfg.Access.AllowedUsers, log)
	deps := conversation.Deps{
		Gate:        gate,
		Analyzer:    gateway,
		Ledger:      store,
		Accumulator: accumulator.New(),
		Sender:      sender,
		Location:    loc,
		Logger:      log,
	}
	if cfg.Archive.Bucket != "" {
		arch, err := archive.NewS3(ctx, cfg.Archive.Region, cfg.Archive.Bucket, cfg.Archive.Prefix, log)
		if err != nil {
			return err
		}
		deps.Archiver = arch
	}
	if gate.Size() == 0 {
		log.Warn("allow-list is empty: every message will be refused")
	}

	machine := conversation.New(deps)
	mailbox := conversation.NewMailbox(ctx, log)
	bot := telegram.NewBot(api, machine, mailbox, log)

	n := notifier.New(notifier.Deps{
		Ledger:   store,
		Comparer: gateway,
		Sender:   sender,
		Location: loc,
		Logger:   log,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bot.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		n.Run(ctx)
	}()

	// === OPS API (optional) ===
	errc := make(chan error, 1)
	if cfg.Ops.Addr != "" {
		srv, err := server.New(server.Config{
			Addr:           cfg.Ops.Addr,
			JWTSecret:      cfg.Ops.JWTSecret,
			AllowedOrigins: cfg.Ops.AllowedOrigins,
		}, service.NewReportService(store, loc, log), store, log)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errc <- err
				stop()
			}
		}()
	}

	log.Info("bot started",
		slog.String("timezone", loc.String()),
		slog.Int("allowed_users", gate.Size()),
		slog.Bool("archive", deps.Archiver != nil),
		slog.Bool("ops_api", cfg.Ops.Addr != ""),
	)

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	mailbox.Wait()
	log.Info("bot stopped")

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// ensureDir creates the parent directory of a SQLite file.
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.Contains(dsn, "://") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
