package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtsiakos/skopos/internal/config"
	"github.com/mtsiakos/skopos/internal/natsbus"
	"github.com/mtsiakos/skopos/internal/notify"
	"github.com/mtsiakos/skopos/internal/query"
	"github.com/mtsiakos/skopos/internal/retention"
	"github.com/mtsiakos/skopos/internal/roster"
	"github.com/mtsiakos/skopos/internal/store"
	"github.com/mtsiakos/skopos/internal/telegram"
	"github.com/mtsiakos/skopos/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("skopos %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			slog.Error("export failed", "error", err)
			os.Exit(1)
		}
	case "import":
		if err := runImport(os.Args[2:]); err != nil {
			slog.Error("import failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: skopos <command>\n\nCommands:\n  gateway    Start the skopos gateway service\n  export     Archive the data directory to a .tar.zst file\n  import     Restore a data directory from a .tar.zst archive\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting skopos gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer client.Close()

	// Agent roster: config file when given, built-in table otherwise
	var ros *roster.Roster
	if cfg.Roster.Path != "" {
		ros, err = roster.Load(cfg.Roster.Path)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		slog.Info("roster loaded", "path", cfg.Roster.Path, "groups", len(ros.Groups()))
	} else {
		ros = roster.Default()
	}

	// Notification broker
	broker := notify.NewBroker()

	// Query coordinator
	coord := query.NewCoordinator(client, db, ros, broker)
	defer coord.Shutdown()

	// Retention pruner
	pruner, err := retention.New(db, client, broker, cfg.Retention)
	if err != nil {
		return fmt.Errorf("init retention: %w", err)
	}
	go pruner.Start(ctx)

	// Telegram notifier
	if cfg.Telegram.Token != "" {
		notifier, err := telegram.NewNotifier(cfg.Telegram, broker)
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
		go notifier.Start(ctx)
	} else {
		slog.Warn("telegram token not set, notifier disabled")
	}

	// Web UI
	if cfg.Web.Enabled {
		srv, err := web.NewServer(db, coord, ros, client, cfg.Web, version)
		if err != nil {
			return fmt.Errorf("init web server: %w", err)
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
