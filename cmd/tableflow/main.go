package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"tableflow/internal/app/api"
	"tableflow/internal/app/board"
	"tableflow/internal/catalog"
	"tableflow/internal/common/db"
	"tableflow/internal/common/httpx"
	"tableflow/internal/common/logger"
	"tableflow/internal/common/mq"
	"tableflow/internal/config"
	"tableflow/internal/domain"
	"tableflow/internal/events"
	"tableflow/internal/repository"
	"tableflow/internal/service"
)

func main() {
	mode := flag.String("mode", "api-server", "api-server | board-subscriber")
	port := flag.Int("port", 0, "api-server: http port override")
	role := flag.String("role", "waiter", "board-subscriber: session role (waiter | kitchen | admin)")
	staffID := flag.String("staff-id", "", "board-subscriber: staff account for targeted events")
	flag.Parse()

	_ = godotenv.Load()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfgPath, err := config.FindConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "no config.yaml found")
		os.Exit(2)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": cfgPath})
		os.Exit(1)
	}

	switch *mode {
	case "api-server":
		if *port != 0 {
			cfg.HTTP.Port = *port
		}
		lg.Info("service_started", map[string]any{"service": "api-server", "port": cfg.HTTP.Port})
		if err := runAPI(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "board-subscriber":
		lg.Info("service_started", map[string]any{"service": "board-subscriber", "role": *role})
		if err := runBoard(ctx, cfg, domain.Role(*role), *staffID); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode must be api-server or board-subscriber")
		os.Exit(2)
	}
}

func runAPI(ctx context.Context, cfg config.App) error {
	if err := applyMigrations(cfg); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	conn, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	client, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass, cfg.Rabbit.VHost)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareTopology(); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	bus := events.NewPublisher(client, "api-server")
	orders := service.NewOrderService(repository.NewOrders(conn), bus, lookupFromEnv())
	calls := service.NewCallCoordinator(bus, service.DefaultCallGrace)
	defer calls.Stop()
	presence := service.NewPresenceTracker(repository.NewPresence(conn), bus, 90*time.Second)

	go presence.RunSweeper(ctx, 30*time.Second)

	handler := api.New(orders, calls, presence, bus, cfg.JWTSecret)
	srv := httpx.New(":"+strconv.Itoa(cfg.HTTP.Port), handler)
	return srv.Run(ctx)
}

func runBoard(ctx context.Context, cfg config.App, role domain.Role, staffID string) error {
	conn, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	client, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass, cfg.Rabbit.VHost)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareTopology(); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	bus := events.NewPublisher(client, "board-subscriber")
	orders := service.NewOrderService(repository.NewOrders(conn), bus, nil)
	sub := board.New(client, orders, board.Config{Role: role, StaffID: staffID})
	return sub.Run(ctx)
}

func applyMigrations(cfg config.App) error {
	m, err := migrate.New("file://migrations", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// lookupFromEnv wires the external catalog collaborator. Without one the
// engine snapshots the submitted title and price as-is.
func lookupFromEnv() catalog.Lookup {
	if os.Getenv("CATALOG_STATIC") == "" {
		return nil
	}
	// CATALOG_STATIC=ref:title:price,ref:title:price for local runs.
	static := catalog.Static{}
	for _, entry := range strings.Split(os.Getenv("CATALOG_STATIC"), ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			continue
		}
		price, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			continue
		}
		static[parts[0]] = catalog.Product{Ref: parts[0], Title: parts[1], Price: price}
	}
	return static
}
