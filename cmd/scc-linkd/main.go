package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"scc-link-go/internal/platform/config"
	"scc-link-go/internal/platform/logging"
	"scc-link-go/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	createUser := flag.String("create-user", "", "provision an account as name:email:password[:profile] and exit")
	flag.Parse()

	if err := run(*configPath, *createUser); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "scc-linkd failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, createUser string) error {
	if _, err := os.Stat(configPath); err != nil {
		// Missing config file falls back to defaults plus environment.
		configPath = ""
	}
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	db, err := openDatabase(cfg.Server.SQLitePath)
	if err != nil {
		return err
	}
	users, err := server.NewUserRepository(db)
	if err != nil {
		return err
	}

	if createUser != "" {
		return provisionUser(users, createUser)
	}

	if cfg.Server.TokenSecret == "" {
		return fmt.Errorf("token secret is not configured, set SCC_TOKEN_SECRET or server.token_secret")
	}

	store, err := server.NewSessionStore(cfg.Server.Store)
	if err != nil {
		return err
	}
	tokens, err := server.NewTokenService(cfg.Server.TokenSecret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, store, users, tokens, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return srv.Stop()
	})
	return g.Wait()
}

func openDatabase(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// provisionUser handles the -create-user maintenance path.
func provisionUser(users *server.UserRepository, spec string) error {
	parts := strings.SplitN(spec, ":", 4)
	if len(parts) < 3 {
		return fmt.Errorf("invalid -create-user value, want name:email:password[:profile]")
	}
	profile := "operator"
	if len(parts) == 4 && parts[3] != "" {
		profile = parts[3]
	}

	user, err := users.Create(context.Background(), parts[0], parts[1], parts[2], profile)
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s, profile %s)\n", user.Name, user.Email, user.Profile)
	return nil
}
