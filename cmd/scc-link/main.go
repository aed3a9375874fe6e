package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/domain/auth"
	"scc-link-go/internal/domain/qrlogin"
	"scc-link-go/internal/platform/config"
	"scc-link-go/internal/platform/errors"
	"scc-link-go/internal/platform/logging"
	"scc-link-go/internal/transport/channel"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	outPath := flag.String("out", "qr.png", "where to write the rendered QR code")
	logout := flag.Bool("logout", false, "clear stored credentials and exit")
	flag.Parse()

	if err := run(*configPath, *outPath, *logout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "scc-link failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, outPath string, logout bool) error {
	if _, err := os.Stat(configPath); err != nil {
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

	credPath := cfg.Auth.CredentialFile
	if credPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		credPath = filepath.Join(home, ".scc-link", "credentials.json")
	}
	store := auth.NewFileStore(credPath)
	adapter := auth.NewAdapter(auth.NewClient(cfg.Auth.BaseURL), store, cfg.Auth.CredentialTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if logout {
		if err := adapter.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	}

	if creds, ok := adapter.Current(); ok {
		fmt.Printf("already logged in as %s (%s), use -logout to sign out\n", creds.User.Name, creds.User.Email)
		return nil
	}

	manager := channel.NewManager(channel.Options{
		URL:               cfg.Channel.URL,
		DialTimeout:       cfg.Channel.DialTimeout,
		ReconnectAttempts: cfg.Channel.ReconnectAttempts,
		ReconnectDelay:    cfg.Channel.ReconnectDelay,
		Logger:            logger,
	})
	defer manager.Disconnect()

	done := make(chan error, 1)
	coord := qrlogin.NewCoordinator(manager, adapter, logger, qrlogin.Hooks{
		OnStatus: func(status qrlogin.Status) {
			switch status {
			case qrlogin.StatusScanned:
				fmt.Println("code scanned, waiting for confirmation on the other device")
			case qrlogin.StatusExpired, qrlogin.StatusCancelled:
				done <- fmt.Errorf("login %s", status)
			}
		},
		OnAuthenticated: func(user qrlink.User) {
			fmt.Printf("logged in as %s (%s)\n", user.Name, user.Email)
			done <- nil
		},
		OnError: func(err error) {
			_, _ = fmt.Fprintf(os.Stderr, "warning (%s): %v\n", errors.Kindof(err), err)
		},
	})
	defer coord.Close()

	session, err := coord.Generate(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, session.PNG, 0o644); err != nil {
		return fmt.Errorf("write qr image: %w", err)
	}
	fmt.Printf("QR code written to %s, scan it with the mobile app (expires %s)\n",
		outPath, session.ExpiresAt.Format("15:04:05"))

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		coord.Cancel()
		fmt.Println("\nlogin cancelled")
		return nil
	}
}
