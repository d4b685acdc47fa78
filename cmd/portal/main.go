package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/tutordesk/internal/apiclient"
	"github.com/me/tutordesk/internal/config"
	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/internal/logging"
	"github.com/me/tutordesk/internal/portal"
	"github.com/me/tutordesk/internal/session"
)

// cleanupInterval is how often sessions with expired cookies are purged.
const cleanupInterval = 10 * time.Minute

func main() {
	configFile := flag.String("config", "", "Path to config file (default ~/.tutordesk/config.yaml)")
	addr := flag.String("addr", "", "Listen address")
	dbPath := flag.String("db", "", "Session database path (default ~/.tutordesk/portal.db)")
	apiURL := flag.String("api", "", "Base URL of the tutoring-center API")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	secure := flag.Bool("secure-cookies", false, "Set the Secure flag on the session cookie")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.LoadPortal(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "api":
			cfg.APIURL = *apiURL
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "secure-cookies":
			cfg.SecureCookies = *secure
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".tutordesk")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		cfg.DBPath = filepath.Join(dir, "portal.db")
	}

	st, err := session.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	// The client and guard carry no session of their own; the portal binds
	// each request to the calling browser's namespace.
	client := apiclient.New(cfg.APIURL, session.NewMemoryStore(), logger)
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	g := guard.New(session.NewMemoryStore(), guard.Route(cfg.EntryRoute), logger)
	sessions := portal.NewSessionManager(st, cfg.SessionIdle)
	p := portal.New(client, g, sessions, logger, portal.Config{Secure: cfg.SecureCookies})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sessions.CleanupIdle(ctx)
				if err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("purged expired sessions", "count", n)
				}
			}
		}
	}()

	go func() {
		logger.Info("portal starting", "addr", cfg.Addr, "api", cfg.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("portal failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("portal stopped")
}
