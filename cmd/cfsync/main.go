// Command cfsync keeps a set of Cloudflare DNS "A" records pointed at
// the machine's current public IP address. It runs unattended, polling
// forever; the `configure` subcommand edits the persisted config
// interactively.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cfsync/cfsync/pkg/cloudflare"
	"github.com/cfsync/cfsync/pkg/config"
	"github.com/cfsync/cfsync/pkg/controller"
	"github.com/cfsync/cfsync/pkg/logging"
	"github.com/cfsync/cfsync/pkg/reconcile"
	"github.com/cfsync/cfsync/pkg/record"
	"github.com/cfsync/cfsync/pkg/source"
)

func main() {
	configPath := flag.String("config",
		envOr("CFSYNC_CONFIG", ""),
		"Config file path (default: <user config dir>/cfsync/config.json)")
	interval := flag.Duration("interval",
		envOrDuration("CFSYNC_INTERVAL", 0),
		"Override the poll interval from the config file (0 = use config)")
	once := flag.Bool("once",
		envOrBool("CFSYNC_ONCE", false),
		"Run exactly one sync cycle and exit")
	healthPort := flag.Int("health-port",
		envOrInt("CFSYNC_HEALTH_PORT", 8080),
		"Port for the HTTP health check and metrics server (0 to disable)")
	logLevel := flag.String("log-level",
		envOr("CFSYNC_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error")
	flag.Parse()

	if err := refuseRoot(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch arg := flag.Arg(0); arg {
	case "":
		run(*configPath, *interval, *once, *healthPort, *logLevel)
	case "configure":
		configure(*configPath, *logLevel)
	default:
		fmt.Printf("There is no command called %s. Did you mean to write configure?\n", arg)
	}
}

// bootstrap loads and completes the configuration, picks the log
// session, and builds the logger. Fatal conditions (no config dir,
// incomplete config without a terminal) terminate the process here.
func bootstrap(configPath, logLevel string) (*config.Config, *config.Store, *slog.Logger) {
	interactive := isTerminal()

	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	store := &config.Store{Path: path}
	defaultLogFolder := filepath.Dir(path)

	var prompt config.CredentialsPrompt
	if interactive {
		prompt = &terminalPrompt{}
	}

	inc, err := store.Load()
	wasIncomplete := false
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !interactive {
			fmt.Println("There is no config file yet. You must create one using the configure command in a terminal.")
			os.Exit(0)
		}
		inc = &config.Incomplete{}
		wasIncomplete = true
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		wasIncomplete = !inc.IsComplete()
	}

	cfg, err := inc.Complete(prompt, defaultLogFolder)
	if err != nil {
		if errors.Is(err, config.ErrNotInteractive) {
			fmt.Fprintln(os.Stderr, "Couldn't setup config because process is not running in a terminal. Please configure manually before running.")
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Pick the log session for this run and remember it in the config.
	previous := cfg.LogConfig.SessionNumber
	session, err := logging.SessionNumber(cfg.LogConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't get session number: %v\n", err)
		cfg.LogConfig.SessionNumber = nil
	} else {
		cfg.LogConfig.SessionNumber = &session
	}

	log := logging.New(cfg.LogConfig, parseLevel(logLevel))

	if wasIncomplete || !intPtrEqual(previous, cfg.LogConfig.SessionNumber) {
		if err := store.Save(cfg); err != nil {
			log.Error("Failed to save config file", "err", err)
		}
	}

	return cfg, store, log
}

// run wires the daemon together and blocks in the sync loop.
func run(configPath string, interval time.Duration, once bool, healthPort int, logLevel string) {
	cfg, store, log := bootstrap(configPath, logLevel)

	client := cloudflare.New(cloudflare.Config{
		Email:  cfg.Authentication.Email,
		APIKey: cfg.Authentication.APIKey,
		ZoneID: cfg.Authentication.ZoneID,
	})
	src := source.NewDNSSource(log)

	var selector reconcile.Selector
	if isTerminal() {
		selector = &recordSelector{prompt: "Select which new records need to be synced"}
	}
	rec := reconcile.New(client, &configSaver{cfg: cfg, store: store}, selector, log)

	if interval <= 0 {
		interval = time.Duration(cfg.SecondsToWaitPerRestart) * time.Second
	}
	ctrl := controller.New(src, rec, client, cfg.Records, log, controller.Config{
		Interval: interval,
		Once:     once,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	startHealthServer(ctx, healthPort, ctrl, log)

	log.Info("starting cfsync",
		"zone", cfg.Authentication.ZoneID,
		"interval", interval.String(),
		"once", once,
	)

	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("sync loop exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// configSaver persists the reconciled record list by rewriting the
// whole config file.
type configSaver struct {
	cfg   *config.Config
	store *config.Store
}

func (s *configSaver) SaveRecords(records []record.Record) error {
	s.cfg.Records = records
	return s.store.Save(s.cfg)
}

// refuseRoot rejects running under the root account, matching the
// config-in-home-directory layout.
func refuseRoot() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("can't run without a home directory: %w", err)
	}
	if home == "/root" {
		return errors.New("don't run cfsync as root; run as a regular user")
	}
	return nil
}

// startHealthServer starts an HTTP server exposing /healthz (liveness),
// /readyz (readiness, gated on the first successful reconcile), and
// /metrics. A port of 0 disables the server. The server is shut down
// gracefully when ctx is cancelled.
func startHealthServer(ctx context.Context, port int, ctrl *controller.Controller, log *slog.Logger) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if ctrl.IsReady() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "not ready")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Warn("health server shutdown error", "err", err)
		}
	}()
	go func() {
		log.Info("health server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server error", "err", err)
		}
	}()
}

// parseLevel maps the -log-level flag onto slog levels.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// envOr returns the value of the environment variable named key, or
// fallback if the variable is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrInt returns the environment variable named key parsed as int, or fallback.
func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envOrBool returns the environment variable named key parsed as bool, or fallback.
func envOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envOrDuration returns the environment variable named key parsed as
// time.Duration, or fallback.
func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
