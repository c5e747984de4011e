package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"golang.org/x/net/netutil"

	"lanshare/internal/config"
	"lanshare/internal/discovery"
	"lanshare/internal/httpserver"
	"lanshare/internal/store"
)

const (
	exitRuntime = 1
	exitConfig  = 2
)

var errConfig = errors.New("configuration")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		if errors.Is(err, errConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitRuntime)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(store.Options{
		Root:     cfg.StorageRoot,
		MaxBytes: cfg.MaxUploadBytes,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	if cfg.SeedExample {
		if err := st.SeedExample(ctx); err != nil {
			return fmt.Errorf("seed example: %w", err)
		}
	}

	srv, err := httpserver.New(httpserver.Options{
		Files:          st,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr(), err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", ln.Addr().String(), "root", st.Root())
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var ad *discovery.Advertisement
	if cfg.EnableDiscovery {
		ad, err = discovery.Start(ctx, discovery.Options{
			Instance: cfg.InstanceName,
			Port:     cfg.Port,
			Logger:   log,
		})
		if err != nil {
			log.Warn("Network discovery disabled", "error", err)
		}
	}
	defer ad.Stop()

	printBanner(os.Stdout, cfg, ad, lanURL(cfg, ad))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown did not complete", "error", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}

// loadConfig reads the environment, then lets command line flags override it.
func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("lanshare", flag.ContinueOnError)
	var (
		port    = fs.Int("port", 0, "listen port (overrides PORT)")
		root    = fs.String("root", "", "storage directory (overrides STORAGE_ROOT)")
		host    = fs.String("host", "", "listen address (overrides HOST)")
		dotenv  = fs.String("env", "", "optional .env file to load")
		noMDNS  = fs.Bool("no-mdns", false, "do not advertise on the local network")
		noQR    = fs.Bool("no-qr", false, "do not print a QR code")
		example = fs.Bool("example", false, "create example.txt on startup")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}

	var files []string
	if *dotenv != "" {
		files = append(files, *dotenv)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}

	if *port != 0 {
		cfg.Port = *port
	}
	if *root != "" {
		cfg.StorageRoot = *root
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *noMDNS {
		cfg.EnableDiscovery = false
	}
	if *noQR {
		cfg.ShowQR = false
	}
	if *example {
		cfg.SeedExample = true
	}

	cfg, err = cfg.Normalize()
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, nil
}
