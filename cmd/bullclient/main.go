package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/client"
	"github.com/DoyleJ11/bull-client/internal/config"
	"github.com/DoyleJ11/bull-client/internal/httpapi"
	"github.com/DoyleJ11/bull-client/internal/logging"
	"github.com/DoyleJ11/bull-client/internal/runtimeconfig"
	"github.com/DoyleJ11/bull-client/internal/session"
	"github.com/DoyleJ11/bull-client/internal/transport"
)

func main() {
	var (
		envFile   = flag.String("env", ".env", "dotenv file to load before reading BULL_* variables")
		profile   = flag.String("profile", "", "YAML profile")
		debugAddr = flag.String("debug-addr", "", "serve the debug HTTP API on this address")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "env:", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *debugAddr != "" {
		cfg.DebugAddr = *debugAddr
	}

	log, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, os.Stdin, os.Stdout); err != nil {
		log.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func openStorage(cfg config.Config) (session.Storage, io.Closer, error) {
	if cfg.SessionDB != "" {
		db, err := session.OpenSQLite(cfg.SessionDB)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	}
	dir := cfg.SessionDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, nil, fmt.Errorf("session dir: %w", err)
		}
		dir = filepath.Join(base, "bull")
	}
	return session.FileStorage{Dir: dir}, nil, nil
}

func run(cfg config.Config, log *zap.Logger, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closer, err := openStorage(cfg)
	if err != nil {
		return err
	}
	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}

	fallback := runtimeconfig.Fallback()
	if cfg.BackendURL != "" {
		fallback.BackendURL = cfg.BackendURL
	}
	fallback.Mode = cfg.Mode
	loader := runtimeconfig.NewLoader(runtimeconfig.Options{
		DocumentURL: cfg.ConfigURL,
		Fallback:    fallback,
	}, log.Named("runtimeconfig"))

	topts := transport.DefaultOptions()
	topts.DialTimeout = cfg.Transport.DialTimeout
	topts.WriteTimeout = cfg.Transport.WriteTimeout
	topts.PingInterval = cfg.Transport.PingInterval
	topts.ReconnectDelay = cfg.Transport.ReconnectDelay
	topts.AutoReconnect = cfg.Transport.AutoReconnect

	c := client.New(loader, session.NewStore(storage, log.Named("session")), log, client.Options{
		Transport:   topts,
		HistorySize: cfg.HistorySize,
		Closers:     closers,
	})
	defer c.Close()

	if cfg.DebugAddr != "" {
		srv := &http.Server{
			Addr:              cfg.DebugAddr,
			Handler:           httpapi.SetupRoutes(c, log.Named("httpapi")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("debug api listening", zap.String("addr", cfg.DebugAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("debug api stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	snapshots, unwatch := c.Watch(8)
	defer unwatch()
	go func() {
		for s := range snapshots {
			fmt.Fprintln(out, summary(s))
		}
	}()

	c.Start(ctx)
	if st := c.ConnectionState(); !st.Connected {
		fmt.Fprintf(out, "not connected: %s (type reconnect to retry)\n", st.LastError)
	}
	if c.NeedsReconnect() {
		rec, _ := c.SavedSession()
		fmt.Fprintf(out, "saved session for %s in lobby %s: type resume to rejoin or forget to drop it\n", rec.PlayerName, rec.LobbyCode)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			quit, err := execute(c, cmd, out)
			if err != nil {
				fmt.Fprintln(out, err)
			}
			if quit {
				return nil
			}
		}
	}
}
