package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/reedfamily/zedctl/internal/config"
	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/db"
	"github.com/reedfamily/zedctl/internal/game"
	_ "github.com/reedfamily/zedctl/internal/game/sdtd"
	"github.com/reedfamily/zedctl/internal/monitor"
	"github.com/reedfamily/zedctl/internal/scheduler"
	"github.com/reedfamily/zedctl/internal/server"
	"github.com/reedfamily/zedctl/internal/shell"
	"github.com/reedfamily/zedctl/internal/stats"
)

func main() {
	var (
		host     = pflag.String("host", "", "game server host (overrides SERVER_HOST)")
		port     = pflag.Int("port", 0, "game server telnet port (overrides SERVER_PORT)")
		password = pflag.String("password", "", "telnet password (overrides SERVER_PASSWORD)")
		dbPath   = pflag.String("db", "", "sqlite database path (overrides ZEDCTL_DB)")
		listen   = pflag.String("listen", "", "web API listen address, e.g. :8520 (overrides ZEDCTL_LISTEN)")
		gameName = pflag.String("game", "7dtd", "game dialect")
		connect  = pflag.Bool("connect", true, "connect to the server on startup")
	)
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *host != "" {
		cfg.ServerHost = *host
	}
	if *port != 0 {
		cfg.ServerPort = *port
	}
	if *password != "" {
		cfg.ServerPassword = *password
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	adapter := game.Get(*gameName)
	if adapter == nil {
		log.Fatalf("unknown game %q", *gameName)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	store := db.NewStore(database)
	mon := monitor.New(adapter, store)
	con := console.New(adapter, store, mon)
	defer con.Disconnect()

	collector := stats.NewCollector(store, con, time.Minute)
	collector.Start()
	defer collector.Stop()

	sched := scheduler.New(store, con)
	sched.Start()
	defer sched.Stop()

	var httpServer *http.Server
	if cfg.ListenAddr != "" {
		srv, err := server.New(cfg, database, store, con, collector)
		if err != nil {
			log.Fatalf("init web API: %v", err)
		}
		httpServer = &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}
		go func() {
			log.Printf("web API listening on %s", cfg.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("web API: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if *connect && cfg.ServerHost != "" {
		if err := con.Connect(ctx, cfg.ServerHost, cfg.ServerPort, cfg.ServerPassword); err != nil {
			log.Printf("initial connect failed: %v (use 'connect' to retry)", err)
		}
	}

	sh := shell.New(cfg, con, store, collector, os.Stdin, os.Stdout)
	if err := sh.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("shell: %v", err)
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("web API shutdown: %v", err)
		}
	}
}
