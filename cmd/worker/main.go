// Worker node entrypoint.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfleet/sqlfleet/common"
	"github.com/sqlfleet/sqlfleet/engine"
	"github.com/sqlfleet/sqlfleet/worker"
)

var configPath = flag.String("config", "worker.yaml", "path to node config file")

func main() {
	flag.Parse()
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := common.SetLogLevel(cfg.Node.LogLevel); err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.Node.LogLevel, err)
	}
	logger := common.Log()

	eng, err := engine.OpenSQLite(cfg.Engine.DSN)
	if err != nil {
		logger.Fatal("Failed to open data engine.", zap.String("dsn", cfg.Engine.DSN), zap.Error(err))
	}
	defer eng.Close()

	s := worker.NewServer(cfg.Node.Name, eng)
	srv := &http.Server{Addr: cfg.Node.ListenAddr, Handler: s.Router()}
	setupCloseHandler(srv)

	logger.Info("Worker listening.",
		zap.String("name", cfg.Node.Name),
		zap.String("addr", cfg.Node.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server raised error.", zap.Error(err))
	}
}

// handle ctrl-c gracefully
func setupCloseHandler(srv *http.Server) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		common.Log().Info("Ctrl-C captured, shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
}
