// Trusted host entrypoint: the only node permitted to reach the proxy.
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
	"github.com/sqlfleet/sqlfleet/relay"
)

var configPath = flag.String("config", "trusted_host.yaml", "path to node config file")

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

	reg, err := cfg.LoadRegistry()
	if err != nil {
		logger.Fatal("Failed to load node registry.", zap.Error(err))
	}
	downstream, err := reg.Lookup(common.RoleProxy)
	if err != nil {
		logger.Fatal("No proxy in registry.", zap.Error(err))
	}

	s := relay.NewServer(cfg.Node.Name, downstream)
	srv := &http.Server{Addr: cfg.Node.ListenAddr, Handler: s.Router()}
	setupCloseHandler(srv)

	logger.Info("Trusted host listening.",
		zap.String("name", cfg.Node.Name),
		zap.String("addr", cfg.Node.ListenAddr),
		zap.String("downstream", downstream.Name))
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
