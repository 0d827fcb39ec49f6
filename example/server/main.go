package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/9d77v/iec104/v2"
	"github.com/9d77v/iec104/v2/example/server/api"
	"github.com/9d77v/iec104/v2/example/server/config"
	"github.com/9d77v/iec104/v2/example/server/station"
)

func main() {
	iec104.RegisterMetrics()

	cfg, err := config.LinkConfig()
	if err != nil {
		config.Logger.Fatalln(err)
	}
	srv, err := iec104.NewServer(cfg, config.Logger)
	if err != nil {
		config.Logger.Fatalln(err)
	}
	srv.MaxConns = config.MaxConns
	ln, err := config.Listen()
	if err != nil {
		config.Logger.Fatalln(err)
	}

	st := station.New(uint16(config.CommonAddr), 16, 8, 4, config.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    config.HTTPAddr,
		Handler: api.NewRouter(srv, st),
	}
	go func() {
		config.Logger.Infof("http监听%s", config.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Logger.Errorf("http服务: %v", err)
			stop()
		}
	}()
	go st.Simulate(ctx, srv, config.SimulateInterval)

	if err := srv.Serve(ctx, ln, st); err != nil {
		config.Logger.Errorln(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}
