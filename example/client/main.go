package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/9d77v/iec104/v2"
	"github.com/9d77v/iec104/v2/example/client/config"
	"github.com/9d77v/iec104/v2/example/client/worker"
)

func main() {
	cfg, err := config.LinkConfig()
	if err != nil {
		config.Logger.Fatalln(err)
	}
	dial, err := config.Dialer()
	if err != nil {
		config.Logger.Fatalln(err)
	}
	client, err := iec104.NewClient(cfg, dial, config.Logger)
	if err != nil {
		config.Logger.Fatalln(err)
	}
	client.CommonAddr = uint16(config.CommonAddr)
	if config.InterrogationInterval > 0 {
		client.InterrogationInterval = config.InterrogationInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := client.Run(ctx, worker.Task); err != nil && !errors.Is(err, context.Canceled) {
		config.Logger.Fatalln(err)
	}
}
