
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/unknownwarrior911/course-sales-bot/internal/bot"
	"github.com/unknownwarrior911/course-sales-bot/internal/config"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.json")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := bot.New(cfg)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer app.Close()

	// SIGINT/SIGTERM cancel the context; Run drains in-flight updates
	// before returning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("run error: %v", err)
	}
}
