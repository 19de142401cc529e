// Command forge runs the canonforge MCP server on stdio.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashgrove/canonforge/internal/platform/config"
	"github.com/ashgrove/canonforge/internal/platform/otel"
	"github.com/ashgrove/canonforge/internal/services/forge/app"
)

func main() {
	log.SetPrefix("[forge] ")

	cfg, err := app.LoadConfig()
	if err != nil {
		config.Exitf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "canonforge")
	if err != nil {
		config.Exitf("set up tracing: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shut down tracing: %v", err)
		}
	}()

	service, err := app.New(cfg)
	if err != nil {
		config.Exitf("start forge service: %v", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	if err := service.Serve(ctx); err != nil {
		config.Exitf("serve MCP: %v", err)
	}
}
