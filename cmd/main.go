package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"pharmacy/internal/app"
	"pharmacy/internal/config"

	_ "pharmacy/docs"
)

// @title Pharmacy storefront API
// @version 1.0
// @BasePath /api/v1
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	cfg.Print()

	a := app.New(ctx, cfg)
	a.Run(stop)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.Close(shutdownCtx)
}
