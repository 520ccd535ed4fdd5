package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/di"
)

func main() {
	envFile := flag.String("env-file", ".env", "path to env file")
	flag.Parse()
	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatal(err)
	}

	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		a.Logger.Error("identity server stopped", "error", err)
		os.Exit(1)
	}
}
