package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Ansocialov1337/my-crash-game/internal/app"
	"github.com/Ansocialov1337/my-crash-game/internal/config"
	"github.com/Ansocialov1337/my-crash-game/internal/logger"
	"github.com/Ansocialov1337/my-crash-game/internal/monitoring"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	l, err := logger.Init(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer l.Sync()

	monitoring.Init(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := app.NewServer(cfg, l)
	if err != nil {
		l.Fatal("failed to build server", zap.Error(err))
	}

	if err := server.Run(ctx); err != nil {
		l.Fatal("server stopped", zap.Error(err))
	}
}
